// Package fetcher routes fetch requests to the implementation matching the
// resolved fetch profile.
package fetcher

import (
	"context"
	"fmt"

	"taxicab/internal/harvest"
	"taxicab/internal/policy"
)

// Router dispatches on the strategy's fetch profile. Direct is required;
// Proxy and API fall back to Direct when unset.
type Router struct {
	Direct harvest.Fetcher
	Proxy  harvest.Fetcher
	API    harvest.Fetcher
}

// Fetch forwards to the fetcher for the request's profile.
func (r *Router) Fetch(ctx context.Context, req harvest.FetchRequest) (harvest.FetchResponse, error) {
	if r.Direct == nil {
		return harvest.FetchResponse{}, fmt.Errorf("no direct fetcher configured")
	}
	switch req.Strategy.Profile {
	case policy.ProfileAPI:
		if r.API != nil {
			return r.API.Fetch(ctx, req)
		}
	case policy.ProfileProxy:
		if r.Proxy != nil {
			return r.Proxy.Fetch(ctx, req)
		}
	}
	return r.Direct.Fetch(ctx, req)
}
