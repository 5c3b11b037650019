// Package policy matches locators against a prioritized fetch-policy table
// and resolves the ordered strategy chain for one harvest attempt.
package policy

import (
	"fmt"
	"regexp"
	"sort"
)

// Kind scopes a policy to URL-shaped or DOI-shaped locators.
type Kind string

// Policy scopes.
const (
	KindURL Kind = "url"
	KindDOI Kind = "doi"
)

// Profile names the fetch strategy a policy selects.
type Profile string

// Fetch profiles, ranked api-with-params > api > proxy > bypass.
const (
	ProfileProxy  Profile = "proxy"
	ProfileAPI    Profile = "api"
	ProfileBypass Profile = "bypass"
)

// Policy is one row of the fetch-policy table. Policies form a two-level
// tree: roots (ParentID nil) are the primary strategy for a pattern, children
// are escalation strategies tried when the primary fetch fails retryably.
type Policy struct {
	ID       int64
	Kind     Kind
	Pattern  *regexp.Regexp
	Profile  Profile
	Params   map[string]string
	Priority int
	ParentID *int64
}

// Matches reports whether the policy's pattern matches the locator.
func (p Policy) Matches(locator string) bool {
	if locator == "" || p.Pattern == nil {
		return false
	}
	return p.Pattern.MatchString(locator)
}

// Bypass is the degenerate strategy used when no policy matches: fetch the
// URL directly with no special handling.
var Bypass = Policy{Profile: ProfileBypass}

// ConflictError reports two root policies with non-empty params matching the
// same locator. This is a configuration bug; resolution fails rather than
// silently picking one.
type ConflictError struct {
	Locator string
	IDs     []int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting root fetch policies %v for locator %q", e.IDs, e.Locator)
}

// Input carries both representations of one locator: the URL being fetched
// and, for identifier harvests, the normalized DOI. URL-scoped policies match
// against URL, DOI-scoped ones against DOI.
type Input struct {
	URL string
	DOI string
}

// Resolver holds the policy table, loaded once at startup and read-only for
// the process lifetime.
type Resolver struct {
	policies []Policy
}

// NewResolver builds a Resolver over a loaded policy set.
func NewResolver(policies []Policy) *Resolver {
	return &Resolver{policies: policies}
}

// rank orders candidates at any tier: api with params beats bare api beats
// proxy beats bypass.
func rank(p Policy) int {
	switch {
	case p.Profile == ProfileAPI && len(p.Params) > 0:
		return 3
	case p.Profile == ProfileAPI:
		return 2
	case p.Profile == ProfileProxy:
		return 1
	default:
		return 0
	}
}

func sortByRank(ps []Policy) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ri, rj := rank(ps[i]), rank(ps[j]); ri != rj {
			return ri > rj
		}
		return ps[i].Priority > ps[j].Priority
	})
}

// Resolve returns the ordered strategy chain [root, children...] for the
// locator, or the degenerate bypass chain when nothing matches.
func (r *Resolver) Resolve(in Input) ([]Policy, error) {
	var matched []Policy
	for _, p := range r.policies {
		switch p.Kind {
		case KindDOI:
			if p.Matches(in.DOI) {
				matched = append(matched, p)
			}
		default:
			if p.Matches(in.URL) {
				matched = append(matched, p)
			}
		}
	}
	if len(matched) == 0 {
		return []Policy{Bypass}, nil
	}

	var roots []Policy
	for _, p := range matched {
		if p.ParentID == nil {
			roots = append(roots, p)
		}
	}
	if len(roots) == 0 {
		// Orphaned children cannot form a chain.
		return []Policy{Bypass}, nil
	}
	sortByRank(roots)
	if len(roots) > 1 && len(roots[0].Params) > 0 && len(roots[1].Params) > 0 {
		return nil, &ConflictError{
			Locator: firstNonEmpty(in.DOI, in.URL),
			IDs:     []int64{roots[0].ID, roots[1].ID},
		}
	}
	winner := roots[0]

	var children []Policy
	for _, p := range matched {
		if p.ParentID != nil && *p.ParentID == winner.ID {
			children = append(children, p)
		}
	}
	sortByRank(children)

	return append([]Policy{winner}, children...), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
