package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taxicab/internal/cache"
	"taxicab/internal/clock/system"
	"taxicab/internal/content"
	"taxicab/internal/doi"
	"taxicab/internal/id/uuid"
	"taxicab/internal/policy"
	"taxicab/internal/publisher"
	"taxicab/internal/resolve"
)

// DOIResolver follows the doi.org redirect chain to a publisher landing page.
type DOIResolver interface {
	ResolveDOI(ctx context.Context, d string) (resolve.Resolution, error)
}

// Options wires a Harvester. Cache, Policies, and Fetcher are required;
// everything else has a working default.
type Options struct {
	Cache     *cache.Store
	Policies  *policy.Resolver
	Probe     DOIResolver
	Fetcher   Fetcher
	Publisher publisher.Provider
	Clock     Clock
	IDs       IDGenerator
	Retry     RetryPolicy
	Logger    *zap.Logger

	// Sleep is swapped out in tests. Defaults to time.Sleep; a started
	// retry sequence always runs to completion.
	Sleep func(time.Duration)
}

// Harvester runs the cache-then-fetch-then-store pipeline. Concurrent
// harvests of the same locator race benignly: both fetch, last write wins.
type Harvester struct {
	cache     *cache.Store
	policies  *policy.Resolver
	probe     DOIResolver
	fetcher   Fetcher
	publisher publisher.Provider
	clock     Clock
	ids       IDGenerator
	retry     RetryPolicy
	logger    *zap.Logger
	sleep     func(time.Duration)
}

// New builds a Harvester from Options.
func New(opts Options) *Harvester {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.IDs == nil {
		opts.IDs = uuid.New()
	}
	return &Harvester{
		cache:     opts.Cache,
		policies:  opts.Policies,
		probe:     opts.Probe,
		fetcher:   opts.Fetcher,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		ids:       opts.IDs,
		retry:     opts.Retry,
		logger:    opts.Logger,
		sleep:     opts.Sleep,
	}
}

// HarvestURL fetches the landing page at a URL, serving from the cache when
// a prior harvest is already stored.
func (h *Harvester) HarvestURL(ctx context.Context, req URLRequest) (*Result, error) {
	if req.URL == "" {
		return nil, &ValidationError{Field: "url", Reason: "is required"}
	}
	TotalHarvests.Inc()

	entry, err := h.cache.LookupURL(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return h.resultFromEntry(entry, req.URL, req.NativeID, req.NativeIDNamespace)
	}

	return h.run(ctx, runInput{
		canonicalURL:      req.URL,
		fetchURL:          req.URL,
		nativeID:          req.NativeID,
		nativeIDNamespace: req.NativeIDNamespace,
	})
}

// HarvestDOI normalizes the DOI, checks the cache under its doi.org form,
// and on a miss resolves the redirect chain and fetches the landing page.
// The stored entry stays keyed by the doi.org URL so repeat harvests hit.
func (h *Harvester) HarvestDOI(ctx context.Context, req DOIRequest) (*Result, error) {
	d, err := doi.Normalize(req.DOI)
	if err != nil {
		return nil, err
	}
	TotalHarvests.Inc()

	entry, err := h.cache.LookupDOI(ctx, d)
	if err != nil {
		return nil, err
	}
	doiURL := "https://doi.org/" + d
	if entry != nil {
		return h.resultFromEntry(entry, doiURL, req.NativeID, req.NativeIDNamespace)
	}

	fetchURL := doiURL
	if h.probe != nil {
		res, err := h.probe.ResolveDOI(ctx, d)
		if err != nil {
			h.logger.Warn("doi redirect probe failed, fetching doi.org directly",
				zap.String("doi", d), zap.Error(err))
		} else if res.FinalURL != "" {
			fetchURL = res.FinalURL
		}
	}

	return h.run(ctx, runInput{
		canonicalURL:      doiURL,
		fetchURL:          fetchURL,
		doi:               d,
		nativeID:          req.NativeID,
		nativeIDNamespace: req.NativeIDNamespace,
	})
}

// HarvestPDF fetches the full-text PDF for a DOI at a given version. The
// payload must be a structurally valid PDF to be stored.
func (h *Harvester) HarvestPDF(ctx context.Context, req PDFRequest) (*Result, error) {
	d, err := doi.Normalize(req.DOI)
	if err != nil {
		return nil, err
	}
	if req.URL == "" {
		return nil, &ValidationError{Field: "url", Reason: "is required"}
	}
	v := doi.ParseVersion(req.Version)
	TotalHarvests.Inc()

	entry, err := h.cache.LookupPDF(ctx, d, v)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return h.resultFromEntry(entry, req.URL, req.NativeID, req.NativeIDNamespace)
	}

	return h.run(ctx, runInput{
		canonicalURL:      req.URL,
		fetchURL:          req.URL,
		doi:               d,
		nativeID:          req.NativeID,
		nativeIDNamespace: req.NativeIDNamespace,
		wantPDF:           true,
	})
}

type runInput struct {
	canonicalURL      string
	fetchURL          string
	doi               string
	nativeID          string
	nativeIDNamespace string
	wantPDF           bool
}

// run executes the fetch-classify-store portion of the pipeline after a
// cache miss.
func (h *Harvester) run(ctx context.Context, in runInput) (*Result, error) {
	chain, err := h.policies.Resolve(policy.Input{URL: in.fetchURL, DOI: in.doi})
	if err != nil {
		return nil, err
	}

	resp, err := h.fetchWithRetry(ctx, in.fetchURL, chain)
	if err != nil {
		return nil, err
	}

	// Crossref interleaves a chooser page for DOIs with multiple
	// resolutions; follow its first resource link one hop.
	if !in.wantPDF && resp.StatusCode == 200 {
		if link, ok := resolve.ChooserLink(resp.Body); ok {
			h.logger.Debug("following chooser link", zap.String("url", link))
			// The chooser target lives on the publisher's domain, which
			// has its own policy chain.
			linkChain, err := h.policies.Resolve(policy.Input{URL: link, DOI: in.doi})
			if err != nil {
				return nil, err
			}
			resp, err = h.fetchWithRetry(ctx, link, linkChain)
			if err != nil {
				return nil, err
			}
		}
	}

	ct := content.Classify(resp.Body)
	if resp.StatusCode == 200 && len(resp.Body) > 0 {
		switch {
		case ct == content.TypePDF:
			// Truncated and placeholder PDFs fail here on every shape,
			// not just explicit PDF harvests.
			if !content.IsValidPDF(resp.Body, ct) {
				return nil, &ContentError{URL: in.fetchURL, Reason: "not a valid pdf"}
			}
		case in.wantPDF:
			return nil, &ContentError{URL: in.fetchURL, Reason: "not a valid pdf"}
		case ct != content.TypeHTML:
			return nil, &ContentError{URL: in.fetchURL, Reason: fmt.Sprintf("unsupported content type %s", ct)}
		}
	}

	softBlocked := content.IsSoftBlocked(resp.Body, ct)
	if softBlocked {
		TotalSoftBlocks.Inc()
		h.logger.Info("soft block detected", zap.String("url", resp.URL))
	}

	id, err := h.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate harvest id: %w", err)
	}
	result := &Result{
		ID:                id,
		URL:               in.canonicalURL,
		ResolvedURL:       resp.URL,
		Content:           resp.Body,
		ContentType:       ct,
		StatusCode:        resp.StatusCode,
		CreatedAt:         h.clock.Now(),
		IsSoftBlock:       softBlocked,
		NativeID:          in.nativeID,
		NativeIDNamespace: in.nativeIDNamespace,
	}

	if result.StatusCode != 200 || len(result.Content) == 0 || softBlocked {
		return result, nil
	}

	path, err := h.cache.Put(ctx, cache.PutInput{
		URL:               result.URL,
		ResolvedURL:       result.ResolvedURL,
		Content:           result.Content,
		ContentType:       result.ContentType,
		ID:                result.ID,
		NativeID:          result.NativeID,
		NativeIDNamespace: result.NativeIDNamespace,
		CreatedAt:         result.CreatedAt,
	})
	if err != nil {
		var se *cache.StorageError
		if errors.As(err, &se) {
			TotalStoreFailures.Inc()
			h.logger.Warn("cache store failed, returning unstored result",
				zap.String("url", result.URL), zap.Error(err))
			return result, nil
		}
		return nil, err
	}
	result.CachePath = path

	h.notify(ctx, result)
	return result, nil
}

// fetchWithRetry runs the attempt loop, escalating through the policy chain
// on retryable statuses. When every attempt comes back retryable, the last
// response is returned as the terminal outcome rather than an error.
func (h *Harvester) fetchWithRetry(ctx context.Context, url string, chain []policy.Policy) (FetchResponse, error) {
	if len(chain) == 0 {
		chain = []policy.Policy{policy.Bypass}
	}

	var last FetchResponse
	for attempt := 0; attempt < h.retry.MaxAttempts; attempt++ {
		strategy := chain[min(attempt, len(chain)-1)]
		resp, err := h.fetcher.Fetch(ctx, FetchRequest{URL: url, Strategy: strategy})
		if err != nil {
			return FetchResponse{}, &FetchError{URL: url, Err: err}
		}
		if !RetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		last = resp
		if attempt < h.retry.MaxAttempts-1 {
			TotalRetries.Inc()
			h.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			h.sleep(h.retry.Backoff(attempt))
		}
	}
	return last, nil
}

func (h *Harvester) resultFromEntry(entry *cache.Entry, url, nativeID, ns string) (*Result, error) {
	TotalCacheHits.Inc()
	id, err := h.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate harvest id: %w", err)
	}
	return &Result{
		ID:                id,
		URL:               url,
		ResolvedURL:       entry.ResolvedURL,
		Content:           entry.Content,
		ContentType:       entry.ContentType,
		StatusCode:        200,
		CreatedAt:         entry.CreatedAt,
		CachePath:         entry.Path,
		NativeID:          nativeID,
		NativeIDNamespace: ns,
	}, nil
}

func (h *Harvester) notify(ctx context.Context, r *Result) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.Publish(ctx, publisher.Message{
		ID:          r.ID,
		URL:         r.URL,
		ResolvedURL: r.ResolvedURL,
		CachePath:   r.CachePath,
		ContentType: string(r.ContentType),
		StatusCode:  r.StatusCode,
	})
	if err != nil {
		h.logger.Warn("publish harvest notification failed",
			zap.String("id", r.ID), zap.Error(err))
	}
}
