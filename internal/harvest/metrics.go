package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalHarvests tracks harvests that produced a result.
	TotalHarvests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_requests_total",
		Help: "The total number of harvest requests processed.",
	})
	// TotalCacheHits tracks harvests served from the cache with no fetch.
	TotalCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_cache_hits_total",
		Help: "The total number of harvests served from the cache.",
	})
	// TotalRetries tracks retried fetch attempts.
	TotalRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_fetch_retries_total",
		Help: "The total number of retried fetch attempts.",
	})
	// TotalSoftBlocks tracks payloads recognized as bot-block interstitials.
	TotalSoftBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_soft_blocks_total",
		Help: "The total number of soft-blocked responses detected.",
	})
	// TotalStoreFailures tracks cache writes that failed after a good fetch.
	TotalStoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_store_failures_total",
		Help: "The total number of cache store failures.",
	})
)
