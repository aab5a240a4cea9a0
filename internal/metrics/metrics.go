package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts SDK traffic to the imaging service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	BytesDownloaded *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	TilesFetched    prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pma_requests_total",
			Help: "The total number of requests sent to the imaging service.",
		}, []string{"endpoint", "outcome"}),
		BytesDownloaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pma_downloaded_bytes_total",
			Help: "The total number of response bytes received from the imaging service.",
		}, []string{"endpoint"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "pma_slide_info_cache_hits_total",
			Help: "The total number of slide metadata lookups served from cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "pma_slide_info_cache_misses_total",
			Help: "The total number of slide metadata lookups that went to the service.",
		}),
		TilesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "pma_tiles_fetched_total",
			Help: "The total number of tiles downloaded and decoded.",
		}),
	}
}

// Request records one round trip to endpoint.
func (m *Metrics) Request(endpoint string, n int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Requests.WithLabelValues(endpoint, outcome).Inc()
	if n > 0 {
		m.BytesDownloaded.WithLabelValues(endpoint).Add(float64(n))
	}
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) Tile() {
	if m == nil {
		return
	}
	m.TilesFetched.Inc()
}
