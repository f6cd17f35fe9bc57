package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejections  *prometheus.CounterVec
	StoreFaults prometheus.Counter
	SweptKeys   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kopguard_ratelimit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		}, []string{"class"}),
		StoreFaults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_ratelimit_store_faults_total",
			Help: "Total number of counter store errors that failed open",
		}),
		SweptKeys: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_ratelimit_swept_keys_total",
			Help: "Total number of expired counter windows reclaimed by the sweeper",
		}),
	}
}

func (m *Metrics) IncrementRejections(class string) {
	m.Rejections.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementStoreFaults() {
	m.StoreFaults.Inc()
}

func (m *Metrics) AddSweptKeys(n int) {
	m.SweptKeys.Add(float64(n))
}
