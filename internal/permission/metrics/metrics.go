package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PermissionDenials     prometheus.Counter
	TenantRejections      prometheus.Counter
	PermissionCheckFaults prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		PermissionDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_permission_denials_total",
			Help: "Total number of permission checks that ended in denial",
		}),
		TenantRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_permission_tenant_rejections_total",
			Help: "Total number of resource checks rejected for tenant mismatch",
		}),
		PermissionCheckFaults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_permission_check_faults_total",
			Help: "Total number of permission checks that failed closed on internal error",
		}),
	}
}

func (m *Metrics) IncrementDenials() {
	m.PermissionDenials.Inc()
}

func (m *Metrics) IncrementTenantRejections() {
	m.TenantRejections.Inc()
}

func (m *Metrics) IncrementFaults() {
	m.PermissionCheckFaults.Inc()
}
