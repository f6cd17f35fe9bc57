package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EntriesWritten prometheus.Counter
	WriteFailures  prometheus.Counter
	AlertsSent     prometheus.Counter
	AlertFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EntriesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_audit_entries_written_total",
			Help: "Total number of audit entries persisted",
		}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_audit_write_failures_total",
			Help: "Total number of audit writes that degraded to console output",
		}),
		AlertsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_audit_alerts_sent_total",
			Help: "Total number of critical security alerts raised",
		}),
		AlertFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kopguard_audit_alert_failures_total",
			Help: "Total number of alert webhook deliveries that failed",
		}),
	}
}

func (m *Metrics) IncrementWritten()       { m.EntriesWritten.Inc() }
func (m *Metrics) IncrementWriteFailures() { m.WriteFailures.Inc() }
func (m *Metrics) IncrementAlertsSent()    { m.AlertsSent.Inc() }
func (m *Metrics) IncrementAlertFailures() { m.AlertFailures.Inc() }
