// Package metrics holds the prometheus collectors for campaign dispatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SMSSent        *prometheus.CounterVec
	SMSFailed      *prometheus.CounterVec
	CampaignRuns   *prometheus.CounterVec
	CallsStarted   prometheus.Counter
	CallsEnded     *prometheus.CounterVec
	CallDuration   prometheus.Histogram
	ActiveCampaign *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		SMSSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "sms_sent_total",
			Help:      "SMS accepted by the provider.",
		}, []string{"provider"}),
		SMSFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "sms_failed_total",
			Help:      "SMS that could not be sent, by reason.",
		}, []string{"provider", "reason"}),
		CampaignRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "runs_total",
			Help:      "Finished campaign runs by kind and final status.",
		}, []string{"kind", "status"}),
		CallsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "calls_started_total",
			Help:      "Voice calls accepted by the provider.",
		}),
		CallsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "calls_ended_total",
			Help:      "Voice calls that reached a result, by status.",
		}, []string{"status"}),
		CallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "campaign",
			Name:      "call_duration_seconds",
			Help:      "Duration of finished voice calls.",
			Buckets:   []float64{5, 15, 30, 60, 120, 180, 300},
		}),
		ActiveCampaign: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "campaign",
			Name:      "active",
			Help:      "1 while a campaign of the given kind is running.",
		}, []string{"kind"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.SMSSent, m.SMSFailed, m.CampaignRuns,
		m.CallsStarted, m.CallsEnded, m.CallDuration, m.ActiveCampaign,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
