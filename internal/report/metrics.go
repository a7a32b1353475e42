package report

import "github.com/prometheus/client_golang/prometheus"

var (
	// reportPercent is the sent percentage of the last built report.
	reportPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "report_sent_percent",
			Help: "Share of roster codes that reported today, in percent.",
		},
	)

	// reportEntries counts entries of the last built report by section.
	reportEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "report_entries",
			Help: "Entries of the last built report by section (sent|missing|extra).",
		},
		[]string{"section"},
	)

	reportSendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "report_send_failures_total",
			Help: "Daily report messages that could not be delivered.",
		},
	)
)

func init() {
	prometheus.MustRegister(reportPercent, reportEntries, reportSendFailures)
}

func observe(r Report) {
	reportPercent.Set(float64(r.Percent))
	reportEntries.WithLabelValues("sent").Set(float64(len(r.Sent)))
	reportEntries.WithLabelValues("missing").Set(float64(len(r.Missing)))
	reportEntries.WithLabelValues("extra").Set(float64(len(r.Extra)))
}
