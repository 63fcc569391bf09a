package app

import (
	client_prometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/tonkeeper/geocode-bot/internal"
)

var (
	HealthMetric = client_prometheus.NewGauge(client_prometheus.GaugeOpts{
		Name: "geocode_bot_health_status",
		Help: "Health status of the bot (1 = delivering updates, 0 = stopped)",
	})

	VersionMetric = client_prometheus.NewGaugeVec(client_prometheus.GaugeOpts{
		Name: "geocode_bot_version_info",
		Help: "Version information of the bot",
	}, []string{"version"})

	ModeMetric = client_prometheus.NewGaugeVec(client_prometheus.GaugeOpts{
		Name: "geocode_bot_mode_info",
		Help: "Update delivery mode the bot was started with",
	}, []string{"mode"})
)

// InitMetrics registers all Prometheus metrics and sets version info
func InitMetrics() {
	client_prometheus.MustRegister(HealthMetric)
	client_prometheus.MustRegister(VersionMetric)
	client_prometheus.MustRegister(ModeMetric)
	VersionMetric.WithLabelValues(internal.BotVersionRevision).Set(1)
}

// SetBotInfo publishes the delivery mode chosen at startup
func SetBotInfo(mode string) {
	ModeMetric.Reset()
	ModeMetric.WithLabelValues(mode).Set(1)
}
