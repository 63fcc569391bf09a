package app

import (
	"net/http"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/tonkeeper/geocode-bot/internal"
	"github.com/tonkeeper/geocode-bot/internal/config"
	"github.com/tonkeeper/geocode-bot/internal/mode"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Mode        string `json:"mode"`
	WebhookBase string `json:"webhook_base"`
	WebhookPath string `json:"webhook_path,omitempty"`
}

// DeliveryChecker reports whether updates are being delivered
type DeliveryChecker interface {
	Running() bool
}

// HealthManager reports the state of update delivery
type HealthManager struct {
	delivery DeliveryChecker
}

// NewHealthManager creates a new health manager
func NewHealthManager(delivery DeliveryChecker) *HealthManager {
	return &HealthManager{delivery: delivery}
}

// UpdateHealthStatus checks delivery and updates metrics
func (h *HealthManager) UpdateHealthStatus() bool {
	running := h.delivery.Running()
	var healthStatus float64
	if running {
		healthStatus = 1
	}
	HealthMetric.Set(healthStatus)
	return running
}

// HealthHandler returns the delivery mode derived from the current
// configuration and whether delivery is running.
func (h *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Build-Commit", internal.BotVersionRevision)

	resp := HealthResponse{
		Status:      "ok",
		Mode:        string(mode.Resolve(config.Config.BotMode, config.Config.WebhookBase)),
		WebhookBase: config.Config.WebhookBase,
	}
	if resp.Mode == string(mode.Webhook) {
		resp.WebhookPath = config.WebhookPath()
	}

	status := http.StatusOK
	if !h.UpdateHealthStatus() {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("health response write error: %v", err)
	}
}

// VersionHandler returns HTTP handler for version endpoint
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Build-Commit", internal.BotVersionRevision)

	w.WriteHeader(http.StatusOK)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(map[string]string{"version": internal.BotVersionRevision}); err != nil {
		log.Errorf("version response write error: %v", err)
	}
}
