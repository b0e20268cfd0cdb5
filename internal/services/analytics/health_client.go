package analytics

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"TradePilot/internal/domain/models"
	domsvc "TradePilot/internal/domain/service"
	"TradePilot/pkg/cache"
	"TradePilot/pkg/config"
	applogger "TradePilot/pkg/logger"
)

// HTTPHealthTelemetry queries the external analytics service for per-model
// health records. Lookups go through the cache layer first; on any failure
// the caller gets an "unknown" record so prediction never stalls on
// telemetry.
type HTTPHealthTelemetry struct {
	base  *HTTPServiceBase
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewHTTPHealthTelemetry(cfg *config.Config, c cache.Service, l *applogger.Logger) *HTTPHealthTelemetry {
	ttl := cfg.Analytics.CacheTTL.Health
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &HTTPHealthTelemetry{base: NewHTTPServiceBase(cfg), cache: c, ttl: ttl, l: l}
}

// ModelHealth returns the collaborator's health record for one model key.
// The unknown-status fallback is returned alongside the error so callers can
// use it directly.
func (h *HTTPHealthTelemetry) ModelHealth(ctx context.Context, modelKey string) (models.ModelHealth, error) {
	unknown := models.ModelHealth{ModelKey: modelKey, Status: models.HealthStatusUnknown}

	cacheKey := "model_health:" + modelKey
	if h.cache != nil {
		var cached models.ModelHealth
		if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var resp models.ModelHealth
	err := h.base.GetJSONWithRetry(ctx, "/api/model-health?model_key="+url.QueryEscape(modelKey), &resp, 2)
	if err != nil {
		h.l.Warn("model health lookup failed, using unknown",
			applogger.String("model_key", modelKey), applogger.Error(err))
		return unknown, fmt.Errorf("model health: %w", err)
	}
	if resp.Status == "" {
		resp.Status = models.HealthStatusUnknown
	}
	resp.ModelKey = modelKey

	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, resp, h.ttl); err != nil {
			h.l.Debug("model health cache write failed", applogger.Error(err))
		}
	}
	return resp, nil
}

// Reachable probes the collaborator with a short deadline.
func (h *HTTPHealthTelemetry) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var resp struct {
		Status string `json:"status"`
	}
	return h.base.GetJSON(ctx, "/health", &resp) == nil
}

var _ domsvc.HealthTelemetry = (*HTTPHealthTelemetry)(nil)
