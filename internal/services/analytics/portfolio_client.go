package analytics

import (
	"context"
	"time"

	"TradePilot/internal/domain/models"
	domsvc "TradePilot/internal/domain/service"
	"TradePilot/pkg/cache"
	"TradePilot/pkg/config"
	applogger "TradePilot/pkg/logger"
)

// HTTPPortfolioProvider fetches live positions and the account summary from
// the analytics collaborator. Both calls degrade to safe defaults (empty
// list, fixed $10,000 portfolio) when the collaborator is unreachable, so
// risk evaluation stays conservative instead of failing.
type HTTPPortfolioProvider struct {
	base  *HTTPServiceBase
	cache cache.Service
	l     *applogger.Logger

	positionsTTL time.Duration
	summaryTTL   time.Duration
}

func NewHTTPPortfolioProvider(cfg *config.Config, c cache.Service, l *applogger.Logger) *HTTPPortfolioProvider {
	p := &HTTPPortfolioProvider{
		base:         NewHTTPServiceBase(cfg),
		cache:        c,
		l:            l,
		positionsTTL: cfg.Analytics.CacheTTL.Positions,
		summaryTTL:   cfg.Analytics.CacheTTL.Summary,
	}
	if p.positionsTTL <= 0 {
		p.positionsTTL = 5 * time.Second
	}
	if p.summaryTTL <= 0 {
		p.summaryTTL = 10 * time.Second
	}
	return p
}

// Positions returns the open position list, or an empty list on failure.
func (p *HTTPPortfolioProvider) Positions(ctx context.Context) ([]models.Position, error) {
	const cacheKey = "portfolio:positions"
	if p.cache != nil {
		var cached []models.Position
		if err := p.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var resp struct {
		Positions []models.Position `json:"positions"`
	}
	if err := p.base.GetJSONWithRetry(ctx, "/api/positions", &resp, 2); err != nil {
		p.l.Warn("position fetch failed, using empty list", applogger.Error(err))
		return []models.Position{}, err
	}
	if resp.Positions == nil {
		resp.Positions = []models.Position{}
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cacheKey, resp.Positions, p.positionsTTL); err != nil {
			p.l.Debug("positions cache write failed", applogger.Error(err))
		}
	}
	return resp.Positions, nil
}

// Summary returns the account summary, or the default portfolio on failure.
func (p *HTTPPortfolioProvider) Summary(ctx context.Context) (models.PortfolioSummary, error) {
	const cacheKey = "portfolio:summary"
	if p.cache != nil {
		var cached models.PortfolioSummary
		if err := p.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var resp models.PortfolioSummary
	if err := p.base.GetJSONWithRetry(ctx, "/api/portfolio-summary", &resp, 2); err != nil {
		p.l.Warn("portfolio summary fetch failed, using defaults", applogger.Error(err))
		return models.DefaultPortfolioSummary(), err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cacheKey, resp, p.summaryTTL); err != nil {
			p.l.Debug("summary cache write failed", applogger.Error(err))
		}
	}
	return resp, nil
}

var _ domsvc.PortfolioProvider = (*HTTPPortfolioProvider)(nil)
