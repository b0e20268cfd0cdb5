package api

import (
	"TradePilot/internal/domain/models"
	"TradePilot/internal/usecase"
	xhttp "TradePilot/pkg/http"
	xlogger "TradePilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PredictHandler serves prediction and trade-decision requests.
type PredictHandler struct {
	logger  *xlogger.Logger
	service *usecase.PredictionService
}

func NewPredictHandler(logger *xlogger.Logger, service *usecase.PredictionService) *PredictHandler {
	return &PredictHandler{logger: logger, service: service}
}

func (h *PredictHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/predict", h.Predict)
	g.GET("/models", h.Models)
	g.POST("/reload", h.Reload)
	e.GET("/health", h.Health)
}

// Predict answers in legacy or enhanced mode depending on the request's
// enhanced flag. Both shapes are stable contracts for terminal-side
// callers.
func (h *PredictHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	if !req.Enhanced {
		res, err := h.service.PredictLegacy(ctx, req)
		if err != nil {
			h.logger.Error("legacy prediction error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, res)
	}

	res, err := h.service.Predict(ctx, req)
	if err != nil {
		h.logger.Error("prediction error",
			xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

type modelListEntry struct {
	ModelKey     string `json:"model_key"`
	ModelFile    string `json:"model_file"`
	LoadedAt     string `json:"loaded_at"`
	CanServe     bool   `json:"can_serve"`
	HealthScore  int    `json:"health_score,omitempty"`
	ModelQuality string `json:"model_quality,omitempty"`
}

// Models lists every loaded bundle with its serving readiness.
func (h *PredictHandler) Models(c echo.Context) error {
	bundles := h.service.Registry().List()
	out := make([]modelListEntry, 0, len(bundles))
	for _, b := range bundles {
		entry := modelListEntry{
			ModelKey:  b.Key.String(),
			ModelFile: b.ModelFile,
			LoadedAt:  b.LoadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			CanServe:  b.CanServe(),
		}
		if b.Meta != nil {
			entry.HealthScore = b.Meta.HealthScore
			entry.ModelQuality = b.Meta.ModelQuality
		}
		out = append(out, entry)
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

// Reload rebuilds the registry from disk on demand.
func (h *PredictHandler) Reload(c echo.Context) error {
	n, err := h.service.Registry().LoadAll()
	if err != nil {
		h.logger.Error("manual reload failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("reload failed"))
	}
	return xhttp.SuccessResponse(c, map[string]any{"models_loaded": n})
}

// Health reports serving readiness and request statistics.
func (h *PredictHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.service.Health(c.Request().Context()))
}
