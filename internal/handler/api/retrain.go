package api

import (
	"TradePilot/internal/domain/models"
	"TradePilot/internal/usecase"
	xhttp "TradePilot/pkg/http"
	xlogger "TradePilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RetrainHandler exposes the retraining pipeline, the recommendation
// advisory and the run history.
type RetrainHandler struct {
	logger  *xlogger.Logger
	service *usecase.RetrainService
}

func NewRetrainHandler(logger *xlogger.Logger, service *usecase.RetrainService) *RetrainHandler {
	return &RetrainHandler{logger: logger, service: service}
}

func (h *RetrainHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/retrain")
	g.POST("", h.Retrain)
	g.GET("/recommendations", h.Recommendations)
	g.GET("/history", h.History)
}

// Retrain runs the full pipeline synchronously. A failed run is still a 200
// with success=false and diagnostics; only malformed requests or
// infrastructure failures are errors.
func (h *RetrainHandler) Retrain(c echo.Context) error {
	req := &models.RetrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	result, err := h.service.Retrain(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("retrain request error",
			xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, result)
}

func (h *RetrainHandler) Recommendations(c echo.Context) error {
	req := &models.RecommendationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	recs := h.service.Recommendations(req)
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *RetrainHandler) History(c echo.Context) error {
	req := &models.RetrainHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	runs, err := h.service.History(c.Request().Context(), req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, runs, int64(len(runs)))
}
