package api

import (
	"TradePilot/internal/domain/models"
	"TradePilot/internal/risk"
	xhttp "TradePilot/pkg/http"
	xlogger "TradePilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RiskHandler exposes the portfolio-state push endpoints used by the
// terminal bridge and the risk-status read endpoint.
type RiskHandler struct {
	logger  *xlogger.Logger
	manager *risk.Manager
}

func NewRiskHandler(logger *xlogger.Logger, manager *risk.Manager) *RiskHandler {
	return &RiskHandler{logger: logger, manager: manager}
}

func (h *RiskHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/risk")
	g.POST("/account", h.Account)
	g.POST("/positions", h.Positions)
	g.POST("/weekly-drawdown", h.WeeklyDrawdown)
	g.GET("/status", h.Status)
}

func (h *RiskHandler) Account(c echo.Context) error {
	req := &models.AccountInfoRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.manager.SetAccountInfo(req.Balance, req.Equity, req.Margin)
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *RiskHandler) Positions(c echo.Context) error {
	req := &models.PositionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.manager.SetPositionsData(req.Positions)
	return xhttp.SuccessResponse(c, map[string]any{
		"status":    "ok",
		"positions": len(req.Positions),
	})
}

func (h *RiskHandler) WeeklyDrawdown(c echo.Context) error {
	req := &models.WeeklyDrawdownRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.manager.SetWeeklyDrawdown(req.Value)
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *RiskHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.manager.GetRiskStatus())
}
