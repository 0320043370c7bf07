package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/usecase/lifecycle"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/usecase/watcher"
)

type WebhookHandler struct{ w *watcher.Watcher }

func NewWebhookHandler(w *watcher.Watcher) *WebhookHandler { return &WebhookHandler{w: w} }

type automationEventReq struct {
	EventType string `json:"event_type" validate:"required"`
	LoanID    string `json:"loan_id"    validate:"required,hex32"`
	Data      struct {
		Amount        decimal.Decimal `json:"amount"`
		SettlementRef string          `json:"settlement_ref"`
		ExpiresAt     *time.Time      `json:"expires_at"`
	} `json:"data"`
}

func (h *WebhookHandler) AutomationEvent(c echo.Context) error {
	var req automationEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.w.HandleEvent(c.Request().Context(), lifecycle.AutomationEvent{
		Type:   req.EventType,
		LoanID: req.LoanID,
		Data: lifecycle.EventData{
			Amount:        req.Data.Amount,
			SettlementRef: req.Data.SettlementRef,
			ExpiresAt:     req.Data.ExpiresAt,
		},
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
