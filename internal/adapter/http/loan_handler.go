package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/usecase/lifecycle"
)

type LoanHandler struct{ lc *lifecycle.Usecase }

func NewLoanHandler(lc *lifecycle.Usecase) *LoanHandler { return &LoanHandler{lc: lc} }

type quoteReq struct {
	Asset            string          `json:"asset"              validate:"required,asset"`
	Principal        decimal.Decimal `json:"principal"          validate:"required,gt=0"`
	TargetLTVPercent decimal.Decimal `json:"target_ltv_percent" validate:"omitempty,gt=0,lte=100"`
}

func (h *LoanHandler) Quote(c echo.Context) error {
	var req quoteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.lc.Quote(c.Request().Context(), lifecycle.QuoteInput{
		Asset:            req.Asset,
		Principal:        req.Principal,
		TargetLTVPercent: req.TargetLTVPercent,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type openLoanReq struct {
	OwnerKey         string          `json:"owner_key"          validate:"required,ownerkey"`
	Kind             string          `json:"kind"               validate:"omitempty,oneof=card contract"`
	Asset            string          `json:"asset"              validate:"required,asset"`
	Principal        decimal.Decimal `json:"principal"          validate:"required,gt=0"`
	TargetLTVPercent decimal.Decimal `json:"target_ltv_percent" validate:"omitempty,gt=0,lte=100"`
	CreditLimit      decimal.Decimal `json:"credit_limit"       validate:"required,gt=0"`
	PaymentMethodRef string          `json:"payment_method_ref"`
	HoldDurationSec  int64           `json:"hold_duration_sec"  validate:"omitempty,gte=0"`
}

func (h *LoanHandler) OpenLoan(c echo.Context) error {
	var req openLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.lc.Open(c.Request().Context(), lifecycle.OpenInput{
		OwnerKey:         req.OwnerKey,
		Kind:             loan.SettlementKind(req.Kind),
		Asset:            req.Asset,
		Principal:        req.Principal,
		TargetLTVPercent: req.TargetLTVPercent,
		CreditLimit:      req.CreditLimit,
		PaymentMethodRef: req.PaymentMethodRef,
		HoldDurationSec:  req.HoldDurationSec,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	dto, err := h.lc.Get(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type settleReq struct {
	Reason string `json:"reason"`
}

func (h *LoanHandler) settleBody(c echo.Context) string {
	var req settleReq
	// The body is optional on settlement routes.
	_ = c.Bind(&req)
	return req.Reason
}

func (h *LoanHandler) ChargeLoan(c echo.Context) error {
	dto, err := h.lc.Charge(c.Request().Context(), c.Param("loan_id"), h.settleBody(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ReleaseLoan(c echo.Context) error {
	dto, err := h.lc.Release(c.Request().Context(), c.Param("loan_id"), h.settleBody(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) RepayLoan(c echo.Context) error {
	dto, err := h.lc.Repay(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) LoanExpiry(c echo.Context) error {
	st, err := h.lc.Expiry(c.Request().Context(), c.Param("loan_id"), time.Now().UTC())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *LoanHandler) OwnerLoans(c echo.Context) error {
	dtos, err := h.lc.ListByOwner(c.Request().Context(), c.Param("owner_key"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loans": dtos})
}

func (h *LoanHandler) OwnerCredit(c echo.Context) error {
	sum, err := h.lc.Summary(c.Request().Context(), c.Param("owner_key"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}
