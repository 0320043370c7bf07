package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/adapter/repository/memory"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/testutil/collabmock"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/usecase/lifecycle"
)

// -------- helpers --------

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func newHandler(holds *collabmock.HoldProvider) (*LoanHandler, *lifecycle.Usecase) {
	if holds == nil {
		holds = &collabmock.HoldProvider{}
	}
	lc := lifecycle.NewUsecase(memory.NewLedger(), holds, &collabmock.ContractProvider{}, &collabmock.PriceOracle{}, lifecycle.Config{}, nil)
	return NewLoanHandler(lc), lc
}

func post(e *echo.Echo, path string, body *bytes.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(stdhttp.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func openOne(t *testing.T, lc *lifecycle.Usecase) *lifecycle.LoanDTO {
	t.Helper()
	dto, err := lc.Open(context.Background(), lifecycle.OpenInput{
		OwnerKey:         "0xowner",
		Asset:            "USDC",
		Principal:        decimal.NewFromInt(1000),
		CreditLimit:      decimal.NewFromInt(5000),
		PaymentMethodRef: "pm_x",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return dto
}

// -------- tests --------

func TestOpenLoan_Success(t *testing.T) {
	e := newEchoWithValidator()
	h, _ := newHandler(nil)

	c, rec := post(e, "/loans", mustJSON(map[string]any{
		"owner_key":          "0xowner",
		"asset":              "USDC",
		"principal":          1000,
		"credit_limit":       5000,
		"payment_method_ref": "pm_x",
	}))
	if err := h.OpenLoan(c); err != nil {
		t.Fatalf("OpenLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	var got lifecycle.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.Status != loan.StatusActive || got.Kind != loan.KindCard {
		t.Fatalf("unexpected dto: %+v", got)
	}
	if !got.CollateralAmount.Equal(decimal.NewFromInt(1250)) {
		t.Fatalf("collateral = %s, want 1250", got.CollateralAmount)
	}
}

func TestOpenLoan_BindError(t *testing.T) {
	e := newEchoWithValidator()
	h, _ := newHandler(nil)

	req := httptest.NewRequest(stdhttp.MethodPost, "/loans", strings.NewReader(`{"owner_key":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.OpenLoan(c); err != nil {
		t.Fatalf("OpenLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Error != "invalid body" {
		t.Fatalf("error = %q, want %q", er.Error, "invalid body")
	}
}

func TestOpenLoan_ValidationError(t *testing.T) {
	e := newEchoWithValidator()
	h, _ := newHandler(nil)

	// owner key too short, asset not a symbol, principal zero, no credit limit
	c, rec := post(e, "/loans", mustJSON(map[string]any{
		"owner_key": "a",
		"asset":     "US2C",
		"principal": 0,
	}))
	if err := h.OpenLoan(c); err != nil {
		t.Fatalf("OpenLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !containsFieldMsg(er.Details, "OwnerKey", "3-64 chars") {
		t.Fatalf("missing owner key detail: %+v", er.Details)
	}
	if !containsFieldMsg(er.Details, "Asset", "asset symbol") {
		t.Fatalf("missing asset detail: %+v", er.Details)
	}
	if !containsFieldMsg(er.Details, "CreditLimit", "is required") {
		t.Fatalf("missing credit limit detail: %+v", er.Details)
	}
}

func TestOpenLoan_InsufficientCredit(t *testing.T) {
	e := newEchoWithValidator()
	h, _ := newHandler(nil)

	// 1 ETH at the mock 3500 price needs 4375 collateral at 80% LTV.
	c, rec := post(e, "/loans", mustJSON(map[string]any{
		"owner_key":          "0xowner",
		"asset":              "ETH",
		"principal":          1,
		"credit_limit":       2000,
		"payment_method_ref": "pm_x",
	}))
	if err := h.OpenLoan(c); err != nil {
		t.Fatalf("OpenLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
	}
	var er ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if !strings.Contains(er.Error, "insufficient available credit") {
		t.Fatalf("error = %q", er.Error)
	}
}

func TestOpenLoan_ProviderFailure_BadGateway(t *testing.T) {
	e := newEchoWithValidator()
	holds := &collabmock.HoldProvider{
		PlaceHoldFn: func(context.Context, string, decimal.Decimal, string) (string, error) {
			return "", collateral.WrapProvider("payments", "card_declined", nil)
		},
	}
	h, _ := newHandler(holds)

	c, rec := post(e, "/loans", mustJSON(map[string]any{
		"owner_key":          "0xowner",
		"asset":              "USDC",
		"principal":          1000,
		"credit_limit":       5000,
		"payment_method_ref": "pm_x",
	}))
	if err := h.OpenLoan(c); err != nil {
		t.Fatalf("OpenLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestQuote_Success(t *testing.T) {
	e := newEchoWithValidator()
	h, _ := newHandler(nil)

	c, rec := post(e, "/quote", mustJSON(map[string]any{
		"asset":     "ETH",
		"principal": 1,
	}))
	if err := h.Quote(c); err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var got lifecycle.QuoteDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !got.RequiredCollateral.Equal(decimal.NewFromInt(4375)) {
		t.Fatalf("required = %s, want 4375", got.RequiredCollateral)
	}
	if got.LiquidationPrice.IsZero() {
		t.Fatal("liquidation price missing for volatile asset")
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	e := newEchoWithValidator()
	h, _ := newHandler(nil)

	req := httptest.NewRequest(stdhttp.MethodGet, "/loans/deadbeef", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("loan_id")
	c.SetParamValues(strings.Repeat("f", 32))

	if err := h.GetLoan(c); err != nil {
		t.Fatalf("GetLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestChargeLoan_ThenConflictOnRetry(t *testing.T) {
	e := newEchoWithValidator()
	h, lc := newHandler(nil)
	dto := openOne(t, lc)

	charge := func() *httptest.ResponseRecorder {
		c, rec := post(e, "/loans/:loan_id/charge", mustJSON(map[string]any{"reason": "manual"}))
		c.SetParamNames("loan_id")
		c.SetParamValues(dto.LoanID)
		if err := h.ChargeLoan(c); err != nil {
			t.Fatalf("ChargeLoan error: %v", err)
		}
		return rec
	}

	if rec := charge(); rec.Code != stdhttp.StatusOK {
		t.Fatalf("first charge status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := charge(); rec.Code != stdhttp.StatusConflict {
		t.Fatalf("second charge status = %d, want 409", rec.Code)
	}
}

func TestLoanExpiry(t *testing.T) {
	e := newEchoWithValidator()
	h, lc := newHandler(nil)
	dto := openOne(t, lc)

	req := httptest.NewRequest(stdhttp.MethodGet, "/loans/:loan_id/expiry", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("loan_id")
	c.SetParamValues(dto.LoanID)

	if err := h.LoanExpiry(c); err != nil {
		t.Fatalf("LoanExpiry error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st lifecycle.ExpiryStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if st.Expired || st.SecondsRemaining <= 0 {
		t.Fatalf("fresh hold reported %+v", st)
	}
}

func TestOwnerCredit(t *testing.T) {
	e := newEchoWithValidator()
	h, lc := newHandler(nil)
	openOne(t, lc)

	req := httptest.NewRequest(stdhttp.MethodGet, "/owners/:owner_key/credit", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("owner_key")
	c.SetParamValues("0xowner")

	if err := h.OwnerCredit(c); err != nil {
		t.Fatalf("OwnerCredit error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sum loan.CreditSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !sum.TotalCreditLimit.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("limit = %s, want 5000", sum.TotalCreditLimit)
	}
	if !sum.AvailableCredit.Equal(decimal.NewFromInt(3750)) {
		t.Fatalf("available = %s, want 3750", sum.AvailableCredit)
	}
}

func TestOwnerLoans(t *testing.T) {
	e := newEchoWithValidator()
	h, lc := newHandler(nil)
	openOne(t, lc)
	openOne(t, lc)

	req := httptest.NewRequest(stdhttp.MethodGet, "/owners/:owner_key/loans", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("owner_key")
	c.SetParamValues("0xowner")

	if err := h.OwnerLoans(c); err != nil {
		t.Fatalf("OwnerLoans error: %v", err)
	}
	var body struct {
		Loans []lifecycle.LoanDTO `json:"loans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(body.Loans) != 2 {
		t.Fatalf("loans = %d, want 2", len(body.Loans))
	}
}
