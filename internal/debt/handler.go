package debt

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/platform/httpx"
	"github.com/a4s/shopledger/internal/shared"
)

// Handler exposes debt endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers debt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOpen)
	r.Get("/payments", h.listEvents)
	r.Get("/{saleID}", h.detail)
	r.Post("/{saleID}/payments", h.pay)
}

type paymentRequest struct {
	Amount          decimal.Decimal `json:"amount_paid"`
	PaymentMethodID int64           `json:"payment_method_id" validate:"required,gt=0"`
	ReferenceNo     string          `json:"reference_no" validate:"max=100"`
	Notes           string          `json:"notes" validate:"max=1000"`
}

func (h *Handler) listOpen(w http.ResponseWriter, r *http.Request) {
	debts, err := h.service.ListOpenDebts(r.Context())
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "list debts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"debts": debts})
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListPaymentEvents(r.Context(), httpx.QueryInt(r, "limit", DefaultEventLimit))
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "list debt payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": events})
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetDebtDetail(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "get debt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.RecordPayment(r.Context(), PaymentInput{
		SaleID:          id,
		Amount:          req.Amount,
		PaymentMethodID: req.PaymentMethodID,
		ReferenceNo:     req.ReferenceNo,
		Notes:           req.Notes,
		Actor:           actor,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "record debt payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func saleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return 0, false
	}
	return id, true
}
