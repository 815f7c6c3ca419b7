package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/platform/httpx"
	"github.com/a4s/shopledger/internal/shared"
)

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	loc       *time.Location
	validator *validator.Validate
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{logger: logger, service: service, loc: loc, validator: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
}

type itemLineRequest struct {
	ItemID          int64           `json:"item_id" validate:"required,gt=0"`
	Quantity        int             `json:"quantity" validate:"required,gt=0"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

type serviceLineRequest struct {
	ServiceID int64            `json:"service_id" validate:"required,gt=0"`
	Price     *decimal.Decimal `json:"price"`
}

type saleRequest struct {
	CustomerName    string               `json:"customer_name" validate:"max=200"`
	PaymentMethodID int64                `json:"payment_method_id" validate:"required,gt=0"`
	ReferenceNo     string               `json:"reference_no" validate:"max=100"`
	Items           []itemLineRequest    `json:"items" validate:"dive"`
	Services        []serviceLineRequest `json:"services" validate:"dive"`
	MechanicID      *int64               `json:"mechanic_id" validate:"omitempty,gt=0"`
	Notes           string               `json:"notes" validate:"max=1000"`
	Timestamp       string               `json:"timestamp"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	in := RecordSaleInput{
		CustomerName:    req.CustomerName,
		PaymentMethodID: req.PaymentMethodID,
		ReferenceNo:     req.ReferenceNo,
		MechanicID:      req.MechanicID,
		Notes:           req.Notes,
		Actor:           actor,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, ItemLine(it))
	}
	for _, sv := range req.Services {
		in.Services = append(in.Services, ServiceLine(sv))
	}
	if req.Timestamp != "" {
		at, err := inventory.ParseTimestamp(req.Timestamp, h.loc)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.OccurredAt = at
	}
	sale, err := h.service.RecordSale(r.Context(), in)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "record sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search:  r.URL.Query().Get("q"),
		Status:  Status(r.URL.Query().Get("status")),
		Page:    httpx.QueryInt(r, "page", 1),
		PerPage: httpx.QueryInt(r, "per_page", shared.DefaultPerPage),
	}
	from, ok, err := httpx.QueryDate(r, "from", h.loc)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be YYYY-MM-DD")
		return
	}
	if ok {
		filter.From = &from
	}
	to, ok, err := httpx.QueryDate(r, "to", h.loc)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be YYYY-MM-DD")
		return
	}
	if ok {
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}
	page, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "list sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}
