package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/platform/httpx"
	"github.com/a4s/shopledger/internal/shared"
)

// Handler manages purchase order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	loc       *time.Location
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{logger: logger, service: service, loc: loc, validator: validator.New()}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/receive", h.receive)
}

type orderLineRequest struct {
	ItemID   int64           `json:"item_id" validate:"required,gt=0"`
	Quantity int             `json:"quantity" validate:"required,gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type orderRequest struct {
	VendorName string             `json:"vendor_name" validate:"required,max=200"`
	Notes      string             `json:"notes" validate:"max=1000"`
	Lines      []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
	Timestamp  string             `json:"timestamp"`
}

type receiptEntryRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Note     string `json:"note" validate:"max=500"`
}

type receiveRequest struct {
	Entries   []receiptEntryRequest `json:"entries" validate:"required,min=1,dive"`
	Timestamp string                `json:"timestamp"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	in := CreateOrderInput{VendorName: req.VendorName, Notes: req.Notes, Actor: actor}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, OrderLine(l))
	}
	if req.Timestamp != "" {
		at, err := inventory.ParseTimestamp(req.Timestamp, h.loc)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.OccurredAt = at
	}
	po, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	in := ReceiveInput{OrderID: id, Actor: actor}
	for _, e := range req.Entries {
		in.Entries = append(in.Entries, ReceiptEntry(e))
	}
	if req.Timestamp != "" {
		at, err := inventory.ParseTimestamp(req.Timestamp, h.loc)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.OccurredAt = at
	}
	po, err := h.service.Receive(r.Context(), in)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "receive purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	po, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListOrders(r.Context(), ListFilter{
		Status:  Status(r.URL.Query().Get("status")),
		Page:    httpx.QueryInt(r, "page", 1),
		PerPage: httpx.QueryInt(r, "per_page", shared.DefaultPerPage),
	})
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "list purchase orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase order id must be numeric")
		return 0, false
	}
	return id, true
}
