package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for catalog lookups and item upsert.
type Handler struct {
	logger    *slog.Logger
	service   *CatalogService
	validator *validator.Validate
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *CatalogService) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountItemRoutes registers /items routes. Stock reads for a single item are
// mounted by the inventory handler.
func (h *Handler) MountItemRoutes(r chi.Router) {
	r.Get("/", h.listItems)
	r.Post("/", h.upsertItem)
	r.Get("/{id}", h.getItem)
}

// MountRoutes registers reference-data lookups.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/payment-methods", h.listPaymentMethods)
	r.Get("/services", h.listServices)
	r.Get("/mechanics", h.listMechanics)
}

type itemRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=1000"`
	Category     string          `json:"category" validate:"max=100"`
	PackSize     string          `json:"pack_size" validate:"max=50"`
	Vendor       string          `json:"vendor" validate:"max=200"`
	VendorPrice  decimal.Decimal `json:"vendor_price"`
	CostPerPiece decimal.Decimal `json:"cost_per_piece"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Markup       decimal.Decimal `json:"markup"`
	ReorderLevel int             `json:"reorder_level" validate:"gte=0"`
}

func (h *Handler) upsertItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	item, created, err := h.service.UpsertItem(r.Context(), ItemInput{
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		PackSize:     req.PackSize,
		Vendor:       req.Vendor,
		VendorPrice:  req.VendorPrice,
		CostPerPiece: req.CostPerPiece,
		SellingPrice: req.SellingPrice,
		Markup:       req.Markup,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		h.respondError(w, "upsert item", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, item)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item id must be numeric")
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondError(w, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.respondError(w, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	includeDebt := r.URL.Query().Get("include_debt") != "false"
	methods, err := h.service.ListPaymentMethods(r.Context(), includeDebt)
	if err != nil {
		h.respondError(w, "list payment methods", err)
		return
	}
	httpx.JSON(w, http.StatusOK, methods)
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		h.respondError(w, "list services", err)
		return
	}
	httpx.JSON(w, http.StatusOK, services)
}

func (h *Handler) listMechanics(w http.ResponseWriter, r *http.Request) {
	mechanics, err := h.service.ListMechanics(r.Context())
	if err != nil {
		h.respondError(w, "list mechanics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mechanics)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	httpx.LogAndRespond(h.logger, w, op, err)
}
