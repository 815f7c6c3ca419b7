package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/platform/httpx"
	"github.com/a4s/shopledger/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	loc       *time.Location
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{logger: logger, service: service, loc: loc, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.recordMovement)
	r.Get("/stock", h.stockLevels)
	r.Get("/audit", h.auditTrail)
	r.Get("/low-stock", h.lowStock)
	r.Get("/hot-items", h.hotItems)
	r.Get("/dead-stock", h.deadStock)
	r.Get("/dashboard", h.dashboard)
	r.Get("/series", h.series)
	r.Get("/integrity", h.integrity)
	r.Get("/export.csv", h.export)
}

type movementRequest struct {
	ItemID    int64            `json:"item_id" validate:"required,gt=0"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	Type      string           `json:"type" validate:"required,oneof=IN OUT"`
	Reason    string           `json:"reason" validate:"omitempty,oneof=MANUAL_ENTRY BASELINE_COUNT"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Timestamp string           `json:"timestamp"`
	Notes     string           `json:"notes" validate:"max=500"`
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	in := MovementInput{
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		Type:      MovementType(req.Type),
		Actor:     actor,
		Reason:    Reason(req.Reason),
		UnitPrice: req.UnitPrice,
		Notes:     req.Notes,
	}
	if req.Timestamp != "" {
		at, err := ParseTimestamp(req.Timestamp, h.loc)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.OccurredAt = at
	}
	m, err := h.service.RecordMovement(r.Context(), in)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "record movement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

// ItemStock serves GET /items/{id}/stock with an optional ?since=YYYY-MM-DD snapshot.
func (h *Handler) ItemStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item id must be numeric")
		return
	}
	since, ok := h.sinceParam(w, r)
	if !ok {
		return
	}
	lvl, err := h.service.CurrentStock(r.Context(), id, since)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "item stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lvl)
}

func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	since, ok := h.sinceParam(w, r)
	if !ok {
		return
	}
	levels, err := h.service.StockLevels(r.Context(), since)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "stock levels", err)
		return
	}
	httpx.JSON(w, http.StatusOK, levels)
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	filter := AuditFilter{
		Type:    MovementType(strings.ToUpper(r.URL.Query().Get("type"))),
		Search:  strings.TrimSpace(r.URL.Query().Get("q")),
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
	page, err := h.service.AuditTrail(r.Context(), filter)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "audit trail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, levels)
}

func (h *Handler) hotItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.HotItems(r.Context(), httpx.QueryInt(r, "days", 30), httpx.QueryInt(r, "limit", 10))
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "hot items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) deadStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.DeadStock(r.Context(), httpx.QueryInt(r, "days", 60))
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "dead stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) series(w http.ResponseWriter, r *http.Request) {
	var itemID *int64
	if raw := r.URL.Query().Get("item_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item_id must be numeric")
			return
		}
		itemID = &id
	}
	points, err := h.service.MovementSeries(r.Context(), itemID, httpx.QueryInt(r, "days", 30))
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "movement series", err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.Integrity(r.Context())
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "ledger integrity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	from, hasFrom, err := httpx.QueryDate(r, "from", h.loc)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be YYYY-MM-DD")
		return
	}
	to, hasTo, err := httpx.QueryDate(r, "to", h.loc)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be YYYY-MM-DD")
		return
	}
	var fromPtr, toPtr *time.Time
	if hasFrom {
		fromPtr = &from
	}
	if hasTo {
		end := to.AddDate(0, 0, 1)
		toPtr = &end
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory-movements.csv"`)
	if err := h.service.ExportMovements(r.Context(), w, fromPtr, toPtr); err != nil {
		// headers are already sent; the truncated body is all we can signal
		h.logger.Error("export movements", slog.Any("error", err))
	}
}

func (h *Handler) sinceParam(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	since, ok, err := httpx.QueryDate(r, "since", h.loc)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "since must be YYYY-MM-DD")
		return nil, false
	}
	if !ok {
		return nil, true
	}
	return &since, true
}
