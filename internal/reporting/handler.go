package reporting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/a4s/shopledger/internal/platform/httpx"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	loc     *time.Location
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{logger: logger, service: service, loc: loc}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/daily", h.daily)
	r.Get("/range", h.rangeReport)
	r.Get("/debts", h.debts)
	r.Get("/stock", h.stock)
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	day, ok, err := httpx.QueryDate(r, "date", h.loc)
	if err != nil || !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	rep, err := h.service.DailyReport(r.Context(), day)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "daily report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) rangeReport(w http.ResponseWriter, r *http.Request) {
	from, okFrom, errFrom := httpx.QueryDate(r, "from", h.loc)
	to, okTo, errTo := httpx.QueryDate(r, "to", h.loc)
	if errFrom != nil || errTo != nil || !okFrom || !okTo {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from and to must be YYYY-MM-DD")
		return
	}
	rep, err := h.service.RangeReport(r.Context(), from, to)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "range report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) debts(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.DebtSummary(r.Context())
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "debt summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	t, ok, err := httpx.QueryDate(r, "since", h.loc)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "since must be YYYY-MM-DD")
		return
	}
	if ok {
		since = &t
	}
	snap, err := h.service.StockSnapshot(r.Context(), since)
	if err != nil {
		httpx.LogAndRespond(h.logger, w, "stock snapshot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}
