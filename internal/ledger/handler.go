package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/halisi-erp/halisi-erp/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list journal entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get journal entry", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// ByReference lists every entry posted for one domain record, oldest first,
// so the full apply/adjustment chain is visible in one read.
func (h *Handler) ByReference(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	refID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid reference id")
		return
	}
	entries, err := h.service.ListByReference(r.Context(), module, refID)
	if err != nil {
		h.logger.Error("list entries by reference", slog.String("module", module), slog.Int64("reference_id", refID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) AccountActivity(w http.ResponseWriter, r *http.Request) {
	coaID, err := strconv.ParseInt(chi.URLParam(r, "coaID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid chart node id")
		return
	}
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, _ = time.Parse("2006-01-02", raw)
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, _ = time.Parse("2006-01-02", raw)
	}
	lines, err := h.service.AccountActivity(r.Context(), coaID, from, to)
	if err != nil {
		h.logger.Error("account activity", slog.Int64("coa_id", coaID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}
