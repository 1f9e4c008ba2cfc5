package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/station2100/station/internal/audit"
	"github.com/station2100/station/internal/platform/httpx"
	"github.com/station2100/station/internal/rbac"
)

const dateLayout = "2006-01-02"

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.Event, error)
}

// Handler serves the audit log endpoints.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	rbac    rbac.Middleware
}

// NewHandler creates a new audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	events, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export audit timeline", err)
		return
	}
	csvBytes, err := audit.WriteCSV(events)
	if err != nil {
		h.handleServerError(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-logs.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	var filters audit.TimelineFilters

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			return audit.TimelineFilters{}, validationError{field: "from"}
		}
		filters.From = from
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			return audit.TimelineFilters{}, validationError{field: "to"}
		}
		filters.To = to.Add(24 * time.Hour)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && !filters.From.Before(filters.To) {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}
	if v := strings.TrimSpace(q.Get("actor")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return audit.TimelineFilters{}, validationError{field: "actor"}
		}
		filters.Actor = &id
	}
	filters.Action = strings.TrimSpace(q.Get("action"))
	filters.Module = strings.TrimSpace(q.Get("module"))

	if v := strings.TrimSpace(q.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page <= 0 || page > audit.MaxPage {
			return audit.TimelineFilters{}, validationError{field: "page"}
		}
		filters.Page = page
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return audit.TimelineFilters{}, validationError{field: "page_size"}
		}
		filters.PageSize = size
	}
	return filters, nil
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var v validationError
	if errors.As(err, &v) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+v.field)
		return
	}
	h.handleServerError(w, "validate filters", err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}
