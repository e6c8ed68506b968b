package reportshandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"workhours/internal/domain/report"
	"workhours/internal/platform/jobs"
	"workhours/internal/transport/http/api"
	"workhours/internal/transport/http/middleware"
	"workhours/internal/transport/http/shared"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	Reports  *report.Service
	Jobs     *jobs.Service
	Location *time.Location
}

func NewHandler(reports *report.Service, jobService *jobs.Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Reports: reports, Jobs: jobService, Location: loc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/reports", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Post("/weekly", h.handleSendWeekly)
		r.Get("/weekly.xlsx", h.handleDownloadWeekly)
	})
}

type sendRequest struct {
	WeekOf string `json:"weekOf"`
}

// handleSendWeekly emails the report now. Without weekOf it covers the same
// week the scheduled run would.
func (h *Handler) handleSendWeekly(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload sendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	var weekOf time.Time
	if strings.TrimSpace(payload.WeekOf) != "" {
		parsed, err := shared.ParseCalendarDate(strings.TrimSpace(payload.WeekOf), h.Location)
		if err != nil {
			shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "weekOf", Reason: "must be a valid date in YYYY-MM-DD format"}})
			return
		}
		weekOf = parsed
	}

	run := func(ctx context.Context) (any, error) {
		if weekOf.IsZero() {
			return h.Reports.SendWeekly(ctx, report.TriggerManual)
		}
		return h.Reports.SendWeekOf(ctx, report.TriggerManual, weekOf)
	}

	var result any
	var err error
	if h.Jobs != nil {
		result, err = h.Jobs.RunNow(r.Context(), jobs.JobWeeklyReport, run)
	} else {
		result, err = run(r.Context())
	}
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleDownloadWeekly(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var (
		book report.Workbook
		err  error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("weekOf")); raw != "" {
		day, parseErr := shared.ParseCalendarDate(raw, h.Location)
		if parseErr != nil {
			shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "weekOf", Reason: "must be a valid date in YYYY-MM-DD format"}})
			return
		}
		book, err = h.Reports.BuildWeekOf(r.Context(), day)
	} else {
		start, end := report.WeeklyWindow(h.Reports.Clock.Now(), h.Location)
		book, err = h.Reports.Build(r.Context(), start, end)
	}
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(book.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(book.Data)))
	if _, err := w.Write(book.Data); err != nil {
		slog.Warn("write workbook failed", "err", err, "requestId", reqID)
	}
}
