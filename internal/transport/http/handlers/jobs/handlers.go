package jobshandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"workhours/internal/platform/jobs"
	"workhours/internal/transport/http/api"
	"workhours/internal/transport/http/middleware"
	"workhours/internal/transport/http/shared"
)

type Handler struct {
	Runs jobs.RunReader
}

func NewHandler(runs jobs.RunReader) *Handler {
	return &Handler{Runs: runs}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/jobs", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.handleListRuns)
		r.Get("/{runID}", h.handleGetRun)
	})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	q := r.URL.Query()

	filter := jobs.RunFilter{JobType: q.Get("jobType"), Status: q.Get("status")}
	v := shared.NewValidator()
	filter.StartedFrom = optionalDate(v, "startedFrom", q.Get("startedFrom"))
	filter.StartedTo = optionalDate(v, "startedTo", q.Get("startedTo"))
	if v.Reject(w, reqID) {
		return
	}

	total, err := h.Runs.CountRuns(r.Context(), filter)
	if err != nil {
		slog.Warn("job run count failed", "err", err)
	}
	runs, err := h.Runs.ListRuns(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_list_failed", "failed to list job runs", reqID)
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, runs, reqID)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	run, err := h.Runs.RunByID(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, jobs.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_get_failed", "failed to load job run", reqID)
		return
	}
	api.Success(w, run, reqID)
}

func optionalDate(v *shared.Validator, field, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, ok := v.Date(field, raw)
	if !ok {
		return nil
	}
	return &parsed
}
