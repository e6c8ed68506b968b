package hourshandler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"workhours/internal/domain/ledger"
	"workhours/internal/platform/idempotency"
	"workhours/internal/transport/http/api"
	"workhours/internal/transport/http/middleware"
	"workhours/internal/transport/http/shared"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Handler struct {
	Service     *ledger.Service
	Location    *time.Location
	Idempotency idempotency.Store
}

func NewHandler(service *ledger.Service, loc *time.Location, keys idempotency.Store) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Service: service, Location: loc, Idempotency: keys}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/hours", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleList)
		r.With(middleware.Idempotent(h.Idempotency)).Post("/", h.handleSubmit)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleEdit)
		r.Delete("/{id}", h.handleDelete)
	})
	r.Route("/admin/hours", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.handleAdminList)
		r.With(middleware.Idempotent(h.Idempotency)).Post("/", h.handleAdminSubmit)
		r.Delete("/", h.handleDeleteAll)
	})
	r.With(middleware.RequireAdmin).Post("/admin/maintenance/repair-projects", h.handleRepair)
}

type submitRequest struct {
	EmployeeID string              `json:"employeeId"`
	Date       string              `json:"date"`
	Projects   []ledger.EntryInput `json:"projects"`
	Signature  string              `json:"signature"`
}

type editRequest struct {
	Projects []ledger.EntryInput `json:"projects"`
	Version  int                 `json:"version"`
}

type listResponse struct {
	Records    []ledger.Record `json:"records"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePage(r, defaultPageSize, maxPageSize)
	employeeID := strings.TrimSpace(r.URL.Query().Get("employeeId"))

	records, total, err := h.Service.List(r.Context(), middleware.Actor(r.Context()), employeeID, page.Page, page.PageSize)
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, listResponse{
		Records:    records,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: shared.TotalPages(total, page.PageSize),
	}, reqID)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, false)
}

func (h *Handler) handleAdminSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, true)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, onBehalf bool) {
	reqID := middleware.GetRequestID(r.Context())
	var payload submitRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	validator := shared.NewValidator()
	validator.Required("date", payload.Date, "date is required")
	if onBehalf {
		validator.Required("employeeId", payload.EmployeeID, "employeeId is required")
	}
	var date time.Time
	if payload.Date != "" {
		parsed, err := shared.ParseCalendarDate(strings.TrimSpace(payload.Date), h.Location)
		if err != nil {
			validator.Add("date", "must be a valid date in YYYY-MM-DD format")
		}
		date = parsed
	}
	if len(payload.Projects) == 0 {
		validator.Add("projects", "at least one project is required")
	}
	if validator.Reject(w, reqID) {
		return
	}

	in := ledger.SubmitInput{
		Date:      date,
		Entries:   payload.Projects,
		Signature: payload.Signature,
	}
	if onBehalf {
		in.EmployeeID = strings.TrimSpace(payload.EmployeeID)
	}

	result, err := h.Service.Submit(r.Context(), middleware.Actor(r.Context()), in)
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	if result.Created {
		api.Created(w, result, reqID)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.Get(r.Context(), middleware.Actor(r.Context()), id)
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, rec, reqID)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var payload editRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	result, err := h.Service.Edit(r.Context(), middleware.Actor(r.Context()), id, payload.Projects, payload.Version)
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), middleware.Actor(r.Context()), id); err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, map[string]any{"id": id, "deleted": true}, reqID)
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	grouped, err := h.Service.AdminListAll(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, grouped, reqID)
}

func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if r.URL.Query().Get("confirm") != "true" {
		api.Fail(w, http.StatusBadRequest, "confirmation_required", "pass confirm=true to delete every record", reqID)
		return
	}
	count, err := h.Service.DeleteAll(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, map[string]int64{"deleted": count}, reqID)
}

func (h *Handler) handleRepair(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	summary, err := h.Service.RepairProjects(r.Context())
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "record id must be a positive integer", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}
