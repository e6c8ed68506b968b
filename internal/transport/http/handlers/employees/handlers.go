package employeeshandler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"workhours/internal/domain/employee"
	"workhours/internal/transport/http/api"
	"workhours/internal/transport/http/middleware"
	"workhours/internal/transport/http/shared"
)

type Handler struct {
	Service *employee.Service
}

func NewHandler(service *employee.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(middleware.RequireAdmin).Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
	})
}

type profileRequest struct {
	employee.Profile
	DateOfBirth string `json:"dob"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	list, err := h.Service.List(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(list)))
	api.Success(w, list, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, err := h.Service.Get(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload profileRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	validator := shared.NewValidator()
	validator.Struct(payload.Profile)
	profile := payload.Profile
	if raw := strings.TrimSpace(payload.DateOfBirth); raw != "" {
		if dob, ok := validator.Date("dob", raw); ok {
			profile.DateOfBirth = &dob
		}
	}
	if validator.Reject(w, reqID) {
		return
	}

	updated, err := h.Service.UpdateProfile(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), profile)
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, updated, reqID)
}
