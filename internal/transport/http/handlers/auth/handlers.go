package authhandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"workhours/internal/domain/auth"
	"workhours/internal/domain/employee"
	"workhours/internal/transport/http/api"
	"workhours/internal/transport/http/middleware"
	"workhours/internal/transport/http/shared"
)

// EmployeeProvisioner creates the employee row a new user logs hours against.
type EmployeeProvisioner interface {
	Provision(ctx context.Context, emp employee.Employee) error
}

type Handler struct {
	Service      *auth.Service
	Employees    EmployeeProvisioner
	SecureCookie bool
}

func NewHandler(service *auth.Service, employees EmployeeProvisioner, secureCookie bool) *Handler {
	return &Handler{Service: service, Employees: employees, SecureCookie: secureCookie}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/mfa/setup", h.HandleMFASetup)
			r.Post("/mfa/enable", h.HandleMFAEnable)
			r.Post("/mfa/disable", h.HandleMFADisable)
		})
	})
	r.With(middleware.RequireAuth).Get("/me", h.HandleMe)
	r.With(middleware.RequireAdmin).Post("/admin/users", h.HandleCreateUser)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

type userResponse struct {
	Username   string `json:"username"`
	EmployeeID string `json:"employeeId"`
	Role       string `json:"role"`
}

func toUserResponse(u auth.UserContext) userResponse {
	return userResponse{Username: u.Username, EmployeeID: u.EmployeeID, Role: u.Role}
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	session, err := h.Service.Login(r.Context(), payload.Username, payload.Password, payload.MFACode)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	case errors.Is(err, auth.ErrMFARequired):
		api.Fail(w, http.StatusUnauthorized, "mfa_required", "mfa code required", reqID)
		return
	case errors.Is(err, auth.ErrMFAInvalid):
		api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", reqID)
		return
	case err != nil:
		slog.Error("login failed", "err", err, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to log in", reqID)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	api.Success(w, map[string]any{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      toUserResponse(session.User),
	}, reqID)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	setup, err := h.Service.SetupMFA(r.Context(), user.Username)
	if err != nil {
		failMFA(w, err, reqID)
		return
	}
	api.Success(w, setup, reqID)
}

func (h *Handler) HandleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.handleMFACode(w, r, h.Service.EnableMFA, "enabled")
}

func (h *Handler) HandleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.handleMFACode(w, r, h.Service.DisableMFA, "disabled")
}

func (h *Handler) handleMFACode(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, username, code string) error, status string) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	var payload mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if err := apply(r.Context(), user.Username, payload.Code); err != nil {
		failMFA(w, err, reqID)
		return
	}
	api.Success(w, map[string]string{"status": status}, reqID)
}

func failMFA(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, auth.ErrMFAUnavailable):
		api.Fail(w, http.StatusBadRequest, "mfa_unavailable", "mfa requires encryption key", reqID)
	case errors.Is(err, auth.ErrMFANotSetUp):
		api.Fail(w, http.StatusBadRequest, "mfa_missing", "mfa setup required", reqID)
	case errors.Is(err, auth.ErrMFAInvalid):
		api.Fail(w, http.StatusBadRequest, "mfa_invalid", "invalid mfa code", reqID)
	default:
		slog.Error("mfa update failed", "err", err, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, "mfa_failed", "failed to update mfa", reqID)
	}
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	api.Success(w, toUserResponse(user), middleware.GetRequestID(r.Context()))
}

type createUserRequest struct {
	Username   string `json:"username" validate:"required,max=100"`
	Password   string `json:"password" validate:"required,min=8"`
	Role       string `json:"role" validate:"required,oneof=admin user"`
	EmployeeID string `json:"employeeId" validate:"max=100"`
	Name       string `json:"name" validate:"max=200"`
}

// HandleCreateUser provisions a login and, when missing, the employee it logs
// hours for.
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	payload.Username = strings.TrimSpace(payload.Username)
	validator := shared.NewValidator()
	validator.Struct(payload)
	if validator.Reject(w, reqID) {
		return
	}

	employeeID := strings.TrimSpace(payload.EmployeeID)
	if employeeID == "" {
		employeeID = payload.Username
	}
	if h.Employees != nil {
		if err := h.Employees.Provision(r.Context(), employee.Employee{ID: employeeID, Name: strings.TrimSpace(payload.Name)}); err != nil {
			slog.Error("provision employee failed", "employeeId", employeeID, "err", err, "requestId", reqID)
			api.Fail(w, http.StatusInternalServerError, "provision_failed", "failed to create employee", reqID)
			return
		}
	}

	user, err := h.Service.CreateUser(r.Context(), auth.CreateUserInput{
		Username:   payload.Username,
		Password:   payload.Password,
		Role:       payload.Role,
		EmployeeID: employeeID,
	})
	if errors.Is(err, auth.ErrUserExists) {
		api.Fail(w, http.StatusConflict, "user_exists", "username already taken", reqID)
		return
	}
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Created(w, userResponse{Username: user.Username, EmployeeID: user.EmployeeID, Role: user.Role}, reqID)
}
