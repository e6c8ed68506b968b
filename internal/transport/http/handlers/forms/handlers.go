package formshandler

import (
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"workhours/internal/domain/inspection"
	"workhours/internal/transport/http/api"
	"workhours/internal/transport/http/middleware"
	"workhours/internal/transport/http/shared"
)

// multipartMemory is how much of a form is buffered in memory before the
// rest spills to temporary files. The overall cap comes from BodyLimit.
const multipartMemory = 8 << 20

type Handler struct {
	Service *inspection.Service
}

func NewHandler(service *inspection.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/forms", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleList)
		r.Post("/{templateID}", h.handleSubmit)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Service.Templates(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var uploads []inspection.Upload
	err := r.ParseMultipartForm(multipartMemory)
	switch {
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid form payload", reqID)
			return
		}
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "uploaded files are too large", reqID)
			return
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid form payload", reqID)
		return
	default:
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		uploads, err = readUploads(r)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_upload", "unable to read uploaded file", reqID)
			return
		}
	}

	values := map[string][]string(r.PostForm)
	result, err := h.Service.Submit(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "templateID"), values, uploads)
	if err != nil {
		shared.WriteError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}

func readUploads(r *http.Request) ([]inspection.Upload, error) {
	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var uploads []inspection.Upload
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			file, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(file)
			_ = file.Close()
			if err != nil {
				return nil, err
			}
			uploads = append(uploads, inspection.Upload{Field: field, Filename: fh.Filename, Data: data})
		}
	}
	return uploads, nil
}
