package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

// MaxUploadSize bounds a single temp-file upload.
const MaxUploadSize = 64 << 20

// FilesHandler serves authoring uploads that have not been migrated yet
type FilesHandler struct {
	service h5pcontent.Service
	logger  *slog.Logger
}

// NewFilesHandler creates a new temp-file handler
func NewFilesHandler(service h5pcontent.Service, logger *slog.Logger) *FilesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilesHandler{service: service, logger: logger}
}

// Routes returns the temp-file routes
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.UploadTempFile)
	r.Get("/*", h.GetTempFile)
	return r
}

// UploadTempFile handles POST /temp-files with a multipart "file" field
func (h *FilesHandler) UploadTempFile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, newBadRequest("file too large"))
			return
		}
		writeError(w, r, h.logger, newBadRequest("missing multipart field \"file\""))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, h.logger, newBadRequest("failed to read upload"))
		return
	}

	tmp, err := h.service.UploadTempFile(r.Context(), h5pcontent.UploadTempFileRequest{
		UserID:   userID,
		FileName: header.Filename,
		Data:     data,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, tmp)
}

// GetTempFile handles GET /temp-files/*
func (h *FilesHandler) GetTempFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.GetTempFile(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeFile(w, file)
}
