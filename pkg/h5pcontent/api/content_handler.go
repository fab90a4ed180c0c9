package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

// ContentHandler handles HTTP requests for organisation-scoped content
type ContentHandler struct {
	service  h5pcontent.Service
	validate *Validator
	logger   *slog.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(service h5pcontent.Service, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{service: service, validate: NewValidator(), logger: logger}
}

// Routes returns the content routes
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateContent)
	r.Get("/", h.ListContent)
	r.Get("/{contentID}", h.GetContent)
	r.Put("/{contentID}", h.UpdateContent)
	r.Delete("/{contentID}", h.DeleteContent)
	r.Get("/{contentID}/editor", h.GetEditorParams)
	r.Put("/{contentID}/editor", h.SaveFromEditor)
	r.Get("/{contentID}/files/*", h.GetContentFile)

	return r
}

// EditorRoutes returns the routes for content that does not exist yet
func (h *ContentHandler) EditorRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/content", h.SaveFromEditor)
	return r
}

// Request/Response DTOs

type CreateContentRequest struct {
	LibraryName string          `json:"library_name" validate:"required,max=255"`
	Title       string          `json:"title" validate:"max=255"`
	Description string          `json:"description"`
	Params      json.RawMessage `json:"params"`
	Tags        []string        `json:"tags"`
	FolderPath  string          `json:"folder_path"`
}

type UpdateContentRequest struct {
	Title       string          `json:"title" validate:"max=255"`
	Description string          `json:"description"`
	Params      json.RawMessage `json:"params"`
	Tags        []string        `json:"tags"`
	Status      string          `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// SaveFromEditorRequest is the body of both editor save routes. ContentID is
// only read on POST /editor/content; the PUT route takes it from the path.
type SaveFromEditorRequest struct {
	ContentID  string          `json:"content_id" validate:"omitempty,uuid"`
	Library    string          `json:"library" validate:"required,max=255"`
	Title      string          `json:"title" validate:"max=255"`
	Params     json.RawMessage `json:"params"`
	Tags       []string        `json:"tags"`
	FolderPath string          `json:"folder_path"`
}

// CreateContent handles POST /contents
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := h.identity(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req CreateContentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, h.logger, newBadRequest("invalid request body"))
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	details, err := h.service.CreateContent(r.Context(), h5pcontent.CreateContentRequest{
		OrgID:       orgID,
		UserID:      userID,
		LibraryName: req.LibraryName,
		Title:       req.Title,
		Description: req.Description,
		Params:      req.Params,
		Tags:        req.Tags,
		FolderPath:  req.FolderPath,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, details)
}

// ListContent handles GET /contents?limit=&offset=
func (h *ContentHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDFromRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list, err := h.service.ListContent(r.Context(), h5pcontent.ListContentRequest{
		OrgID:  orgID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, list)
}

// GetContent handles GET /contents/{contentID}
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	contentID, orgID, err := h.scope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	details, err := h.service.GetContent(r.Context(), contentID, orgID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, details)
}

// UpdateContent handles PUT /contents/{contentID}. Every mutable field is replaced.
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	contentID, orgID, err := h.scope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	userID, err := optionalUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req UpdateContentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, h.logger, newBadRequest("invalid request body"))
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	details, err := h.service.UpdateContent(r.Context(), h5pcontent.UpdateContentRequest{
		ContentID:   contentID,
		OrgID:       orgID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Params:      req.Params,
		Tags:        req.Tags,
		Status:      h5pcontent.ContentStatus(req.Status),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, details)
}

// DeleteContent handles DELETE /contents/{contentID}
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	contentID, orgID, err := h.scope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeleteContent(r.Context(), contentID, orgID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEditorParams handles GET /contents/{contentID}/editor
func (h *ContentHandler) GetEditorParams(w http.ResponseWriter, r *http.Request) {
	contentID, orgID, err := h.scope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	params, err := h.service.GetEditorParams(r.Context(), contentID, orgID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, params)
}

// SaveFromEditor handles PUT /contents/{contentID}/editor and POST /editor/content
func (h *ContentHandler) SaveFromEditor(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := h.identity(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req SaveFromEditorRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, h.logger, newBadRequest("invalid request body"))
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	contentID := uuid.Nil
	status := http.StatusCreated
	raw := req.ContentID
	if pathID := chi.URLParam(r, "contentID"); pathID != "" {
		raw = pathID
		status = http.StatusOK
	}
	if raw != "" {
		if contentID, err = parseContentID(raw); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	result, err := h.service.SaveFromEditor(r.Context(), h5pcontent.SaveFromEditorRequest{
		OrgID:      orgID,
		UserID:     userID,
		ContentID:  contentID,
		Library:    req.Library,
		Title:      req.Title,
		Params:     req.Params,
		Tags:       req.Tags,
		FolderPath: req.FolderPath,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	render.Status(r, status)
	render.JSON(w, r, result)
}

// GetContentFile handles GET /contents/{contentID}/files/*
func (h *ContentHandler) GetContentFile(w http.ResponseWriter, r *http.Request) {
	contentID, orgID, err := h.scope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	file, err := h.service.GetContentFile(r.Context(), contentID, orgID, chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeFile(w, file)
}

// identity returns the caller's org and user; both are required for writes
func (h *ContentHandler) identity(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	orgID, err := orgIDFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	userID, err := userIDFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orgID, userID, nil
}

// scope returns the content ID from the path and the caller's org
func (h *ContentHandler) scope(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	orgID, err := orgIDFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	contentID, err := parseContentID(chi.URLParam(r, "contentID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return contentID, orgID, nil
}

func parseContentID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, newBadRequest("invalid content ID")
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, newBadRequest("invalid " + key + " parameter")
	}
	return n, nil
}

func writeFile(w http.ResponseWriter, file *h5pcontent.File) {
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}
