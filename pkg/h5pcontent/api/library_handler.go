package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

// LibraryHandler serves the platform-wide library registry.
type LibraryHandler struct {
	service  h5pcontent.Service
	validate *Validator
	logger   *slog.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(service h5pcontent.Service, logger *slog.Logger) *LibraryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryHandler{service: service, validate: NewValidator(), logger: logger}
}

// Routes returns the library routes
func (h *LibraryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.UpsertLibrary)
	r.Get("/", h.ListLibraries)
	r.Get("/{name}", h.GetLibrary)
	r.Delete("/{name}", h.DeleteLibrary)
	r.Get("/{name}/dependencies", h.GetDependencies)
	r.Post("/{name}/dependencies", h.AddDependency)
	return r
}

// UpsertLibraryRequest registers or refreshes one library version
type UpsertLibraryRequest struct {
	MachineName   string                 `json:"machine_name" validate:"required,max=255,excludesall= /"`
	MajorVersion  int                    `json:"major_version" validate:"gte=0"`
	MinorVersion  int                    `json:"minor_version" validate:"gte=0"`
	PatchVersion  int                    `json:"patch_version" validate:"gte=0"`
	Title         string                 `json:"title" validate:"max=255"`
	Origin        string                 `json:"origin" validate:"omitempty,oneof=official custom"`
	Runnable      bool                   `json:"runnable"`
	Restricted    bool                   `json:"restricted"`
	Metadata      map[string]interface{} `json:"metadata"`
	PackagePath   string                 `json:"package_path"`
	ExtractedPath string                 `json:"extracted_path"`
}

// AddDependencyRequest adds an edge from the named library to DependsOn.
// An empty Version selects the latest registered version of DependsOn.
type AddDependencyRequest struct {
	DependsOn      string `json:"depends_on" validate:"required,max=255"`
	Version        string `json:"version"`
	DependencyType string `json:"dependency_type" validate:"required,oneof=preloaded dynamic editor"`
}

// DependenciesResponse lists direct edges and the resolved transitive closure
type DependenciesResponse struct {
	Library *h5pcontent.Library             `json:"library"`
	Direct  []*h5pcontent.LibraryDependency `json:"direct"`
	Tree    []*h5pcontent.Library           `json:"tree"`
}

// UpsertLibrary handles POST /libraries
func (h *LibraryHandler) UpsertLibrary(w http.ResponseWriter, r *http.Request) {
	var req UpsertLibraryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, h.logger, newBadRequest("invalid request body"))
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	lib, err := h.service.UpsertLibrary(r.Context(), &h5pcontent.Library{
		MachineName:   req.MachineName,
		MajorVersion:  req.MajorVersion,
		MinorVersion:  req.MinorVersion,
		PatchVersion:  req.PatchVersion,
		Title:         req.Title,
		Origin:        h5pcontent.LibraryOrigin(req.Origin),
		Runnable:      req.Runnable,
		Restricted:    req.Restricted,
		Metadata:      req.Metadata,
		PackagePath:   req.PackagePath,
		ExtractedPath: req.ExtractedPath,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, lib)
}

// ListLibraries handles GET /libraries
func (h *LibraryHandler) ListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := h.service.ListLibraries(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if libs == nil {
		libs = []*h5pcontent.Library{}
	}
	render.JSON(w, r, libs)
}

// GetLibrary handles GET /libraries/{name}?version=M.m.p
func (h *LibraryHandler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := h.lookup(r, chi.URLParam(r, "name"), r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, lib)
}

// DeleteLibrary handles DELETE /libraries/{name}. With ?version=M.m.p only that
// version is removed, otherwise every version of the machine name.
func (h *LibraryHandler) DeleteLibrary(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version := r.URL.Query().Get("version")

	var err error
	if version == "" {
		err = h.service.DeleteLibraryByMachineName(r.Context(), name)
	} else {
		var lib *h5pcontent.Library
		if lib, err = h.lookup(r, name, version); err == nil {
			err = h.service.DeleteLibrary(r.Context(), lib.ID)
		}
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDependencies handles GET /libraries/{name}/dependencies
func (h *LibraryHandler) GetDependencies(w http.ResponseWriter, r *http.Request) {
	lib, err := h.lookup(r, chi.URLParam(r, "name"), r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	direct, err := h.service.ListLibraryDependencies(r.Context(), lib.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tree, err := h.service.FullDependencyTree(r.Context(), lib.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if direct == nil {
		direct = []*h5pcontent.LibraryDependency{}
	}
	if tree == nil {
		tree = []*h5pcontent.Library{}
	}

	render.JSON(w, r, DependenciesResponse{Library: lib, Direct: direct, Tree: tree})
}

// AddDependency handles POST /libraries/{name}/dependencies
func (h *LibraryHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	var req AddDependencyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, h.logger, newBadRequest("invalid request body"))
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	lib, err := h.lookup(r, chi.URLParam(r, "name"), r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	dep, err := h.lookup(r, req.DependsOn, req.Version)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	err = h.service.AddLibraryDependency(r.Context(), h5pcontent.LibraryDependency{
		LibraryID:      lib.ID,
		DependsOnID:    dep.ID,
		DependencyType: h5pcontent.DependencyType(req.DependencyType),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) lookup(r *http.Request, name, version string) (*h5pcontent.Library, error) {
	if version == "" {
		return h.service.GetLibraryByMachineName(r.Context(), name)
	}
	major, minor, patch, err := parseVersion(version)
	if err != nil {
		return nil, err
	}
	return h.service.GetLibraryByVersion(r.Context(), name, major, minor, patch)
}

// parseVersion parses "major.minor.patch"
func parseVersion(v string) (major, minor, patch int, err error) {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return 0, 0, 0, newBadRequest(fmt.Sprintf("invalid version %q, expected major.minor.patch", v))
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, newBadRequest(fmt.Sprintf("invalid version %q, expected major.minor.patch", v))
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
