package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// badRequest marks request-shape problems detected by the handlers themselves
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func newBadRequest(msg string) error { return &badRequest{msg: msg} }

// statusFor classifies an error. Not-found conditions are safe to show verbatim;
// anything unclassified is an internal failure.
func statusFor(err error) int {
	var ve *ValidationError
	var br *badRequest
	switch {
	case h5pcontent.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &ve), errors.As(err, &br),
		errors.Is(err, h5pcontent.ErrInvalidStatus),
		errors.Is(err, h5pcontent.ErrInvalidDependencyType),
		errors.Is(err, h5pcontent.ErrInvalidLibrary),
		errors.Is(err, h5pcontent.ErrInvalidFileName):
		return http.StatusBadRequest
	case errors.Is(err, h5pcontent.ErrLibraryInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with the status it maps to. Internal errors are
// logged with full context and replaced by an opaque message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var ve *ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}

	var notFound *h5pcontent.LibraryNotFoundError
	if errors.As(err, &notFound) {
		resp.Error = notFound.Error()
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		resp = ErrorResponse{Error: "internal error"}
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
