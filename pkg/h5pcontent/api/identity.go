package api

import (
	"net/http"

	"github.com/google/uuid"
)

// Identity headers. Authentication happens upstream; these carry the already
// resolved caller.
const (
	HeaderOrgID  = "X-Org-ID"
	HeaderUserID = "X-User-ID"
)

func orgIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return headerUUID(r, HeaderOrgID)
}

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return headerUUID(r, HeaderUserID)
}

func headerUUID(r *http.Request, header string) (uuid.UUID, error) {
	raw := r.Header.Get(header)
	if raw == "" {
		return uuid.Nil, newBadRequest("missing " + header + " header")
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, newBadRequest("invalid " + header + " header")
	}
	return id, nil
}

// optionalUserID returns uuid.Nil when the header is absent.
func optionalUserID(r *http.Request) (uuid.UUID, error) {
	if r.Header.Get(HeaderUserID) == "" {
		return uuid.Nil, nil
	}
	return userIDFromRequest(r)
}
