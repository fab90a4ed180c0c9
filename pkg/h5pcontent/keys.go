package h5pcontent

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Object key namespaces.
const (
	TempPrefix    = "h5p-temp/"
	ContentPrefix = "h5p-content/"
)

// ContentStoragePath is the prefix under which a content's permanent files live.
func ContentStoragePath(orgID, contentID uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s/", ContentPrefix, orgID, contentID)
}

// ContentKey is the object key of a permanent file of a content.
func ContentKey(orgID, contentID uuid.UUID, name string) string {
	return ContentStoragePath(orgID, contentID) + strings.TrimPrefix(name, "/")
}

// TempKey is the object key of a temporary authoring upload.
func TempKey(relPath string) string {
	return TempPrefix + strings.TrimPrefix(relPath, "/")
}

var extensionContentTypes = map[string]string{
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".ogv":   "video/ogg",
	".mp3":   "audio/mpeg",
	".m4a":   "audio/mp4",
	".ogg":   "audio/ogg",
	".wav":   "audio/wav",
	".json":  "application/json",
	".js":    "application/javascript",
	".css":   "text/css",
	".html":  "text/html",
	".txt":   "text/plain",
	".pdf":   "application/pdf",
	".vtt":   "text/vtt",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
}

// ContentTypeFromExtension infers a MIME type from a file name's extension.
func ContentTypeFromExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
