package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

type object struct {
	data        []byte
	contentType string
}

// Backend is an in-memory implementation of the h5pcontent.ObjectStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

var _ h5pcontent.ObjectStore = (*Backend)(nil)

// Download returns a copy of the stored bytes
func (b *Backend) Download(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, h5pcontent.ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// Upload stores a copy of the bytes, replacing any existing object
func (b *Backend) Upload(ctx context.Context, params h5pcontent.UploadParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.Key] = object{
		data:        append([]byte(nil), params.Data...),
		contentType: contentType,
	}
	return nil
}

// Remove deletes an object
func (b *Backend) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return h5pcontent.ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

// ContentType returns the content type an object was stored with
func (b *Backend) ContentType(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	return obj.contentType, exists
}

// Keys lists the stored keys under prefix in lexical order
func (b *Backend) Keys(prefix string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := []string{}
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
