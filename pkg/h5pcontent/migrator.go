package h5pcontent

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// TempSuffix marks a file reference that has not been promoted to permanent storage.
const TempSuffix = "#tmp"

// Migrator promotes temporary file references embedded in a content payload
// into content-scoped permanent storage.
//
// The payload is treated as opaque text: references are found by scanning for
// TempSuffix and rewritten by plain substitution, so unrelated parts of the
// payload keep their exact bytes.
type Migrator struct {
	store  ObjectStore
	logger *slog.Logger
}

// NewMigrator creates a migrator over the given object store.
func NewMigrator(store ObjectStore, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{store: store, logger: logger}
}

// tempRef is a parsed "{userId}/{tempId}/{filename}#tmp" reference.
type tempRef struct {
	userID   string
	tempID   string
	filename string
}

func (r tempRef) tempKey() string {
	return TempKey(r.userID + "/" + r.tempID + "/" + r.filename)
}

func (r tempRef) permanentName() string {
	return r.tempID + "_" + r.filename
}

// Migrate rewrites every well-formed temp reference in payload to its
// permanent relative name and returns the temp keys that can be removed once
// the rewritten payload is persisted.
//
// Malformed references and references whose temp object is gone are skipped
// and left untouched. A failed upload to permanent storage aborts the whole
// migration.
func (m *Migrator) Migrate(ctx context.Context, orgID, contentID uuid.UUID, payload []byte) ([]byte, []string, error) {
	if !bytes.Contains(payload, []byte(TempSuffix)) {
		return payload, nil, nil
	}

	text := string(payload)
	replacements := make(map[string]string)
	var cleanup []string

	for _, raw := range scanTempPaths(text) {
		if _, done := replacements[raw]; done {
			continue
		}

		ref, ok := parseTempRef(raw)
		if !ok {
			m.logger.Warn("skipping malformed temp file reference",
				"content_id", contentID, "path", raw)
			continue
		}

		tempKey := ref.tempKey()
		data, err := m.store.Download(ctx, tempKey)
		if err != nil {
			m.logger.Warn("temp file unavailable, leaving reference in place",
				"content_id", contentID, "key", tempKey, "error", err)
			continue
		}

		newName := ref.permanentName()
		permanentKey := ContentKey(orgID, contentID, newName)
		err = m.store.Upload(ctx, UploadParams{
			Key:         permanentKey,
			ContentType: ContentTypeFromExtension(ref.filename),
			Data:        data,
		})
		if err != nil {
			return nil, nil, &StorageError{Key: permanentKey, Op: "promote_temp_file", Err: err}
		}

		replacements[raw] = newName
		cleanup = append(cleanup, tempKey)
	}

	if len(replacements) == 0 {
		return payload, nil, nil
	}

	return []byte(replaceAll(text, replacements)), cleanup, nil
}

// scanTempPaths returns, in order of appearance, every quoted string that ends
// with TempSuffix. The returned paths include the suffix.
func scanTempPaths(text string) []string {
	var paths []string
	seen := make(map[string]struct{})

	pos := 0
	for {
		idx := strings.Index(text[pos:], TempSuffix)
		if idx < 0 {
			break
		}
		end := pos + idx
		pos = end + len(TempSuffix)

		quote := strings.LastIndexByte(text[:end], '"')
		if quote < 0 {
			continue
		}
		p := text[quote+1:end] + TempSuffix
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths
}

func parseTempRef(raw string) (tempRef, bool) {
	parts := strings.Split(strings.TrimSuffix(raw, TempSuffix), "/")
	if len(parts) != 3 {
		return tempRef{}, false
	}
	for _, p := range parts {
		if p == "" {
			return tempRef{}, false
		}
	}
	return tempRef{userID: parts[0], tempID: parts[1], filename: parts[2]}, true
}

// replaceAll applies every old->new pair in a single pass over text. Each
// path is anchored at its opening quote, as scanTempPaths finds it, so a
// valid path never matches inside a longer string that merely ends with it.
// Longer paths are listed first.
func replaceAll(text string, replacements map[string]string) string {
	olds := make([]string, 0, len(replacements))
	for old := range replacements {
		olds = append(olds, old)
	}
	sort.Slice(olds, func(i, j int) bool {
		if len(olds[i]) != len(olds[j]) {
			return len(olds[i]) > len(olds[j])
		}
		return olds[i] < olds[j]
	})

	pairs := make([]string, 0, 2*len(olds))
	for _, old := range olds {
		pairs = append(pairs, `"`+old, `"`+replacements[old])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
