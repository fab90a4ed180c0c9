package h5pcontent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LibraryManifest is the library.json shipped inside every H5P library package.
type LibraryManifest struct {
	Title                 string          `json:"title"`
	MachineName           string          `json:"machineName"`
	MajorVersion          int             `json:"majorVersion"`
	MinorVersion          int             `json:"minorVersion"`
	PatchVersion          int             `json:"patchVersion"`
	Runnable              manifestBool    `json:"runnable"`
	PreloadedDependencies []DependencyRef `json:"preloadedDependencies"`
	DynamicDependencies   []DependencyRef `json:"dynamicDependencies"`
	EditorDependencies    []DependencyRef `json:"editorDependencies"`

	raw map[string]interface{}
}

// ManifestDependency is one declared dependency of a manifest.
type ManifestDependency struct {
	Ref  DependencyRef
	Type DependencyType
}

// manifestBool accepts both 0/1 and true/false
type manifestBool bool

func (b *manifestBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "1", "true":
		*b = true
	case "0", "false", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// ParseLibraryManifest decodes and validates a library.json document.
func ParseLibraryManifest(data []byte) (*LibraryManifest, error) {
	var m LibraryManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLibrary, err)
	}
	if err := json.Unmarshal(data, &m.raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLibrary, err)
	}
	if err := validateLibrary(m.Library()); err != nil {
		return nil, err
	}
	return &m, nil
}

// Library converts the manifest into a registry record. The full manifest is
// kept as metadata.
func (m *LibraryManifest) Library() *Library {
	return &Library{
		MachineName:  m.MachineName,
		MajorVersion: m.MajorVersion,
		MinorVersion: m.MinorVersion,
		PatchVersion: m.PatchVersion,
		Title:        m.Title,
		Runnable:     bool(m.Runnable),
		Metadata:     m.raw,
	}
}

// Dependencies lists every declared dependency with its edge type.
func (m *LibraryManifest) Dependencies() []ManifestDependency {
	var deps []ManifestDependency
	add := func(refs []DependencyRef, typ DependencyType) {
		for _, ref := range refs {
			deps = append(deps, ManifestDependency{Ref: ref, Type: typ})
		}
	}
	add(m.PreloadedDependencies, DependencyPreloaded)
	add(m.DynamicDependencies, DependencyDynamic)
	add(m.EditorDependencies, DependencyEditor)
	return deps
}

// MatchDependencyRef picks the registered library a reference points at: the
// highest patch version with the same machine name, major and minor version.
func MatchDependencyRef(libs []*Library, ref DependencyRef) (*Library, bool) {
	var best *Library
	for _, l := range libs {
		if l.MachineName != ref.MachineName || l.MajorVersion != ref.MajorVersion || l.MinorVersion != ref.MinorVersion {
			continue
		}
		if best == nil || l.PatchVersion > best.PatchVersion {
			best = l
		}
	}
	return best, best != nil
}
