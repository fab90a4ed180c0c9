package h5pcontent

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLibraryString splits "MachineName major.minor" into its parts. A bare
// machine name is accepted and reports hasVersion=false.
func ParseLibraryString(s string) (machineName string, major, minor int, hasVersion bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, 0, false, fmt.Errorf("%w: empty library string", ErrInvalidLibrary)
	}

	name, version, found := strings.Cut(s, " ")
	if !found {
		return name, 0, 0, false, nil
	}

	majorStr, minorStr, ok := strings.Cut(strings.TrimSpace(version), ".")
	if !ok {
		return "", 0, 0, false, fmt.Errorf("%w: malformed version in %q", ErrInvalidLibrary, s)
	}
	if major, err = strconv.Atoi(majorStr); err != nil {
		return "", 0, 0, false, fmt.Errorf("%w: malformed major version in %q", ErrInvalidLibrary, s)
	}
	if minor, err = strconv.Atoi(minorStr); err != nil {
		return "", 0, 0, false, fmt.Errorf("%w: malformed minor version in %q", ErrInvalidLibrary, s)
	}
	return name, major, minor, true, nil
}

func validateLibrary(l *Library) error {
	if strings.TrimSpace(l.MachineName) == "" {
		return fmt.Errorf("%w: machine name is required", ErrInvalidLibrary)
	}
	if strings.ContainsAny(l.MachineName, " /") {
		return fmt.Errorf("%w: machine name %q contains spaces or slashes", ErrInvalidLibrary, l.MachineName)
	}
	if l.MajorVersion < 0 || l.MinorVersion < 0 || l.PatchVersion < 0 {
		return fmt.Errorf("%w: negative version for %s", ErrInvalidLibrary, l.MachineName)
	}
	switch l.Origin {
	case "":
		l.Origin = LibraryOriginCustom
	case LibraryOriginOfficial, LibraryOriginCustom:
	default:
		return fmt.Errorf("%w: unknown origin %q", ErrInvalidLibrary, l.Origin)
	}
	return nil
}

// dependencyRefs converts resolved libraries to the player's reference form.
func dependencyRefs(libs []*Library) []DependencyRef {
	refs := make([]DependencyRef, 0, len(libs))
	for _, l := range libs {
		refs = append(refs, DependencyRef{
			MachineName:  l.MachineName,
			MajorVersion: l.MajorVersion,
			MinorVersion: l.MinorVersion,
		})
	}
	return refs
}
