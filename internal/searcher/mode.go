package searcher

import (
	"strings"

	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// Mode is the search plan derived once from the inclusion flags
type Mode int

const (
	ModeNone             Mode = iota // Nothing requested, no storage call
	ModeClassesOnly                  // Classes, no methods
	ModeGlobalMethods                // Global methods, plus classes if requested
	ModeExtensionMethods             // Extension methods, plus classes if requested
	ModeAnyMethod                    // Both method kinds, plus classes if requested
)

// ModeFor derives the search mode from the request flags
func ModeFor(params SearchParams) Mode {
	searchType, ok := storage.MethodSearchTypeFor(params.IncludeGlobalMethods, params.IncludeExtensionMethods)
	if !ok {
		if params.IncludeClasses {
			return ModeClassesOnly
		}
		return ModeNone
	}
	switch searchType {
	case storage.MethodSearchGlobal:
		return ModeGlobalMethods
	case storage.MethodSearchExtension:
		return ModeExtensionMethods
	default:
		return ModeAnyMethod
	}
}

// MethodSearchType returns the storage filter for the mode. ok is false
// when the mode searches no methods.
func (m Mode) MethodSearchType() (storage.MethodSearchType, bool) {
	switch m {
	case ModeGlobalMethods:
		return storage.MethodSearchGlobal, true
	case ModeExtensionMethods:
		return storage.MethodSearchExtension, true
	case ModeAnyMethod:
		return storage.MethodSearchAny, true
	}
	return 0, false
}

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeClassesOnly:
		return "classes_only"
	case ModeGlobalMethods:
		return "global_methods"
	case ModeExtensionMethods:
		return "extension_methods"
	case ModeAnyMethod:
		return "any_method"
	}
	return "unknown"
}

// Sanitize normalizes a raw query into lookup form: trimmed, '.' replaced
// by the nesting separator, lower-cased. "Outer.Inner" becomes "outer$inner".
func Sanitize(query string) string {
	query = strings.TrimSpace(query)
	query = strings.ReplaceAll(query, ".", types.NestingSeparator)
	return strings.ToLower(query)
}
