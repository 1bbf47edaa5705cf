package types

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed, ordered artifact version such as "1.0.0" or
// "2.2.0-alpha01". The zero value represents "no version".
type Version struct {
	v *semver.Version
}

// ParseVersion parses a semantic-version-like string. Malformed input
// yields ok == false rather than an error.
func ParseVersion(s string) (Version, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, false
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, false
	}
	return Version{v: v}, true
}

// MustParseVersion is like ParseVersion but panics on malformed input.
// Intended for constants and tests.
func MustParseVersion(s string) Version {
	v, ok := ParseVersion(s)
	if !ok {
		panic("types: invalid version " + s)
	}
	return v
}

// IsZero reports whether v holds no parsed version.
func (v Version) IsZero() bool {
	return v.v == nil
}

// String returns the version exactly as it was parsed.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// Major returns the major component, 0 for the zero Version.
func (v Version) Major() uint64 {
	if v.v == nil {
		return 0
	}
	return v.v.Major()
}

// Prerelease returns the pre-release label (e.g. "alpha01").
func (v Version) Prerelease() string {
	if v.v == nil {
		return ""
	}
	return v.v.Prerelease()
}

// Compare orders versions by semver precedence. Versions with equal
// precedence but different text (e.g. "1.0" and "1.0.0") are ordered by
// their text so the order is total. The zero Version sorts first.
func (v Version) Compare(other Version) int {
	switch {
	case v.v == nil && other.v == nil:
		return 0
	case v.v == nil:
		return -1
	case other.v == nil:
		return 1
	}
	if c := v.v.Compare(other.v); c != 0 {
		return c
	}
	return strings.Compare(v.v.Original(), other.v.Original())
}

// Equal reports whether both versions were parsed from the same text.
func (v Version) Equal(other Version) bool {
	return v.String() == other.String()
}
