package types

import "strings"

// RecordKind distinguishes class results from method results
type RecordKind string

const (
	KindClass  RecordKind = "class"
	KindMethod RecordKind = "method"
)

// NestingSeparator separates nested class names in stored identifiers.
const NestingSeparator = "$"

// SearchRecord is a single result returned by the query engine.
type SearchRecord struct {
	Kind       RecordKind
	Pkg        string
	Name       string
	Receiver   *Receiver // Nullable - only set for extension methods
	Identifier string    // Lookup key that matched the query
	Artifact   Coordinate
}

// QualifiedName renders the name the way users type it, with nested
// classes separated by '.'.
func (r SearchRecord) QualifiedName() string {
	return strings.ReplaceAll(r.Name, NestingSeparator, ".")
}

// SimpleName returns the innermost segment of a nested class name.
func (r SearchRecord) SimpleName() string {
	if i := strings.LastIndex(r.Name, NestingSeparator); i >= 0 {
		return r.Name[i+1:]
	}
	return r.Name
}

// IsExtension reports whether the record is an extension method.
func (r SearchRecord) IsExtension() bool {
	return r.Kind == KindMethod && r.Receiver != nil
}
