package types

import (
	"fmt"
	"strings"
)

// Artifactory identifies the kind of remote repository an artifact was
// discovered in. The index persists it but never interprets it.
type Artifactory string

const (
	ArtifactoryMaven  Artifactory = "MAVEN"
	ArtifactoryGoogle Artifactory = "GOOGLE"
)

// ParseArtifactory converts a case-insensitive name into an Artifactory.
func ParseArtifactory(s string) (Artifactory, bool) {
	switch Artifactory(strings.ToUpper(strings.TrimSpace(s))) {
	case ArtifactoryMaven:
		return ArtifactoryMaven, true
	case ArtifactoryGoogle:
		return ArtifactoryGoogle, true
	}
	return "", false
}

// Coordinate is the identity of an artifact in its remote repository.
type Coordinate struct {
	GroupID     string
	ArtifactID  string
	Version     Version
	Artifactory Artifactory
}

// String renders the coordinate in group:artifact:version form.
func (c Coordinate) String() string {
	return fmt.Sprintf("%s:%s:%s", c.GroupID, c.ArtifactID, c.Version)
}

// Receiver is the receiver type of an extension method.
type Receiver struct {
	Pkg  string
	Name string
}

// ClassInfo is a class found in an artifact. Nested classes use '$' as
// separator, e.g. "Outer$Inner".
type ClassInfo struct {
	Pkg  string
	Name string
}

// MethodInfo is a top-level function found in an artifact. Receiver is nil
// for global functions.
type MethodInfo struct {
	Name     string
	Pkg      string
	Receiver *Receiver
}

// ParsedArtifactInfo is what the parser extracts from an artifact's binary.
type ParsedArtifactInfo struct {
	Classes []ClassInfo
	Methods []MethodInfo
}
