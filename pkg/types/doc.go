// Package types provides the value types shared by ArtifactFinder's packages
// and by external collaborators such as fetchers and parsers.
//
// # Coordinates
//
// An artifact is identified by group, artifact id and version, tagged with
// the kind of repository it came from:
//
//	c := types.Coordinate{
//	    GroupID:     "com.example",
//	    ArtifactID:  "lib",
//	    Version:     types.MustParseVersion("1.0.0"),
//	    Artifactory: types.ArtifactoryMaven,
//	}
//	fmt.Println(c) // com.example:lib:1.0.0
//
// # Versions
//
// ParseVersion never returns an error. Malformed input yields ok == false,
// so callers must handle absence explicitly:
//
//	v, ok := types.ParseVersion(input)
//	if !ok {
//	    return types.ErrInvalidVersion
//	}
//
// Versions are totally ordered by Compare and print exactly as parsed.
//
// # Parser Output
//
// ParsedArtifactInfo is what a parser extracts from an artifact's binary:
// classes (nested names joined with '$') and top-level functions, with a
// Receiver for extension functions.
//
// # Search Results
//
// SearchRecord is one ranked query result, a class or a method together
// with the coordinate of the artifact that provides it.
package types
