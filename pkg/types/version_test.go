package types

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"release", "1.0.0", true},
		{"prerelease", "2.2.0-alpha01", true},
		{"two components", "1.1", true},
		{"surrounding whitespace", " 1.2.3 ", true},
		{"empty", "", false},
		{"garbage", "not-a-version", false},
		{"trailing dot", "1.2.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ParseVersion(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, !tt.ok, v.IsZero())
		})
	}
}

func TestVersion_RoundTrip(t *testing.T) {
	for _, s := range []string{"1.0.0", "2.2.0-alpha01", "1.1", "3.0.0-rc1+build.5"} {
		v, ok := ParseVersion(s)
		require.True(t, ok, s)
		assert.Equal(t, s, v.String())

		again, ok := ParseVersion(v.String())
		require.True(t, ok)
		assert.True(t, v.Equal(again))
		assert.Equal(t, 0, v.Compare(again))
	}
}

func TestVersion_Compare(t *testing.T) {
	versions := []Version{
		MustParseVersion("2.0.0"),
		MustParseVersion("1.0.0-alpha01"),
		MustParseVersion("1.0.0"),
		MustParseVersion("1.0.0-beta02"),
		MustParseVersion("1.10.0"),
		MustParseVersion("1.2.0"),
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Compare(versions[j]) < 0
	})

	got := make([]string, len(versions))
	for i, v := range versions {
		got[i] = v.String()
	}
	assert.Equal(t, []string{"1.0.0-alpha01", "1.0.0-beta02", "1.0.0", "1.2.0", "1.10.0", "2.0.0"}, got)
}

func TestVersion_CompareIsTotal(t *testing.T) {
	short := MustParseVersion("1.0")
	long := MustParseVersion("1.0.0")

	assert.NotEqual(t, 0, short.Compare(long))
	assert.Equal(t, -short.Compare(long), long.Compare(short))
	assert.False(t, short.Equal(long))

	var zero Version
	assert.Equal(t, -1, zero.Compare(short))
	assert.Equal(t, 1, short.Compare(zero))
	assert.Equal(t, "", zero.String())
}

func TestParseArtifactory(t *testing.T) {
	a, ok := ParseArtifactory("maven")
	require.True(t, ok)
	assert.Equal(t, ArtifactoryMaven, a)

	a, ok = ParseArtifactory("GOOGLE")
	require.True(t, ok)
	assert.Equal(t, ArtifactoryGoogle, a)

	_, ok = ParseArtifactory("npm")
	assert.False(t, ok)
}

func TestSearchRecord_Names(t *testing.T) {
	r := SearchRecord{Kind: KindClass, Name: "Outer$Inner"}
	assert.Equal(t, "Outer.Inner", r.QualifiedName())
	assert.Equal(t, "Inner", r.SimpleName())
	assert.False(t, r.IsExtension())

	m := SearchRecord{Kind: KindMethod, Name: "doWork", Receiver: &Receiver{Pkg: "kotlin", Name: "String"}}
	assert.Equal(t, "doWork", m.SimpleName())
	assert.True(t, m.IsExtension())
}

func TestCoordinate_String(t *testing.T) {
	c := Coordinate{GroupID: "com.example", ArtifactID: "lib", Version: MustParseVersion("1.0.0")}
	assert.Equal(t, "com.example:lib:1.0.0", c.String())
}
