package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/suite"

	"github.com/Hazer/ArtifactFinder/internal/config"
	"github.com/Hazer/ArtifactFinder/internal/finder"
	"github.com/Hazer/ArtifactFinder/internal/storage"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// ToolsTestSuite exercises the tool handlers against an in-memory index
type ToolsTestSuite struct {
	suite.Suite
	finder *finder.Finder
	server *Server
	ctx    context.Context
}

func TestToolsTestSuite(t *testing.T) {
	suite.Run(t, new(ToolsTestSuite))
}

// SetupTest runs before each test
func (s *ToolsTestSuite) SetupTest() {
	s.ctx = context.Background()

	cfg := config.Default()
	cfg.Storage.Path = storage.MemoryLocation
	f, err := finder.Open(cfg, nil, nil)
	s.Require().NoError(err)

	s.finder = f
	s.server = NewServer(f, nil)
}

// TearDownTest runs after each test
func (s *ToolsTestSuite) TearDownTest() {
	s.Require().NoError(s.finder.Close())
}

func request(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// decode returns the JSON object carried by a text result
func (s *ToolsTestSuite) decode(result *mcp.CallToolResult) map[string]interface{} {
	s.Require().NotNil(result)
	s.Require().Len(result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	s.Require().True(ok, "result should be text")

	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal([]byte(text.Text), &out))
	return out
}

func (s *ToolsTestSuite) requireMCPError(err error, code int) {
	s.Require().Error(err)
	mcpErr, ok := err.(*MCPError)
	s.Require().True(ok, "error should be *MCPError, got %T", err)
	s.Equal(code, mcpErr.Code)
}

func (s *ToolsTestSuite) indexExample() {
	added, err := s.finder.AddPendingArtifact(s.ctx, "com.example", "lib", types.MustParseVersion("1.0.0"), types.ArtifactoryMaven)
	s.Require().NoError(err)
	s.Require().True(added)

	pending, ok, err := s.finder.FindNextPendingArtifact(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().True(ok)

	_, err = s.finder.SaveParsedArtifact(s.ctx, pending, &types.ParsedArtifactInfo{
		Classes: []types.ClassInfo{{Pkg: "com.example", Name: "Outer$Inner"}},
		Methods: []types.MethodInfo{
			{Pkg: "com.example", Name: "doWork"},
			{Pkg: "com.example", Name: "doWorkOn", Receiver: &types.Receiver{Pkg: "com.example", Name: "Outer"}},
		},
	})
	s.Require().NoError(err)
}

func (s *ToolsTestSuite) TestSearchArtifacts() {
	s.indexExample()

	result, err := s.server.handleSearchArtifacts(s.ctx, request("search_artifacts", map[string]interface{}{
		"query": "Outer.Inner",
	}))
	s.Require().NoError(err)

	out := s.decode(result)
	s.Equal(float64(1), out["count"])
	records := out["results"].([]interface{})
	first := records[0].(map[string]interface{})
	s.Equal("class", first["kind"])
	s.Equal("Outer.Inner", first["name"])
	s.Equal("com.example:lib:1.0.0", first["artifact"])
	s.Equal("MAVEN", first["artifactory"])
}

func (s *ToolsTestSuite) TestSearchArtifacts_MethodFilters() {
	s.indexExample()

	result, err := s.server.handleSearchArtifacts(s.ctx, request("search_artifacts", map[string]interface{}{
		"query":                  "dowork",
		"include_classes":        false,
		"include_global_methods": false,
		"limit":                  float64(10),
	}))
	s.Require().NoError(err)

	out := s.decode(result)
	s.Require().Equal(float64(1), out["count"])
	record := out["results"].([]interface{})[0].(map[string]interface{})
	s.Equal("doWorkOn", record["name"])
	s.Equal("com.example.Outer", record["receiver"])

	result, err = s.server.handleSearchArtifacts(s.ctx, request("search_artifacts", map[string]interface{}{
		"query":                     "dowork",
		"include_classes":           false,
		"include_global_methods":    false,
		"include_extension_methods": false,
	}))
	s.Require().NoError(err)
	s.Equal(float64(0), s.decode(result)["count"])
}

func (s *ToolsTestSuite) TestSearchArtifacts_Validation() {
	tests := []struct {
		name string
		args interface{}
		code int
	}{
		{"non-map arguments", "query", ErrorCodeInvalidParams},
		{"missing query", map[string]interface{}{}, ErrorCodeEmptyQuery},
		{"blank query", map[string]interface{}{"query": "   "}, ErrorCodeEmptyQuery},
		{"negative limit", map[string]interface{}{"query": "x", "limit": float64(-1)}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: "search_artifacts", Arguments: tt.args}}
			_, err := s.server.handleSearchArtifacts(s.ctx, req)
			s.requireMCPError(err, tt.code)
		})
	}
}

func (s *ToolsTestSuite) TestAddPendingArtifact() {
	args := map[string]interface{}{
		"group_id":    "com.example",
		"artifact_id": "lib",
		"version":     "1.2.3",
		"artifactory": "google",
	}

	result, err := s.server.handleAddPendingArtifact(s.ctx, request("add_pending_artifact", args))
	s.Require().NoError(err)
	out := s.decode(result)
	s.Equal(true, out["added"])
	s.Equal("com.example:lib:1.2.3", out["artifact"])
	s.Equal("GOOGLE", out["artifactory"])

	result, err = s.server.handleAddPendingArtifact(s.ctx, request("add_pending_artifact", args))
	s.Require().NoError(err)
	out = s.decode(result)
	s.Equal(false, out["added"])
	s.Contains(out, "message")

	pending, ok, err := s.finder.FindNextPendingArtifact(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(types.ArtifactoryGoogle, pending.Artifactory)
}

func (s *ToolsTestSuite) TestAddPendingArtifact_Validation() {
	valid := func() map[string]interface{} {
		return map[string]interface{}{"group_id": "g", "artifact_id": "a", "version": "1.0.0"}
	}

	tests := []struct {
		name   string
		modify func(map[string]interface{})
		code   int
	}{
		{"missing group", func(m map[string]interface{}) { delete(m, "group_id") }, ErrorCodeInvalidParams},
		{"blank artifact", func(m map[string]interface{}) { m["artifact_id"] = " " }, ErrorCodeInvalidParams},
		{"bad version", func(m map[string]interface{}) { m["version"] = "one" }, ErrorCodeInvalidVersion},
		{"missing version", func(m map[string]interface{}) { delete(m, "version") }, ErrorCodeInvalidVersion},
		{"unknown artifactory", func(m map[string]interface{}) { m["artifactory"] = "npm" }, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			args := valid()
			tt.modify(args)
			_, err := s.server.handleAddPendingArtifact(s.ctx, request("add_pending_artifact", args))
			s.requireMCPError(err, tt.code)
		})
	}
}

func (s *ToolsTestSuite) TestGetStatus() {
	s.indexExample()

	result, err := s.server.handleGetStatus(s.ctx, request("get_status", nil))
	s.Require().NoError(err)
	out := s.decode(result)

	index := out["index"].(map[string]interface{})
	s.Equal(float64(1), index["artifacts"])
	s.Equal(float64(1), index["classes"])
	s.Equal(float64(2), index["class_lookups"])
	s.Equal(float64(2), index["methods"])

	pending := out["pending"].(map[string]interface{})
	s.Equal(float64(1), pending["total"])
	s.Equal(float64(0), pending["remaining"])

	store := out["storage"].(map[string]interface{})
	s.Equal(storage.MemoryLocation, store["location"])
	s.Equal(float64(storage.SchemaVersion), store["schema_version"])
}

func (s *ToolsTestSuite) TestSyncIndex() {
	result, err := s.server.handleSyncIndex(s.ctx, request("sync_index", nil))
	s.Require().NoError(err)
	s.Equal(true, s.decode(result)["synced"])
}
