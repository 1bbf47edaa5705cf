package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/Hazer/ArtifactFinder/internal/searcher"
	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
	ErrorCodeInvalidVersion = -32005 // Version is not a semantic version
)

// handleSearchArtifacts handles the search_artifacts tool invocation
func (s *Server) handleSearchArtifacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 0)
	if limit < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be positive", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	params := searcher.SearchParams{
		Query:                   query,
		IncludeClasses:          getBoolDefault(args, "include_classes", true),
		IncludeGlobalMethods:    getBoolDefault(args, "include_global_methods", true),
		IncludeExtensionMethods: getBoolDefault(args, "include_extension_methods", true),
		Limit:                   limit,
	}

	records, err := s.finder.Search(ctx, params)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		results = append(results, formatRecord(r))
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddPendingArtifact handles the add_pending_artifact tool invocation
func (s *Server) handleAddPendingArtifact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	var coordinate types.Coordinate
	for _, p := range []struct {
		key string
		dst *string
	}{
		{"group_id", &coordinate.GroupID},
		{"artifact_id", &coordinate.ArtifactID},
	} {
		value, ok := args[p.key].(string)
		if !ok || strings.TrimSpace(value) == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, p.key+" parameter is required", map[string]interface{}{
				"param":  p.key,
				"reason": "missing or empty",
			})
		}
		*p.dst = strings.TrimSpace(value)
	}

	rawVersion := getStringDefault(args, "version", "")
	version, ok := types.ParseVersion(rawVersion)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidVersion, "version is not a semantic version", map[string]interface{}{
			"param": "version",
			"value": rawVersion,
		})
	}
	coordinate.Version = version

	rawArtifactory := getStringDefault(args, "artifactory", string(types.ArtifactoryMaven))
	artifactory, ok := types.ParseArtifactory(rawArtifactory)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid artifactory", map[string]interface{}{
			"param":   "artifactory",
			"value":   rawArtifactory,
			"allowed": []string{string(types.ArtifactoryMaven), string(types.ArtifactoryGoogle)},
		})
	}
	coordinate.Artifactory = artifactory

	added, err := s.finder.AddPendingArtifact(ctx, coordinate.GroupID, coordinate.ArtifactID, coordinate.Version, coordinate.Artifactory)
	if err != nil {
		if errors.Is(err, types.ErrContractViolation) || errors.Is(err, types.ErrInvalidVersion) {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to add pending artifact", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"added":       added,
		"artifact":    coordinate.String(),
		"artifactory": string(coordinate.Artifactory),
	}
	if !added {
		response["message"] = "Artifact is already pending or indexed."
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.finder.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"storage": map[string]interface{}{
			"location":       status.StorageLocation,
			"schema_version": status.SchemaVersion,
			"size_bytes":     status.SizeBytes,
		},
		"index": map[string]interface{}{
			"artifacts":      status.Artifacts,
			"classes":        status.Classes,
			"class_lookups":  status.ClassLookups,
			"methods":        status.Methods,
			"method_lookups": status.MethodLookups,
		},
		"pending": map[string]interface{}{
			"total":     status.PendingTotal,
			"fetched":   status.PendingFetched,
			"remaining": status.PendingRemaining(),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSyncIndex handles the sync_index tool invocation
func (s *Server) handleSyncIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.finder.Sync(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "sync failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"synced": true})), nil
}

// Helper functions

// formatRecord renders a search record for the response
func formatRecord(r types.SearchRecord) map[string]interface{} {
	out := map[string]interface{}{
		"kind":        string(r.Kind),
		"package":     r.Pkg,
		"name":        r.QualifiedName(),
		"artifact":    r.Artifact.String(),
		"artifactory": string(r.Artifact.Artifactory),
	}
	if r.Receiver != nil {
		out["receiver"] = r.Receiver.Pkg + "." + r.Receiver.Name
	}
	return out
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
