package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Hazer/ArtifactFinder/pkg/types"
)

// searchArtifactsTool returns the tool definition for search_artifacts
func searchArtifactsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_artifacts",
		Description: "Find which indexed artifacts provide a class or function, by name fragment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Class or function name, or its beginning. Nested classes may use '.' or '$' (e.g. 'Outer.Inner')",
				},
				"include_classes": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, search classes",
					"default":     true,
				},
				"include_global_methods": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, search top-level functions without receiver",
					"default":     true,
				},
				"include_extension_methods": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, search extension functions (functions with a receiver type)",
					"default":     true,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return. Defaults to the configured limit",
					"minimum":     1,
				},
			},
			Required: []string{"query"},
		},
	}
}

// addPendingArtifactTool returns the tool definition for add_pending_artifact
func addPendingArtifactTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_pending_artifact",
		Description: "Queue an artifact coordinate for fetching and indexing",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"group_id": map[string]interface{}{
					"type":        "string",
					"description": "Group id, e.g. 'com.squareup.okhttp3'",
				},
				"artifact_id": map[string]interface{}{
					"type":        "string",
					"description": "Artifact id, e.g. 'okhttp'",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Semantic version, e.g. '4.12.0'",
				},
				"artifactory": map[string]interface{}{
					"type":        "string",
					"description": "Repository the artifact lives in",
					"enum":        []string{string(types.ArtifactoryMaven), string(types.ArtifactoryGoogle)},
					"default":     string(types.ArtifactoryMaven),
				},
			},
			Required: []string{"group_id", "artifact_id", "version"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index and pending queue statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// syncIndexTool returns the tool definition for sync_index
func syncIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sync_index",
		Description: "Checkpoint the index write-ahead log into the database file",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
