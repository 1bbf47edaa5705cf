// Package mcp implements the Model Context Protocol (MCP) server for ArtifactFinder.
//
// The MCP server exposes four tools to AI coding assistants:
//   - search_artifacts: Find which artifact provides a class or function
//   - add_pending_artifact: Queue an artifact coordinate for indexing
//   - get_status: Index and queue statistics
//   - sync_index: Checkpoint the write-ahead log
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	artifactfinder serve
//
// # Tool: search_artifacts
//
//	Request:
//	{
//	  "name": "search_artifacts",
//	  "arguments": {
//	    "query": "Outer.Inner",
//	    "include_classes": true,
//	    "include_global_methods": true,
//	    "include_extension_methods": false,
//	    "limit": 20
//	  }
//	}
//
//	Response:
//	{
//	  "count": 1,
//	  "query": "Outer.Inner",
//	  "results": [
//	    {
//	      "artifact": "com.example:lib:1.0.0",
//	      "artifactory": "MAVEN",
//	      "kind": "class",
//	      "name": "Outer.Inner",
//	      "package": "com.example"
//	    }
//	  ]
//	}
//
// The query matches lookup identifiers exactly or by prefix, case
// insensitively. Exact matches rank first. Extension method results carry a
// "receiver" field.
//
// # Tool: add_pending_artifact
//
//	Request:
//	{
//	  "name": "add_pending_artifact",
//	  "arguments": {
//	    "group_id": "com.example",
//	    "artifact_id": "lib",
//	    "version": "1.0.0",
//	    "artifactory": "MAVEN"
//	  }
//	}
//
//	Response:
//	{
//	  "added": true,
//	  "artifact": "com.example:lib:1.0.0",
//	  "artifactory": "MAVEN"
//	}
//
// Adding a coordinate that is already known returns "added": false.
//
// # Tool: get_status
//
// Takes no arguments and returns index row counts, pending queue progress
// and storage details (location, schema version, size).
//
// # Tool: sync_index
//
// Takes no arguments. Folds the write-ahead log into the database file.
//
// # Error Codes
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32004  Query is empty
//	-32005  Version is not a semantic version
package mcp
