package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Hybrid semantic and keyword search over the ingested document corpus",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"alpha": map[string]interface{}{
					"type":        "number",
					"description": "Weight of vector similarity against BM25 (1.0 = vector only, 0.0 = keyword only)",
					"default":     0.5,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"rerank": map[string]interface{}{
					"type":        "boolean",
					"description": "Rescore the top candidates with the cross-encoder",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report corpus size, cache sizes and configured models",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// ingestDocumentsTool returns the tool definition for ingest_documents
func ingestDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_documents",
		Description: "Chunk, embed and index every .txt file in a directory, replacing the current corpus",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a directory of .txt files (defaults to the configured raw directory)",
				},
			},
		},
	}
}
