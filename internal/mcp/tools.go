package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/semcache/internal/indexer"
	"github.com/dshills/semcache/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeNoDocuments          = -32001 // Directory contains no ingestible documents
	ErrorCodeIndexingInProgress   = -32002 // Another ingest is already running
	ErrorCodeRetrievalUnavailable = -32003 // Embedding, rerank or index call failed
	ErrorCodeEmptyQuery           = -32004 // Query parameter is empty
	ErrorCodeRequestTimeout       = -32005 // Search exceeded its deadline
)

// maxResults caps k for MCP clients
const maxResults = 100

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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

	k := getIntDefault(args, "k", types.DefaultK)
	if k < 1 || k > maxResults {
		return nil, newMCPError(ErrorCodeInvalidParams, "k must be between 1 and 100", map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}

	req := types.SearchRequest{
		Query:  query,
		K:      k,
		Alpha:  getFloatDefault(args, "alpha", types.DefaultAlpha),
		Rerank: getBoolDefault(args, "rerank", true),
	}

	results, err := s.backend.Search(ctx, req)
	if err != nil {
		return nil, searchError(err)
	}

	items := make([]map[string]interface{}, len(results))
	for i, r := range results {
		item := map[string]interface{}{
			"rank":          i + 1,
			"id":            r.ChunkID,
			"filename":      r.SourceFilename,
			"content":       r.Content,
			"score":         r.FusedScore,
			"vector_score":  r.VectorScore,
			"bm25_score":    r.LexicalScore,
			"overlap_score": r.OverlapScore,
			"matched_terms": r.MatchedTerms,
			"explanation":   r.Explanation,
		}
		if r.RerankScore != nil {
			item["rerank_score"] = *r.RerankScore
		}
		items[i] = item
	}

	response := map[string]interface{}{
		"query":         query,
		"total_results": len(results),
		"results":       items,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchError maps a search failure to an MCP error
func searchError(err error) error {
	data := map[string]interface{}{"error": err.Error()}

	var re *types.RetrievalError
	if errors.As(err, &re) {
		data["stage"] = re.Stage
	}

	switch {
	case errors.Is(err, types.ErrInvalidArgument):
		return newMCPError(ErrorCodeInvalidParams, "invalid search request", data)
	case errors.Is(err, context.DeadlineExceeded):
		return newMCPError(ErrorCodeRequestTimeout, "search timed out", data)
	case errors.Is(err, types.ErrRetrievalUnavailable):
		return newMCPError(ErrorCodeRetrievalUnavailable, "retrieval unavailable", data)
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", data)
	}
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	health, err := s.backend.Health(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"status":               health.Status,
		"indexing_in_progress": s.backend.IndexingInProgress(),
		"statistics": map[string]interface{}{
			"documents_indexed":       health.DocumentsIndexed,
			"vector_index_size":       health.VectorIndexSize,
			"query_cache_entries":     health.QueryCacheEntries,
			"embedding_cache_entries": health.EmbeddingCacheEntries,
		},
		"models": map[string]interface{}{
			"embedding": health.EmbeddingModel,
			"rerank":    health.RerankModel,
		},
	}
	if health.LastIndexedAt != nil {
		response["last_indexed_at"] = health.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestDocuments handles the ingest_documents tool invocation
func (s *Server) handleIngestDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	path := getStringDefault(args, "path", "")
	if path != "" {
		if err := validatePath(path); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
				"param":  "path",
				"reason": err.Error(),
			})
		}
	}

	stats, err := s.backend.Ingest(ctx, path)
	switch {
	case errors.Is(err, types.ErrIndexingInProgress):
		return nil, newMCPError(ErrorCodeIndexingInProgress, "an ingest is already running", nil)
	case errors.Is(err, indexer.ErrNoDocuments):
		return nil, newMCPError(ErrorCodeNoDocuments, "no documents to ingest", map[string]interface{}{
			"path": path,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "ingest failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.logger.Info().Int("chunks", stats.ChunksTotal).Str("path", path).Msg("ingest via MCP complete")

	response := map[string]interface{}{
		"indexed":         true,
		"files_loaded":    stats.FilesLoaded,
		"chunks_total":    stats.ChunksTotal,
		"chunks_embedded": stats.ChunksEmbedded,
		"chunks_reused":   stats.ChunksReused,
		"duration_ms":     stats.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
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

// validatePath checks the directory exists, is readable and holds at least one .txt file
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return ErrPathNotReadable
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".txt") {
			return nil
		}
	}
	return ErrNoTextFiles
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

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
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

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoTextFiles     = errors.New("directory does not contain .txt files")
)
