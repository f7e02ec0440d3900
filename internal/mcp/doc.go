// Package mcp implements the Model Context Protocol (MCP) server for semcache.
//
// The MCP server exposes three tools to AI assistants:
//   - search_documents: Hybrid search over the ingested corpus
//   - get_status: Corpus, cache and model statistics
//   - ingest_documents: Rebuild the corpus from a directory of .txt files
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries protocol messages only, so logs must go to stderr.
//
// # Basic Usage
//
//	semcache mcp
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {"query": "how do cats sleep", "k": 3, "alpha": 0.5, "rerank": true}
//	}
//
//	Response:
//	{
//	  "query": "how do cats sleep",
//	  "total_results": 1,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "id": "cats.txt_chunk_0",
//	      "filename": "cats.txt",
//	      "score": 0.82,
//	      "rerank_score": 0.82,
//	      "matched_terms": ["cats", "sleep"],
//	      "explanation": "Matched with 50% keyword overlap (cats, sleep). High semantic similarity (0.71)."
//	    }
//	  ]
//	}
//
// # Tool: ingest_documents
//
//	Request:  {"name": "ingest_documents", "arguments": {"path": "/data/raw"}}
//	Response: {"indexed": true, "files_loaded": 3, "chunks_total": 12, "chunks_embedded": 2, "chunks_reused": 10}
//
// # Errors
//
// Failures are returned as MCPError values with JSON-RPC style codes:
//
//	-32602  invalid parameters (bad k, relative path, ...)
//	-32603  internal error
//	-32001  no documents to ingest
//	-32002  an ingest is already running
//	-32003  retrieval unavailable (model or index failure)
//	-32004  empty query
//	-32005  search timed out
package mcp
