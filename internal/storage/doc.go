// Package storage provides SQLite-based persistence for the corpus snapshot.
//
// The storage layer manages:
//   - The chunk corpus produced by batch ingestion
//   - One embedding per chunk
//   - The content-addressed embedding cache (when the sqlite cache backend is selected)
//   - Ingest run history for status reporting
//
// # Database Schema
//
// Tables:
//   - documents: chunk ID, source filename, ordinal, content and SHA-256 hash
//   - embeddings: little-endian float32 vector per document
//   - embedding_cache: chunk ID -> (fingerprint, vector)
//   - ingest_runs: statistics for each completed ingestion
//
// Migrations are versioned with semantic versions and applied on open.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("data/indices/semcache.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	docs, err := db.LoadCorpus(ctx)
//
// # Transactions
//
// The snapshot is only ever replaced wholesale. Group the replacement with its
// bookkeeping in one transaction:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.ReplaceCorpus(ctx, docs); err != nil {
//	    return err
//	}
//	if err := tx.RecordIngestRun(ctx, run); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_vec switches to github.com/mattn/go-sqlite3.
package storage
