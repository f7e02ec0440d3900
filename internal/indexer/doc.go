// Package indexer builds the corpus snapshot that searches run against.
//
// An ingest reads every *.txt file in the data directory, cleans and chunks
// the text, embeds the chunks and replaces the stored corpus in a single
// transaction. Chunks whose content is unchanged since the previous ingest
// reuse their cached embedding, so re-ingesting a mostly unchanged directory
// costs little more than reading it.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, cache, chunker.Default(), &indexer.Config{
//	    Workers: 4,
//	    Logger:  logger,
//	})
//
//	stats, err := idx.Ingest(ctx, "data/raw")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d chunks, %d embedded, %d reused\n",
//	    stats.ChunksTotal, stats.ChunksEmbedded, stats.ChunksReused)
//
// # Concurrency
//
// Only one ingest runs at a time. A second call while one is in progress
// returns types.ErrIndexingInProgress immediately. Within an ingest, embedding
// batches run concurrently up to Config.Workers.
//
// # Failure
//
// A failed embedding call aborts the ingest and the stored corpus is left
// as it was. A failure to persist the embedding cache is only logged: the
// snapshot is still written and the next ingest simply embeds more.
package indexer
