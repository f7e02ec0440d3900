// Package chunker turns raw document text into retrieval chunks.
//
// Text is cleaned first: anything that looks like a markup tag (<...>) is
// removed and whitespace runs collapse to one space. The cleaned text is then
// split into windows of words:
//
//	c, err := chunker.New(256, 50)
//	chunks := c.ChunkDocument("space.txt", raw)
//	// chunks[i].ID == "space.txt_chunk_<i>"
//
// A document with at most 256 words becomes a single chunk. Longer documents
// get a window every 206 words, each up to 256 words long, so consecutive
// chunks share 50 words of context.
package chunker
