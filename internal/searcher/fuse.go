package searcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/semcache/internal/index"
	"github.com/dshills/semcache/pkg/types"
)

// semanticNoteThreshold is the vector score above which the explanation
// mentions semantic similarity
const semanticNoteThreshold = 0.5

// fuse merges the vector and lexical candidate scores into ranked results.
// A chunk missing from one side scores 0 on that side.
func fuse(corpus *Corpus, query string, alpha float64, vector, lexical map[int]float64) []types.RankedResult {
	ids := make([]int, 0, len(vector)+len(lexical))
	for id := range vector {
		ids = append(ids, id)
	}
	for id := range lexical {
		if _, ok := vector[id]; !ok {
			ids = append(ids, id)
		}
	}

	queryTerms := termSet(index.Tokenize(query))

	results := make([]types.RankedResult, 0, len(ids))
	for _, id := range ids {
		chunk := corpus.Chunks[id]
		v := vector[id]
		l := lexical[id]

		matched, overlap := keywordOverlap(queryTerms, chunk.Content)
		results = append(results, types.RankedResult{
			ChunkID:        chunk.ID,
			SourceFilename: chunk.SourceFilename,
			Content:        chunk.Content,
			FusedScore:     alpha*v + (1-alpha)*l,
			VectorScore:    v,
			LexicalScore:   l,
			OverlapScore:   overlap,
			MatchedTerms:   matched,
			Explanation:    explain(overlap, matched, v),
		})
	}

	sortResults(results)
	return results
}

// sortResults orders by fused score descending, then chunk ID ascending
func sortResults(results []types.RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

func termSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// keywordOverlap returns the sorted query terms present in content and the
// fraction of distinct query terms they represent
func keywordOverlap(queryTerms map[string]struct{}, content string) ([]string, float64) {
	matched := []string{}
	if len(queryTerms) == 0 {
		return matched, 0
	}

	docTerms := termSet(index.Tokenize(content))
	for term := range queryTerms {
		if _, ok := docTerms[term]; ok {
			matched = append(matched, term)
		}
	}
	sort.Strings(matched)

	return matched, float64(len(matched)) / float64(len(queryTerms))
}

func explain(overlap float64, matched []string, vectorScore float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Matched with %.0f%% keyword overlap (%s).", overlap*100, strings.Join(matched, ", "))
	if vectorScore > semanticNoteThreshold {
		fmt.Fprintf(&b, " High semantic similarity (%.2f).", vectorScore)
	}
	return b.String()
}
