package search

import "sort"

// FuseRRF combines two independently ranked result lists (lexical,
// vector) with Reciprocal Rank Fusion: each chunk appearing at 1-indexed
// rank r in either list contributes 1/(k+r); contributions sum across
// both lists. Ties are broken by lexical rank first, then by chunk_id
// for total determinism.
func FuseRRF(lexical, vector []RankedResult, k int) []FusedResult {
	byChunk := make(map[string]*FusedResult)
	order := make([]string, 0, len(lexical)+len(vector))

	addRank := func(r RankedResult, rank int, isLex bool) {
		fr, ok := byChunk[r.ChunkID]
		if !ok {
			fr = &FusedResult{RankedResult: r}
			byChunk[r.ChunkID] = fr
			order = append(order, r.ChunkID)
		}
		fr.FusedScore += 1.0 / float64(k+rank)
		if isLex {
			fr.LexRank = rank
		} else {
			fr.VecRank = rank
		}
	}

	for i, r := range lexical {
		addRank(r, i+1, true)
	}
	for i, r := range vector {
		addRank(r, i+1, false)
	}

	out := make([]FusedResult, 0, len(order))
	for _, id := range order {
		out = append(out, *byChunk[id])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		li, lj := out[i].LexRank, out[j].LexRank
		if li == 0 {
			li = int(^uint(0) >> 1)
		}
		if lj == 0 {
			lj = int(^uint(0) >> 1)
		}
		if li != lj {
			return li < lj
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	return out
}

// Dedupe keys fused results on chunk_id, keeping the maximum fused
// score for any duplicate. FuseRRF already produces at most one entry
// per chunk_id, so this is a defensive pass for callers that merge
// multiple FuseRRF calls (e.g. across paginated upstream fetches).
func Dedupe(results []FusedResult) []FusedResult {
	best := make(map[string]FusedResult, len(results))
	order := make([]string, 0, len(results))
	for _, r := range results {
		existing, ok := best[r.ChunkID]
		if !ok {
			order = append(order, r.ChunkID)
			best[r.ChunkID] = r
			continue
		}
		if r.FusedScore > existing.FusedScore {
			best[r.ChunkID] = r
		}
	}

	out := make([]FusedResult, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FusedScore > out[j].FusedScore })
	return out
}
