package search

import "testing"

func TestFuseRRF_ExactScore(t *testing.T) {
	const k = 60
	lexical := []RankedResult{{ChunkID: "a"}, {ChunkID: "b"}}
	vector := []RankedResult{{ChunkID: "b"}, {ChunkID: "c"}}

	fused := FuseRRF(lexical, vector, k)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(fused))
	}

	scores := make(map[string]float64, len(fused))
	for _, r := range fused {
		scores[r.ChunkID] = r.FusedScore
	}

	wantB := 1.0/float64(k+2) + 1.0/float64(k+1)
	if got := scores["b"]; got != wantB {
		t.Fatalf("chunk b: want %.10f, got %.10f", wantB, got)
	}
	wantA := 1.0 / float64(k+1)
	if got := scores["a"]; got != wantA {
		t.Fatalf("chunk a: want %.10f, got %.10f", wantA, got)
	}
	wantC := 1.0 / float64(k+2)
	if got := scores["c"]; got != wantC {
		t.Fatalf("chunk c: want %.10f, got %.10f", wantC, got)
	}

	if fused[0].ChunkID != "b" {
		t.Fatalf("expected chunk b (present in both branches) to rank first, got %s", fused[0].ChunkID)
	}
}

func TestFuseRRF_FourChunkOrdering(t *testing.T) {
	const k = 60
	lexical := []RankedResult{{ChunkID: "c1"}, {ChunkID: "c2"}, {ChunkID: "c3"}}
	vector := []RankedResult{{ChunkID: "c2"}, {ChunkID: "c4"}, {ChunkID: "c1"}}

	fused := FuseRRF(lexical, vector, k)

	want := map[string]float64{
		"c1": 1.0/61 + 1.0/63,
		"c2": 1.0/float64(k+2) + 1.0/float64(k+1),
		"c3": 1.0 / 63,
		"c4": 1.0 / 62,
	}
	for _, r := range fused {
		if got := r.FusedScore; got != want[r.ChunkID] {
			t.Errorf("%s: score %.10f, want %.10f", r.ChunkID, got, want[r.ChunkID])
		}
	}

	wantOrder := []string{"c2", "c1", "c4", "c3"}
	for i, id := range wantOrder {
		if fused[i].ChunkID != id {
			t.Fatalf("rank %d = %s, want %s (full order %v)", i+1, fused[i].ChunkID, id, fused)
		}
	}
}

func TestFuseRRF_Deterministic(t *testing.T) {
	lexical := []RankedResult{{ChunkID: "x"}, {ChunkID: "y"}}
	vector := []RankedResult{{ChunkID: "y"}, {ChunkID: "x"}}

	first := FuseRRF(lexical, vector, 60)
	second := FuseRRF(lexical, vector, 60)

	if len(first) != len(second) {
		t.Fatalf("non-deterministic result count")
	}
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID || first[i].FusedScore != second[i].FusedScore {
			t.Fatalf("non-deterministic fusion at index %d", i)
		}
	}
}

func TestDedupe_KeepsMaxScore(t *testing.T) {
	results := []FusedResult{
		{RankedResult: RankedResult{ChunkID: "a"}, FusedScore: 0.1},
		{RankedResult: RankedResult{ChunkID: "a"}, FusedScore: 0.9},
		{RankedResult: RankedResult{ChunkID: "b"}, FusedScore: 0.5},
	}

	deduped := Dedupe(results)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 unique chunks, got %d", len(deduped))
	}
	if deduped[0].ChunkID != "a" || deduped[0].FusedScore != 0.9 {
		t.Fatalf("expected chunk a at its max score 0.9 first, got %+v", deduped[0])
	}
}
