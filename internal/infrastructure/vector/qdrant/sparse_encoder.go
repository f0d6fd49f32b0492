package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// sparseVector is qdrant's wire form for lexical vectors: hashed term indices
// with BM25-saturated weights.
type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	bm25K          = 1.2
	sourceBoost    = 1.5
	maxSparseTerms = 256
)

func encodeSparseChunk(text, sourceID string) sparseVector {
	tf := make(map[uint32]float64, 64)
	accumulate(tf, text, 1.0)
	accumulate(tf, sourceID, sourceBoost)
	return toSparse(tf)
}

func encodeSparseQuery(query string) sparseVector {
	tf := make(map[uint32]float64, 32)
	accumulate(tf, query, 1.0)
	return toSparse(tf)
}

func accumulate(tf map[uint32]float64, text string, weight float64) {
	for _, token := range lowerAlphaNumTokens(text) {
		tf[hashToken(token)] += weight
	}
}

func toSparse(tf map[uint32]float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}

	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		freq := tf[idx]
		weight := (freq * (bm25K + 1.0)) / (freq + bm25K)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

func lowerAlphaNumTokens(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
