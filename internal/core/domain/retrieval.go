package domain

// Chunk is one token-bounded window of a source document. Chunks are immutable
// once produced; the indexer attaches the embedding and identifier.
type Chunk struct {
	Text          string `json:"text"`
	SourceID      string `json:"source_id"`
	SequenceIndex int    `json:"sequence_index"`
}

// RetrievalCandidate is one hybrid-search hit. Ownership of a candidate set
// transfers from the retriever to the reranker, which overwrites Score.
type RetrievalCandidate struct {
	ID      string  `json:"id"`
	Context string  `json:"context"`
	Score   float64 `json:"score"`
}

// RerankedResult is a candidate that survived cross-encoder filtering,
// carrying the cross-encoder score instead of the blended retrieval score.
type RerankedResult struct {
	Context string  `json:"context"`
	Score   float64 `json:"score"`
}

type SearchRequest struct {
	Query      string  `json:"query"`
	TopK       int     `json:"top_k"`
	Collection string  `json:"collection_name"`
	Alpha      float64 `json:"hybrid_alpha"`
}
