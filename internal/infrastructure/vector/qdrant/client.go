// Package qdrant is an HTTP client for the qdrant vector store, covering the
// two operations the pipeline needs: batched upsert and hybrid search.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  map[string]int
}

func New(baseURL string) *Client {
	return NewWithExecutor(baseURL, nil)
}

func NewWithExecutor(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
		ensured:    make(map[string]int),
	}
}

// Upsert inserts all chunks into the collection in one batched request. Units
// are never mutated afterwards; the payload carries the chunk text and source.
func (c *Client) Upsert(ctx context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			// Deterministic per (source, window): re-indexing the same
			// document overwrites its points instead of duplicating them.
			ID: pointID(chunk.SourceID, chunk.SequenceIndex),
			Vector: map[string]any{
				"dense":  vectors[i],
				"sparse": encodeSparseChunk(chunk.Text, chunk.SourceID),
			},
			Payload: map[string]any{
				"text":           chunk.Text,
				"source_id":      chunk.SourceID,
				"sequence_index": chunk.SequenceIndex,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, collection)
	var response json.RawMessage
	if err := c.sendJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, &response, "upsert"); err != nil {
		return err
	}
	return nil
}

// HybridSearch issues the dense and sparse queries as a single batched
// round-trip and blends the two result lists client-side:
// score = alpha*dense + (1-alpha)*sparse over min-max normalized scores.
func (c *Client) HybridSearch(
	ctx context.Context,
	collection, query string,
	queryVector []float32,
	topK int,
	alpha float64,
) ([]domain.RetrievalCandidate, error) {
	if topK <= 0 {
		topK = 5
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	// Fetch more than topK per branch so the blend has material to reorder.
	branchLimit := topK * 3

	searches := []map[string]any{
		{
			"query":        queryVector,
			"using":        "dense",
			"limit":        branchLimit,
			"with_payload": true,
		},
		{
			"query":        encodeSparseQuery(query),
			"using":        "sparse",
			"limit":        branchLimit,
			"with_payload": true,
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points/query/batch", c.baseURL, collection)
	var response struct {
		Result []struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, url, map[string]any{"searches": searches}, &response, "hybrid search"); err != nil {
		return nil, err
	}
	if len(response.Result) != 2 {
		return nil, fmt.Errorf("unexpected batch result count: %d", len(response.Result))
	}

	blended := blendScores(response.Result[0].Points, response.Result[1].Points, alpha)
	if len(blended) > topK {
		blended = blended[:topK]
	}
	return blended, nil
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func blendScores(dense, sparse []scoredPoint, alpha float64) []domain.RetrievalCandidate {
	type partial struct {
		candidate domain.RetrievalCandidate
		dense     float64
		sparse    float64
	}

	acc := make(map[string]*partial, len(dense)+len(sparse))
	collect := func(points []scoredPoint, assign func(*partial, float64)) {
		norm := minMaxNormalizer(points)
		for _, p := range points {
			id := fmt.Sprintf("%v", p.ID)
			entry, ok := acc[id]
			if !ok {
				entry = &partial{candidate: domain.RetrievalCandidate{
					ID:      id,
					Context: stringPayload(p.Payload, "text"),
				}}
				acc[id] = entry
			}
			if entry.candidate.Context == "" {
				entry.candidate.Context = stringPayload(p.Payload, "text")
			}
			assign(entry, norm(p.Score))
		}
	}
	collect(dense, func(e *partial, s float64) { e.dense = s })
	collect(sparse, func(e *partial, s float64) { e.sparse = s })

	out := make([]domain.RetrievalCandidate, 0, len(acc))
	for _, entry := range acc {
		entry.candidate.Score = alpha*entry.dense + (1-alpha)*entry.sparse
		out = append(out, entry.candidate)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func minMaxNormalizer(points []scoredPoint) func(float64) float64 {
	if len(points) == 0 {
		return func(float64) float64 { return 0 }
	}
	min, max := points[0].Score, points[0].Score
	for _, p := range points[1:] {
		if p.Score < min {
			min = p.Score
		}
		if p.Score > max {
			max = p.Score
		}
	}
	span := max - min
	return func(v float64) float64 {
		if span <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - min) / span
	}
}

func (c *Client) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"dense": map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			"sparse": map[string]any{},
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 409 means another process created it first.
	if resp.StatusCode == http.StatusConflict {
		c.markEnsured(collection, vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.StatusError{
			Service:    "qdrant",
			Operation:  "ensure collection",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	c.markEnsured(collection, vectorSize)
	return nil
}

func (c *Client) markEnsured(collection string, vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured[collection] = vectorSize
}

func pointID(sourceID string, sequenceIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", sourceID, sequenceIndex))).String()
}

func (c *Client) sendJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	attempt := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &resilience.StatusError{
				Service:    "qdrant",
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(raw),
			}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor == nil {
		return attempt(ctx)
	}
	return c.executor.Execute(ctx, "qdrant."+operation, attempt, resilience.ClassifyHTTPError)
}

func stringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
