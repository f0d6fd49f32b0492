// Package tei talks to a HuggingFace text-embeddings-inference server, which
// serves the embedding model, its tokenizer and the cross-encoder reranker
// behind one HTTP surface.
package tei

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onurdev/diagnosys/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor

	infoMu    sync.Mutex
	maxLength int
}

func New(baseURL string) *Client {
	return NewWithExecutor(baseURL, nil)
}

// NewWithExecutor routes every call through the resilience executor; embed
// and rerank sit on the synchronous answer path, so transient server errors
// get retried instead of failing the request.
func NewWithExecutor(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

// Embed computes one vector per input text in a single batched call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"inputs":   texts,
		"truncate": true,
	}
	var response [][]float32
	if err := c.postJSON(ctx, "/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d vectors for %d inputs", len(response), len(texts))
	}
	return response, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Score runs the cross-encoder over every (query, passage) pair in one
// batched forward pass and returns scores in passage order.
func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"query":    query,
		"texts":    passages,
		"truncate": true,
	}
	var response []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	if err := c.postJSON(ctx, "/rerank", request, &response, "rerank"); err != nil {
		return nil, err
	}
	if len(response) != len(passages) {
		return nil, fmt.Errorf("rerank score count mismatch: %d scores for %d passages", len(response), len(passages))
	}

	// The server may return results ordered by score; restore input order.
	sort.SliceStable(response, func(i, j int) bool { return response[i].Index < response[j].Index })
	out := make([]float64, len(response))
	for i, r := range response {
		out[i] = r.Score
	}
	return out, nil
}

// Tokenize returns the non-special token IDs the embedding model would see.
func (c *Client) Tokenize(ctx context.Context, text string) ([]uint32, error) {
	request := map[string]any{
		"inputs": text,
	}
	var response [][]struct {
		ID      uint32 `json:"id"`
		Special bool   `json:"special"`
	}
	if err := c.postJSON(ctx, "/tokenize", request, &response, "tokenize"); err != nil {
		return nil, err
	}
	if len(response) == 0 {
		return nil, nil
	}

	out := make([]uint32, 0, len(response[0]))
	for _, token := range response[0] {
		if token.Special {
			continue
		}
		out = append(out, token.ID)
	}
	return out, nil
}

func (c *Client) Decode(ctx context.Context, tokenIDs []uint32) (string, error) {
	if len(tokenIDs) == 0 {
		return "", nil
	}

	request := map[string]any{
		"ids":                 tokenIDs,
		"skip_special_tokens": true,
	}
	var response []string
	if err := c.postJSON(ctx, "/decode", request, &response, "decode"); err != nil {
		return "", err
	}
	if len(response) == 0 {
		return "", fmt.Errorf("empty decode result")
	}
	return response[0], nil
}

// MaxSequenceLength reports the model's declared max input length, fetched
// once from /info. Zero means the server never answered; the chunker treats
// that as "no clamp".
func (c *Client) MaxSequenceLength() int {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()
	if c.maxLength > 0 {
		return c.maxLength
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var response struct {
		MaxInputLength int `json:"max_input_length"`
	}
	if err := c.getJSON(ctx, "/info", &response, "info"); err != nil {
		return 0
	}
	c.maxLength = response.MaxInputLength
	return c.maxLength
}
