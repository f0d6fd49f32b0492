// Package ollama holds the model-client handles: one HTTP client per
// configured role plus the registry that owns their lifecycle.
package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is the handle for one role's model. Created once at process start
// and reused across requests; callers borrow it from the Registry.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

func New(baseURL, model string, temperature float64) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		// No deadline on the shared client: streamed generations run for as
		// long as the model keeps producing. Non-stream calls set their own.
		httpClient: &http.Client{},
	}
}

func (c *Client) Model() string { return c.model }

// GenerateStream drives one blocking token-by-token generation, invoking
// yield per produced token until exhaustion or until yield returns false.
// It owns the response body for the whole read; run it from a dedicated
// goroutine (the streaming bridge does).
func (c *Client) GenerateStream(ctx context.Context, prompt string, yield func(token string) bool) error {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": true,
		"options": map[string]any{
			"temperature": c.temperature,
		},
	}
	resp, err := c.send(ctx, http.MethodPost, "/api/generate", reqBody, "generate")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama stream error: %s", chunk.Error)
		}
		if chunk.Done {
			return nil
		}
		if !yield(chunk.Response) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// Generate returns the whole response in one call. Used by the namer and
// analyzer roles where streaming buys nothing.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.temperature,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.callJSON(ctx, http.MethodPost, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Version checks server reachability at startup.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var response struct {
		Version string `json:"version"`
	}
	if err := c.callJSON(ctx, http.MethodGet, "/api/version", nil, &response, "version"); err != nil {
		return "", err
	}
	return response.Version, nil
}

// Pull asks the server to download the role's model if absent. The server
// streams progress lines; they are drained and discarded.
func (c *Client) Pull(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/api/pull", map[string]any{"model": c.model}, "pull")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err == nil && line.Error != "" {
			return fmt.Errorf("ollama pull error: %s", line.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read pull stream: %w", err)
	}
	return nil
}
