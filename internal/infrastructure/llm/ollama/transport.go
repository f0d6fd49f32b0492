package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// send issues one request against the model server and verifies the status.
// The caller owns the returned body.
func (c *Client) send(ctx context.Context, method, path string, payload any, operation string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama %s request: %w", operation, err)
	}
	if resp.StatusCode >= 300 {
		err := statusError(operation, resp)
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// callJSON is send plus a one-shot JSON decode of the response body.
func (c *Client) callJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	resp, err := c.send(ctx, method, path, payload, operation)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Errorf("ollama %s status: %s: %s", operation, resp.Status, msg)
	}
	return fmt.Errorf("ollama %s status: %s", operation, resp.Status)
}
