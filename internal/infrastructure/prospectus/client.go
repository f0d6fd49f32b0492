// Package prospectus talks to the drug prospectus lookup service.
package prospectus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type fetchRequest struct {
	Drugs []string `json:"drugs"`
}

type fetchResponse struct {
	Prospectuses map[string]string `json:"prospectuses"`
}

// Fetch resolves drug names to prospectus texts. Names the service does not
// know come back absent from the map rather than as an error; the caller
// decides whether a partial result is usable.
func (c *Client) Fetch(ctx context.Context, drugNames []string) (map[string]string, error) {
	if len(drugNames) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch prospectus", fmt.Errorf("no drug names given"))
	}

	body, err := json.Marshal(fetchRequest{Drugs: drugNames})
	if err != nil {
		return nil, fmt.Errorf("marshal prospectus request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/prospectus", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create prospectus request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prospectus lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, formatProspectusHTTPError(resp)
	}

	var parsed fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode prospectus response: %w", err)
	}
	return parsed.Prospectuses, nil
}

func formatProspectusHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("prospectus lookup status: %s", resp.Status)
	}
	return fmt.Errorf("prospectus lookup status: %s: %s", resp.Status, msg)
}
