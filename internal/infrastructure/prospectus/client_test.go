package prospectus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

func TestFetchReturnsKnownProspectuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/prospectus" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Drugs []string `json:"drugs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Drugs) != 2 {
			t.Errorf("expected 2 drugs, got %v", req.Drugs)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"prospectuses": map[string]string{
				"aspirin": "acetylsalicylic acid prospectus",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	got, err := client.Fetch(context.Background(), []string{"aspirin", "unknowndrug"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 1 || got["aspirin"] == "" {
		t.Fatalf("unexpected prospectuses: %v", got)
	}
	if _, ok := got["unknowndrug"]; ok {
		t.Fatalf("expected unknown drug to be absent, got %v", got)
	}
}

func TestFetchRejectsEmptyInput(t *testing.T) {
	client := New("http://localhost:1")
	_, err := client.Fetch(context.Background(), nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFetchErrorIncludesStatusBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream registry down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Fetch(context.Background(), []string{"aspirin"})
	if err == nil || !strings.Contains(err.Error(), "upstream registry down") {
		t.Fatalf("expected status body in error, got %v", err)
	}
}
