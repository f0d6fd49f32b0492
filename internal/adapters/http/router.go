package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
	"github.com/onurdev/diagnosys/internal/core/usecase"
	"github.com/onurdev/diagnosys/internal/observability/metrics"
)

type Config struct {
	Service           string
	DefaultCollection string
	DefaultTopK       int
	DefaultAlpha      float64
	RateLimitRPS      float64
	RateLimitBurst    int
	MaxInFlight       int
	AcquireTimeout    time.Duration
}

type Router struct {
	chat     ports.ChatService
	search   ports.SearchService
	analyze  ports.AnalyzeService
	ingest   ports.DocumentIngestor
	repo     ports.DocumentRepository
	profiles ports.ProfileStore
	metrics  *metrics.HTTPServerMetrics
	cfg      Config
}

func NewRouter(
	chat ports.ChatService,
	search ports.SearchService,
	analyze ports.AnalyzeService,
	ingest ports.DocumentIngestor,
	repo ports.DocumentRepository,
	profiles ports.ProfileStore,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg Config,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = usecase.DefaultTopK
	}
	if cfg.DefaultAlpha <= 0 || cfg.DefaultAlpha > 1 {
		cfg.DefaultAlpha = usecase.DefaultHybridAlpha
	}
	return &Router{
		chat:     chat,
		search:   search,
		analyze:  analyze,
		ingest:   ingest,
		repo:     repo,
		profiles: profiles,
		metrics:  serverMetrics,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/chat/answer", rt.answerChat)
	mux.HandleFunc("/v1/chat/name", rt.nameChat)
	mux.HandleFunc("/v1/rag/search", rt.searchRAG)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/drug/interaction", rt.analyzeInteractions)
	mux.HandleFunc("/v1/profile/", rt.profile)

	// Traffic control guards the API surface only; probes and scrapes bypass.
	guarded := backpressureMiddleware(mux, rt.cfg.MaxInFlight, rt.cfg.AcquireTimeout)
	guarded = rateLimitMiddleware(guarded, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			guarded.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type messageDTO struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

func parseMessages(dtos []messageDTO) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(dtos))
	for _, dto := range dtos {
		msg, err := domain.NewMessage(dto.ID, dto.Content, dto.Sender, dto.Timestamp)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (rt *Router) answerChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		UserID     string       `json:"user_id"`
		Collection string       `json:"collection_name"`
		Messages   []messageDTO `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	messages, err := parseMessages(req.Messages)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	stream, err := rt.chat.Answer(r.Context(), req.UserID, messages, req.Collection)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	tokens := 0
	failed := false
	for {
		token, err := stream.Next(r.Context())
		if err == io.EOF {
			break
		}
		if err != nil {
			// Tokens already delivered stay delivered; the failure rides
			// in-band as the final line.
			fmt.Fprintf(w, "\nError: %s\n", err.Error())
			failed = true
			break
		}
		_, _ = io.WriteString(w, token)
		tokens++
		if flusher != nil {
			flusher.Flush()
		}
	}
	if !failed {
		_, _ = io.WriteString(w, "\n")
	}
	if flusher != nil {
		flusher.Flush()
	}

	if rt.metrics != nil {
		rt.metrics.RecordStream(rt.cfg.Service, domain.RoleChat, tokens, stream.Truncated(), failed)
	}
}

func (rt *Router) nameChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Chat     domain.ChatInfo `json:"chat"`
		Messages []messageDTO    `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	messages, err := parseMessages(req.Messages)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	name, err := rt.chat.Name(r.Context(), req.Chat, messages)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (rt *Router) searchRAG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query      string   `json:"query"`
		Collection string   `json:"collection_name"`
		TopK       int      `json:"top_k"`
		Alpha      *float64 `json:"hybrid_alpha"`
		Rerank     bool     `json:"rerank"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	searchReq := domain.SearchRequest{
		Query:      req.Query,
		Collection: req.Collection,
		TopK:       req.TopK,
		Alpha:      rt.cfg.DefaultAlpha,
	}
	if req.Alpha != nil {
		searchReq.Alpha = *req.Alpha
	}
	if searchReq.Collection == "" {
		searchReq.Collection = rt.cfg.DefaultCollection
	}
	if searchReq.TopK <= 0 {
		searchReq.TopK = rt.cfg.DefaultTopK
	}

	start := time.Now()
	if req.Rerank {
		results, err := rt.search.SearchReranked(r.Context(), searchReq)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordRAGObservation(rt.cfg.Service, "/v1/rag/search", len(results), len(results), time.Since(start))
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	candidates, err := rt.search.Search(r.Context(), searchReq)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(rt.cfg.Service, "/v1/rag/search", len(candidates), len(candidates), time.Since(start))
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	collection := r.FormValue("collection_name")
	if collection == "" {
		collection = rt.cfg.DefaultCollection
	}

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		collection,
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) analyzeInteractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		UserID string   `json:"user_id"`
		Drugs  []string `json:"drugs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	analysis, err := rt.analyze.AnalyzeInteractions(r.Context(), req.UserID, req.Drugs)
	if rt.metrics != nil {
		rt.metrics.RecordInteractionAnalysis(rt.cfg.Service, err)
	}
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

func (rt *Router) profile(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/v1/profile/")
	if userID == "" || strings.Contains(userID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := rt.profiles.Get(r.Context(), userID)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPut:
		var req struct {
			Allergies []string `json:"allergies"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		profile := &domain.Profile{
			UserID:    userID,
			Allergies: req.Allergies,
			UpdatedAt: time.Now().UTC(),
		}
		if err := rt.profiles.Upsert(r.Context(), profile); err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
