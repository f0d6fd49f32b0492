package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

type fakeChunker struct {
	chunks []domain.Chunk
	err    error
}

func (f *fakeChunker) Split(_ context.Context, _, _ string) ([]domain.Chunk, error) {
	return f.chunks, f.err
}

type fakeEmbedder struct {
	vectors    [][]float32
	queryVec   []float32
	embedErr   error
	queryErr   error
	embedCalls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryVec != nil {
		return f.queryVec, nil
	}
	return []float32{0.1, 0.2}, nil
}

type upsertCall struct {
	collection string
	chunks     []domain.Chunk
	vectors    [][]float32
}

type fakeVectorStore struct {
	upserts    []upsertCall
	upsertErr  error
	candidates []domain.RetrievalCandidate
	searchErr  error
	gotTopK    int
	gotAlpha   float64
}

func (f *fakeVectorStore) Upsert(_ context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{collection: collection, chunks: chunks, vectors: vectors})
	return nil
}

func (f *fakeVectorStore) HybridSearch(_ context.Context, _, _ string, _ []float32, topK int, alpha float64) ([]domain.RetrievalCandidate, error) {
	f.gotTopK = topK
	f.gotAlpha = alpha
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.candidates, nil
}

type fakeReranker struct {
	scores      []float64
	err         error
	gotQuery    string
	gotPassages []string
}

func (f *fakeReranker) Score(_ context.Context, query string, passages []string) ([]float64, error) {
	f.gotQuery = query
	f.gotPassages = passages
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type fakeModelClient struct {
	model      string
	tokens     []string
	streamErr  error
	generated  string
	genErr     error
	gotPrompts []string
}

func (f *fakeModelClient) GenerateStream(_ context.Context, prompt string, yield func(string) bool) error {
	f.gotPrompts = append(f.gotPrompts, prompt)
	for _, token := range f.tokens {
		if !yield(token) {
			return nil
		}
	}
	return f.streamErr
}

func (f *fakeModelClient) Generate(_ context.Context, prompt string) (string, error) {
	f.gotPrompts = append(f.gotPrompts, prompt)
	return f.generated, f.genErr
}

func (f *fakeModelClient) Model() string {
	return f.model
}

type fakeRegistry struct {
	clients map[string]*fakeModelClient
}

func (f *fakeRegistry) Get(role string) (ports.ModelClient, error) {
	client, ok := f.clients[role]
	if !ok {
		return nil, domain.WrapError(domain.ErrClientNotFound, "registry get", fmt.Errorf("role %q", role))
	}
	return client, nil
}

func (f *fakeRegistry) Roles() []string {
	out := make([]string, 0, len(f.clients))
	for role := range f.clients {
		out = append(out, role)
	}
	return out
}

type fakeSearchService struct {
	candidates []domain.RetrievalCandidate
	results    []domain.RerankedResult
	err        error
	gotReq     domain.SearchRequest
}

func (f *fakeSearchService) Search(_ context.Context, req domain.SearchRequest) ([]domain.RetrievalCandidate, error) {
	f.gotReq = req
	return f.candidates, f.err
}

func (f *fakeSearchService) SearchReranked(_ context.Context, req domain.SearchRequest) ([]domain.RerankedResult, error) {
	f.gotReq = req
	return f.results, f.err
}

type fakeProfileStore struct {
	profile *domain.Profile
	err     error
}

func (f *fakeProfileStore) Get(_ context.Context, _ string) (*domain.Profile, error) {
	return f.profile, f.err
}

func (f *fakeProfileStore) Upsert(_ context.Context, _ *domain.Profile) error {
	return nil
}

type fakeFetcher struct {
	texts    map[string]string
	err      error
	gotDrugs []string
}

func (f *fakeFetcher) Fetch(_ context.Context, drugNames []string) (map[string]string, error) {
	f.gotDrugs = drugNames
	return f.texts, f.err
}

type statusChange struct {
	status domain.DocumentStatus
	errMsg string
}

type fakeDocumentRepo struct {
	doc           *domain.Document
	getErr        error
	created       []*domain.Document
	statusChanges []statusChange
	chunkCounts   []int
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *domain.Document) error {
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeDocumentRepo) GetByID(_ context.Context, _ string) (*domain.Document, error) {
	return f.doc, f.getErr
}

func (f *fakeDocumentRepo) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMsg string) error {
	f.statusChanges = append(f.statusChanges, statusChange{status: status, errMsg: errMsg})
	return nil
}

func (f *fakeDocumentRepo) SetChunkCount(_ context.Context, _ string, count int) error {
	f.chunkCounts = append(f.chunkCounts, count)
	return nil
}

type fakeObjectStorage struct {
	saved map[string][]byte
	err   error
}

func (f *fakeObjectStorage) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = raw
	return nil
}

func (f *fakeObjectStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not stored: %s", key)
}

type fakeQueue struct {
	published []string
	err       error
}

func (f *fakeQueue) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *fakeQueue) SubscribeDocumentUploaded(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ *domain.Document) (string, error) {
	return f.text, f.err
}

type fakeIndexer struct {
	count         int
	err           error
	gotContent    string
	gotSourceID   string
	gotCollection string
}

func (f *fakeIndexer) Index(_ context.Context, content, sourceID, collection string) (int, error) {
	f.gotContent = content
	f.gotSourceID = sourceID
	f.gotCollection = collection
	return f.count, f.err
}
