package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

var (
	ErrNoEmbedder       = errors.New("no embedder configured")
	ErrEmbeddingCount   = errors.New("number of embeddings does not match number of documents")
	ErrInvalidNumResult = errors.New("number of documents must be positive")
)

type entry struct {
	id     string
	doc    schema.Document
	vector []float32
}

// MemoryStore is an in-process flat index. Search is exhaustive: every query
// is compared with every stored vector.
type MemoryStore struct {
	embedder embeddings.Embedder

	mu      sync.RWMutex
	entries []entry
}

var _ vectorstores.VectorStore = (*MemoryStore)(nil)

func NewMemoryStore(embedder embeddings.Embedder) (*MemoryStore, error) {
	if embedder == nil {
		return nil, ErrNoEmbedder
	}
	return &MemoryStore{embedder: embedder}, nil
}

// AddDocuments embeds the page content of docs and stores the vectors.
func (s *MemoryStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := s.getOptions(options...)
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}

	vectors, err := opts.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, ErrEmbeddingCount
	}

	ids := make([]string, len(docs))
	added := make([]entry, len(docs))
	for i, doc := range docs {
		ids[i] = uuid.NewString()
		added[i] = entry{id: ids[i], doc: doc, vector: vectors[i]}
	}

	s.mu.Lock()
	s.entries = append(s.entries, added...)
	s.mu.Unlock()

	return ids, nil
}

// SimilaritySearch returns the numDocuments nearest documents by euclidean
// distance. Score carries the cosine similarity to the query.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, ErrInvalidNumResult
	}
	opts := s.getOptions(options...)

	qv, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	type hit struct {
		doc      schema.Document
		distance float64
	}

	s.mu.RLock()
	hits := make([]hit, 0, len(s.entries))
	for _, e := range s.entries {
		score := cosine(qv, e.vector)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		doc := e.doc
		doc.Score = score
		hits = append(hits, hit{doc: doc, distance: l2(qv, e.vector)})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].distance < hits[j].distance
	})
	if len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}

	docs := make([]schema.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.doc
	}
	return docs, nil
}

// Len reports how many vectors are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) getOptions(options ...vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Embedder == nil {
		opts.Embedder = s.embedder
	}
	return opts
}

func l2(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
