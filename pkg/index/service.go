// Package index builds the vector index over a set of documents and answers
// questions against it.
package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/xhad/docbot/internal/models"
	"github.com/xhad/docbot/internal/types"
	"github.com/xhad/docbot/pkg/llm"
)

// DefaultNumDocuments is how many documents are stuffed into the prompt.
const DefaultNumDocuments = 4

var (
	ErrNotBuilt = errors.New("index has not been built")
	ErrEmpty    = errors.New("no documents to index")
)

// StoreFactory returns the vector store a build writes into. Each call must
// return a store that no other build reads or writes.
type StoreFactory func(ctx context.Context) (vectorstores.VectorStore, error)

// dropper is implemented by stores whose rows outlive the process.
type dropper interface {
	Drop(ctx context.Context) error
}

type ServiceConfig struct {
	NumDocuments int
}

// Service is Unbuilt until the first successful Build. A failed Build leaves
// the previous index in place.
type Service struct {
	config   ServiceConfig
	newStore StoreFactory
	chat     *llm.ChatEngine

	mu        sync.RWMutex
	store     vectorstores.VectorStore
	chain     chains.Chain
	documents int
}

func NewWithConfig(config ServiceConfig, newStore StoreFactory, chat *llm.ChatEngine) (*Service, error) {
	if newStore == nil {
		return nil, fmt.Errorf("store factory is required")
	}
	if chat == nil {
		return nil, fmt.Errorf("chat engine is required")
	}
	if config.NumDocuments <= 0 {
		config.NumDocuments = DefaultNumDocuments
	}

	return &Service{
		config:   config,
		newStore: newStore,
		chat:     chat,
	}, nil
}

// Build indexes docs into a fresh store and publishes it.
func (s *Service) Build(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return types.NewFault(types.IndexFault, "build index", ErrEmpty)
	}

	vs, err := s.newStore(ctx)
	if err != nil {
		return types.NewFault(types.IndexFault, "open store", err)
	}

	if _, err := vs.AddDocuments(ctx, toSchema(docs)); err != nil {
		drop(ctx, vs)
		return types.NewFault(types.IndexFault, "build index", err)
	}

	chain := s.chat.Chain(vectorstores.ToRetriever(vs, s.config.NumDocuments))

	s.mu.Lock()
	previous := s.store
	s.store = vs
	s.chain = chain
	s.documents = len(docs)
	s.mu.Unlock()

	if previous != nil {
		drop(ctx, previous)
	}
	return nil
}

// Close drops the published index. The service is Unbuilt afterwards.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	vs := s.store
	s.store = nil
	s.chain = nil
	s.documents = 0
	s.mu.Unlock()

	if d, ok := vs.(dropper); ok {
		return d.Drop(ctx)
	}
	return nil
}

func drop(ctx context.Context, vs vectorstores.VectorStore) {
	d, ok := vs.(dropper)
	if !ok {
		return
	}
	if err := d.Drop(ctx); err != nil {
		log.Printf("Failed to drop index: %v", err)
	}
}

// Answer returns the raw completion for question.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	s.mu.RLock()
	chain := s.chain
	s.mu.RUnlock()

	if chain == nil {
		return "", types.NewFault(types.QueryFault, "answer", ErrNotBuilt)
	}

	answer, err := s.chat.Answer(ctx, chain, question)
	if err != nil {
		return "", types.NewFault(types.QueryFault, "answer", err)
	}
	return answer, nil
}

func (s *Service) Built() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chain != nil
}

// Documents returns the size of the published index.
func (s *Service) Documents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents
}

func toSchema(docs []models.Document) []schema.Document {
	out := make([]schema.Document, len(docs))
	for i, doc := range docs {
		metadata := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		if _, ok := metadata["source"]; !ok {
			metadata["source"] = doc.Source
		}
		out[i] = schema.Document{
			PageContent: doc.Content,
			Metadata:    metadata,
		}
	}
	return out
}
