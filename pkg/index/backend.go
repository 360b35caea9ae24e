package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/xhad/docbot/pkg/config"
	"github.com/xhad/docbot/pkg/store"
)

const (
	BackendMemory   = "memory"
	BackendPgvector = "pgvector"
)

// NewStoreFactory returns the factory for the configured backend and a
// function releasing whatever it opened.
//
// Every call yields a store no other build can see. The memory backend hands
// out a new store; the pgvector backend connects once on first use and then
// hands out a fresh collection of the shared table.
func NewStoreFactory(cfg *config.Config, embedder embeddings.Embedder) (StoreFactory, func(), error) {
	switch cfg.Index.Backend {
	case "", BackendMemory:
		factory := func(context.Context) (vectorstores.VectorStore, error) {
			vs, err := store.NewMemoryStore(embedder)
			if err != nil {
				return nil, err
			}
			return vs, nil
		}
		return factory, func() {}, nil

	case BackendPgvector:
		var (
			mu sync.Mutex
			vs *store.VectorStore
		)
		factory := func(ctx context.Context) (vectorstores.VectorStore, error) {
			mu.Lock()
			defer mu.Unlock()
			if vs == nil {
				created, err := store.NewWithConfig(ctx, embedder, store.VectorStoreConfig{
					ConnString: cfg.ConnString(),
					TableName:  cfg.Database.TableName,
					VectorDim:  cfg.Database.VectorDim,
					Replace:    true,
				})
				if err != nil {
					return nil, err
				}
				vs = created
			}
			return vs.Collection(uuid.NewString()), nil
		}
		cleanup := func() {
			mu.Lock()
			defer mu.Unlock()
			if vs != nil {
				vs.Close()
				vs = nil
			}
		}
		return factory, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}
