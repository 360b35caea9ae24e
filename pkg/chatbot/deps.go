package chatbot

import (
	"time"

	"github.com/xhad/docbot/internal/types"
	"github.com/xhad/docbot/pkg/config"
	"github.com/xhad/docbot/pkg/dropbox"
	"github.com/xhad/docbot/pkg/extractor"
	"github.com/xhad/docbot/pkg/index"
	"github.com/xhad/docbot/pkg/llm"
)

// Deps holds the process-wide collaborators sessions are built from. Every
// session gets its own index on top of them.
type Deps struct {
	Config   *config.Config
	Storage  types.Storage
	Chat     *llm.ChatEngine
	NewStore index.StoreFactory

	extractor *extractor.Extractor
	cleanup   func()
}

// NewDeps validates cfg and connects the Dropbox and OpenAI clients. Missing
// credentials are reported as a ConfigurationFault.
func NewDeps(cfg *config.Config) (*Deps, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	storage, err := dropbox.NewWithConfig(dropbox.ClientConfig{
		AccessToken:    cfg.Dropbox.AccessToken,
		RateLimit:      cfg.Dropbox.RateLimit,
		IgnorePatterns: cfg.Dropbox.IgnorePatterns,
		Timeout:        time.Duration(cfg.Dropbox.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, types.NewFault(types.ConfigurationFault, "dropbox", err)
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
	})
	if err != nil {
		return nil, types.NewFault(types.ConfigurationFault, "openai", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.OpenAI.EmbeddingModel,
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		BatchSize: cfg.OpenAI.BatchSize,
	})
	if err != nil {
		return nil, types.NewFault(types.ConfigurationFault, "openai", err)
	}

	newStore, cleanup, err := index.NewStoreFactory(cfg, embedder)
	if err != nil {
		return nil, types.NewFault(types.ConfigurationFault, "index", err)
	}

	return &Deps{
		Config:    cfg,
		Storage:   storage,
		Chat:      chat,
		NewStore:  newStore,
		extractor: extractor.New(),
		cleanup:   cleanup,
	}, nil
}

// NewSession starts an unbuilt session reporting to reporter.
func (d *Deps) NewSession(reporter types.Reporter) (*Session, error) {
	svc, err := index.NewWithConfig(index.ServiceConfig{
		NumDocuments: d.Config.Index.NumDocuments,
	}, d.NewStore, d.Chat)
	if err != nil {
		return nil, err
	}

	return NewSession(SessionConfig{
		Storage:         d.Storage,
		Index:           svc,
		Extractor:       d.extractor,
		Reporter:        reporter,
		ContinueOnError: d.Config.Loader.ContinueOnError,
		SampleSources:   d.Config.Loader.SampleSources,
	})
}

func (d *Deps) Close() {
	if d.cleanup != nil {
		d.cleanup()
	}
}
