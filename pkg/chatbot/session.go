// Package chatbot holds the request handlers behind both interactive
// surfaces: loading a folder into the index and answering questions.
package chatbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/docbot/internal/models"
	"github.com/xhad/docbot/internal/types"
	"github.com/xhad/docbot/pkg/config"
	"github.com/xhad/docbot/pkg/extractor"
	"github.com/xhad/docbot/pkg/processor"
)

const (
	Title       = "Dropbox Document Chatbot"
	Description = "This chatbot answers questions based on the documents (PDF, DOCX, Excel) stored in Dropbox."
)

// ErrNoDocuments is returned by LoadDocuments when nothing in the folder
// produced text.
var ErrNoDocuments = errors.New("no documents were found in that folder")

// Index is the part of index.Service a session needs.
type Index interface {
	Build(ctx context.Context, docs []models.Document) error
	Answer(ctx context.Context, question string) (string, error)
}

type SessionConfig struct {
	Storage   types.Storage
	Index     Index
	Extractor *extractor.Extractor
	Reporter  types.Reporter

	// ContinueOnError reports fetch and extraction faults and moves on to
	// the next file instead of aborting the load.
	ContinueOnError bool
	SampleSources   int
}

// LoadResult describes a completed load.
type LoadResult struct {
	Folder    string
	Documents int
	// Sources holds up to SampleSources example paths.
	Sources []string
	// Skipped lists files with an unsupported suffix or no text.
	Skipped []string
	// Failed lists files dropped because of a fault (ContinueOnError only).
	Failed []string
}

// Session is one user's conversation: its own index, one action at a time.
type Session struct {
	config SessionConfig
}

func NewSession(config SessionConfig) (*Session, error) {
	if config.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if config.Index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if config.Extractor == nil {
		config.Extractor = extractor.New()
	}
	if config.Reporter == nil {
		config.Reporter = types.NopReporter{}
	}
	if config.SampleSources <= 0 {
		config.SampleSources = 5
	}

	return &Session{config: config}, nil
}

// LoadDocuments lists folder, extracts every supported file and rebuilds the
// index from the resulting documents.
func (s *Session) LoadDocuments(ctx context.Context, folder string) (*LoadResult, error) {
	if folder == "" {
		folder = config.DefaultFolder
	}
	rep := s.config.Reporter
	result := &LoadResult{Folder: folder}

	rep.Status(fmt.Sprintf("Listing files in %s", folder))
	paths, err := s.config.Storage.ListFiles(ctx, folder)
	if err != nil {
		// Listing faults are shown and the folder treated as empty.
		rep.Error(err)
		paths = nil
	}

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		Metadata: map[string]interface{}{"folder": folder},
	})

	var docs []models.Document
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Progress(i+1, len(paths), p)

		if !s.config.Extractor.Supported(p) {
			result.Skipped = append(result.Skipped, p)
			continue
		}

		file, err := s.fetch(ctx, p)
		if err != nil {
			if !s.config.ContinueOnError {
				return nil, err
			}
			rep.Error(err)
			result.Failed = append(result.Failed, p)
			continue
		}

		text, kind, err := s.config.Extractor.Extract(file.Path, file.Content)
		if err != nil {
			if !s.config.ContinueOnError {
				return nil, err
			}
			rep.Error(err)
			result.Failed = append(result.Failed, p)
			continue
		}

		doc, ok := proc.Process(file.Path, kind.String(), text)
		if !ok {
			result.Skipped = append(result.Skipped, p)
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return result, ErrNoDocuments
	}

	rep.Status(fmt.Sprintf("Indexing %d documents", len(docs)))
	if err := s.config.Index.Build(ctx, docs); err != nil {
		return nil, err
	}

	result.Documents = len(docs)
	for _, doc := range docs {
		if len(result.Sources) == s.config.SampleSources {
			break
		}
		result.Sources = append(result.Sources, doc.SourceOf())
	}

	return result, nil
}

// SubmitQuestion answers question from the most recently loaded folder.
func (s *Session) SubmitQuestion(ctx context.Context, question string) (string, error) {
	return s.config.Index.Answer(ctx, question)
}

// Close releases the index of the session when it holds any resources.
func (s *Session) Close(ctx context.Context) error {
	if c, ok := s.config.Index.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}

func (s *Session) fetch(ctx context.Context, path string) (models.RemoteFile, error) {
	data, err := s.config.Storage.Download(ctx, path)
	if err != nil {
		return models.RemoteFile{}, err
	}
	return models.RemoteFile{Path: path, Content: data}, nil
}
