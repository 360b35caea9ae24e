package types

import (
	"context"
)

// Core interfaces
type Lister interface {
	ListFiles(ctx context.Context, folder string) ([]string, error)
}

type Fetcher interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// Storage is the remote store as seen by the load handler.
type Storage interface {
	Lister
	Fetcher
}

// Reporter receives the status messages of a running action so the
// interactive surface can render them.
type Reporter interface {
	Status(msg string)
	Progress(done, total int, path string)
	Error(err error)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Status(string)            {}
func (NopReporter) Progress(int, int, string) {}
func (NopReporter) Error(error)               {}
