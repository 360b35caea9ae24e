package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xhad/docbot/internal/models"
)

type ProcessorConfig struct {
	SourceKey string
	// Metadata is copied into every document produced.
	Metadata map[string]interface{}
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.SourceKey == "" {
		config.SourceKey = "source"
	}

	return Processor{
		config: config,
	}
}

// Process builds the document for one extracted file. It reports false when
// the cleaned text is empty or whitespace only, in which case no document
// exists for the file.
func (p *Processor) Process(source, kind, text string) (models.Document, bool) {
	content := cleanText(text)
	if strings.TrimSpace(content) == "" {
		return models.Document{}, false
	}

	metadata := make(map[string]interface{}, len(p.config.Metadata)+2)
	for k, v := range p.config.Metadata {
		metadata[k] = v
	}
	metadata[p.config.SourceKey] = source
	if kind != "" {
		metadata["kind"] = kind
	}

	return models.Document{
		ID:       uuid.NewString(),
		Source:   source,
		Content:  content,
		Metadata: metadata,
	}, true
}

// cleanText drops invalid UTF-8 and NUL bytes, which neither the embedding
// API nor Postgres accept. The text is otherwise left untouched.
func cleanText(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}

	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		if r == 0 {
			continue
		}
		v = append(v, r)
	}
	return string(v)
}
