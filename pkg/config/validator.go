package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xhad/docbot/internal/types"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Credentials, in the order they are checked at startup
	if c.Dropbox.AccessToken == "" {
		errors = append(errors, ValidationError{
			Field:   "DROPBOX_ACCESS_TOKEN",
			Message: "environment variable DROPBOX_ACCESS_TOKEN is not set",
		})
	}

	if c.OpenAI.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "OPENAI_API_KEY",
			Message: "environment variable OPENAI_API_KEY is not set",
		})
	}

	// Validate Dropbox config
	if !strings.HasPrefix(c.Dropbox.Folder, "/") && c.Dropbox.Folder != "" {
		errors = append(errors, ValidationError{
			Field:   "dropbox.folder",
			Message: "folder must be an absolute Dropbox path",
		})
	}

	if c.Dropbox.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "dropbox.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Dropbox.TimeoutSecs < 0 {
		errors = append(errors, ValidationError{
			Field:   "dropbox.timeout_secs",
			Message: "timeout_secs cannot be negative",
		})
	}

	for _, pattern := range c.Dropbox.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			errors = append(errors, ValidationError{
				Field:   "dropbox.ignore_patterns",
				Message: fmt.Sprintf("invalid pattern: %s", pattern),
			})
		}
	}

	// Validate OpenAI config
	if c.OpenAI.BaseURL != "" {
		if u, err := url.Parse(c.OpenAI.BaseURL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "openai.base_url",
				Message: "invalid OpenAI base URL",
			})
		}
	}

	if c.OpenAI.MaxTokens < 1 || c.OpenAI.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "openai.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	// Validate Index config
	if c.Index.Backend != "memory" && c.Index.Backend != "pgvector" {
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Index.Backend),
		})
	}

	if c.Index.NumDocuments < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.num_documents",
			Message: "num_documents must be positive",
		})
	}

	// Validate Database config, only used by the pgvector backend
	if c.Index.Backend == "pgvector" {
		if c.Database.URL == "" && c.Database.Name == "" {
			errors = append(errors, ValidationError{
				Field:   "database.name",
				Message: "DB_NAME or DATABASE_URL is required for the pgvector backend",
			})
		}

		if c.Database.VectorDim < 1 {
			errors = append(errors, ValidationError{
				Field:   "database.vector_dim",
				Message: "vector_dim must be positive",
			})
		}
	}

	return errors
}

// Check turns the first validation failures into a ConfigurationFault. Only
// the credential check is reported when a credential is missing.
func (c *Config) Check() error {
	verrs := c.Validate()
	if len(verrs) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(verrs))
	for _, v := range verrs {
		if v.Field == "DROPBOX_ACCESS_TOKEN" || v.Field == "OPENAI_API_KEY" {
			return types.NewFault(types.ConfigurationFault, "load configuration", errors.New(v.Message))
		}
		msgs = append(msgs, v.Error())
	}

	return types.NewFault(types.ConfigurationFault, "load configuration", errors.New(strings.Join(msgs, "; ")))
}
