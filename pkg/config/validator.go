package config

import (
	"fmt"
	"net/url"
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

	// Server
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errors = append(errors, ValidationError{
			Field:   "server.mode",
			Message: fmt.Sprintf("unknown mode %q", c.Server.Mode),
		})
	}

	// Fetcher
	if c.Fetcher.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.timeout",
			Message: "timeout must be positive",
		})
	}

	if c.Fetcher.MaxBytes < 1 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.max_bytes",
			Message: "max_bytes must be positive",
		})
	}

	if c.Fetcher.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.rate_limit",
			Message: "rate_limit cannot be negative",
		})
	}

	// Processor
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// LLM
	if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.top_k",
			Message: "top_k must be positive",
		})
	}

	// Store
	switch c.Store.Type {
	case "memory":
	case "pgvector":
		if c.Store.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "database URL is required for the pgvector store",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.type",
			Message: fmt.Sprintf("unknown store type %q", c.Store.Type),
		})
	}

	if c.Store.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Store.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.batch_size",
			Message: "batch_size must be positive",
		})
	}

	return errors
}
