package types

import (
	"context"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/docqa/internal/models"
)

// Core interfaces
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.FetchedDocument, error)
}

type Loader interface {
	Load(ctx context.Context, path string) ([]schema.Document, error)
}

type Indexer interface {
	Build(ctx context.Context, docs []schema.Document) (Index, error)
}

// Index is a retrieval structure over one request's document. It is not
// shared between requests and must be closed when the request ends.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]schema.Document, error)
	Close(ctx context.Context) error
}

type Evaluator interface {
	Evaluate(ctx context.Context, question string, idx Index) (*models.Evaluation, error)
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
