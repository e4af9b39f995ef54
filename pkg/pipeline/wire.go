package pipeline

import (
	"context"
	"fmt"

	"github.com/xhad/docqa/internal/types"
	"github.com/xhad/docqa/pkg/config"
	"github.com/xhad/docqa/pkg/fetcher"
	"github.com/xhad/docqa/pkg/llm"
	"github.com/xhad/docqa/pkg/loader"
	"github.com/xhad/docqa/pkg/processor"
	"github.com/xhad/docqa/pkg/store"
	"go.uber.org/zap"
)

// NewFromConfig assembles a Pipeline backed by Ollama and the configured
// store. The returned close function releases the store's connections.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Pipeline, func(), error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbeddingModel,
		BaseURL:   cfg.LLM.BaseURL,
		BatchSize: cfg.Store.BatchSize,
	})
	if err != nil {
		return nil, nil, err
	}

	evaluator, err := llm.NewWithConfig(llm.EvaluatorConfig{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		TopK:        cfg.LLM.TopK,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize evaluator: %w", err)
	}

	var (
		indexer types.Indexer
		closeFn = func() {}
	)
	switch cfg.Store.Type {
	case "pgvector":
		vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Store.URL,
			TableName:  cfg.Store.TableName,
			VectorDim:  cfg.Store.VectorDim,
			BatchSize:  cfg.Store.BatchSize,
		}, embedder)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		indexer, closeFn = vs, vs.Close
	default:
		indexer = store.NewMemoryIndexer(embedder)
	}

	p, err := New(Config{
		Fetcher: fetcher.NewWithConfig(fetcher.FetcherConfig{
			Timeout:   cfg.Fetcher.Timeout,
			MaxBytes:  cfg.Fetcher.MaxBytes,
			RateLimit: cfg.Fetcher.RateLimit,
			UserAgent: cfg.Fetcher.UserAgent,
		}),
		Loader: loader.New(processor.NewWithConfig(processor.ProcessorConfig{
			ChunkSize:      cfg.Processor.ChunkSize,
			ChunkOverlap:   cfg.Processor.ChunkOverlap,
			MinChunkLength: cfg.Processor.MinChunkLength,
		})),
		Indexer:   indexer,
		Evaluator: evaluator,
		TempDir:   cfg.Fetcher.TempDir,
		Logger:    logger,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	logger.Info("pipeline ready",
		zap.String("store", cfg.Store.Type),
		zap.String("model", cfg.LLM.Model),
		zap.String("embedding_model", cfg.LLM.EmbeddingModel),
	)
	return p, closeFn, nil
}
