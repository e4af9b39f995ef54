// Package pipeline answers a batch of questions about one remote document:
// fetch, persist to a temporary file, load, index, then evaluate each
// question in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
	"go.uber.org/zap"
)

// NoJustification is the answer used when an evaluation carries no
// justification.
const NoJustification = "No justification provided."

type Config struct {
	Fetcher   types.Fetcher
	Loader    types.Loader
	Indexer   types.Indexer
	Evaluator types.Evaluator
	// TempDir holds the transient document files. Empty means os.TempDir.
	TempDir string
	Logger  *zap.Logger
	// OnProgress, if set, is called after each question is answered.
	OnProgress func(done, total int)
}

// Pipeline holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	fetcher    types.Fetcher
	loader     types.Loader
	indexer    types.Indexer
	evaluator  types.Evaluator
	tempDir    string
	logger     *zap.Logger
	onProgress func(done, total int)
}

func New(config Config) (*Pipeline, error) {
	if config.Fetcher == nil || config.Loader == nil || config.Indexer == nil || config.Evaluator == nil {
		return nil, fmt.Errorf("fetcher, loader, indexer and evaluator are required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Pipeline{
		fetcher:    config.Fetcher,
		loader:     config.Loader,
		indexer:    config.Indexer,
		evaluator:  config.Evaluator,
		tempDir:    config.TempDir,
		logger:     config.Logger,
		onProgress: config.OnProgress,
	}, nil
}

// WithProgress returns a copy of p that reports each answered question to fn.
func (p *Pipeline) WithProgress(fn func(done, total int)) *Pipeline {
	cp := *p
	cp.onProgress = fn
	return &cp
}

// Run answers req.Questions against the document at req.Documents. The
// returned answers match the questions one to one and in order. A question
// that fails to evaluate gets an error message as its answer. Only a failed
// fetch (*FetchError) or a failure to persist, load or index the document
// (*IndexError) fails the whole request.
func (p *Pipeline) Run(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	logger := p.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("document", req.Documents),
		zap.Int("questions", len(req.Questions)),
	)

	if req.Documents == "" {
		return nil, &FetchError{Stage: StageFetch, URL: req.Documents, Err: errors.New("document URL is required")}
	}

	doc, err := p.fetcher.Fetch(ctx, req.Documents)
	if err != nil {
		logger.Warn("fetch failed", zap.String("stage", string(StageFetch)), zap.Error(err))
		return nil, &FetchError{Stage: StageFetch, URL: req.Documents, Err: err}
	}
	logger.Debug("document fetched",
		zap.String("kind", string(doc.Kind)),
		zap.Int("bytes", len(doc.Data)),
	)

	path, cleanup, err := p.persist(doc, logger)
	if err != nil {
		logger.Error("persist failed", zap.String("stage", string(StagePersist)), zap.Error(err))
		return nil, &IndexError{Stage: StagePersist, Err: err}
	}
	defer cleanup()

	chunks, err := p.loader.Load(ctx, path)
	if err != nil {
		logger.Warn("load failed", zap.String("stage", string(StageLoad)), zap.Error(err))
		return nil, &IndexError{Stage: StageLoad, Err: err}
	}

	idx, err := p.indexer.Build(ctx, chunks)
	if err != nil {
		logger.Error("index build failed", zap.String("stage", string(StageIndex)), zap.Error(err))
		return nil, &IndexError{Stage: StageIndex, Err: err}
	}
	defer func() {
		if err := idx.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to close index", zap.Error(err))
		}
	}()
	logger.Debug("document indexed", zap.Int("chunks", len(chunks)))

	answers := make([]string, 0, len(req.Questions))
	for i, question := range req.Questions {
		answer, err := p.answer(ctx, question, idx)
		if err != nil {
			logger.Warn("question failed",
				zap.String("stage", string(StageEvaluate)),
				zap.Int("question", i),
				zap.Error(err),
			)
			answer = fmt.Sprintf("Error processing question: %v", err)
		}
		answers = append(answers, answer)
		if p.onProgress != nil {
			p.onProgress(i+1, len(req.Questions))
		}
	}

	logger.Info("request completed", zap.Duration("duration", time.Since(start)))
	return &models.QueryResponse{Answers: answers}, nil
}

func (p *Pipeline) answer(ctx context.Context, question string, idx types.Index) (string, error) {
	result, err := p.evaluator.Evaluate(ctx, question, idx)
	if err != nil {
		return "", &EvaluationError{Stage: StageEvaluate, Question: question, Err: err}
	}
	if result == nil || result.Justification == nil {
		return NoJustification, nil
	}
	return *result.Justification, nil
}

// persist writes doc to a uniquely named temporary file. The returned cleanup
// removes it and never fails; a file that is already gone is not an error.
func (p *Pipeline) persist(doc *models.FetchedDocument, logger *zap.Logger) (string, func(), error) {
	f, err := os.CreateTemp(p.tempDir, "docqa-*"+doc.Kind.Ext())
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	path := f.Name()

	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove temporary file", zap.String("path", path), zap.Error(err))
		}
	}

	if _, err := f.Write(doc.Data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temporary file: %w", err)
	}

	return path, cleanup, nil
}
