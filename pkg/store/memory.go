package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/docqa/internal/types"
)

// ErrClosed is returned by Search on an index that has been closed.
var ErrClosed = errors.New("index is closed")

// ErrDimensionMismatch is returned by Search when the query embedding does not
// have the dimension of the indexed vectors.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// MemoryIndexer builds a brute-force cosine index held in process memory.
type MemoryIndexer struct {
	embedder types.Embedder
}

func NewMemoryIndexer(embedder types.Embedder) *MemoryIndexer {
	return &MemoryIndexer{embedder: embedder}
}

// Build embeds every chunk and returns an index private to the caller.
func (m *MemoryIndexer) Build(ctx context.Context, docs []schema.Document) (types.Index, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to index")
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}

	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}

	dimension := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dimension {
			return nil, fmt.Errorf("%w at chunk %d", ErrDimensionMismatch, i)
		}
		normalize(v)
	}

	return &MemoryIndex{
		embedder:  m.embedder,
		docs:      docs,
		vectors:   vectors,
		dimension: dimension,
	}, nil
}

// MemoryIndex is safe for concurrent use.
type MemoryIndex struct {
	mu        sync.RWMutex
	embedder  types.Embedder
	docs      []schema.Document
	vectors   [][]float32
	dimension int
	closed    bool
}

// Search returns up to k chunks ordered by descending similarity to query.
// Each result carries its cosine score.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]schema.Document, error) {
	if k <= 0 {
		k = 4
	}

	q, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if len(q) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q), m.dimension)
	}
	normalize(q)

	scores := make([]float32, len(m.vectors))
	for i, v := range m.vectors {
		scores[i] = dot(v, q)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	if k > len(order) {
		k = len(order)
	}
	results := make([]schema.Document, 0, k)
	for _, i := range order[:k] {
		doc := m.docs[i]
		doc.Score = scores[i]
		results = append(results, doc)
	}
	return results, nil
}

// Close drops the stored chunks. Closing twice is a no-op.
func (m *MemoryIndex) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.docs = nil
	m.vectors = nil
	return nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// dot expects vectors of equal length.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
