package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

func TestProcessor_Process(t *testing.T) {
	config := ProcessorConfig{
		ChunkSize:      80,
		ChunkOverlap:   10,
		MinChunkLength: 20,
	}
	p := NewWithConfig(config)

	page := strings.Repeat("The policy term is twelve months from the start date. ", 6)
	documents := []schema.Document{
		{PageContent: page, Metadata: map[string]any{"page": 1, "total_pages": 2}},
		{PageContent: "   \n\n  ", Metadata: map[string]any{"page": 2, "total_pages": 2}},
	}

	chunks, err := p.Process(documents)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.PageContent), 80)
		assert.GreaterOrEqual(t, len(chunk.PageContent), 20)
		assert.Equal(t, 1, chunk.Metadata["page"])
		assert.Equal(t, i, chunk.Metadata["chunk"])
	}
	assert.Contains(t, chunks[0].PageContent, "policy term")
}

func TestProcessor_ShortDocumentKept(t *testing.T) {
	p := NewWithConfig(ProcessorConfig{MinChunkLength: 50})

	chunks, err := p.Process([]schema.Document{{PageContent: "Term: 12 months"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Term: 12 months", chunks[0].PageContent)
	assert.Equal(t, 0, chunks[0].Metadata["chunk"])
}

func TestProcessor_Empty(t *testing.T) {
	p := NewWithConfig(ProcessorConfig{})

	chunks, err := p.Process([]schema.Document{{PageContent: ""}, {PageContent: "\n \t"}})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNewWithConfigDefaults(t *testing.T) {
	p := NewWithConfig(ProcessorConfig{ChunkSize: 100, ChunkOverlap: 150})
	assert.Equal(t, 100, p.config.ChunkSize)
	assert.Equal(t, 20, p.config.ChunkOverlap)
	assert.Equal(t, 20, p.config.MinChunkLength)
}

func TestNewWithConfigZeroOverlap(t *testing.T) {
	p := NewWithConfig(ProcessorConfig{ChunkSize: 100, ChunkOverlap: 0})
	assert.Equal(t, 0, p.config.ChunkOverlap)

	p = NewWithConfig(ProcessorConfig{ChunkSize: 100, ChunkOverlap: -5})
	assert.Equal(t, 20, p.config.ChunkOverlap)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"collapse spaces", "a   b\t c", "a b c"},
		{"keep paragraphs", "first  line\nsecond\n\n\n\nnext   para", "first line\nsecond\n\nnext para"},
		{"windows newlines", "a\r\nb", "a\nb"},
		{"invalid utf8", "ok\xffdone", "okdone"},
		{"nul bytes", "a\x00b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.text))
		})
	}
}
