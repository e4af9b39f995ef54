package processor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

// Processor cleans loaded pages and splits them into retrieval-sized chunks.
type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.TextSplitter
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	// Zero overlap is a valid setting and is kept as is.
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 20
	}

	return Processor{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
	}
}

// Process returns the chunks of docs in document order. Each chunk keeps the
// metadata of its page plus a running "chunk" number.
func (p *Processor) Process(docs []schema.Document) ([]schema.Document, error) {
	cleaned := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		text := cleanText(doc.PageContent)
		if text == "" {
			continue
		}
		cleaned = append(cleaned, schema.Document{PageContent: text, Metadata: doc.Metadata})
	}

	chunks, err := textsplitter.SplitDocuments(p.splitter, cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}

	var kept, short []schema.Document
	for _, chunk := range chunks {
		chunk.PageContent = strings.TrimSpace(chunk.PageContent)
		switch {
		case chunk.PageContent == "":
		case utf8.RuneCountInString(chunk.PageContent) < p.config.MinChunkLength:
			short = append(short, chunk)
		default:
			kept = append(kept, chunk)
		}
	}
	// A very small document may consist only of short chunks.
	if len(kept) == 0 {
		kept = short
	}

	for i := range kept {
		if kept[i].Metadata == nil {
			kept[i].Metadata = map[string]any{}
		}
		kept[i].Metadata["chunk"] = i
	}

	return kept, nil
}

// cleanText drops invalid UTF-8 and collapses runs of spaces while keeping
// paragraph breaks for the splitter.
func cleanText(text string) string {
	text = sanitizeUTF8(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	paragraphs := strings.Split(text, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		lines := strings.Split(para, "\n")
		kept := make([]string, 0, len(lines))
		for _, line := range lines {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				kept = append(kept, line)
			}
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, "\n"))
		}
	}

	return strings.Join(out, "\n\n")
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
