// Package loader turns a downloaded document on disk into content units
// ready for indexing.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/processor"
)

type Loader struct {
	processor processor.Processor
}

func New(p processor.Processor) *Loader {
	return &Loader{processor: p}
}

// Load parses the file at path according to its extension and returns its
// chunks. A document that yields no text is an error.
func (l *Loader) Load(ctx context.Context, path string) ([]schema.Document, error) {
	kind := KindFromPath(path)

	var (
		pages []schema.Document
		err   error
	)
	switch kind {
	case models.KindHTML:
		pages, err = loadHTML(path)
	case models.KindText:
		pages, err = loadText(ctx, path)
	default:
		pages, err = loadPDF(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s document: %w", kind, err)
	}

	for i := range pages {
		if pages[i].Metadata == nil {
			pages[i].Metadata = map[string]any{}
		}
		pages[i].Metadata["kind"] = string(kind)
	}

	chunks, err := l.processor.Process(pages)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no extractable text in %s document", kind)
	}

	return chunks, nil
}

// KindFromPath maps a persisted file's extension back to its document kind.
func KindFromPath(path string) models.Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return models.KindHTML
	case ".txt", ".md":
		return models.KindText
	default:
		return models.KindPDF
	}
}

func loadPDF(ctx context.Context, path string) (docs []schema.Document, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// ledongthuc/pdf panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	return documentloaders.NewPDF(f, info.Size()).Load(ctx)
}

func loadText(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return documentloaders.NewText(f).Load(ctx)
}

func loadHTML(path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, err
	}

	return []schema.Document{{
		PageContent: extractMainContent(doc),
		Metadata: map[string]any{
			"title": strings.TrimSpace(doc.Find("title").First().Text()),
		},
	}}, nil
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = blockText(selected)
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = blockText(doc.Find("body"))
	}

	return content
}

// blockText keeps one paragraph per block element so the splitter has
// natural boundaries to cut on.
func blockText(sel *goquery.Selection) string {
	var parts []string
	sel.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.Join(strings.Fields(sel.Text()), " ")
	}
	return strings.Join(parts, "\n\n")
}
