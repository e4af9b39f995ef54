package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/xhad/docqa/internal/models"
	"golang.org/x/time/rate"
)

// ErrTooLarge is returned when a document exceeds FetcherConfig.MaxBytes.
var ErrTooLarge = errors.New("document exceeds size limit")

// StatusError reports a non-2xx response from the document host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status code %d for URL: %s", e.StatusCode, e.URL)
}

type FetcherConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	RateLimit float64 // requests per second, 0 disables limiting
	UserAgent string
}

type Fetcher struct {
	config  FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config FetcherConfig) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 20 * time.Second
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = 50 << 20
	}
	if config.UserAgent == "" {
		config.UserAgent = "docqa/1.0"
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Fetcher{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func New() *Fetcher {
	return NewWithConfig(FetcherConfig{})
}

// Fetch downloads the document at rawURL and detects its kind.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid document URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid document URL %q: scheme must be http or https", rawURL)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid document URL %q: missing host", rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/pdf, text/html;q=0.9, text/plain;q=0.8, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: parsedURL.String(), StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, resp.ContentLength, f.config.MaxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.config.MaxBytes)
	}

	contentType := resp.Header.Get("Content-Type")

	return &models.FetchedDocument{
		URL:         parsedURL.String(),
		ContentType: contentType,
		Kind:        DetectKind(data, contentType, parsedURL.Path),
		Data:        data,
	}, nil
}

// DetectKind classifies a document by magic bytes first, then the declared
// content type, then the URL extension. Anything unrecognised is treated as
// PDF so that parsing reports the failure.
func DetectKind(data []byte, contentType, urlPath string) models.Kind {
	if bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return models.KindPDF
	}

	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mediaType == "application/pdf":
			return models.KindPDF
		case mediaType == "text/html" || mediaType == "application/xhtml+xml":
			return models.KindHTML
		case strings.HasPrefix(mediaType, "text/"):
			return models.KindText
		}
	}

	switch strings.ToLower(path.Ext(urlPath)) {
	case ".html", ".htm":
		return models.KindHTML
	case ".txt", ".md":
		return models.KindText
	}

	sniffed := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(sniffed, "text/html"):
		return models.KindHTML
	case strings.HasPrefix(sniffed, "text/plain"):
		return models.KindText
	}

	return models.KindPDF
}
