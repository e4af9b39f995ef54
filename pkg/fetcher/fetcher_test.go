package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/internal/models"
)

func TestFetcherConfig(t *testing.T) {
	f := NewWithConfig(FetcherConfig{
		Timeout:   5 * time.Second,
		MaxBytes:  1024,
		RateLimit: 2,
	})
	assert.Equal(t, 5*time.Second, f.client.Timeout)
	assert.Equal(t, int64(1024), f.config.MaxBytes)
	assert.Equal(t, "docqa/1.0", f.config.UserAgent)

	d := New()
	assert.Equal(t, 20*time.Second, d.config.Timeout)
	assert.Equal(t, int64(50<<20), d.config.MaxBytes)
}

func TestFetchWithMockServer(t *testing.T) {
	pdfBody := []byte("%PDF-1.4\n%fake\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "docqa/1.0", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/policy.pdf":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(pdfBody)
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body><main>Hello</main></body></html>"))
		case "/missing.pdf":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	f := New()
	ctx := context.Background()

	doc, err := f.Fetch(ctx, server.URL+"/policy.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.KindPDF, doc.Kind)
	assert.Equal(t, pdfBody, doc.Data)
	assert.Equal(t, server.URL+"/policy.pdf", doc.URL)

	doc, err = f.Fetch(ctx, server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, models.KindHTML, doc.Kind)

	_, err = f.Fetch(ctx, server.URL+"/missing.pdf")
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = f.Fetch(ctx, server.URL+"/boom")
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestFetchTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	f := NewWithConfig(FetcherConfig{MaxBytes: 1024})
	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer server.Close()

	f := NewWithConfig(FetcherConfig{Timeout: 20 * time.Millisecond})
	_, err := f.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestFetchInvalidURL(t *testing.T) {
	f := New()

	tests := []string{
		"",
		"not a url",
		"ftp://example.com/file.pdf",
		"http://",
		"://broken",
	}

	for _, rawURL := range tests {
		t.Run(rawURL, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), rawURL)
			assert.Error(t, err)
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New().Fetch(context.Background(), url+"/a.pdf")
	assert.Error(t, err)
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		contentType string
		path        string
		expected    models.Kind
	}{
		{"pdf magic wins", "%PDF-1.7 ...", "text/html", "/a.html", models.KindPDF},
		{"pdf content type", "binary", "application/pdf", "/a", models.KindPDF},
		{"html content type", "<p>x</p>", "text/html; charset=utf-8", "/a", models.KindHTML},
		{"plain text", "hello", "text/plain", "/a", models.KindText},
		{"html extension", "x", "", "/doc.htm", models.KindHTML},
		{"txt extension", "x", "", "/notes.txt", models.KindText},
		{"sniffed html", "<!DOCTYPE html><html></html>", "", "/a", models.KindHTML},
		{"unknown binary", "\x00\x01\x02\x03", "application/octet-stream", "/blob", models.KindPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectKind([]byte(tt.data), tt.contentType, tt.path))
		})
	}
}
