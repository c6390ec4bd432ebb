// Package share implements uploading files and serving them back by slug.
package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quickshare/service/internal/logging"
	"github.com/quickshare/service/internal/metrics"
	"github.com/quickshare/service/internal/shortener"
	"github.com/quickshare/service/internal/storage"
)

const fallbackContentType = "application/octet-stream"

// commonTypes covers extensions that mime only knows about when the host
// ships a mime.types file.
var commonTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var (
	// ErrStore wraps failures writing an upload to storage.
	ErrStore = errors.New("store file")
	// ErrShorten wraps failures creating the short link. The stored file has
	// already been removed when it is returned.
	ErrShorten = errors.New("create short link")
	// ErrInvalidSlug is returned for identifiers outside the slug grammar.
	ErrInvalidSlug = errors.New("invalid file name")
)

// Upload describes a stored and shortened file.
type Upload struct {
	Slug     string
	Filename string
	Size     int64
	LongURL  string
	ShortURL string
}

// Service stores uploads and creates short links for them.
type Service struct {
	store     storage.Storage
	shortener shortener.Shortener
	baseURL   *url.URL
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewService creates a Service. fullHost is the public base URL the long
// file links are built on.
func NewService(store storage.Storage, sh shortener.Shortener, fullHost string, m *metrics.Metrics, log *zap.Logger) (*Service, error) {
	base, err := url.Parse(fullHost)
	if err != nil {
		return nil, fmt.Errorf("parse public host %q: %w", fullHost, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("public host %q must be an absolute URL", fullHost)
	}
	return &Service{store: store, shortener: sh, baseURL: base, metrics: m, log: log}, nil
}

// Upload saves r under a fresh slug derived from filename, then asks the
// shortener for a link to it. If shortening fails the file is deleted again,
// so either both steps succeed or nothing is left behind.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader, size int64) (*Upload, error) {
	log := logging.FromContext(ctx, s.log)
	slug := NewSlug(filename)

	written, err := s.store.Save(ctx, slug, r, size, ContentType(slug))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	longURL := s.LongURL(slug)

	start := time.Now()
	shortURL, err := s.shortener.Shorten(ctx, longURL)
	s.metrics.ObserveShorten(start, err)
	if err != nil {
		// The request context may already be cancelled; the cleanup must still run.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), slug); delErr != nil {
			log.Error("failed to remove file after shortener error",
				zap.String("slug", slug),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrShorten, err)
	}

	log.Info("file shared",
		zap.String("slug", slug),
		zap.Int64("size", written),
		zap.String("short_url", shortURL),
	)

	return &Upload{
		Slug:     slug,
		Filename: filename,
		Size:     written,
		LongURL:  longURL,
		ShortURL: shortURL,
	}, nil
}

// Open returns the stored file for slug.
func (s *Service) Open(ctx context.Context, slug string) (*storage.Object, error) {
	if !ValidSlug(slug) {
		return nil, ErrInvalidSlug
	}
	return s.store.Open(ctx, slug)
}

// LongURL returns the public, unshortened URL of slug.
func (s *Service) LongURL(slug string) string {
	return s.baseURL.JoinPath("file", slug).String()
}

// ContentType infers a media type from the extension of name, without parameters.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		if ct = commonTypes[ext]; ct == "" {
			return fallbackContentType
		}
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}
