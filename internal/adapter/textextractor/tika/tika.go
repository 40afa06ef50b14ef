// Package tika provides Apache Tika integration for document text extraction.
//
// Uploaded résumés and cover letters are PUT to a Tika server, which returns
// plain text. The client only opens files under its allowed roots, which
// default to the system temp dir and the working directory.
package tika

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/pkg/textx"
)

// Client is a minimal Apache Tika HTTP client implementing domain.TextExtractor.
// It performs PUT /tika with Accept: text/plain to retrieve extracted text.
// See: https://tika.apache.org/server/ for API details.
type Client struct {
	baseURL    string
	httpClient *http.Client
	roots      []string
	maxRetries uint64
}

var _ domain.TextExtractor = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithAllowedRoots replaces the directories files may be read from.
func WithAllowedRoots(roots ...string) Option {
	return func(c *Client) {
		c.roots = c.roots[:0]
		for _, r := range roots {
			if abs, err := filepath.Abs(r); err == nil {
				c.roots = append(c.roots, filepath.Clean(abs))
			}
		}
	}
}

// WithMaxRetries sets how many times a 5xx or transport failure is retried.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// New constructs a Tika client with a default timeout.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9998"
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRetries: 2,
	}
	wd, _ := os.Getwd()
	WithAllowedRoots(os.TempDir(), wd)(c)
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ping checks that the Tika server answers on /version.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return fmt.Errorf("op=tika.Ping: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("op=tika.Ping: %w: %v", domain.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("op=tika.Ping: status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}
	return nil
}

// ExtractPath uploads the file at path to the Tika server and returns plain
// text with control characters removed and whitespace collapsed.
func (c *Client) ExtractPath(ctx context.Context, fileName, path string) (string, error) {
	openPath, err := c.resolve(path)
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w", err)
	}
	bfile, err := os.ReadFile(openPath)
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w", err)
	}

	var result string
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tika", bytes.NewReader(bfile))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "text/plain")
		if ct := contentTypeFromExt(filepath.Ext(fileName)); ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		defer func() { _ = resp.Body.Close() }()
		switch {
		case resp.StatusCode == http.StatusUnsupportedMediaType || resp.StatusCode == http.StatusUnprocessableEntity:
			return backoff.Permanent(fmt.Errorf("tika status %d: %w", resp.StatusCode, domain.ErrInvalidArgument))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("tika status %d: %w", resp.StatusCode, domain.ErrUpstream))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("tika status %d: %w", resp.StatusCode, domain.ErrUpstream)
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		result = strings.Join(strings.Fields(textx.SanitizeText(string(b))), " ")
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w", err)
	}
	return result, nil
}

// resolve returns the cleaned absolute path when it lives under an allowed root.
func (c *Client) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	for _, root := range c.roots {
		if abs == root || strings.HasPrefix(abs, root+string(os.PathSeparator)) {
			return abs, nil
		}
	}
	return "", errors.Join(domain.ErrInvalidArgument, fmt.Errorf("disallowed path: %s", abs))
}

func contentTypeFromExt(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		if ext != "" {
			return mime.TypeByExtension(ext)
		}
	}
	return ""
}
