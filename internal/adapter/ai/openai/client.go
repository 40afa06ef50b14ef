// Package openai implements the chat, embedding, transcription and speech
// ports against the OpenAI REST API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
)

const provider = "openai"

// Client implements domain.ChatClient, domain.Embedder, domain.Transcriber
// and domain.SpeechSynthesizer.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

var (
	_ domain.ChatClient        = (*Client)(nil)
	_ domain.Embedder          = (*Client)(nil)
	_ domain.Transcriber       = (*Client)(nil)
	_ domain.SpeechSynthesizer = (*Client)(nil)
)

// New constructs a client. Outbound requests are traced with otelhttp.
func New(cfg config.Config) *Client {
	timeout := cfg.AIRequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// readSnippet reads up to n bytes from r for logging.
func readSnippet(r io.Reader, n int) string {
	if r == nil || n <= 0 {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, int64(n)))
	return string(b)
}

// getBackoff returns the retry policy. Retries only happen when
// AI_MAX_RETRIES is positive.
func (c *Client) getBackoff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval, expo.MaxInterval = c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = 0
	retries := c.cfg.AIMaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(retries)), ctx)
}

// statusError classifies a non-2xx response.
func statusError(op string, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s status %d", domain.ErrUpstreamRateLimit, op, status)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s status %d", domain.ErrInvalidArgument, op, status)
	default:
		return fmt.Errorf("%w: %s status %d", domain.ErrUpstream, op, status)
	}
}

// do runs one API operation under the retry policy. newReq must build a fresh
// request on every attempt; decode consumes a 2xx body.
func (c *Client) do(ctx context.Context, op string, newReq func() (*http.Request, error), decode func(io.Reader) error) error {
	lg := intobs.LoggerFromContext(ctx)
	attempt := func() error {
		start := time.Now()
		r, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues(provider, op).Inc()
		observability.AIRequestDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
				return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamTimeout, op, err)
			}
			return fmt.Errorf("%w: %s: %v", domain.ErrUpstream, op, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusTooManyRequests {
			// Retryable: let backoff handle retries
			lg.Warn("ai provider rate limited", slog.String("provider", provider), slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
			return statusError(op, resp.StatusCode)
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client error: non-retryable
			lg.Warn("ai provider 4xx", slog.String("provider", provider), slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("x_request_id", resp.Header.Get("X-Request-Id")), slog.String("body", readSnippet(resp.Body, 512)))
			return backoff.Permanent(statusError(op, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// 5xx and others: retryable
			lg.Error("ai provider non-2xx", slog.String("provider", provider), slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("x_request_id", resp.Header.Get("X-Request-Id")), slog.String("body", readSnippet(resp.Body, 512)))
			return statusError(op, resp.StatusCode)
		}
		if err := decode(resp.Body); err != nil {
			lg.Error("ai provider decode error", slog.String("provider", provider), slog.String("op", op), slog.Any("error", err))
			return backoff.Permanent(fmt.Errorf("%w: %s decode: %v", domain.ErrUpstream, op, err))
		}
		return nil
	}
	if err := backoff.Retry(attempt, c.getBackoff(ctx)); err != nil {
		return fmt.Errorf("op=openai.%s: %w", op, err)
	}
	return nil
}

func (c *Client) jsonRequest(ctx context.Context, path string, payload []byte) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}
}

// Chat sends a chat completion request on the model of req.Tier.
func (c *Client) Chat(ctx domain.Context, req domain.ChatRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("op=openai.chat: %w: no messages", domain.ErrInvalidArgument)
	}
	model := c.cfg.ChatModel(req.Tier)
	body := map[string]any{
		"model":       model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("op=openai.chat: %w", err)
	}
	promptTokens := tokencount.DefaultCounter.EstimateMessages(req.Messages, model)
	observability.AIPromptTokens.WithLabelValues(string(req.Tier)).Observe(float64(promptTokens))
	lg := intobs.LoggerFromContext(ctx)
	lg.Info("calling chat completion", slog.String("provider", provider), slog.String("model", model), slog.String("tier", string(req.Tier)), slog.Int("messages", len(req.Messages)), slog.Int("prompt_tokens", promptTokens), slog.Int("max_tokens", req.MaxTokens))

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	err = c.do(ctx, "chat", c.jsonRequest(ctx, "/chat/completions", b), func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=openai.chat: %w: empty choices", domain.ErrUpstream)
	}
	content := out.Choices[0].Message.Content
	lg.Info("chat completion successful", slog.String("provider", provider), slog.String("model", out.Model), slog.Int("content_length", len(content)))
	return content, nil
}

// Embed calls the embeddings endpoint and converts vectors to float32.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any{"model": c.cfg.EmbeddingsModel, "input": texts})
	if err != nil {
		return nil, fmt.Errorf("op=openai.embed: %w", err)
	}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	err = c.do(ctx, "embed", c.jsonRequest(ctx, "/embeddings", b), func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	if err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("op=openai.embed: %w: got %d vectors for %d inputs", domain.ErrUpstream, len(out.Data), len(texts))
	}
	res := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		idx := i
		if d.Index >= 0 && d.Index < len(res) {
			idx = d.Index
		}
		v := make([]float32, len(d.Embedding))
		for j := range d.Embedding {
			v[j] = float32(d.Embedding[j])
		}
		res[idx] = v
	}
	return res, nil
}

// Transcribe uploads the audio file at path and returns the transcript.
func (c *Client) Transcribe(ctx domain.Context, path string) (string, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("op=openai.transcribe: %w", err)
	}
	newReq := func() (*http.Request, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField("model", c.cfg.TranscriptionModel); err != nil {
			return nil, err
		}
		fw, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(audio); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/audio/transcriptions", &buf)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", mw.FormDataContentType())
		return r, nil
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := c.do(ctx, "transcribe", newReq, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	}); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

// Synthesize returns MP3 audio for text in the given voice.
func (c *Client) Synthesize(ctx domain.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = c.cfg.SpeechVoice
	}
	b, err := json.Marshal(map[string]any{
		"model":           c.cfg.SpeechModel,
		"input":           text,
		"voice":           voice,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("op=openai.speech: %w", err)
	}
	var audio []byte
	if err := c.do(ctx, "speech", c.jsonRequest(ctx, "/audio/speech", b), func(r io.Reader) error {
		var readErr error
		audio, readErr = io.ReadAll(r)
		return readErr
	}); err != nil {
		return nil, err
	}
	return audio, nil
}
