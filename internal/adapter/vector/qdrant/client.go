// Package qdrant provides a minimal Qdrant HTTP client backing the Context Index.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// pointNamespace derives stable point UUIDs from caller ids, since Qdrant
// only accepts unsigned integers or UUIDs.
var pointNamespace = uuid.MustParse("6f1c1f0e-3a9b-4a57-9d55-2a4c0d9a7e21")

// Client is a minimal Qdrant HTTP client implementing domain.VectorStore.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ domain.VectorStore = (*Client)(nil)

// New constructs a Qdrant client with baseURL and optional apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Ping checks that the server answers. Used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/collections", nil)
	if err != nil {
		return fmt.Errorf("op=qdrant.Ping: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("op=qdrant.Ping: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("op=qdrant.Ping: status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL(name), nil)
	if err != nil {
		return fmt.Errorf("op=qdrant.EnsureCollection: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("op=qdrant.EnsureCollection: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	payload := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	if err := c.sendJSON(ctx, http.MethodPut, c.collectionURL(name), payload, nil); err != nil {
		return fmt.Errorf("op=qdrant.EnsureCollection: %w", err)
	}
	return nil
}

// Upsert inserts or updates points. The caller id is kept in the payload
// under "point_id" and mapped to a deterministic UUID.
func (c *Client) Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	wire := make([]map[string]any, 0, len(points))
	for _, p := range points {
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload["point_id"] = p.ID
		wire = append(wire, map[string]any{
			"id":      uuid.NewSHA1(pointNamespace, []byte(p.ID)).String(),
			"vector":  p.Vector,
			"payload": payload,
		})
	}
	url := c.collectionURL(collection) + "/points?wait=true"
	if err := c.sendJSON(ctx, http.MethodPut, url, map[string]any{"points": wire}, nil); err != nil {
		return fmt.Errorf("op=qdrant.Upsert: %w", err)
	}
	return nil
}

// Search returns top-k nearest points for a given vector, most similar first.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]domain.VectorHit, error) {
	body := map[string]any{"vector": vector, "limit": topK, "with_payload": true}
	var out struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, c.collectionURL(collection)+"/points/search", body, &out); err != nil {
		return nil, fmt.Errorf("op=qdrant.Search: %w", err)
	}
	hits := make([]domain.VectorHit, 0, len(out.Result))
	for _, r := range out.Result {
		id, _ := r.Payload["point_id"].(string)
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		hits = append(hits, domain.VectorHit{ID: id, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

// DeleteCollection drops a collection. A missing collection is not an error.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.collectionURL(name), nil)
	if err != nil {
		return fmt.Errorf("op=qdrant.DeleteCollection: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("op=qdrant.DeleteCollection: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("op=qdrant.DeleteCollection: status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}
	return nil
}

func (c *Client) collectionURL(name string) string {
	return fmt.Sprintf("%s/collections/%s", c.baseURL, name)
}

func (c *Client) sendJSON(ctx context.Context, method, url string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	return resp, nil
}
