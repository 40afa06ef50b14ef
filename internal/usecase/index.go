package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
)

const embedBatchSize = 64

// ContextIndex stores chunk embeddings per session and answers top-k
// similarity queries. An empty collection name means "no index", which is a
// valid state: queries return nothing.
type ContextIndex struct {
	Store    domain.VectorStore
	Embedder domain.Embedder
	Dim      int
	TopK     int
}

// NewContextIndex constructs a ContextIndex.
func NewContextIndex(store domain.VectorStore, emb domain.Embedder, dim, topK int) ContextIndex {
	if topK <= 0 {
		topK = 3
	}
	return ContextIndex{Store: store, Embedder: emb, Dim: dim, TopK: topK}
}

// CollectionName returns the collection used for a session.
func CollectionName(sessionID string) string {
	return "session_" + strings.ReplaceAll(sessionID, "-", "_")
}

// Build embeds every chunk of docs into the session's collection and returns
// the collection name. Documents without chunks produce no index ("").
func (x ContextIndex) Build(ctx domain.Context, sessionID string, docs []domain.DocumentRef) (string, error) {
	type item struct {
		id      string
		text    string
		payload map[string]any
	}
	var items []item
	for _, d := range docs {
		for _, c := range d.Chunks {
			items = append(items, item{
				id:   fmt.Sprintf("%s-%d", d.ID, c.Index),
				text: c.Text,
				payload: map[string]any{
					"text":        c.Text,
					"document_id": d.ID,
					"kind":        d.Kind,
					"chunk_index": c.Index,
				},
			})
		}
	}
	if len(items) == 0 {
		return "", nil
	}
	collection := CollectionName(sessionID)
	if err := x.Store.EnsureCollection(ctx, collection, x.Dim); err != nil {
		return "", fmt.Errorf("op=usecase.ContextIndex.Build: %w", err)
	}
	for start := 0; start < len(items); start += embedBatchSize {
		end := min(start+embedBatchSize, len(items))
		batch := items[start:end]
		texts := make([]string, len(batch))
		for i, it := range batch {
			texts[i] = it.text
		}
		vecs, err := x.Embedder.Embed(ctx, texts)
		if err != nil {
			return "", fmt.Errorf("op=usecase.ContextIndex.Build: embed: %w", err)
		}
		if len(vecs) != len(batch) {
			return "", fmt.Errorf("op=usecase.ContextIndex.Build: %w: got %d vectors for %d chunks", domain.ErrUpstream, len(vecs), len(batch))
		}
		points := make([]domain.VectorPoint, len(batch))
		for i, it := range batch {
			points[i] = domain.VectorPoint{ID: it.id, Vector: vecs[i], Payload: it.payload}
		}
		if err := x.Store.Upsert(ctx, collection, points); err != nil {
			return "", fmt.Errorf("op=usecase.ContextIndex.Build: %w", err)
		}
	}
	intobs.LoggerFromContext(ctx).Info("context index built",
		slog.String("collection", collection), slog.Int("chunks", len(items)))
	return collection, nil
}

// Query returns up to k chunk texts, most similar first. k <= 0 uses TopK.
func (x ContextIndex) Query(ctx domain.Context, collection, text string, k int) ([]string, error) {
	if collection == "" || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = x.TopK
	}
	vecs, err := x.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("op=usecase.ContextIndex.Query: embed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("op=usecase.ContextIndex.Query: %w: no query vector", domain.ErrUpstream)
	}
	hits, err := x.Store.Search(ctx, collection, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.ContextIndex.Query: %w", err)
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if t, ok := h.Payload["text"].(string); ok && t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// Drop deletes the collection. Missing collections are ignored.
func (x ContextIndex) Drop(ctx domain.Context, collection string) error {
	if collection == "" {
		return nil
	}
	if err := x.Store.DeleteCollection(ctx, collection); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("op=usecase.ContextIndex.Drop: %w", err)
	}
	return nil
}
