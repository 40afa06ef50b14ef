// Package memory is an in-process vector store used when no Qdrant URL is configured.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

type collection struct {
	size   int
	points map[string]domain.VectorPoint
}

// Store keeps collections in memory and searches them by cosine similarity.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ domain.VectorStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

// EnsureCollection creates the collection if it does not exist.
func (s *Store) EnsureCollection(_ context.Context, name string, vectorSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}
	s.collections[name] = &collection{size: vectorSize, points: map[string]domain.VectorPoint{}}
	return nil
}

// Upsert inserts or replaces points by id.
func (s *Store) Upsert(_ context.Context, name string, points []domain.VectorPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("op=memory.Upsert: collection %q: %w", name, domain.ErrNotFound)
	}
	for _, p := range points {
		if c.size > 0 && len(p.Vector) != c.size {
			return fmt.Errorf("op=memory.Upsert: vector size %d, want %d: %w", len(p.Vector), c.size, domain.ErrInvalidArgument)
		}
		p.Vector = append([]float32(nil), p.Vector...)
		c.points[p.ID] = p
	}
	return nil
}

// Search returns up to topK points ordered by descending similarity. Ties
// are broken by id so results are stable.
func (s *Store) Search(_ context.Context, name string, vector []float32, topK int) ([]domain.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("op=memory.Search: collection %q: %w", name, domain.ErrNotFound)
	}
	hits := make([]domain.VectorHit, 0, len(c.points))
	for id, p := range c.points {
		hits = append(hits, domain.VectorHit{ID: id, Score: cosineSimilarity(vector, p.Vector), Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteCollection drops a collection. Unknown names are ignored.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
