// Package ai provides AI client wrappers and reply post-processing used by
// the application.
package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// embedCache wraps an Embedder and caches vectors by text hash. Only misses
// reach the base embedder, in one batched call.
type embedCache struct {
	base  domain.Embedder
	cache *expirable.LRU[string, []float32]
}

// NewEmbedCache wraps base with an expiring LRU of the given capacity.
// If capacity <= 0, base is returned unmodified.
func NewEmbedCache(base domain.Embedder, capacity int, ttl time.Duration) domain.Embedder {
	if capacity <= 0 || base == nil {
		return base
	}
	return &embedCache{base: base, cache: expirable.NewLRU[string, []float32](capacity, nil, ttl)}
}

func (c *embedCache) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	missIdx := make([]int, 0)
	missTexts := make([]string, 0)
	for i, t := range texts {
		if v, ok := c.cache.Get(keyFor(t)); ok {
			res[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missIdx) == 0 {
		return res, nil
	}
	vecs, err := c.base.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		if j >= len(vecs) {
			break
		}
		res[idx] = vecs[j]
		c.cache.Add(keyFor(missTexts[j]), vecs[j])
	}
	return res, nil
}

func keyFor(text string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(h[:])
}
