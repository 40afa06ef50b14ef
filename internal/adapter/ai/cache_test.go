package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

type countingEmbedder struct {
	calls  int
	inputs [][]string
	err    error
}

func (e *countingEmbedder) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.inputs = append(e.inputs, append([]string(nil), texts...))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestEmbedCache_OnlyMissesReachBase(t *testing.T) {
	base := &countingEmbedder{}
	c := NewEmbedCache(base, 16, time.Minute)

	v1, err := c.Embed(context.Background(), []string{"alpha", "be"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{5}, {2}}, v1)

	v2, err := c.Embed(context.Background(), []string{" alpha ", "gamma", "be"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{5}, {5}, {2}}, v2)

	require.Equal(t, 2, base.calls)
	assert.Equal(t, []string{"gamma"}, base.inputs[1])
}

func TestEmbedCache_AllHitsSkipBase(t *testing.T) {
	base := &countingEmbedder{}
	c := NewEmbedCache(base, 4, time.Minute)
	_, _ = c.Embed(context.Background(), []string{"x"})
	_, _ = c.Embed(context.Background(), []string{"x"})
	assert.Equal(t, 1, base.calls)
}

func TestEmbedCache_PropagatesErrors(t *testing.T) {
	base := &countingEmbedder{err: errors.New("boom")}
	c := NewEmbedCache(base, 4, time.Minute)
	_, err := c.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
}

func TestEmbedCache_DisabledReturnsBase(t *testing.T) {
	base := &countingEmbedder{}
	assert.Same(t, base, NewEmbedCache(base, 0, time.Minute).(*countingEmbedder))
}
