// Package app wires application components and startup helpers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai/openai"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/events/redpanda"
	httpserver "github.com/fairyhunter13/ai-interview-coach/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/sessionstore"
	tikaext "github.com/fairyhunter13/ai-interview-coach/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/vector/memory"
	qdrantcli "github.com/fairyhunter13/ai-interview-coach/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

// Components is the wired application. Close releases the clients it owns.
type Components struct {
	Interview  usecase.InterviewService
	Evaluation usecase.EvaluationService
	Podcast    usecase.PodcastService
	Chat       usecase.ChatService
	Limiter    httpserver.Limiter
	Checks     []httpserver.ReadinessCheck
	Sweeper    *AudioSweeper

	closers []func() error
}

// Close releases clients in reverse construction order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// Build constructs every component selected by cfg: Qdrant or the in-process
// vector store, Redis or the in-process session store, and the optional
// event publisher.
func Build(ctx context.Context, cfg config.Config) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		_ = c.Close()
		return nil, fmt.Errorf("op=app.Build: %w", err)
	}

	prompts, err := usecase.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return fail(err)
	}
	composer := usecase.NewPromptComposer(prompts)

	aicl := openai.New(cfg)
	embedder := ai.NewEmbedCache(aicl, cfg.EmbedCacheSize, cfg.EmbedCacheTTL)

	var vectors domain.VectorStore
	if cfg.UsesQdrant() {
		q := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)
		vectors = q
		c.Checks = append(c.Checks, PingCheck("qdrant", q))
	} else {
		vectors = memory.New()
		slog.Info("using in-process vector store")
	}
	index := usecase.NewContextIndex(vectors, embedder, cfg.EmbeddingsDim, cfg.RetrievalTopK)

	extractor := tikaext.New(cfg.TikaURL, tikaext.WithAllowedRoots(os.TempDir()), tikaext.WithMaxRetries(2))
	c.Checks = append(c.Checks, PingCheck("tika", extractor))

	var sessions domain.SessionStore
	if cfg.UsesRedis() {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("parse REDIS_URL: %w", err))
		}
		rdb := redis.NewClient(opt)
		c.closers = append(c.closers, rdb.Close)
		store := sessionstore.NewRedisStore(rdb, cfg.SessionTTL)
		sessions = store
		c.Checks = append(c.Checks, PingCheck("redis", store))
		c.Limiter = ratelimiter.NewRedisLuaLimiter(rdb, "rate:", ratelimiter.PerMinute(cfg.AIRateLimitPerMin))
	} else {
		sessions = sessionstore.NewMemoryStore(cfg.SessionTTL, dropIndexOnExpiry(index))
		slog.Info("using in-process session store", slog.Duration("ttl", cfg.SessionTTL))
	}

	var events domain.EventPublisher
	if cfg.EventsEnabled() {
		pub, err := redpanda.NewPublisher(ctx, cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			return fail(err)
		}
		c.closers = append(c.closers, pub.Close)
		events = pub
		c.Checks = append(c.Checks, PingCheck("kafka", pub))
	}

	speech, err := usecase.NewSpeechService(aicl, aicl, cfg.AudioDir, cfg.SpeechVoice)
	if err != nil {
		return fail(err)
	}
	c.Sweeper = NewAudioSweeper(speech.Dir, cfg.AudioMaxAge, cfg.AudioSweepInterval)

	locks := usecase.NewKeyedMutex()
	c.Interview = usecase.InterviewService{
		Sessions:       sessions,
		Ingestion:      usecase.NewIngestionService(extractor, cfg.ChunkSize, cfg.ChunkOverlap),
		Index:          index,
		Composer:       composer,
		Chat:           aicl,
		Speech:         speech,
		Events:         events,
		Locks:          locks,
		Detector:       ai.NewCharacterBreakDetector(),
		StageThreshold: cfg.StageThreshold,
		MaxQuestions:   cfg.MaxQuestions,
	}
	c.Evaluation = usecase.EvaluationService{
		Sessions: sessions, Composer: composer, Chat: aicl, Events: events, Locks: locks,
	}
	c.Podcast, err = usecase.NewPodcastService(usecase.PodcastService{
		Sessions: sessions, Composer: composer, Chat: aicl, Speech: speech,
		Events: events, Locks: locks, Dir: cfg.PodcastDir,
	})
	if err != nil {
		return fail(err)
	}
	c.Chat = usecase.NewChatService(aicl)
	return c, nil
}

// dropIndexOnExpiry deletes the Context Index of sessions the in-process
// store evicts.
func dropIndexOnExpiry(index usecase.ContextIndex) func(domain.Session) {
	return func(s domain.Session) {
		if s.IndexCollection == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := index.Drop(ctx, s.IndexCollection); err != nil {
			slog.Warn("dropping expired session index failed",
				slog.String("session_id", s.ID), slog.Any("error", err))
			return
		}
		slog.Info("expired session index dropped", slog.String("session_id", s.ID))
	}
}
