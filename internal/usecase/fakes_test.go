package usecase_test

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/sessionstore"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/vector/memory"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

const testDim = 128

// hashEmbedder builds bag-of-words vectors so texts sharing words are close.
type hashEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *hashEmbedder) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?")))
			v[h.Sum32()%testDim]++
		}
		var n float64
		for _, x := range v {
			n += float64(x * x)
		}
		if n > 0 {
			for j := range v {
				v[j] = float32(float64(v[j]) / math.Sqrt(n))
			}
		}
		out[i] = v
	}
	return out, nil
}

type mapExtractor struct {
	texts map[string]string
	err   error
}

func (m mapExtractor) ExtractPath(_ domain.Context, fileName, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.texts[fileName], nil
}

type mockChat struct{ mock.Mock }

func (m *mockChat) Chat(ctx domain.Context, req domain.ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type stubTranscriber struct {
	text  string
	err   error
	paths []string
}

func (s *stubTranscriber) Transcribe(_ domain.Context, path string) (string, error) {
	s.paths = append(s.paths, path)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return s.text, s.err
}

type stubSynth struct {
	mu     sync.Mutex
	inputs []string
	err    error
}

func (s *stubSynth) Synthesize(_ domain.Context, text, _ string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, text)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ID3-mp3"), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ domain.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// failingStore fails EnsureCollection to exercise degraded indexing.
type failingStore struct{ *memory.Store }

func (failingStore) EnsureCollection(domain.Context, string, int) error {
	return errors.New("qdrant unreachable")
}

type harness struct {
	sessions  *sessionstore.MemoryStore
	vectors   *memory.Store
	embedder  *hashEmbedder
	chat      *mockChat
	trans     *stubTranscriber
	synth     *stubSynth
	events    *recordingPublisher
	speech    usecase.SpeechService
	index     usecase.ContextIndex
	composer  usecase.PromptComposer
	locks     *usecase.KeyedMutex
	interview usecase.InterviewService
	eval      usecase.EvaluationService
	podcast   usecase.PodcastService
	docsDir   string
}

var fixedNow = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

func newHarness(t *testing.T, docs map[string]string) *harness {
	t.Helper()
	h := &harness{
		sessions: sessionstore.NewMemoryStore(time.Hour, nil),
		vectors:  memory.New(),
		embedder: &hashEmbedder{},
		chat:     &mockChat{},
		trans:    &stubTranscriber{},
		synth:    &stubSynth{},
		events:   &recordingPublisher{},
		locks:    usecase.NewKeyedMutex(),
		docsDir:  t.TempDir(),
	}
	speech, err := usecase.NewSpeechService(h.trans, h.synth, t.TempDir(), "nova")
	require.NoError(t, err)
	h.speech = speech
	h.index = usecase.NewContextIndex(h.vectors, h.embedder, testDim, 3)
	h.composer = usecase.NewPromptComposer(usecase.DefaultPrompts())
	now := func() time.Time { return fixedNow }
	h.interview = usecase.InterviewService{
		Sessions:       h.sessions,
		Ingestion:      usecase.NewIngestionService(mapExtractor{texts: docs}, 200, 20),
		Index:          h.index,
		Composer:       h.composer,
		Chat:           h.chat,
		Speech:         h.speech,
		Events:         h.events,
		Locks:          h.locks,
		Detector:       ai.NewCharacterBreakDetector(),
		StageThreshold: 2,
		MaxQuestions:   3,
		Now:            now,
	}
	h.eval = usecase.EvaluationService{
		Sessions: h.sessions, Composer: h.composer, Chat: h.chat, Events: h.events, Locks: h.locks, Now: now,
	}
	p, err := usecase.NewPodcastService(usecase.PodcastService{
		Sessions: h.sessions, Composer: h.composer, Chat: h.chat, Speech: h.speech,
		Events: h.events, Locks: h.locks, Dir: t.TempDir(), Now: now,
	})
	require.NoError(t, err)
	h.podcast = p
	return h
}

func (h *harness) upload(kind, name string) usecase.UploadedDocument {
	return usecase.UploadedDocument{Kind: kind, Filename: name, Path: h.docsDir + "/" + name}
}

// completedSession runs a text-only interview to the question cap.
func (h *harness) completedSession(t *testing.T) domain.Session {
	t.Helper()
	h.chat.On("Chat", mock.Anything, mock.MatchedBy(isInterviewRequest)).Return("Tell me more?", nil)
	res, err := h.interview.Start(context.Background(), usecase.StartInput{JobDescription: "Backend engineer"})
	require.NoError(t, err)
	id := res.Session.ID
	for i := 0; i < 3; i++ {
		res, err = h.interview.Answer(context.Background(), id, usecase.AnswerInput{Text: "answer"})
		require.NoError(t, err)
	}
	require.True(t, res.Completed)
	return res.Session
}

func isInterviewRequest(r domain.ChatRequest) bool {
	return len(r.Messages) > 0 && strings.HasPrefix(r.Messages[0].Content, "You are conducting a professional job interview")
}

func isEvaluationRequest(r domain.ChatRequest) bool {
	return len(r.Messages) > 0 && strings.HasPrefix(r.Messages[0].Content, "You are an expert interview coach")
}

func isPodcastRequest(r domain.ChatRequest) bool {
	return len(r.Messages) > 0 && strings.HasPrefix(r.Messages[0].Content, "You are an engaging podcast host")
}
