package usecase

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
)

// PodcastResult is a narrated report.
type PodcastResult struct {
	Script string `json:"script"`
	Name   string `json:"name"`
	Path   string `json:"-"`
}

// PodcastService turns an evaluation into a narrated monologue stored under
// Dir as interview_podcast_<unix>.mp3.
type PodcastService struct {
	Sessions domain.SessionStore
	Composer PromptComposer
	Chat     domain.ChatClient
	Speech   SpeechService
	Events   domain.EventPublisher
	Locks    *KeyedMutex
	Dir      string
	Now      func() time.Time
}

var podcastName = regexp.MustCompile(`^interview_podcast_\d+(?:_\d+)?\.mp3$`)

// NewPodcastService constructs a PodcastService and creates dir.
func NewPodcastService(p PodcastService) (PodcastService, error) {
	if p.Dir == "" {
		p.Dir = "podcasts"
	}
	if err := os.MkdirAll(p.Dir, 0o750); err != nil {
		return PodcastService{}, fmt.Errorf("op=usecase.NewPodcastService: %w", err)
	}
	return p, nil
}

// Generate composes a script from the session's report (plus the transcript
// when includeTranscript is set), narrates it and stores the audio
// permanently. Any failure returns an error and leaves the session as it was.
func (s PodcastService) Generate(ctx domain.Context, id string, includeTranscript bool) (PodcastResult, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()
	ctx = intobs.ContextWithSession(ctx, id)
	lg := intobs.LoggerFromContext(ctx)

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return PodcastResult{}, fmt.Errorf("op=usecase.Podcast: %w", err)
	}
	if sess.Evaluation == nil {
		return PodcastResult{}, fmt.Errorf("op=usecase.Podcast: %w: generate the evaluation report first", domain.ErrPrecondition)
	}

	res, err := s.generate(ctx, sess, includeTranscript)
	if err != nil {
		observability.PodcastsTotal.WithLabelValues("failed").Inc()
		lg.Error("podcast generation failed", slog.Any("error", err))
		return PodcastResult{}, fmt.Errorf("op=usecase.Podcast: %w", err)
	}
	next := sess.WithPodcast(res.Script, res.Path, nowFunc(s.Now))
	if err := s.Sessions.Save(ctx, next); err != nil {
		return PodcastResult{}, fmt.Errorf("op=usecase.Podcast: %w", err)
	}
	observability.PodcastsTotal.WithLabelValues("succeeded").Inc()
	publish(ctx, s.Events, domain.EventPodcastGenerated, id, map[string]any{
		"name":               res.Name,
		"include_transcript": includeTranscript,
	})
	lg.Info("podcast generated", slog.String("name", res.Name), slog.Int("script_length", len(res.Script)))
	return res, nil
}

func (s PodcastService) generate(ctx domain.Context, sess domain.Session, includeTranscript bool) (PodcastResult, error) {
	reportText := sess.Evaluation.Raw
	if sess.Evaluation.Source != domain.ReportParsed || strings.TrimSpace(reportText) == "" {
		reportText = FormatReport(*sess.Evaluation)
	}
	transcript := ""
	if includeTranscript {
		transcript = sess.Transcript()
	}
	script, err := s.Chat.Chat(ctx, s.Composer.ComposePodcast(reportText, transcript))
	if err != nil {
		return PodcastResult{}, err
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return PodcastResult{}, fmt.Errorf("%w: empty podcast script", domain.ErrUpstream)
	}
	audio, err := s.Speech.Synthesize(ctx, sess.ID, script)
	if err != nil {
		return PodcastResult{}, err
	}
	defer s.Speech.Release(ctx, audio.Path)
	if audio.Fallback {
		return PodcastResult{}, fmt.Errorf("%w: narration failed", domain.ErrUpstream)
	}
	path, err := s.store(audio.Path)
	if err != nil {
		return PodcastResult{}, err
	}
	return PodcastResult{Script: script, Name: filepath.Base(path), Path: path}, nil
}

// store copies src into Dir under a timestamp name. Exclusive create keeps
// two podcasts from the same second apart.
func (s PodcastService) store(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer func() { _ = in.Close() }()

	ts := nowFunc(s.Now).Unix()
	for attempt := 0; attempt < 100; attempt++ {
		name := fmt.Sprintf("interview_podcast_%d.mp3", ts)
		if attempt > 0 {
			name = fmt.Sprintf("interview_podcast_%d_%d.mp3", ts, attempt)
		}
		dst := filepath.Join(s.Dir, name)
		out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
			return "", err
		}
		if err := out.Close(); err != nil {
			_ = os.Remove(dst)
			return "", err
		}
		return dst, nil
	}
	return "", fmt.Errorf("%w: no free podcast file name for %d", domain.ErrConflict, ts)
}

// Resolve returns the path of a stored podcast by file name.
func (s PodcastService) Resolve(name string) (string, error) {
	if !podcastName.MatchString(name) {
		return "", fmt.Errorf("op=usecase.ResolvePodcast: %w: podcast %q", domain.ErrNotFound, name)
	}
	path := filepath.Join(s.Dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("op=usecase.ResolvePodcast: %w: podcast %q", domain.ErrNotFound, name)
		}
		return "", fmt.Errorf("op=usecase.ResolvePodcast: %w", err)
	}
	return path, nil
}
