package usecase

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
	"github.com/fairyhunter13/ai-interview-coach/pkg/textx"
)

// MaxSpeechChars is the synthesis input cap, counted in runes.
const MaxSpeechChars = 4000

// SpeechResult describes one synthesized audio file. Fallback marks the
// zero-byte file written when synthesis failed.
type SpeechResult struct {
	Path      string `json:"-"`
	Name      string `json:"name"`
	Fallback  bool   `json:"fallback"`
	Truncated bool   `json:"truncated,omitempty"`
}

// SpeechService converts recorded audio to text and interviewer text to MP3
// files under Dir. Output files belong to the caller, which must Release
// them after playback.
type SpeechService struct {
	Transcriber domain.Transcriber
	Synthesizer domain.SpeechSynthesizer
	Dir         string
	Voice       string
}

var audioName = regexp.MustCompile(`^(?:reply|error_audio)_([A-Za-z0-9_-]+)_[0-9A-Z]{26}\.mp3$`)

// NewSpeechService constructs a SpeechService and creates dir. An empty dir
// uses a directory under the system temp dir.
func NewSpeechService(t domain.Transcriber, s domain.SpeechSynthesizer, dir, voice string) (SpeechService, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ai-interview-coach-audio")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return SpeechService{}, fmt.Errorf("op=usecase.NewSpeechService: %w", err)
	}
	if voice == "" {
		voice = "nova"
	}
	return SpeechService{Transcriber: t, Synthesizer: s, Dir: dir, Voice: voice}, nil
}

// Transcribe writes audio to a per-call temp file, sends it to the
// transcription service and removes the file. Empty audio returns "" without
// calling upstream.
func (s SpeechService) Transcribe(ctx domain.Context, audio []byte, ext string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if ext == "" {
		ext = ".webm"
	}
	f, err := os.CreateTemp(s.Dir, "recording_*"+ext)
	if err != nil {
		return "", fmt.Errorf("op=usecase.Transcribe: %w", err)
	}
	path := f.Name()
	defer s.remove(ctx, path)
	_, werr := f.Write(audio)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return "", fmt.Errorf("op=usecase.Transcribe: %w", err)
	}
	text, err := s.Transcriber.Transcribe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("op=usecase.Transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Synthesize narrates text into reply_<session>_<ulid>.mp3. Text longer than
// MaxSpeechChars is truncated. Empty text or any upstream or write failure
// yields a zero-byte error_audio_<session>_<ulid>.mp3 instead, so a path is
// always returned unless the directory itself is unwritable.
func (s SpeechService) Synthesize(ctx domain.Context, sessionID, text string) (SpeechResult, error) {
	lg := intobs.LoggerFromContext(ctx)
	text = strings.TrimSpace(text)
	if text == "" {
		return s.fallback(ctx, sessionID, "empty text")
	}
	input, truncated := textx.Truncate(text, MaxSpeechChars)
	if truncated {
		lg.Warn("speech input truncated", slog.Int("max_chars", MaxSpeechChars))
	}
	audio, err := s.Synthesizer.Synthesize(ctx, input, s.Voice)
	if err != nil {
		lg.Error("speech synthesis failed", slog.Any("error", err))
		return s.fallback(ctx, sessionID, "synthesis failed")
	}
	if len(audio) == 0 {
		return s.fallback(ctx, sessionID, "empty audio")
	}
	name := fmt.Sprintf("reply_%s_%s.mp3", sessionID, ulid.Make().String())
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		lg.Error("writing synthesized audio failed", slog.Any("error", err))
		s.remove(ctx, path)
		return s.fallback(ctx, sessionID, "write failed")
	}
	return SpeechResult{Path: path, Name: name, Truncated: truncated}, nil
}

func (s SpeechService) fallback(ctx domain.Context, sessionID, reason string) (SpeechResult, error) {
	observability.SpeechFallbacksTotal.WithLabelValues("synthesize").Inc()
	intobs.LoggerFromContext(ctx).Warn("writing fallback audio", slog.String("reason", reason))
	name := fmt.Sprintf("error_audio_%s_%s.mp3", sessionID, ulid.Make().String())
	path := filepath.Join(s.Dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("op=usecase.Synthesize: fallback file: %w", err)
	}
	_ = f.Close()
	return SpeechResult{Path: path, Name: name, Fallback: true}, nil
}

// Resolve maps a file name served to a session back to its path. Names that
// were not produced for sessionID are rejected.
func (s SpeechService) Resolve(sessionID, name string) (string, error) {
	m := audioName.FindStringSubmatch(name)
	if m == nil || m[1] != sessionID || filepath.Base(name) != name {
		return "", fmt.Errorf("op=usecase.Resolve: %w: audio %q", domain.ErrNotFound, name)
	}
	path := filepath.Join(s.Dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("op=usecase.Resolve: %w: audio %q", domain.ErrNotFound, name)
		}
		return "", fmt.Errorf("op=usecase.Resolve: %w", err)
	}
	return path, nil
}

// Release deletes a file produced by Synthesize. Failures are logged only.
func (s SpeechService) Release(ctx domain.Context, path string) {
	if path == "" {
		return
	}
	s.remove(ctx, path)
}

func (s SpeechService) remove(ctx domain.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		intobs.LoggerFromContext(ctx).Warn("temp file cleanup failed", slog.String("path", path), slog.Any("error", err))
	}
}
