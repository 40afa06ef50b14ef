package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// AudioSweeper removes reply audio that was never played back. Served
// replies are deleted by the audio handler; this catches the rest.
type AudioSweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewAudioSweeper returns nil when dir is empty.
func NewAudioSweeper(dir string, maxAge, interval time.Duration) *AudioSweeper {
	if dir == "" {
		return nil
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AudioSweeper{dir: dir, maxAge: maxAge, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *AudioSweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("audio sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func isSpeechFile(name string) bool {
	return strings.HasPrefix(name, "reply_") ||
		strings.HasPrefix(name, "error_audio_") ||
		strings.HasPrefix(name, "recording_")
}

// sweepOnce returns the number of files removed.
func (s *AudioSweeper) sweepOnce(ctx context.Context) int {
	_, span := otel.Tracer("audio.sweeper").Start(ctx, "AudioSweeper.sweepOnce")
	defer span.End()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		span.RecordError(err)
		slog.Error("audio sweep failed to list directory", slog.String("dir", s.dir), slog.Any("error", err))
		return 0
	}
	cutoff := s.now().Add(-s.maxAge)
	checked, removed := 0, 0
	for _, e := range entries {
		if e.IsDir() || !isSpeechFile(e.Name()) {
			continue
		}
		checked++
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("audio sweep failed to remove file", slog.String("file", e.Name()), slog.Any("error", err))
			continue
		}
		removed++
	}
	span.SetAttributes(
		attribute.Int("audio.files_checked", checked),
		attribute.Int("audio.files_removed", removed),
		attribute.Float64("audio.max_age_seconds", s.maxAge.Seconds()),
	)
	if removed > 0 {
		slog.Info("stale audio removed", slog.Int("files", removed))
	}
	return removed
}
