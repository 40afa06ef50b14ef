package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
)

// EvaluationResult is a generated report plus a warning when it is not
// parsed model output.
type EvaluationResult struct {
	Report  domain.Report `json:"report"`
	Warning string        `json:"warning,omitempty"`
}

// EvaluationService turns a completed interview into a Report.
type EvaluationService struct {
	Sessions domain.SessionStore
	Composer PromptComposer
	Chat     domain.ChatClient
	Events   domain.EventPublisher
	Locks    *KeyedMutex
	Now      func() time.Time
}

// Evaluate asks the model for an evaluation of the full conversation and
// extracts a Report. A failed call or a reply without the required anchors
// yields the fallback report; regeneration replaces any earlier report and
// invalidates the podcast built from it.
func (s EvaluationService) Evaluate(ctx domain.Context, id string) (EvaluationResult, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()
	ctx = intobs.ContextWithSession(ctx, id)
	lg := intobs.LoggerFromContext(ctx)

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("op=usecase.Evaluate: %w", err)
	}
	if !sess.Complete {
		return EvaluationResult{}, fmt.Errorf("op=usecase.Evaluate: %w: complete the interview first", domain.ErrPrecondition)
	}

	var (
		report  domain.Report
		warning string
	)
	raw, err := s.Chat.Chat(ctx, s.Composer.ComposeEvaluation(sess))
	switch {
	case err != nil:
		lg.Error("evaluation call failed, using fallback report", slog.Any("error", err))
		report = FallbackReport()
		warning = "The evaluation service was unavailable; showing a default evaluation."
	default:
		report = ExtractReport(raw)
		switch report.Source {
		case domain.ReportFallback:
			lg.Warn("evaluation reply malformed, using fallback report",
				slog.Any("error", domain.ErrMalformedOutput), slog.Int("reply_length", len(raw)))
			warning = "The evaluation didn't match the expected format; showing a default evaluation."
		case domain.ReportSample:
			lg.Warn("nothing extracted from evaluation reply, using sample report")
			warning = "Could not extract any meaningful evaluation data; showing example data."
		}
	}
	now := nowFunc(s.Now)
	report.GeneratedAt = now

	next := sess.WithEvaluation(report, now)
	if err := s.Sessions.Save(ctx, next); err != nil {
		return EvaluationResult{}, fmt.Errorf("op=usecase.Evaluate: %w", err)
	}
	observability.ObserveReport(string(report.Source), report.Scores)
	publish(ctx, s.Events, domain.EventReportGenerated, id, map[string]any{
		"source": string(report.Source),
		"scores": report.Scores,
	})
	lg.Info("evaluation generated", slog.String("source", string(report.Source)), slog.Int("scores", len(report.Scores)))
	return EvaluationResult{Report: report, Warning: warning}, nil
}

// Report returns the stored report. A session without one yields an error
// wrapping both domain.ErrNotFound and domain.ErrPrecondition.
func (s EvaluationService) Report(ctx domain.Context, id string) (domain.Report, error) {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return domain.Report{}, fmt.Errorf("op=usecase.Report: %w", err)
	}
	if sess.Evaluation == nil {
		return domain.Report{}, fmt.Errorf("op=usecase.Report: %w: %w: no evaluation available, complete the interview first", domain.ErrNotFound, domain.ErrPrecondition)
	}
	return *sess.Evaluation, nil
}
