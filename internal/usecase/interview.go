package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
)

// StartInput carries what a candidate provides before the interview.
type StartInput struct {
	Documents      []UploadedDocument
	JobDescription string
}

// AnswerInput is one candidate answer, either recorded audio or text.
type AnswerInput struct {
	Text     string
	Audio    []byte
	AudioExt string
}

// TurnResult is the outcome of one interaction. Warning is set when the turn
// degraded (no index, transcription failure, fallback audio) and Session is
// the state after the turn.
type TurnResult struct {
	Session   domain.Session `json:"session"`
	Reply     string         `json:"reply,omitempty"`
	Audio     *SpeechResult  `json:"audio,omitempty"`
	Completed bool           `json:"completed"`
	Warning   string         `json:"warning,omitempty"`
	// Discarded is set when Reset removed the session; a new one must be
	// started.
	Discarded bool `json:"discarded,omitempty"`
}

// InterviewService drives the scripted interview: ingestion and greeting at
// start, then one composed model reply per answered question until the
// question cap is reached.
type InterviewService struct {
	Sessions       domain.SessionStore
	Ingestion      IngestionService
	Index          ContextIndex
	Composer       PromptComposer
	Chat           domain.ChatClient
	Speech         SpeechService
	Events         domain.EventPublisher
	Locks          *KeyedMutex
	Detector       *ai.CharacterBreakDetector
	StageThreshold int
	MaxQuestions   int
	Now            func() time.Time
}

// Start validates the inputs, ingests documents, builds the Context Index,
// and greets the candidate. At least one document or a job description is
// required. A failing index build degrades to an interview without document
// context; a failing extraction fails the call.
func (s InterviewService) Start(ctx domain.Context, in StartInput) (TurnResult, error) {
	jd := strings.TrimSpace(in.JobDescription)
	if len(in.Documents) == 0 && jd == "" {
		return TurnResult{}, fmt.Errorf("op=usecase.Start: %w: upload a resume or cover letter, or paste a job description", domain.ErrPrecondition)
	}
	id := uuid.NewString()
	ctx = intobs.ContextWithSession(ctx, id)
	lg := intobs.LoggerFromContext(ctx)
	now := nowFunc(s.Now)

	sess := domain.NewSession(id, now, s.StageThreshold, s.MaxQuestions)
	sess.JobDescription = jd

	refs, err := s.Ingestion.Ingest(ctx, in.Documents)
	if err != nil {
		return TurnResult{}, fmt.Errorf("op=usecase.Start: %w", err)
	}
	sess.Documents = refs

	var warning string
	if len(refs) > 0 {
		collection, err := s.Index.Build(ctx, id, refs)
		if err != nil {
			lg.Warn("context index unavailable, continuing without document context", slog.Any("error", err))
			warning = "Your documents could not be indexed; the interview will continue without them."
			if derr := s.Index.Drop(ctx, CollectionName(id)); derr != nil {
				lg.Warn("dropping partial index failed", slog.Any("error", derr))
			}
		}
		sess.IndexCollection = collection
	}

	greeting := s.Composer.Greeting(len(refs) > 0, sess.MaxQuestions)
	sess = sess.WithMessage(domain.RoleInterviewer, greeting, now)
	audio, err := s.Speech.Synthesize(ctx, id, greeting)
	if err != nil {
		return TurnResult{}, fmt.Errorf("op=usecase.Start: %w", err)
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		s.Speech.Release(ctx, audio.Path)
		return TurnResult{}, fmt.Errorf("op=usecase.Start: %w", err)
	}

	observability.ObserveSessionStarted(len(refs) > 0)
	publish(ctx, s.Events, domain.EventSessionStarted, id, map[string]any{
		"documents":       len(refs),
		"job_description": jd != "",
		"indexed":         sess.HasIndex(),
	})
	lg.Info("interview started", slog.Int("documents", len(refs)), slog.Bool("indexed", sess.HasIndex()))
	return TurnResult{Session: sess, Reply: greeting, Audio: &audio, Warning: joinWarnings(warning, fallbackWarning(audio))}, nil
}

// Answer records one candidate answer. Audio is transcribed first; a failed
// or silent transcription leaves the session unchanged and returns a
// warning. When the answer reaches the question cap the interview is
// finished with the thank-you message; otherwise the next question is
// composed with the updated stage and retrieved document context.
func (s InterviewService) Answer(ctx domain.Context, id string, in AnswerInput) (TurnResult, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()
	ctx = intobs.ContextWithSession(ctx, id)
	lg := intobs.LoggerFromContext(ctx)

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w", err)
	}
	if !sess.Started() {
		return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w: interview not started", domain.ErrPrecondition)
	}
	if sess.Complete {
		return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w: interview already complete", domain.ErrPrecondition)
	}

	text := strings.TrimSpace(in.Text)
	if len(in.Audio) > 0 {
		transcript, err := s.Speech.Transcribe(ctx, in.Audio, in.AudioExt)
		if err != nil {
			lg.Error("transcription failed", slog.Any("error", err))
			observability.SpeechFallbacksTotal.WithLabelValues("transcribe").Inc()
			return TurnResult{Session: sess, Warning: "We couldn't transcribe your answer. Please try recording again."}, nil
		}
		text = transcript
		if text == "" {
			return TurnResult{Session: sess, Warning: "No speech was detected. Please try recording again."}, nil
		}
	} else if text == "" {
		return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w: answer text or audio is required", domain.ErrInvalidArgument)
	}

	now := nowFunc(s.Now)
	answeredStage := sess.Stage.Current
	next := sess.RecordAnswer(text, now)
	observability.AnswersTotal.WithLabelValues(string(answeredStage)).Inc()

	if next.QuestionCapReached() {
		next = next.Finish(now)
		audio, err := s.Speech.Synthesize(ctx, id, domain.ThankYouMessage)
		if err != nil {
			return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w", err)
		}
		if err := s.Sessions.Save(ctx, next); err != nil {
			s.Speech.Release(ctx, audio.Path)
			return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w", err)
		}
		publish(ctx, s.Events, domain.EventInterviewCompleted, id, map[string]any{
			"questions_answered": next.QuestionsAnswered,
			"final_stage":        string(next.Stage.Current),
		})
		lg.Info("interview completed", slog.Int("questions_answered", next.QuestionsAnswered))
		return TurnResult{Session: next, Reply: domain.ThankYouMessage, Audio: &audio, Completed: true, Warning: fallbackWarning(audio)}, nil
	}

	retrieved, err := s.Index.Query(ctx, next.IndexCollection, text, 0)
	if err != nil {
		lg.Warn("context retrieval failed, answering without document context", slog.Any("error", err))
		retrieved = nil
	}
	req := s.Composer.ComposeInterview(next.Messages, next.Stage, retrieved)
	reply, err := s.Chat.Chat(ctx, req)
	if err != nil {
		return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w: empty interviewer reply", domain.ErrUpstream)
	}
	if s.Detector != nil {
		if indicator, broke := s.Detector.Detect(reply); broke {
			observability.CharacterBreaksTotal.Inc()
			lg.Warn("interviewer reply out of persona", slog.String("indicator", indicator))
		}
	}

	next = next.WithMessage(domain.RoleInterviewer, reply, nowFunc(s.Now))
	audio, err := s.Speech.Synthesize(ctx, id, reply)
	if err != nil {
		return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w", err)
	}
	if err := s.Sessions.Save(ctx, next); err != nil {
		s.Speech.Release(ctx, audio.Path)
		return TurnResult{}, fmt.Errorf("op=usecase.Answer: %w", err)
	}
	lg.Info("answer recorded",
		slog.String("stage", string(next.Stage.Current)),
		slog.Int("questions_in_stage", next.Stage.QuestionsAskedInStage),
		slog.Int("questions_answered", next.QuestionsAnswered),
		slog.Int("retrieved_chunks", len(retrieved)))
	return TurnResult{Session: next, Reply: reply, Audio: &audio, Warning: fallbackWarning(audio)}, nil
}

// Get returns the session.
func (s InterviewService) Get(ctx domain.Context, id string) (domain.Session, error) {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("op=usecase.Get: %w", err)
	}
	return sess, nil
}

// Reset clears the conversation, evaluation and podcast. With keepDocuments
// the documents, index and job description survive and the interviewer
// greets the candidate again. Without it the session and its index are
// discarded, the same as Delete.
func (s InterviewService) Reset(ctx domain.Context, id string, keepDocuments bool) (TurnResult, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()
	ctx = intobs.ContextWithSession(ctx, id)
	lg := intobs.LoggerFromContext(ctx)

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return TurnResult{}, fmt.Errorf("op=usecase.Reset: %w", err)
	}
	now := nowFunc(s.Now)
	if !keepDocuments {
		if err := s.Index.Drop(ctx, sess.IndexCollection); err != nil {
			lg.Warn("dropping context index failed", slog.Any("error", err))
		}
		if err := s.Sessions.Delete(ctx, id); err != nil {
			return TurnResult{}, fmt.Errorf("op=usecase.Reset: %w", err)
		}
		publish(ctx, s.Events, domain.EventSessionReset, id, map[string]any{"keep_documents": false})
		lg.Info("session reset", slog.Bool("keep_documents", false))
		return TurnResult{Session: sess.Reset(false, now), Discarded: true}, nil
	}
	next := sess.Reset(true, now)

	res := TurnResult{}
	if next.HasGrounding() {
		greeting := s.Composer.Greeting(len(next.Documents) > 0, next.MaxQuestions)
		next = next.WithMessage(domain.RoleInterviewer, greeting, now)
		audio, err := s.Speech.Synthesize(ctx, id, greeting)
		if err != nil {
			return TurnResult{}, fmt.Errorf("op=usecase.Reset: %w", err)
		}
		res.Reply = greeting
		res.Audio = &audio
		res.Warning = fallbackWarning(audio)
	}
	if err := s.Sessions.Save(ctx, next); err != nil {
		if res.Audio != nil {
			s.Speech.Release(ctx, res.Audio.Path)
		}
		return TurnResult{}, fmt.Errorf("op=usecase.Reset: %w", err)
	}
	publish(ctx, s.Events, domain.EventSessionReset, id, map[string]any{"keep_documents": true})
	lg.Info("session reset", slog.Bool("keep_documents", true))
	res.Session = next
	return res, nil
}

// Delete discards the session and its Context Index.
func (s InterviewService) Delete(ctx domain.Context, id string) error {
	unlock := s.Locks.Lock(id)
	defer unlock()
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("op=usecase.Delete: %w", err)
	}
	if err := s.Index.Drop(ctx, sess.IndexCollection); err != nil {
		intobs.LoggerFromContext(ctx).Warn("dropping context index failed", slog.Any("error", err))
	}
	if err := s.Sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("op=usecase.Delete: %w", err)
	}
	return nil
}

func fallbackWarning(a SpeechResult) string {
	if a.Fallback {
		return "Audio could not be generated for this reply."
	}
	return ""
}

func joinWarnings(ws ...string) string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}
