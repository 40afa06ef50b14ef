package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

// ReadinessCheck probes one backing service.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Interview  usecase.InterviewService
	Evaluation usecase.EvaluationService
	Podcast    usecase.PodcastService
	Chat       usecase.ChatService
	Checks     []ReadinessCheck
}

// NewServer constructs the HTTP handlers.
func NewServer(cfg config.Config, interview usecase.InterviewService, eval usecase.EvaluationService, podcast usecase.PodcastService, chat usecase.ChatService, checks ...ReadinessCheck) *Server {
	return &Server{Cfg: cfg, Interview: interview, Evaluation: eval, Podcast: podcast, Chat: chat, Checks: checks}
}

type documentView struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

type sessionView struct {
	ID                string                `json:"id"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	JobDescription    string                `json:"job_description,omitempty"`
	Documents         []documentView        `json:"documents"`
	Indexed           bool                  `json:"indexed"`
	Messages          []domain.Message      `json:"messages"`
	Stage             domain.InterviewStage `json:"stage"`
	QuestionsAnswered int                   `json:"questions_answered"`
	MaxQuestions      int                   `json:"max_questions"`
	Complete          bool                  `json:"complete"`
	HasReport         bool                  `json:"has_report"`
	PodcastURL        string                `json:"podcast_url,omitempty"`
}

type turnView struct {
	Session       sessionView `json:"session"`
	Reply         string      `json:"reply,omitempty"`
	AudioURL      string      `json:"audio_url,omitempty"`
	AudioFallback bool        `json:"audio_fallback,omitempty"`
	Completed     bool        `json:"completed"`
	Warning       string      `json:"warning,omitempty"`
}

func viewSession(s domain.Session) sessionView {
	docs := make([]documentView, 0, len(s.Documents))
	for _, d := range s.Documents {
		docs = append(docs, documentView{ID: d.ID, Kind: d.Kind, Filename: d.Filename, Chunks: len(d.Chunks)})
	}
	v := sessionView{
		ID:                s.ID,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		JobDescription:    s.JobDescription,
		Documents:         docs,
		Indexed:           s.HasIndex(),
		Messages:          s.Messages,
		Stage:             s.Stage,
		QuestionsAnswered: s.QuestionsAnswered,
		MaxQuestions:      s.MaxQuestions,
		Complete:          s.Complete,
		HasReport:         s.Evaluation != nil,
	}
	if s.PodcastAudioPath != "" {
		v.PodcastURL = "/v1/podcasts/" + filepath.Base(s.PodcastAudioPath)
	}
	return v
}

func viewTurn(t usecase.TurnResult) turnView {
	v := turnView{Session: viewSession(t.Session), Reply: t.Reply, Completed: t.Completed, Warning: t.Warning}
	if t.Audio != nil && t.Audio.Name != "" {
		v.AudioURL = fmt.Sprintf("/v1/sessions/%s/audio/%s", t.Session.ID, t.Audio.Name)
		v.AudioFallback = t.Audio.Fallback
	}
	return v
}

// sessionID validates the {id} path parameter and tags the request logger.
func sessionID(r *http.Request) (string, *http.Request, error) {
	id := chi.URLParam(r, "id")
	if err := validSessionID(id); err != nil {
		return "", r, err
	}
	ctx := intobs.ContextWithSession(r.Context(), id)
	return id, r.WithContext(ctx), nil
}

// StartSessionHandler ingests the uploaded resume and cover letter (PDF)
// and the pasted job description, then starts the interview. JSON bodies
// carrying only a job description are accepted as well.
func (s *Server) StartSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := acceptsJSON(r); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var in usecase.StartInput
		if isMultipart(r) {
			limit := s.Cfg.MaxUploadMB << 20
			r.Body = http.MaxBytesReader(w, r.Body, limit*2+maxJSONBody)
			if err := r.ParseMultipartForm(limit); err != nil {
				writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err), map[string]any{"max_mb": s.Cfg.MaxUploadMB})
				return
			}
			defer func() { _ = r.MultipartForm.RemoveAll() }()
			for _, kind := range []string{domain.DocumentResume, domain.DocumentCoverLetter} {
				data, h, err := readFormFile(r, kind, limit)
				if err != nil {
					writeError(w, r, err, map[string]string{"field": kind})
					return
				}
				if data == nil {
					continue
				}
				doc, err := savePDF(kind, data, h)
				if err != nil {
					writeError(w, r, err, map[string]string{"field": kind, "filename": h.Filename})
					return
				}
				defer removeTemp(r.Context(), doc.Path)
				in.Documents = append(in.Documents, doc)
			}
			in.JobDescription = SanitizeString(r.FormValue("job_description"), maxJobDescription)
		} else {
			var req startRequest
			if err := decodeJSON(w, r, &req, true); err != nil {
				writeError(w, r, err, detailsOf(err))
				return
			}
			in.JobDescription = SanitizeString(req.JobDescription, maxJobDescription)
		}

		res, err := s.Interview.Start(r.Context(), in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, viewTurn(res))
	}
}

// GetSessionHandler returns the session state.
func (s *Server) GetSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, r, err := sessionID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		sess, err := s.Interview.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, viewSession(sess))
	}
}

// AnswerHandler records one answer: multipart "audio" is transcribed, a JSON
// body supplies the text directly.
func (s *Server) AnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, r, err := sessionID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var in usecase.AnswerInput
		if isMultipart(r) {
			limit := s.Cfg.MaxAudioMB << 20
			r.Body = http.MaxBytesReader(w, r.Body, limit+maxJSONBody)
			if err := r.ParseMultipartForm(limit); err != nil {
				writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err), map[string]any{"max_mb": s.Cfg.MaxAudioMB})
				return
			}
			defer func() { _ = r.MultipartForm.RemoveAll() }()
			data, h, err := readFormFile(r, "audio", limit)
			if err != nil {
				writeError(w, r, err, map[string]string{"field": "audio"})
				return
			}
			if data == nil {
				writeError(w, r, fmt.Errorf("%w: audio file required", domain.ErrInvalidArgument), map[string]string{"field": "audio"})
				return
			}
			ext, err := audioExt(data, h)
			if err != nil {
				writeError(w, r, err, map[string]string{"field": "audio"})
				return
			}
			in.Audio, in.AudioExt = data, ext
		} else {
			var req answerRequest
			if err := decodeJSON(w, r, &req, false); err != nil {
				writeError(w, r, err, detailsOf(err))
				return
			}
			in.Text = SanitizeString(req.Text, 0)
		}

		res, err := s.Interview.Answer(r.Context(), id, in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, viewTurn(res))
	}
}

// EvaluateHandler generates (or regenerates) the evaluation report.
func (s *Server) EvaluateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, r, err := sessionID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.Evaluation.Evaluate(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ReportHandler returns the stored evaluation report.
func (s *Server) ReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, r, err := sessionID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		rep, err := s.Evaluation.Report(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, usecase.EvaluationResult{Report: rep})
	}
}

// PodcastHandler composes and narrates the podcast for a session's report.
func (s *Server) PodcastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, r, err := sessionID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req podcastRequest
		if err := decodeJSON(w, r, &req, true); err != nil {
			writeError(w, r, err, detailsOf(err))
			return
		}
		res, err := s.Podcast.Generate(r.Context(), id, req.IncludeTranscript)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"script":      res.Script,
			"podcast_url": "/v1/podcasts/" + res.Name,
		})
	}
}

// AudioHandler serves one synthesized reply. The file is deleted after a
// complete GET; ranged reads keep it so players can seek, and the audio
// sweeper collects whatever is never fully fetched.
func (s *Server) AudioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, r, err := sessionID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		speech := s.Interview.Speech
		path, err := speech.Resolve(id, chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		serveMP3(ww, r, path)
		if r.Method == http.MethodGet && r.Header.Get("Range") == "" && ww.Status() == http.StatusOK {
			speech.Release(r.Context(), path)
		}
	}
}

// PodcastFileHandler serves a stored podcast.
func (s *Server) PodcastFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := s.Podcast.Resolve(chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(path)))
		serveMP3(w, r, path)
	}
}

func serveMP3(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path) // #nosec G304 -- path comes from a validated file name
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: audio unavailable", domain.ErrNotFound), nil)
		return
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// ResetHandler restarts the interview over the same documents, or discards
// the session when keep_documents is false.
func (s *Server) ResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, r, err := sessionID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req resetRequest
		if err := decodeJSON(w, r, &req, true); err != nil {
			writeError(w, r, err, detailsOf(err))
			return
		}
		res, err := s.Interview.Reset(r.Context(), id, req.KeepDocuments)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if res.Discarded {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, viewTurn(res))
	}
}

// DeleteSessionHandler discards a session and its index.
func (s *Server) DeleteSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, r, err := sessionID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Interview.Delete(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ChatHandler answers free-form chat on the lite model tier.
func (s *Server) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := acceptsJSON(r); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req chatRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, r, err, detailsOf(err))
			return
		}
		msgs := make([]domain.ChatMessage, len(req.Messages))
		for i, m := range req.Messages {
			msgs[i] = domain.ChatMessage{Role: m.Role, Content: SanitizeString(m.Content, 0)}
		}
		reply, err := s.Chat.Reply(r.Context(), msgs)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}

// ReadyzHandler probes every configured backing service.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, len(s.Checks))
		st := http.StatusOK
		for _, c := range s.Checks {
			if err := c.Check(ctx); err != nil {
				checks = append(checks, check{Name: c.Name, OK: false, Details: err.Error()})
				st = http.StatusServiceUnavailable
				continue
			}
			checks = append(checks, check{Name: c.Name, OK: true})
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// HealthzHandler reports liveness.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func removeTemp(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		intobs.LoggerFromContext(ctx).Warn("temp upload cleanup failed", slog.String("path", path), slog.Any("error", err))
	}
}

// Mount registers the API routes. aiLimit wraps every route that calls the
// model; pass nil to skip it.
func (s *Server) Mount(r chi.Router, aiLimit func(http.Handler) http.Handler) {
	if aiLimit == nil {
		aiLimit = func(next http.Handler) http.Handler { return next }
	}
	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(ai chi.Router) {
			ai.Use(aiLimit)
			ai.Post("/sessions", s.StartSessionHandler())
			ai.Post("/sessions/{id}/answers", s.AnswerHandler())
			ai.Post("/sessions/{id}/report", s.EvaluateHandler())
			ai.Post("/sessions/{id}/podcast", s.PodcastHandler())
			ai.Post("/sessions/{id}/reset", s.ResetHandler())
			ai.Post("/chat", s.ChatHandler())
		})
		v1.Get("/sessions/{id}", s.GetSessionHandler())
		v1.Delete("/sessions/{id}", s.DeleteSessionHandler())
		v1.Get("/sessions/{id}/report", s.ReportHandler())
		v1.Get("/sessions/{id}/audio/{name}", s.AudioHandler())
		v1.Get("/podcasts/{name}", s.PodcastFileHandler())
	})
}
