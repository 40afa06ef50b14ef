package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrPrecondition      = errors.New("precondition failed")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstream          = errors.New("upstream failure")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrMalformedOutput   = errors.New("malformed model output")
	ErrInternal          = errors.New("internal error")
)

// ModelTier selects which chat model a flow runs on.
type ModelTier string

// Model tiers. Lite backs unstructured chat; Standard backs interviewing,
// evaluation and podcast generation.
const (
	TierLite     ModelTier = "lite"
	TierStandard ModelTier = "standard"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Message is one utterance in the interview transcript.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// DocumentKind enumerates the uploaded document slots.
const (
	DocumentResume      = "resume"
	DocumentCoverLetter = "cover_letter"
)

// Chunk is a contiguous slice of document text. Embeddings live in the
// vector store and are not carried through session storage.
type Chunk struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// DocumentRef references one ingested PDF and its chunk set.
// Immutable once ingested.
type DocumentRef struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Filename string  `json:"filename"`
	Chunks   []Chunk `json:"chunks"`
}

// ReportSource tags where a Report's content came from.
type ReportSource string

const (
	// ReportParsed is content extracted from the model's reply.
	ReportParsed ReportSource = "parsed"
	// ReportFallback is the canned report used when the call failed or the
	// reply lacked every anchor header.
	ReportFallback ReportSource = "fallback"
	// ReportSample is a placeholder used when extraction found nothing.
	ReportSample ReportSource = "sample"
)

// Score categories.
const (
	ScoreTechnical            = "Technical"
	ScoreCommunication        = "Communication"
	ScoreProblemSolving       = "Problem Solving"
	ScoreProfessionalPresence = "Professional Presence"
	ScoreOverall              = "Overall"
)

// ScoreCategories lists categories in display order.
var ScoreCategories = []string{
	ScoreTechnical,
	ScoreCommunication,
	ScoreProblemSolving,
	ScoreProfessionalPresence,
	ScoreOverall,
}

// Report is the parsed evaluation. Regeneration replaces it entirely.
type Report struct {
	Summary        string         `json:"summary,omitempty"`
	Strengths      []string       `json:"strengths,omitempty"`
	AreasToImprove []string       `json:"areas_to_improve,omitempty"`
	ActionableTips string         `json:"actionable_tips,omitempty"`
	Scores         map[string]int `json:"scores,omitempty"`
	Source         ReportSource   `json:"source"`
	Raw            string         `json:"raw"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// Clone returns a copy that shares no slices or maps with r.
func (r Report) Clone() Report {
	c := r
	c.Strengths = append([]string(nil), r.Strengths...)
	c.AreasToImprove = append([]string(nil), r.AreasToImprove...)
	if r.Scores != nil {
		c.Scores = make(map[string]int, len(r.Scores))
		for k, v := range r.Scores {
			c.Scores[k] = v
		}
	}
	return c
}

// Empty reports whether nothing at all was extracted.
func (r Report) Empty() bool {
	return r.Summary == "" && len(r.Strengths) == 0 && len(r.Scores) == 0
}

// EventType names a session lifecycle event.
type EventType string

const (
	EventSessionStarted     EventType = "session.started"
	EventInterviewCompleted EventType = "interview.completed"
	EventReportGenerated    EventType = "report.generated"
	EventPodcastGenerated   EventType = "podcast.generated"
	EventSessionReset       EventType = "session.reset"
)

// Event is published on session lifecycle transitions.
type Event struct {
	Type       EventType      `json:"type"`
	SessionID  string         `json:"session_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Ports

// ChatMessage is a single entry of a chat completion request. Role is one of
// system, user, assistant.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a model-agnostic chat completion request.
type ChatRequest struct {
	Tier        ModelTier
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatClient returns a single text completion.
type ChatClient interface {
	Chat(ctx Context, req ChatRequest) (string, error)
}

// Embedder returns one embedding vector per input text, in order.
type Embedder interface {
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// Transcriber converts an audio file to text. Silence yields "".
type Transcriber interface {
	Transcribe(ctx Context, path string) (string, error)
}

// SpeechSynthesizer converts text to MP3 audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx Context, text, voice string) ([]byte, error)
}

// TextExtractor (port)
// ExtractPath extracts text from a file at path with provided original filename.
// Implementations may call external services (e.g., Tika) or use local libraries.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// VectorPoint is one stored embedding with its payload.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// VectorHit is a search result, most similar first.
type VectorHit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorStore keeps one collection per session index.
type VectorStore interface {
	EnsureCollection(ctx Context, name string, vectorSize int) error
	Upsert(ctx Context, collection string, points []VectorPoint) error
	Search(ctx Context, collection string, vector []float32, topK int) ([]VectorHit, error)
	DeleteCollection(ctx Context, name string) error
}

// SessionStore holds transient session state. Get returns ErrNotFound for
// unknown or expired ids.
type SessionStore interface {
	Get(ctx Context, id string) (Session, error)
	Save(ctx Context, s Session) error
	Delete(ctx Context, id string) error
}

// EventPublisher emits lifecycle events. Implementations must not block the
// interview flow on delivery problems beyond the call itself.
type EventPublisher interface {
	Publish(ctx Context, e Event) error
}

// Context is an alias to allow decoupling from std context in domain.
type Context = context.Context
