package domain

import (
	"strings"
	"time"
)

// ThankYouMessage closes the interview once the question cap is reached.
const ThankYouMessage = "Thank you for completing the interview. Now I'll give you a summary report of your performance."

// DefaultMaxQuestions is the number of answered questions per interview.
const DefaultMaxQuestions = 3

// Session is one interview attempt. Transition methods never mutate the
// receiver; they return an updated copy.
type Session struct {
	ID                string         `json:"id"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	JobDescription    string         `json:"job_description,omitempty"`
	Documents         []DocumentRef  `json:"documents,omitempty"`
	IndexCollection   string         `json:"index_collection,omitempty"`
	Messages          []Message      `json:"messages"`
	Stage             InterviewStage `json:"stage"`
	QuestionsAnswered int            `json:"questions_answered"`
	MaxQuestions      int            `json:"max_questions"`
	Complete          bool           `json:"complete"`
	Evaluation        *Report        `json:"evaluation,omitempty"`
	PodcastScript     string         `json:"podcast_script,omitempty"`
	PodcastAudioPath  string         `json:"podcast_audio_path,omitempty"`
}

// NewSession creates an empty session.
func NewSession(id string, now time.Time, stageThreshold, maxQuestions int) Session {
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}
	return Session{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		Messages:     []Message{},
		Stage:        NewInterviewStage(stageThreshold),
		MaxQuestions: maxQuestions,
	}
}

func (s Session) clone() Session {
	c := s
	c.Messages = append([]Message(nil), s.Messages...)
	c.Documents = nil
	for _, d := range s.Documents {
		d.Chunks = append([]Chunk(nil), d.Chunks...)
		c.Documents = append(c.Documents, d)
	}
	if s.Evaluation != nil {
		ev := s.Evaluation.Clone()
		c.Evaluation = &ev
	}
	return c
}

// HasGrounding reports whether the session has documents or a job description.
func (s Session) HasGrounding() bool {
	return len(s.Documents) > 0 || strings.TrimSpace(s.JobDescription) != ""
}

// HasIndex reports whether a Context Index was built for this session.
func (s Session) HasIndex() bool { return s.IndexCollection != "" }

// Started reports whether the interviewer has spoken.
func (s Session) Started() bool { return len(s.Messages) > 0 }

// CandidateAnswers counts candidate messages.
func (s Session) CandidateAnswers() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleCandidate {
			n++
		}
	}
	return n
}

// LastCandidateMessage returns the most recent candidate message.
func (s Session) LastCandidateMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleCandidate {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// WithMessage appends a message.
func (s Session) WithMessage(role Role, text string, now time.Time) Session {
	c := s.clone()
	c.Messages = append(c.Messages, Message{Role: role, Text: text})
	c.UpdatedAt = now
	return c
}

// RecordAnswer appends the candidate's answer and advances the question
// counters. It does not check Complete; callers gate on it.
func (s Session) RecordAnswer(text string, now time.Time) Session {
	c := s.WithMessage(RoleCandidate, text, now)
	c.QuestionsAnswered++
	c.Stage = c.Stage.RecordAnswer()
	return c
}

// QuestionCapReached reports whether the interview has used up its questions.
func (s Session) QuestionCapReached() bool {
	limit := s.MaxQuestions
	if limit <= 0 {
		limit = DefaultMaxQuestions
	}
	return s.QuestionsAnswered >= limit
}

// Finish marks the interview complete and appends ThankYouMessage. Calling it
// again is a no-op.
func (s Session) Finish(now time.Time) Session {
	if s.Complete {
		return s
	}
	c := s.WithMessage(RoleInterviewer, ThankYouMessage, now)
	c.Complete = true
	return c
}

// WithEvaluation replaces the report and invalidates any podcast built from
// the previous one.
func (s Session) WithEvaluation(r Report, now time.Time) Session {
	c := s.clone()
	ev := r.Clone()
	c.Evaluation = &ev
	c.PodcastScript = ""
	c.PodcastAudioPath = ""
	c.UpdatedAt = now
	return c
}

// WithPodcast records the podcast script and its permanent audio path.
func (s Session) WithPodcast(script, audioPath string, now time.Time) Session {
	c := s.clone()
	c.PodcastScript = script
	c.PodcastAudioPath = audioPath
	c.UpdatedAt = now
	return c
}

// Reset clears the interview. With keepDocuments the documents, index and
// job description survive so a new attempt can start on the same material.
func (s Session) Reset(keepDocuments bool, now time.Time) Session {
	c := NewSession(s.ID, s.CreatedAt, s.Stage.Threshold, s.MaxQuestions)
	c.UpdatedAt = now
	if keepDocuments {
		c.Documents = append([]DocumentRef(nil), s.Documents...)
		c.IndexCollection = s.IndexCollection
		c.JobDescription = s.JobDescription
	}
	return c
}

// Transcript renders the conversation as "Interviewer: ..." and
// "Candidate: ..." paragraphs.
func (s Session) Transcript() string {
	var b strings.Builder
	for _, m := range s.Messages {
		switch m.Role {
		case RoleInterviewer:
			b.WriteString("Interviewer: ")
		case RoleCandidate:
			b.WriteString("Candidate: ")
		default:
			continue
		}
		b.WriteString(m.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
