package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestSession_CompletionAfterThreeAnswersIsIdempotent(t *testing.T) {
	s := NewSession("s1", t0, 2, 3)
	s = s.WithMessage(RoleInterviewer, "Tell me about yourself", t0)

	for i := 0; i < 3; i++ {
		require.False(t, s.QuestionCapReached())
		s = s.RecordAnswer("answer", t0)
	}
	require.True(t, s.QuestionCapReached())
	assert.Equal(t, StageTechnical, s.Stage.Current)

	s = s.Finish(t0)
	s = s.Finish(t0)
	s = s.Finish(t0)

	assert.True(t, s.Complete)
	count := 0
	for _, m := range s.Messages {
		if m.Text == ThankYouMessage {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, ThankYouMessage, s.Messages[len(s.Messages)-1].Text)
}

func TestSession_TransitionsReturnCopies(t *testing.T) {
	s := NewSession("s1", t0, 2, 3)
	next := s.RecordAnswer("hello", t0.Add(time.Second))

	assert.Empty(t, s.Messages)
	assert.Equal(t, 0, s.QuestionsAnswered)
	assert.Len(t, next.Messages, 1)
	assert.Equal(t, 1, next.QuestionsAnswered)
	assert.Equal(t, t0.Add(time.Second), next.UpdatedAt)
}

func TestSession_EvaluationIsNotShared(t *testing.T) {
	report := Report{
		Strengths: []string{"clear"},
		Scores:    map[string]int{ScoreOverall: 7},
		Source:    ReportParsed,
	}
	s := NewSession("s1", t0, 2, 3).WithEvaluation(report, t0)
	report.Scores[ScoreOverall] = 1
	report.Strengths[0] = "changed"
	assert.Equal(t, 7, s.Evaluation.Scores[ScoreOverall])
	assert.Equal(t, "clear", s.Evaluation.Strengths[0])

	next := s.RecordAnswer("more", t0)
	next.Evaluation.Scores[ScoreOverall] = 2
	next.Evaluation.Strengths[0] = "mutated"
	assert.Equal(t, 7, s.Evaluation.Scores[ScoreOverall])
	assert.Equal(t, "clear", s.Evaluation.Strengths[0])
}

func TestSession_DocumentChunksAreNotShared(t *testing.T) {
	s := NewSession("s1", t0, 2, 3)
	s.Documents = []DocumentRef{{ID: "d1", Chunks: []Chunk{{Index: 0, Text: "go"}}}}
	next := s.RecordAnswer("a", t0)
	next.Documents[0].Chunks[0].Text = "rust"
	assert.Equal(t, "go", s.Documents[0].Chunks[0].Text)
}

func TestSession_ResetKeepsDocumentsWhenAsked(t *testing.T) {
	s := NewSession("s1", t0, 2, 3)
	s.Documents = []DocumentRef{{ID: "d1", Kind: DocumentResume, Filename: "cv.pdf"}}
	s.IndexCollection = "session_s1"
	s.JobDescription = "Backend engineer"
	s = s.RecordAnswer("a", t0).Finish(t0)
	s = s.WithEvaluation(Report{Source: ReportParsed}, t0)

	kept := s.Reset(true, t0)
	assert.Empty(t, kept.Messages)
	assert.False(t, kept.Complete)
	assert.Nil(t, kept.Evaluation)
	assert.Equal(t, StageIntroduction, kept.Stage.Current)
	assert.Len(t, kept.Documents, 1)
	assert.Equal(t, "session_s1", kept.IndexCollection)
	assert.Equal(t, "Backend engineer", kept.JobDescription)

	wiped := s.Reset(false, t0)
	assert.Empty(t, wiped.Documents)
	assert.False(t, wiped.HasIndex())
	assert.False(t, wiped.HasGrounding())
	assert.Equal(t, "s1", wiped.ID)
}

func TestSession_WithEvaluationClearsPodcast(t *testing.T) {
	s := NewSession("s1", t0, 2, 3).WithPodcast("script", "podcasts/a.mp3", t0)
	s = s.WithEvaluation(Report{Summary: "ok"}, t0)
	assert.Empty(t, s.PodcastScript)
	assert.Empty(t, s.PodcastAudioPath)
	require.NotNil(t, s.Evaluation)
	assert.Equal(t, "ok", s.Evaluation.Summary)
}

func TestSession_Transcript(t *testing.T) {
	s := NewSession("s1", t0, 2, 3).
		WithMessage(RoleInterviewer, "Hi", t0).
		WithMessage(RoleCandidate, "Hello", t0)
	assert.Equal(t, "Interviewer: Hi\n\nCandidate: Hello", s.Transcript())

	last, ok := s.LastCandidateMessage()
	require.True(t, ok)
	assert.Equal(t, "Hello", last.Text)
	assert.Equal(t, 1, s.CandidateAnswers())
}

func TestReport_Empty(t *testing.T) {
	assert.True(t, Report{ActionableTips: "tips only"}.Empty())
	assert.False(t, Report{Scores: map[string]int{ScoreOverall: 7}}.Empty())
}
