package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

func TestStart_RequiresGrounding(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	_, err := h.interview.Start(context.Background(), usecase.StartInput{JobDescription: "   "})
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	h.chat.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestStart_WithDocumentsBuildsIndexAndGreets(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{"resume.pdf": resumeText})
	res, err := h.interview.Start(context.Background(), usecase.StartInput{
		Documents: []usecase.UploadedDocument{h.upload(domain.DocumentResume, "resume.pdf")},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	assert.Contains(t, res.Reply, "I have reviewed your documents")
	require.NotNil(t, res.Audio)
	assert.False(t, res.Audio.Fallback)

	s := res.Session
	assert.Equal(t, usecase.CollectionName(s.ID), s.IndexCollection)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, domain.RoleInterviewer, s.Messages[0].Role)
	assert.Equal(t, domain.StageIntroduction, s.Stage.Current)

	stored, err := h.interview.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Messages, stored.Messages)
	assert.Equal(t, []domain.EventType{domain.EventSessionStarted}, h.events.types())
}

func TestStart_ExtractionFailureFailsCall(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{})
	_, err := h.interview.Start(context.Background(), usecase.StartInput{
		Documents: []usecase.UploadedDocument{h.upload(domain.DocumentResume, "scan.pdf")},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStart_IndexFailureDegrades(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{"resume.pdf": resumeText})
	h.interview.Index = usecase.NewContextIndex(failingStore{h.vectors}, h.embedder, testDim, 3)
	res, err := h.interview.Start(context.Background(), usecase.StartInput{
		Documents: []usecase.UploadedDocument{h.upload(domain.DocumentResume, "resume.pdf")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.False(t, res.Session.HasIndex())
	assert.Len(t, res.Session.Documents, 1)
	assert.True(t, res.Session.Started())
}

func TestAnswer_RunsToQuestionCap(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	var requests []domain.ChatRequest
	h.chat.On("Chat", mock.Anything, mock.MatchedBy(isInterviewRequest)).
		Run(func(args mock.Arguments) { requests = append(requests, args.Get(1).(domain.ChatRequest)) }).
		Return("Good. What is your favourite data structure?", nil)

	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{JobDescription: "ML engineer"})
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "Based on your information")
	id := res.Session.ID

	res, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Text: "I studied statistics."})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, 1, res.Session.QuestionsAnswered)
	assert.Equal(t, domain.StageIntroduction, res.Session.Stage.Current)
	assert.Equal(t, 1, res.Session.Stage.QuestionsAskedInStage)

	res, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Text: "Hash maps."})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, domain.StageTechnical, res.Session.Stage.Current)

	res, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Text: "Tries, actually."})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, domain.ThankYouMessage, res.Reply)
	assert.True(t, res.Session.Complete)
	assert.Len(t, res.Session.Messages, 7)

	h.chat.AssertNumberOfCalls(t, "Chat", 2)
	require.Len(t, requests, 2)
	assert.Contains(t, requests[0].Messages[0].Content, "Current interview stage: introduction.")
	assert.Contains(t, requests[0].Messages[0].Content, "You have asked 1 questions so far in this stage.")
	assert.Contains(t, requests[1].Messages[0].Content, "Current interview stage: technical.")
	assert.Equal(t, "Hash maps.", requests[1].Messages[len(requests[1].Messages)-1].Content)

	_, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Text: "One more?"})
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	stored, err := h.interview.Get(ctx, id)
	require.NoError(t, err)
	thanks := 0
	for _, m := range stored.Messages {
		if m.Text == domain.ThankYouMessage {
			thanks++
		}
	}
	assert.Equal(t, 1, thanks)
	assert.Equal(t, []domain.EventType{domain.EventSessionStarted, domain.EventInterviewCompleted}, h.events.types())
}

func TestAnswer_UsesDocumentContext(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{"resume.pdf": resumeText})
	var last domain.ChatRequest
	h.chat.On("Chat", mock.Anything, mock.MatchedBy(isInterviewRequest)).
		Run(func(args mock.Arguments) { last = args.Get(1).(domain.ChatRequest) }).
		Return("Interesting. How did you size the Kafka cluster?", nil)

	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{
		Documents: []usecase.UploadedDocument{h.upload(domain.DocumentResume, "resume.pdf")},
	})
	require.NoError(t, err)

	_, err = h.interview.Answer(ctx, res.Session.ID, usecase.AnswerInput{Text: "My fraud detection pipeline on Kafka"})
	require.NoError(t, err)
	content := last.Messages[len(last.Messages)-1].Content
	assert.True(t, strings.HasPrefix(content, "Context information from candidate's documents:"))
	assert.Contains(t, content, "fraud detection pipeline")
	assert.True(t, strings.HasSuffix(content, "User message: My fraud detection pipeline on Kafka"))

	stored, err := h.interview.Get(ctx, res.Session.ID)
	require.NoError(t, err)
	answer, ok := stored.LastCandidateMessage()
	require.True(t, ok)
	assert.Equal(t, "My fraud detection pipeline on Kafka", answer.Text)
}

func TestAnswer_TranscriptionProblemsLeaveSessionUnchanged(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{JobDescription: "SRE"})
	require.NoError(t, err)
	id := res.Session.ID

	h.trans.text = "   "
	res, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Audio: []byte("silence"), AudioExt: ".webm"})
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "No speech was detected")
	assert.Len(t, res.Session.Messages, 1)

	h.trans.err = domain.ErrUpstream
	res, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Audio: []byte("noise")})
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "couldn't transcribe")

	stored, err := h.interview.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 1)
	assert.Zero(t, stored.QuestionsAnswered)
	h.chat.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestAnswer_AudioIsTranscribed(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.chat.On("Chat", mock.Anything, mock.Anything).Return("Next question?", nil)
	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{JobDescription: "SRE"})
	require.NoError(t, err)

	h.trans.text = "I keep systems up."
	res, err = h.interview.Answer(ctx, res.Session.ID, usecase.AnswerInput{Audio: []byte("voice"), AudioExt: ".webm"})
	require.NoError(t, err)
	answer, ok := res.Session.LastCandidateMessage()
	require.True(t, ok)
	assert.Equal(t, "I keep systems up.", answer.Text)
	assert.Equal(t, "Next question?", res.Reply)
}

func TestAnswer_ChatFailureKeepsSessionResumable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{JobDescription: "SRE"})
	require.NoError(t, err)
	id := res.Session.ID

	h.chat.On("Chat", mock.Anything, mock.Anything).Return("", domain.ErrUpstreamTimeout).Once()
	_, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Text: "first try"})
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)

	stored, err := h.interview.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 1)

	h.chat.On("Chat", mock.Anything, mock.Anything).Return("Thanks. Next?", nil)
	res, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Text: "second try"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.QuestionsAnswered)
}

func TestAnswer_InvalidInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	_, err := h.interview.Answer(ctx, "missing", usecase.AnswerInput{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	res, err := h.interview.Start(ctx, usecase.StartInput{JobDescription: "SRE"})
	require.NoError(t, err)
	_, err = h.interview.Answer(ctx, res.Session.ID, usecase.AnswerInput{Text: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestReset_KeepDocumentsGreetsAgain(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{"resume.pdf": resumeText})
	h.chat.On("Chat", mock.Anything, mock.Anything).Return("Next?", nil)
	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{
		Documents: []usecase.UploadedDocument{h.upload(domain.DocumentResume, "resume.pdf")},
	})
	require.NoError(t, err)
	id := res.Session.ID
	_, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Text: "hello"})
	require.NoError(t, err)

	res, err = h.interview.Reset(ctx, id, true)
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "I have reviewed your documents")
	require.Len(t, res.Session.Messages, 1)
	assert.Zero(t, res.Session.QuestionsAnswered)
	assert.Equal(t, domain.StageIntroduction, res.Session.Stage.Current)
	assert.True(t, res.Session.HasIndex())

	got, err := h.index.Query(ctx, res.Session.IndexCollection, "kafka", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReset_DropDocuments(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{"resume.pdf": resumeText})
	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{
		Documents: []usecase.UploadedDocument{h.upload(domain.DocumentResume, "resume.pdf")},
	})
	require.NoError(t, err)
	coll := res.Session.IndexCollection

	id := res.Session.ID
	res, err = h.interview.Reset(ctx, id, false)
	require.NoError(t, err)
	assert.True(t, res.Discarded)
	assert.Empty(t, res.Reply)
	assert.Nil(t, res.Audio)

	_, err = h.vectors.Search(ctx, coll, make([]float32, testDim), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.interview.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.interview.Answer(ctx, id, usecase.AnswerInput{Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, h.events.types(), domain.EventSessionReset)
}

func TestDelete_DropsSessionAndIndex(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{"resume.pdf": resumeText})
	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{
		Documents: []usecase.UploadedDocument{h.upload(domain.DocumentResume, "resume.pdf")},
	})
	require.NoError(t, err)

	require.NoError(t, h.interview.Delete(ctx, res.Session.ID))
	_, err = h.interview.Get(ctx, res.Session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.vectors.Search(ctx, res.Session.IndexCollection, make([]float32, testDim), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, h.interview.Delete(ctx, res.Session.ID), domain.ErrNotFound)
}

func TestAnswer_CharacterBreakIsCountedAndKept(t *testing.T) {
	h := newHarness(t, nil)
	const slip = "As an AI, I can share some general advice. What motivates you?"
	h.chat.On("Chat", mock.Anything, mock.MatchedBy(isInterviewRequest)).Return(slip, nil)
	ctx := context.Background()
	res, err := h.interview.Start(ctx, usecase.StartInput{JobDescription: "Backend engineer"})
	require.NoError(t, err)

	before := testutil.ToFloat64(observability.CharacterBreaksTotal)
	res, err = h.interview.Answer(ctx, res.Session.ID, usecase.AnswerInput{Text: "I enjoy distributed systems."})
	require.NoError(t, err)
	assert.Equal(t, slip, res.Reply)
	assert.Equal(t, slip, res.Session.Messages[len(res.Session.Messages)-1].Text)
	assert.Equal(t, before+1, testutil.ToFloat64(observability.CharacterBreaksTotal))
}
