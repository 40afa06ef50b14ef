package usecase_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

func TestSystemInstruction_StageLine(t *testing.T) {
	t.Parallel()
	c := usecase.NewPromptComposer(usecase.DefaultPrompts())
	stage := domain.InterviewStage{Current: domain.StageTechnical, QuestionsAskedInStage: 1, Threshold: 2}
	got := c.SystemInstruction(stage)
	assert.True(t, strings.HasPrefix(got, "You are conducting a professional job interview"))
	assert.Contains(t, got, "Current interview stage: technical. Ask technical questions related to AI, programming, and machine learning concepts. You have asked 1 questions so far in this stage.")
}

func TestComposeInterview_MapsRolesWithoutContext(t *testing.T) {
	t.Parallel()
	c := usecase.NewPromptComposer(usecase.DefaultPrompts())
	history := []domain.Message{
		{Role: domain.RoleInterviewer, Text: "Hello"},
		{Role: domain.RoleCandidate, Text: "Hi, I build data pipelines."},
	}
	req := c.ComposeInterview(history, domain.NewInterviewStage(2), nil)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, domain.ChatMessage{Role: "assistant", Content: "Hello"}, req.Messages[1])
	assert.Equal(t, domain.ChatMessage{Role: "user", Content: "Hi, I build data pipelines."}, req.Messages[2])
	assert.Equal(t, domain.TierStandard, req.Tier)
	assert.Zero(t, req.Temperature)
}

func TestComposeInterview_ReplacesLatestAnswerWithContext(t *testing.T) {
	t.Parallel()
	c := usecase.NewPromptComposer(usecase.DefaultPrompts())
	history := []domain.Message{
		{Role: domain.RoleInterviewer, Text: "Hello"},
		{Role: domain.RoleCandidate, Text: "first answer"},
		{Role: domain.RoleInterviewer, Text: "Why Go?"},
		{Role: domain.RoleCandidate, Text: "  second answer "},
	}
	req := c.ComposeInterview(history, domain.NewInterviewStage(2), []string{"chunk A", "chunk B"})
	require.Len(t, req.Messages, 5)
	assert.Equal(t, "first answer", req.Messages[2].Content)

	last := req.Messages[4].Content
	assert.True(t, strings.HasPrefix(last, "Context information from candidate's documents:\nchunk A\n\nchunk B"))
	assert.True(t, strings.HasSuffix(last, "\n\nUser message: second answer"))
	assert.Equal(t, 1, strings.Count(last, "second answer"))
}

func TestGreeting(t *testing.T) {
	t.Parallel()
	c := usecase.NewPromptComposer(usecase.DefaultPrompts())
	withDocs := c.Greeting(true, 3)
	assert.Contains(t, withDocs, "I have reviewed your documents, I'll be asking")
	assert.Contains(t, withDocs, "I'll ask you 3 questions")

	noDocs := c.Greeting(false, 5)
	assert.Contains(t, noDocs, "Based on your information, I'll be asking")
	assert.Contains(t, noDocs, "I'll ask you 5 questions")
}

func TestComposeEvaluation_Role(t *testing.T) {
	t.Parallel()
	c := usecase.NewPromptComposer(usecase.DefaultPrompts())
	s := domain.Session{Messages: []domain.Message{
		{Role: domain.RoleInterviewer, Text: "Q"},
		{Role: domain.RoleCandidate, Text: "A"},
	}}
	req := c.ComposeEvaluation(s)
	assert.Contains(t, req.Messages[0].Content, "The role they practiced interviewing for is: AI/ML position")
	assert.Equal(t, 1500, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "assistant", req.Messages[1].Role)

	s.JobDescription = "Staff Data Engineer"
	req = c.ComposeEvaluation(s)
	assert.Contains(t, req.Messages[0].Content, "interviewing for is: Staff Data Engineer")
}

func TestComposePodcast_Transcript(t *testing.T) {
	t.Parallel()
	c := usecase.NewPromptComposer(usecase.DefaultPrompts())
	req := c.ComposePodcast("SUMMARY: ok", "")
	assert.Equal(t, "Here is the interview evaluation report:\n\nSUMMARY: ok", req.Messages[1].Content)
	assert.Equal(t, 2000, req.MaxTokens)

	req = c.ComposePodcast("SUMMARY: ok", "Interviewer: Q")
	assert.Equal(t, "Here is the interview evaluation report:\n\nSUMMARY: ok\n\nHere is the full interview transcript:\n\nInterviewer: Q", req.Messages[1].Content)
}

func TestLoadPrompts(t *testing.T) {
	t.Parallel()
	p, err := usecase.LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, usecase.DefaultPrompts(), p)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_role: "Site Reliability Engineer"
stage_guidance:
  closing: "Ask about on-call expectations."
`), 0o600))
	p, err = usecase.LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Site Reliability Engineer", p.DefaultRole)
	assert.Equal(t, "Ask about on-call expectations.", p.StageGuidance[domain.StageClosing])
	assert.Equal(t, usecase.DefaultPrompts().StageGuidance[domain.StageTechnical], p.StageGuidance[domain.StageTechnical])
	assert.Equal(t, usecase.DefaultPrompts().Greeting, p.Greeting)

	_, err = usecase.LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("greeting: [unterminated"), 0o600))
	_, err = usecase.LoadPrompts(bad)
	assert.ErrorContains(t, err, "yaml parse")
}

func TestLoadPrompts_ExampleFile(t *testing.T) {
	t.Parallel()
	p, err := usecase.LoadPrompts(filepath.Join("..", "..", "configs", "prompts.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer (Go)", p.DefaultRole)
	assert.Contains(t, p.StageGuidance[domain.StageTechnical], "Go concurrency")
	assert.Equal(t, usecase.DefaultPrompts().StageGuidance[domain.StageClosing], p.StageGuidance[domain.StageClosing])

	greeting := usecase.NewPromptComposer(p).Greeting(false, 3)
	assert.Contains(t, greeting, "3 questions")
	assert.NotContains(t, greeting, "{{")
}
