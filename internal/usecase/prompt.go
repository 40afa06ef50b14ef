package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// Chat settings per flow.
const (
	interviewMaxTokens   = 0
	interviewTemperature = 0.0
	evaluationMaxTokens  = 1500
	evaluationTemp       = 0.7
	podcastMaxTokens     = 2000
	podcastTemp          = 0.7
)

// PromptComposer builds chat requests from session state. It performs no
// I/O; retrieval happens before Compose is called.
type PromptComposer struct {
	Prompts Prompts
}

// NewPromptComposer constructs a PromptComposer with the given prompt set.
func NewPromptComposer(p Prompts) PromptComposer { return PromptComposer{Prompts: p} }

// SystemInstruction returns the persona text followed by the guidance line
// for the session's current stage.
func (c PromptComposer) SystemInstruction(stage domain.InterviewStage) string {
	return c.Prompts.InterviewerPersona + fmt.Sprintf(
		"\n\nCurrent interview stage: %s. %s You have asked %d questions so far in this stage.",
		stage.Current, c.Prompts.StageGuidance[stage.Current], stage.QuestionsAskedInStage)
}

// ComposeInterview builds the next interviewer request. History is mapped to
// assistant/user roles; when retrieved is non-empty the latest candidate
// message is replaced by the context preamble followed by "User message: "
// and the original text. Without context the history is sent unmodified.
func (c PromptComposer) ComposeInterview(history []domain.Message, stage domain.InterviewStage, retrieved []string) domain.ChatRequest {
	msgs := make([]domain.ChatMessage, 0, len(history)+1)
	msgs = append(msgs, domain.ChatMessage{Role: "system", Content: c.SystemInstruction(stage)})
	last := -1
	for i, m := range history {
		if m.Role == domain.RoleCandidate {
			last = i
		}
	}
	for i, m := range history {
		content := m.Text
		if i == last && len(retrieved) > 0 {
			content = c.withContext(strings.TrimSpace(m.Text), retrieved)
		}
		msgs = append(msgs, domain.ChatMessage{Role: chatRole(m.Role), Content: content})
	}
	return domain.ChatRequest{
		Tier:        domain.TierStandard,
		Messages:    msgs,
		MaxTokens:   interviewMaxTokens,
		Temperature: interviewTemperature,
	}
}

func (c PromptComposer) withContext(query string, retrieved []string) string {
	preamble := render(c.Prompts.ContextPreamble, map[string]string{"context": strings.Join(retrieved, "\n\n")})
	return preamble + "\n\nUser message: " + query
}

// Greeting renders the opening interviewer message.
func (c PromptComposer) Greeting(hasDocuments bool, maxQuestions int) string {
	grounding := "Based on your information"
	if hasDocuments {
		grounding = "I have reviewed your documents"
	}
	return render(c.Prompts.Greeting, map[string]string{
		"grounding": grounding,
		"questions": strconv.Itoa(maxQuestions),
	})
}

// ComposeEvaluation builds the evaluation request. The whole conversation is
// passed as the transcript after the coach instruction.
func (c PromptComposer) ComposeEvaluation(s domain.Session) domain.ChatRequest {
	role := strings.TrimSpace(s.JobDescription)
	if role == "" {
		role = c.Prompts.DefaultRole
	}
	msgs := []domain.ChatMessage{{Role: "system", Content: render(c.Prompts.Evaluation, map[string]string{"role": role})}}
	for _, m := range s.Messages {
		msgs = append(msgs, domain.ChatMessage{Role: chatRole(m.Role), Content: m.Text})
	}
	return domain.ChatRequest{
		Tier:        domain.TierStandard,
		Messages:    msgs,
		MaxTokens:   evaluationMaxTokens,
		Temperature: evaluationTemp,
	}
}

// ComposePodcast builds the podcast script request from the raw report text
// and, when non-empty, the formatted interview transcript.
func (c PromptComposer) ComposePodcast(reportText, transcript string) domain.ChatRequest {
	user := "Here is the interview evaluation report:\n\n" + reportText
	if strings.TrimSpace(transcript) != "" {
		user += "\n\nHere is the full interview transcript:\n\n" + transcript
	}
	return domain.ChatRequest{
		Tier: domain.TierStandard,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: c.Prompts.PodcastHost},
			{Role: "user", Content: user},
		},
		MaxTokens:   podcastMaxTokens,
		Temperature: podcastTemp,
	}
}

func chatRole(r domain.Role) string {
	if r == domain.RoleInterviewer {
		return "assistant"
	}
	return "user"
}
