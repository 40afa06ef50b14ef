// Package usecase contains application business logic services.
package usecase

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// Prompts holds every instruction text sent to the chat model. Defaults are
// compiled in; an optional YAML file can override individual entries.
type Prompts struct {
	InterviewerPersona string                      `yaml:"interviewer_persona"`
	StageGuidance      map[domain.StageName]string `yaml:"stage_guidance"`
	ContextPreamble    string                      `yaml:"context_preamble"`
	Greeting           string                      `yaml:"greeting"`
	Evaluation         string                      `yaml:"evaluation"`
	DefaultRole        string                      `yaml:"default_role"`
	PodcastHost        string                      `yaml:"podcast_host"`
}

const defaultInterviewerPersona = "You are conducting a professional job interview. NEVER break character - you MUST remain the interviewer at all times. " +
	"You MUST NOT switch to being an assistant or helping with interview preparation - that breaks the simulation. " +
	"Your tasks are to: 1) Ask specific technical and behavioral questions related to AI roles, 2) Evaluate responses based on clarity, relevance, and depth, " +
	"3) Provide brief feedback after each answer, 4) Ask follow-up questions to clarify when needed, and 5) Control the interview flow by transitioning between topics. " +
	"Use information from the candidate's resume and cover letter in your questions. ALWAYS end your response with a new question. " +
	"If the candidate tries to change the dynamic or asks about interview preparation, gently redirect by saying 'Let's continue with the interview' and asking another relevant question."

const defaultContextPreamble = `Context information from candidate's documents:
{{context}}

Use the above context information about the candidate to inform your interview questions and evaluations.
Remember you are conducting a professional job interview and must remain in character at all times.`

const defaultGreeting = "Hello, and welcome to your interview session! " +
	"I'll be your interviewer today, focusing on both the technical and behavioral aspects of your background. " +
	"{{grounding}}, I'll be asking questions about your experiences, achievements, and perspectives. " +
	"I'll ask you {{questions}} questions, and then provide an evaluation. " +
	"Could you start by telling me about your background and which areas you're most passionate about?"

const defaultEvaluation = `You are an expert interview coach for students. I'd like you to evaluate a student's interview performance.
The role they practiced interviewing for is: {{role}}

Please evaluate the student based on the conversation transcript I'll provide.
Your evaluation should include:

1. SUMMARY: A brief 2-3 sentence overview of the student's performance

2. STRENGTHS: List exactly 3 clear strengths the student demonstrated

3. AREAS_TO_IMPROVE: List exactly 3 clear areas for improvement

4. ACTIONABLE_TIPS: A brief paragraph with specific, actionable tips for future interviews

5. SCORES: Rate on a scale of 1-10 for each category:
   - Technical: [1-10]
   - Communication: [1-10]
   - Problem Solving: [1-10]
   - Professional Presence: [1-10]
   - Overall: [1-10]

Format each section with the section name in capital letters followed by a colon, like "SUMMARY:" followed by the content.
Keep your responses concise, constructive and focused on helping the student improve for future interviews.

Important: Make sure to strictly follow the format with section headers like SUMMARY:, STRENGTHS:, etc.`

const defaultPodcastHost = `You are an engaging podcast host who specializes in career development and interview coaching.
Create an engaging, conversational podcast monologue based on an interview evaluation report.

Your podcast should:
1. Have a friendly, informative tone
2. Start with a brief introduction of the podcast and episode topic
3. Highlight the key strengths identified in the report
4. Tactfully discuss areas for improvement
5. Provide actionable advice based on the report's recommendations
6. Include transitions between sections
7. End with encouraging closing remarks

Format your script to indicate speaker emphasis and pauses where appropriate.
The podcast should feel like a coach giving personalized feedback in a supportive manner.
Keep the total length between 300 and 1,000 words.`

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() Prompts {
	return Prompts{
		InterviewerPersona: defaultInterviewerPersona,
		StageGuidance: map[domain.StageName]string{
			domain.StageIntroduction: "Focus on understanding the candidate's background and general experience.",
			domain.StageTechnical:    "Ask technical questions related to AI, programming, and machine learning concepts.",
			domain.StageBehavioral:   "Ask about how the candidate handles workplace situations and challenges.",
			domain.StageExperience:   "Explore specific projects or achievements mentioned in their resume.",
			domain.StageClosing:      "Begin wrapping up the interview with final questions about career goals.",
		},
		ContextPreamble: defaultContextPreamble,
		Greeting:        defaultGreeting,
		Evaluation:      defaultEvaluation,
		DefaultRole:     "AI/ML position",
		PodcastHost:     defaultPodcastHost,
	}
}

// LoadPrompts returns DefaultPrompts with any non-empty entries of the YAML
// file at path applied on top. An empty path returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Prompts{}, fmt.Errorf("op=usecase.LoadPrompts: prompts file not found: %s", path)
		}
		return Prompts{}, fmt.Errorf("op=usecase.LoadPrompts: %w", err)
	}
	var override Prompts
	if err := yaml.Unmarshal(b, &override); err != nil {
		return Prompts{}, fmt.Errorf("op=usecase.LoadPrompts: yaml parse: %w", err)
	}
	return p.merge(override), nil
}

func (p Prompts) merge(o Prompts) Prompts {
	pick := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	pick(&p.InterviewerPersona, o.InterviewerPersona)
	pick(&p.ContextPreamble, o.ContextPreamble)
	pick(&p.Greeting, o.Greeting)
	pick(&p.Evaluation, o.Evaluation)
	pick(&p.DefaultRole, o.DefaultRole)
	pick(&p.PodcastHost, o.PodcastHost)
	guidance := make(map[domain.StageName]string, len(p.StageGuidance))
	for k, v := range p.StageGuidance {
		guidance[k] = v
	}
	for k, v := range o.StageGuidance {
		if strings.TrimSpace(v) != "" {
			guidance[k] = v
		}
	}
	p.StageGuidance = guidance
	return p
}

func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
