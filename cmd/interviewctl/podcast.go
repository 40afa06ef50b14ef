package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai/openai"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/sessionstore"
	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

func newPodcastCmd() *cobra.Command {
	var reportPath, transcriptPath, outDir string
	cmd := &cobra.Command{
		Use:   "podcast",
		Short: "Narrate an evaluation report as a podcast MP3",
		Long: "Extracts the report from --report, asks the model for a podcast script " +
			"(optionally grounded on a transcript of 'Interviewer:'/'Candidate:' lines) and " +
			"narrates it into the podcast directory. Requires OPENAI_API_KEY.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if outDir != "" {
				cfg.PodcastDir = outDir
			}
			raw, err := readInput(cmd, reportPath)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			sess := domain.NewSession(uuid.NewString(), now, cfg.StageThreshold, cfg.MaxQuestions)
			if transcriptPath != "" {
				text, err := readInput(cmd, transcriptPath)
				if err != nil {
					return err
				}
				sess.Messages = parseTranscript(text)
			}
			report := usecase.ExtractReport(raw)
			sess.Evaluation = &report
			sess.Complete = true

			sessions := sessionstore.NewMemoryStore(time.Hour, nil)
			if err := sessions.Save(cmd.Context(), sess); err != nil {
				return err
			}
			prompts, err := usecase.LoadPrompts(cfg.PromptsFile)
			if err != nil {
				return err
			}
			aicl := openai.New(cfg)
			speech, err := usecase.NewSpeechService(aicl, aicl, cfg.AudioDir, cfg.SpeechVoice)
			if err != nil {
				return err
			}
			svc, err := usecase.NewPodcastService(usecase.PodcastService{
				Sessions: sessions,
				Composer: usecase.NewPromptComposer(prompts),
				Chat:     aicl,
				Speech:   speech,
				Locks:    usecase.NewKeyedMutex(),
				Dir:      cfg.PodcastDir,
			})
			if err != nil {
				return err
			}
			res, err := svc.Generate(cmd.Context(), sess.ID, len(sess.Messages) > 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Script)
			fmt.Fprintf(cmd.ErrOrStderr(), "podcast written to %s (report source: %s)\n", res.Path, report.Source)
			return nil
		},
	}
	cmd.Flags().StringVarP(&reportPath, "report", "r", "", "Evaluation text file, or '-' for stdin")
	cmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "Optional interview transcript file")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Podcast directory (defaults to PODCAST_DIR)")
	_ = cmd.MarkFlagRequired("report")
	return cmd
}

// parseTranscript turns "Interviewer: ..." and "Candidate: ..." lines into
// messages. Lines without a speaker continue the previous message.
func parseTranscript(text string) []domain.Message {
	var msgs []domain.Message
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Interviewer:"):
			msgs = append(msgs, domain.Message{Role: domain.RoleInterviewer, Text: strings.TrimSpace(strings.TrimPrefix(line, "Interviewer:"))})
		case strings.HasPrefix(line, "Candidate:"):
			msgs = append(msgs, domain.Message{Role: domain.RoleCandidate, Text: strings.TrimSpace(strings.TrimPrefix(line, "Candidate:"))})
		case len(msgs) > 0:
			msgs[len(msgs)-1].Text += "\n" + line
		}
	}
	return msgs
}
