package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

func TestExtractReport_MinimalSections(t *testing.T) {
	t.Parallel()
	r := usecase.ExtractReport("SUMMARY: Alice did well\n\nSTRENGTHS: Clear answers\n\nSCORES: Technical: 8")
	assert.Equal(t, domain.ReportParsed, r.Source)
	assert.Equal(t, "Alice did well", r.Summary)
	assert.Contains(t, r.Strengths, "Clear answers")
	assert.Equal(t, 8, r.Scores[domain.ScoreTechnical])
}

func TestExtractReport_FullReply(t *testing.T) {
	t.Parallel()
	raw := `SUMMARY: Solid interview with clear structure.

STRENGTHS:
1. Explained trade-offs in caching
2. Improved latency by 2.5x in a past project
3. Calm under follow-up questions

AREAS_TO_IMPROVE:
- Quantify impact more often
- Slow down when answering
- Prepare questions for the interviewer

ACTIONABLE_TIPS: Practice STAR stories out loud.

SCORES:
- Technical: 8
- Communication: 7
- Problem Solving: 9
- Professional Presence: 6
- Overall: 8`
	r := usecase.ExtractReport(raw)
	require.Equal(t, domain.ReportParsed, r.Source)
	assert.Equal(t, raw, r.Raw)
	assert.Equal(t, []string{
		"Explained trade-offs in caching",
		"Improved latency by 2.5x in a past project",
		"Calm under follow-up questions",
	}, r.Strengths)
	assert.Equal(t, []string{
		"Quantify impact more often",
		"Slow down when answering",
		"Prepare questions for the interviewer",
	}, r.AreasToImprove)
	assert.Equal(t, "Practice STAR stories out loud.", r.ActionableTips)
	assert.Equal(t, map[string]int{
		domain.ScoreTechnical:            8,
		domain.ScoreCommunication:        7,
		domain.ScoreProblemSolving:       9,
		domain.ScoreProfessionalPresence: 6,
		domain.ScoreOverall:              8,
	}, r.Scores)
}

func TestExtractReport_NoHeadersUsesFallback(t *testing.T) {
	t.Parallel()
	r := usecase.ExtractReport("The candidate was friendly and answered everything. 8/10 overall.")
	assert.Equal(t, domain.ReportFallback, r.Source)
	assert.NotEmpty(t, r.Summary)
	assert.Len(t, r.Strengths, 3)
	assert.Len(t, r.AreasToImprove, 3)
	assert.NotEmpty(t, r.ActionableTips)
	assert.Len(t, r.Scores, 5)
	assert.Equal(t, usecase.FallbackReportText, r.Raw)
}

func TestExtractReport_AnchorsAreCaseSensitive(t *testing.T) {
	t.Parallel()
	r := usecase.ExtractReport("summary: fine\nstrengths: many\nscores: Technical: 9")
	assert.Equal(t, domain.ReportFallback, r.Source)
}

func TestExtractReport_NothingExtractedUsesSample(t *testing.T) {
	t.Parallel()
	r := usecase.ExtractReport("SCORES:")
	assert.Equal(t, domain.ReportSample, r.Source)
	assert.Contains(t, r.Summary, "example summary")
	assert.Equal(t, 6, r.Scores[domain.ScoreProblemSolving])
	assert.Equal(t, "SCORES:", r.Raw)
}

func TestExtractReport_RejectsOutOfRangeScores(t *testing.T) {
	t.Parallel()
	r := usecase.ExtractReport("SUMMARY: ok\n\nSCORES:\nTechnical: 15\nCommunication: 0\nOverall: 10")
	_, hasTech := r.Scores[domain.ScoreTechnical]
	_, hasComm := r.Scores[domain.ScoreCommunication]
	assert.False(t, hasTech)
	assert.False(t, hasComm)
	assert.Equal(t, 10, r.Scores[domain.ScoreOverall])
}

func TestExtractReport_FirstMatchPerPatternWins(t *testing.T) {
	t.Parallel()
	r := usecase.ExtractReport("SUMMARY: ok\n\nSCORES:\nTechnical: 6\nRevised Technical: 9")
	assert.Equal(t, 6, r.Scores[domain.ScoreTechnical])

	r = usecase.ExtractReport("SUMMARY: ok\n\nSCORES:\nTechnical: 12\nTechnical Skills: 7")
	assert.Equal(t, 7, r.Scores[domain.ScoreTechnical])
}

func TestExtractReport_ScoresFromWholeTextWhenSectionHasNone(t *testing.T) {
	t.Parallel()
	raw := "SUMMARY: Technical: 9 and Communication 6 noted.\n\nSTRENGTHS: good\n\nSCORES: see above"
	r := usecase.ExtractReport(raw)
	assert.Equal(t, 9, r.Scores[domain.ScoreTechnical])
	assert.Equal(t, 6, r.Scores[domain.ScoreCommunication])
}

func TestExtractReport_UpperCaseScoreLabelDoesNotDropCategory(t *testing.T) {
	t.Parallel()
	r := usecase.ExtractReport("SUMMARY: ok\n\nSCORES:\nTechnical: 8\nCommunication: 7\nOVERALL: 6")
	require.Equal(t, domain.ReportParsed, r.Source)
	assert.Equal(t, map[string]int{
		domain.ScoreTechnical:     8,
		domain.ScoreCommunication: 7,
		domain.ScoreOverall:       6,
	}, r.Scores)
}

func TestExtractReport_SynonymPriority(t *testing.T) {
	t.Parallel()
	raw := "SUMMARY: x\n\nPOSITIVES: from positives\n\nSTRONG POINTS: from strong points\n\nSCORES: Overall: 5"
	r := usecase.ExtractReport(raw)
	assert.Equal(t, []string{"from strong points"}, r.Strengths)

	raw = "SUMMARY: x\n\nWEAKNESSES: slow\n\nAREAS FOR IMPROVEMENT: depth\n\nSCORES: Overall: 5"
	r = usecase.ExtractReport(raw)
	assert.Equal(t, []string{"slow"}, r.AreasToImprove)
}

func TestExtractReport_HeaderCaseInsensitiveSearch(t *testing.T) {
	t.Parallel()
	r := usecase.ExtractReport("SCORES: Overall: 7\n\nOverview: Mixed-case header content.")
	assert.Equal(t, "Mixed-case header content.", r.Summary)
}

func TestExtractReport_MarkdownHeaders(t *testing.T) {
	t.Parallel()
	raw := "## **SUMMARY:** Good.\n\n**STRENGTHS:**\n1. Focus\n\n**SCORES**:\n- Technical: 7"
	r := usecase.ExtractReport(raw)
	assert.Equal(t, domain.ReportParsed, r.Source)
	assert.Equal(t, "Good.", r.Summary)
	assert.Equal(t, []string{"Focus"}, r.Strengths)
	assert.Equal(t, 7, r.Scores[domain.ScoreTechnical])
}

func TestHasRequiredAnchors(t *testing.T) {
	t.Parallel()
	assert.True(t, usecase.HasRequiredAnchors("x STRENGTHS: y"))
	assert.False(t, usecase.HasRequiredAnchors("SUMMARY - none"))
}

func TestFormatReport_ExtractsBack(t *testing.T) {
	t.Parallel()
	orig := usecase.FallbackReport()
	text := usecase.FormatReport(orig)
	again := usecase.ExtractReport(text)
	assert.Equal(t, domain.ReportParsed, again.Source)
	assert.Equal(t, orig.Summary, again.Summary)
	assert.Equal(t, orig.Strengths, again.Strengths)
	assert.Equal(t, orig.AreasToImprove, again.AreasToImprove)
	assert.Equal(t, orig.Scores, again.Scores)
}
