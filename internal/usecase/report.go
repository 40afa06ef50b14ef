package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// Section header synonyms in priority order. The first synonym with
// non-empty content wins, even if a later one would match a longer header.
var (
	summaryHeaders   = []string{"SUMMARY", "OVERVIEW", "PERFORMANCE"}
	strengthsHeaders = []string{"STRENGTHS", "STRONG POINTS", "POSITIVES"}
	areasHeaders     = []string{"AREAS_TO_IMPROVE", "WEAKNESSES", "IMPROVEMENT AREAS", "AREAS FOR IMPROVEMENT"}
	tipsHeaders      = []string{"ACTIONABLE_TIPS", "TIPS", "ADVICE", "IMPROVEMENT", "RECOMMENDATIONS"}
	scoresHeaders    = []string{"SCORES", "RATINGS", "EVALUATION"}
)

// requiredAnchors are matched case-sensitively. A reply containing none of
// them is treated as malformed.
var requiredAnchors = []string{"SUMMARY:", "STRENGTHS:", "SCORES:"}

// nextHeader finds the start of the following section: an all-caps word of
// four or more letters (optionally followed by more all-caps words) and a colon.
var nextHeader = regexp.MustCompile(`\b[A-Z][A-Z_]{3,}(?: [A-Z][A-Z_]{2,})*\s*:`)

var scorePatterns = map[string][]*regexp.Regexp{
	domain.ScoreTechnical:            compileScorePatterns(`Technical`, `Technical Knowledge`, `Technical Skills`),
	domain.ScoreCommunication:        compileScorePatterns(`Communication`, `Communication Skills`),
	domain.ScoreProblemSolving:       compileScorePatterns(`Problem\s*Solving`, `Problem-Solving`),
	domain.ScoreProfessionalPresence: compileScorePatterns(`Professional\s*Presence`, `Cultural\s*Fit`, `Professionalism`),
	domain.ScoreOverall:              compileScorePatterns(`Overall`, `Overall Score`, `Overall Rating`),
}

var (
	headerPatterns = map[string]*regexp.Regexp{}
	listItemBreak  = regexp.MustCompile(`(?m)(?:^|\s+)\d+[.)]\s+`)
	bulletPrefix   = regexp.MustCompile(`^\s*(?:[-*•]+\s*)+`)
	cleaner        = ai.NewResponseCleaner()
)

func init() {
	for _, group := range [][]string{summaryHeaders, strengthsHeaders, areasHeaders, tipsHeaders, scoresHeaders} {
		for _, h := range group {
			words := strings.Fields(h)
			for i, w := range words {
				words[i] = regexp.QuoteMeta(w)
			}
			headerPatterns[h] = regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\s*:`)
		}
	}
}

func compileScorePatterns(names ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(names))
	for _, n := range names {
		out = append(out, regexp.MustCompile(`(?i)\b`+n+`:?\s*(\d+)`))
	}
	return out
}

// FallbackReportText is substituted when the evaluation call fails or the
// reply has none of the required anchors.
const FallbackReportText = `SUMMARY: The student demonstrated a good understanding of the interview process and provided relevant responses to the questions asked. There were some areas that could be improved, but overall this was a solid performance.

STRENGTHS:
1. Clear communication with well-structured responses
2. Good use of specific examples to illustrate points
3. Maintained professional demeanor throughout the interview

AREAS_TO_IMPROVE:
1. Could provide more detailed technical explanations
2. Sometimes responses were too general
3. Could demonstrate more knowledge of the specific industry

ACTIONABLE_TIPS: Before your next interview, research the company more thoroughly and prepare specific examples of your work that directly relate to the position. Practice answering technical questions with more precision and depth. Consider recording yourself in mock interviews to identify areas where you can improve your delivery.

SCORES:
- Technical: 7
- Communication: 8
- Problem Solving: 7
- Professional Presence: 8
- Overall: 7
`

// HasRequiredAnchors reports whether text contains at least one of
// "SUMMARY:", "STRENGTHS:" or "SCORES:" (case-sensitive).
func HasRequiredAnchors(text string) bool {
	for _, a := range requiredAnchors {
		if strings.Contains(text, a) {
			return true
		}
	}
	return false
}

// ExtractReport turns a free-text evaluation into a Report tagged with where
// its content came from:
//   - ReportFallback when the reply has none of the required anchors,
//   - ReportSample when anchors exist but nothing could be extracted,
//   - ReportParsed otherwise.
func ExtractReport(raw string) domain.Report {
	text := cleaner.CleanReportText(raw)
	if !HasRequiredAnchors(text) {
		return FallbackReport()
	}
	r := parseReport(text)
	if r.Empty() {
		s := SampleReport()
		s.Raw = raw
		return s
	}
	r.Source = domain.ReportParsed
	r.Raw = raw
	return r
}

// FallbackReport returns the canned report built from FallbackReportText.
func FallbackReport() domain.Report {
	r := parseReport(FallbackReportText)
	r.Source = domain.ReportFallback
	r.Raw = FallbackReportText
	return r
}

// SampleReport returns the clearly labeled placeholder used when nothing
// could be extracted.
func SampleReport() domain.Report {
	return domain.Report{
		Summary:        "This is an example summary since we couldn't extract data from the evaluation.",
		Strengths:      []string{"Example strength 1", "Example strength 2", "Example strength 3"},
		AreasToImprove: []string{"Example area to improve 1", "Example area to improve 2", "Example area to improve 3"},
		ActionableTips: "Here are some example actionable tips for your future interviews.",
		Scores: map[string]int{
			domain.ScoreTechnical:            7,
			domain.ScoreCommunication:        8,
			domain.ScoreProblemSolving:       6,
			domain.ScoreProfessionalPresence: 7,
			domain.ScoreOverall:              7,
		},
		Source: domain.ReportSample,
	}
}

func parseReport(text string) domain.Report {
	r := domain.Report{
		Summary:        extractSection(text, summaryHeaders),
		Strengths:      splitItems(extractSection(text, strengthsHeaders)),
		AreasToImprove: splitItems(extractSection(text, areasHeaders)),
		ActionableTips: extractSection(text, tipsHeaders),
	}
	scores := map[string]int{}
	if section := extractSection(text, scoresHeaders); section != "" {
		scores = extractScores(section)
	}
	// Categories the section missed, e.g. after an all-caps label ended it
	// early, are looked up in the whole text.
	for category, v := range extractScores(text) {
		if _, ok := scores[category]; !ok {
			scores[category] = v
		}
	}
	if len(scores) > 0 {
		r.Scores = scores
	}
	return r
}

// extractSection returns the content after the first header synonym that
// yields non-empty text, up to the next header-like token or end of text.
func extractSection(text string, headers []string) string {
	for _, h := range headers {
		re := headerPatterns[h]
		for _, loc := range re.FindAllStringIndex(text, -1) {
			rest := text[loc[1]:]
			if end := nextHeader.FindStringIndex(rest); end != nil {
				rest = rest[:end[0]]
			}
			if content := strings.TrimSpace(rest); content != "" {
				return content
			}
		}
	}
	return ""
}

// extractScores applies each category's patterns in order. Only the first
// match of a pattern is considered; values outside [1,10] are rejected and
// the next pattern is tried.
func extractScores(text string) map[string]int {
	out := map[string]int{}
	for _, category := range domain.ScoreCategories {
		for _, re := range scorePatterns[category] {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			v, err := strconv.Atoi(m[1])
			if err != nil || v < 1 || v > 10 {
				continue
			}
			out[category] = v
			break
		}
	}
	return out
}

// splitItems turns a numbered or bulleted block into list items.
func splitItems(block string) []string {
	if block == "" {
		return nil
	}
	block = listItemBreak.ReplaceAllString(block, "\n")
	var items []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

// FormatReport renders a report back into the sectioned text layout the
// evaluation prompt asks for.
func FormatReport(r domain.Report) string {
	var b strings.Builder
	if r.Summary != "" {
		fmt.Fprintf(&b, "SUMMARY: %s\n\n", r.Summary)
	}
	writeList := func(header string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(header + ":\n")
		for i, it := range items {
			fmt.Fprintf(&b, "%d. %s\n", i+1, it)
		}
		b.WriteString("\n")
	}
	writeList("STRENGTHS", r.Strengths)
	writeList("AREAS_TO_IMPROVE", r.AreasToImprove)
	if r.ActionableTips != "" {
		fmt.Fprintf(&b, "ACTIONABLE_TIPS: %s\n\n", r.ActionableTips)
	}
	if len(r.Scores) > 0 {
		b.WriteString("SCORES:\n")
		for _, c := range domain.ScoreCategories {
			if v, ok := r.Scores[c]; ok {
				fmt.Fprintf(&b, "- %s: %d\n", c, v)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
