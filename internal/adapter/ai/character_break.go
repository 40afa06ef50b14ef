package ai

import (
	"strings"
)

// CharacterBreakDetector flags interviewer replies where the model slipped
// out of the interviewer persona. Detection is a keyword heuristic; callers
// only log and count hits.
type CharacterBreakDetector struct {
	indicators []string
}

// NewCharacterBreakDetector creates a detector with the default indicators.
func NewCharacterBreakDetector() *CharacterBreakDetector {
	return &CharacterBreakDetector{indicators: []string{
		"as an ai", "as a language model", "i'm an ai", "i am an ai",
		"i cannot help with", "i can't help with", "i'm sorry, but i can",
		"here are some tips for your interview", "to prepare for your interview",
		"i'd be happy to help you prepare", "interview preparation tips",
	}}
}

// Detect returns the first matching indicator, if any.
func (d *CharacterBreakDetector) Detect(reply string) (string, bool) {
	lower := strings.ToLower(reply)
	for _, ind := range d.indicators {
		if strings.Contains(lower, ind) {
			return ind, true
		}
	}
	return "", false
}
