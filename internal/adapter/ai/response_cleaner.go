package ai

import (
	"regexp"
	"strings"
)

// ResponseCleaner normalizes free-text model replies before section
// extraction. Models often decorate headers with markdown even when asked
// for plain "HEADER:" lines.
type ResponseCleaner struct{}

// NewResponseCleaner creates a new response cleaner.
func NewResponseCleaner() *ResponseCleaner {
	return &ResponseCleaner{}
}

var (
	fenceLine     = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	boldHeader    = regexp.MustCompile(`\*\*([A-Za-z_ ]+?)(:?)\*\*(:?)`)
	headingMarker = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	emphasis      = regexp.MustCompile(`__([^_\n]+)__`)
	crlf          = regexp.MustCompile(`\r\n?`)
)

// CleanReportText strips code fences, heading markers and bold/underline
// emphasis so "**SUMMARY:**" and "## SUMMARY:" read as "SUMMARY:".
func (rc *ResponseCleaner) CleanReportText(response string) string {
	response = crlf.ReplaceAllString(response, "\n")
	response = fenceLine.ReplaceAllString(response, "")
	response = headingMarker.ReplaceAllString(response, "")
	response = boldHeader.ReplaceAllStringFunc(response, func(m string) string {
		sub := boldHeader.FindStringSubmatch(m)
		colon := ""
		if sub[2] != "" || sub[3] != "" {
			colon = ":"
		}
		return sub[1] + colon
	})
	response = emphasis.ReplaceAllString(response, "$1")
	return strings.TrimSpace(response)
}
