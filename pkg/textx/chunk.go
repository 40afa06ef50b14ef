package textx

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Default chunking parameters for document ingestion.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// SplitText splits text into chunks of at most size runes. Consecutive chunks
// share up to overlap runes of trailing words. Breaks fall on whitespace
// unless a single word is longer than size.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var (
		chunks []string
		cur    []string
		curLen int
	)
	for _, atom := range splitAtoms(text, size) {
		n := utf8.RuneCountInString(atom)
		if curLen+n > size && len(cur) > 0 {
			chunks = appendChunk(chunks, cur)
			cur, curLen = tailWithin(cur, overlap)
			for len(cur) > 0 && curLen+n > size {
				curLen -= utf8.RuneCountInString(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, atom)
		curLen += n
	}
	if len(cur) > 0 {
		chunks = appendChunk(chunks, cur)
	}
	return chunks
}

// splitAtoms cuts text into words with their trailing whitespace. Words
// longer than size are hard-split.
func splitAtoms(text string, size int) []string {
	var atoms []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if inSpace && !space {
			atoms = appendAtom(atoms, text[start:i], size)
			start = i
		}
		inSpace = space
	}
	return appendAtom(atoms, text[start:], size)
}

func appendAtom(atoms []string, atom string, size int) []string {
	if atom == "" {
		return atoms
	}
	for utf8.RuneCountInString(atom) > size {
		head, rest := splitAtRune(atom, size)
		atoms = append(atoms, head)
		atom = rest
	}
	return append(atoms, atom)
}

func splitAtRune(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}

func tailWithin(atoms []string, limit int) ([]string, int) {
	total := 0
	i := len(atoms)
	for i > 0 {
		n := utf8.RuneCountInString(atoms[i-1])
		if total+n > limit {
			break
		}
		total += n
		i--
	}
	return append([]string(nil), atoms[i:]...), total
}

func appendChunk(chunks []string, atoms []string) []string {
	c := strings.TrimSpace(strings.Join(atoms, ""))
	if c == "" {
		return chunks
	}
	return append(chunks, c)
}

// Truncate cuts s to at most n runes and reports whether it did.
func Truncate(s string, n int) (string, bool) {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	head, _ := splitAtRune(s, n)
	return head, true
}
