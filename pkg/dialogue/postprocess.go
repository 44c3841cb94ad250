package dialogue

import (
	"regexp"
	"strings"
	"unicode"
)

// Markup that reads fine on a screen but not out loud.
var (
	codeBlockRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisRe   = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	bulletRe     = regexp.MustCompile(`(?m)^\s*[-*•]\s+`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// stripMarkup removes markdown constructs that a TTS voice would read
// literally, keeping the underlying text.
func stripMarkup(text string) string {
	text = codeBlockRe.ReplaceAllString(text, " ")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = emphasisRe.ReplaceAllString(text, "$2")
	text = headingRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// capWords truncates text to at most limit words, preferring to cut at a
// sentence boundary inside the window so the voice does not stop mid
// thought.
func capWords(text string, limit int) string {
	words := strings.Fields(text)
	if limit <= 0 || len(words) <= limit {
		return text
	}

	truncated := strings.Join(words[:limit], " ")
	if i := lastSentenceEnd(truncated); i > 0 {
		return truncated[:i+1]
	}
	return truncated + "."
}

func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

// resumePhrase is prepended when the agent picks the conversation back up
// after the caller interrupted the previous reply.
const resumePhrase = "Sorry about that. "

// polish prepares reply text for spoken delivery.
func polish(text string, wordCap int, resumed bool) string {
	text = capWords(stripMarkup(text), wordCap)
	if text == "" {
		return text
	}
	if resumed {
		text = resumePhrase + text
	}
	return text
}

// looksLikeQuestion reports whether an utterance reads as an information
// request worth a knowledge lookup.
func looksLikeQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	first := strings.ToLower(strings.TrimFunc(strings.Fields(trimmed)[0], func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	switch first {
	case "what", "when", "where", "who", "why", "how", "which",
		"can", "could", "would", "will", "is", "are", "do", "does", "did":
		return true
	}
	return false
}
