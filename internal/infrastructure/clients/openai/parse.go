package openai

import (
	"strings"
	"unicode/utf8"
)

// explanationLengthRatio and explanationMinRunes bound the "explanation"
// heuristic: a translation more than 4x the input length (and at least 80
// runes long) is more likely a clarification than a translation.
const (
	explanationLengthRatio = 4
	explanationMinRunes    = 80
)

// explanationPhrases are clarification markers that disqualify a
// translation output. Matching is case-insensitive.
var explanationPhrases = []string{
	"i'm sorry",
	"i am sorry",
	"as an ai",
	"cannot translate",
	"could you clarify",
	"please provide",
	"翻訳できません",
	"申し訳",
	"どういう意味",
}

// stripCodeFences removes a surrounding Markdown code block, if present.
func stripCodeFences(s string) string {
	cleaned := strings.TrimSpace(s)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

// extractJSONBlock returns the first balanced {...} or [...] block in the
// text. Free-text responses often wrap the JSON in prose; everything
// outside the block is discarded.
func extractJSONBlock(s string) (string, bool) {
	s = stripCodeFences(s)

	start := -1
	var open, close rune
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			open = r
			close = '}'
			if r == '[' {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i, r := range s[start:] {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : start+i+1], true
			}
		}
	}
	return "", false
}

// looksLikeExplanation reports whether a translation output reads like a
// clarification or apology instead of a translation. A heuristic, not a
// guarantee.
func looksLikeExplanation(input, output string) bool {
	outLen := utf8.RuneCountInString(output)
	if outLen >= explanationMinRunes && outLen > explanationLengthRatio*utf8.RuneCountInString(input) {
		return true
	}

	lowered := strings.ToLower(output)
	for _, phrase := range explanationPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
