package processor

import (
	"regexp"
	"strings"
)

// DefaultMaxTitleLength is the display-character budget for navigation
// labels when no device profile overrides it.
const DefaultMaxTitleLength = 50

// boilerplateSuffixes matches feed boilerplate appended to article
// titles: source markers, duplicate-ordinal suffixes like "(2)", and
// the recurring ": Markets Wrap" section marker.
var boilerplateSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-–—]\s*Bloomberg.*$`),
	regexp.MustCompile(`\s*\(\d+\)\s*$`),
	regexp.MustCompile(`(?i)\s*\|\s*Bloomberg.*$`),
	regexp.MustCompile(`(?i)\s*:\s*Markets\s*Wrap\s*$`),
}

// breakTokens are natural break points tried in priority order when a
// title must be cut down.
var breakTokens = []string{":", " - ", " – ", ", "}

// minBreakSegment is the minimum length of a leading segment accepted
// at a break token. It prevents degenerate one-word titles when a
// token appears near the start.
const minBreakSegment = 20

// ShortenTitle reduces an article title to at most maxLen display
// characters. Boilerplate suffixes are stripped first; if the title
// still exceeds the budget it is cut at a natural break point, and as
// a last resort hard-truncated at a word boundary with an ellipsis.
// The function is pure and idempotent.
func ShortenTitle(title string, maxLen int) string {
	for _, re := range boilerplateSuffixes {
		title = re.ReplaceAllString(title, "")
	}

	runes := []rune(title)
	if len(runes) <= maxLen {
		return strings.TrimSpace(title)
	}

	for _, token := range breakTokens {
		if !strings.Contains(title, token) {
			continue
		}
		first := []rune(strings.SplitN(title, token, 2)[0])
		if len(first) >= minBreakSegment && len(first) <= maxLen {
			return strings.TrimSpace(string(first))
		}
	}

	// Hard truncate, backing up to a word boundary when one exists in
	// the tail of the truncated window.
	truncated := runes[:maxLen-3]
	lastSpace := -1
	for i, r := range truncated {
		if r == ' ' {
			lastSpace = i
		}
	}
	if float64(lastSpace) > float64(maxLen)*0.6 {
		truncated = truncated[:lastSpace]
	}
	return strings.TrimSpace(string(truncated)) + "..."
}
