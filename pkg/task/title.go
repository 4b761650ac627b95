package task

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonWordDashSpace = regexp.MustCompile(`[^\w\- ]`)
	dashSpaceRuns    = regexp.MustCompile(`[-\s]+`)
)

const maxProcessedTitleLen = 100

// SanitizeTitle computes processed_title: Unicode normalize (NFKD, strip
// non-ASCII), strip non-word/non-dash/non-space characters, collapse runs
// of dash-or-space to a single dash, lowercase, cap at 100 chars; an empty
// result becomes "untitled".
func SanitizeTitle(title string) string {
	decomposed := norm.NFKD.String(title)

	var ascii strings.Builder
	for _, r := range decomposed {
		if r <= unicode.MaxASCII {
			ascii.WriteRune(r)
		}
	}

	stripped := nonWordDashSpace.ReplaceAllString(ascii.String(), "")
	collapsed := dashSpaceRuns.ReplaceAllString(stripped, "-")
	trimmed := strings.Trim(collapsed, "-")
	lower := strings.ToLower(trimmed)

	if len(lower) > maxProcessedTitleLen {
		lower = lower[:maxProcessedTitleLen]
	}

	if lower == "" {
		return "untitled"
	}
	return lower
}
