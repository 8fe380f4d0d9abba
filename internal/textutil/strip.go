package textutil

import (
	"regexp"
	"strings"
)

var (
	breakTag   = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
	listOpen   = regexp.MustCompile(`(?i)<li(?:\s[^>]*)?>`)
	listClose  = regexp.MustCompile(`(?i)</li\s*>`)
	blockClose = regexp.MustCompile(`(?i)</(?:p|div|ul|ol|h[1-6]|tr)\s*>`)
	anyTag     = regexp.MustCompile(`<[^>]*>`)
	lineSpace  = regexp.MustCompile(`[ \t]+\n`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// entities are the only references decoded; anything else is left as is.
var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", `"`,
	"&#39;", "'",
)

// StripMarkup turns a scraped HTML fragment into plain text. Line breaks
// become newlines, list items become bullet lines and every other tag is
// dropped before entities are decoded.
func StripMarkup(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	text := strings.ReplaceAll(fragment, "\r\n", "\n")
	text = breakTag.ReplaceAllString(text, "\n")
	text = listOpen.ReplaceAllString(text, "\n• ")
	text = listClose.ReplaceAllString(text, "\n")
	text = blockClose.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, "")

	// decode after tag removal so &lt;b&gt; survives as literal text
	text = entities.Replace(text)
	text = lineSpace.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// CollapseSpace joins all whitespace runs into single spaces.
func CollapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
