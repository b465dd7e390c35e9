package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	fencePattern     = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n(.*?)\\n?```$")
	blankLinePattern = regexp.MustCompile(`\n{3,}`)
)

// ToHTML renders generated markdown as an HTML fragment
func ToHTML(markdown string) string {
	markdown = StripCodeFence(markdown)
	if markdown == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(markdown),
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak)))

	return strings.TrimSpace(blankLinePattern.ReplaceAllString(html, "\n\n"))
}

// StripCodeFence removes a code fence wrapping the whole text. Models often
// return screenplays inside one.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
