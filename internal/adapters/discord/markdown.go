package discord

import (
	"regexp"
	"strings"
)

var (
	h3Pattern      = regexp.MustCompile(`(?m)^### (.*)$`)
	h2Pattern      = regexp.MustCompile(`(?m)^## (.*)$`)
	h1Pattern      = regexp.MustCompile(`(?m)^# (.*)$`)
	commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	imagePattern   = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
)

// FormatMarkdown rewrites GitHub-flavored markdown into the subset Discord
// renders. Headers become bold text, HTML comments are stripped, and badge
// images collapse to plain links.
func FormatMarkdown(markdown string) string {
	out := markdown

	out = h3Pattern.ReplaceAllString(out, "**$1**")
	out = h2Pattern.ReplaceAllString(out, "**__$1__**")
	out = h1Pattern.ReplaceAllString(out, "**__$1__**")

	out = commentPattern.ReplaceAllString(out, "")

	out = imagePattern.ReplaceAllString(out, "[$1]($2)")

	return strings.TrimSpace(out)
}

// TruncateText shortens s to at most limit bytes, appending an ellipsis when
// content was dropped.
func TruncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:limit]
	}
	return s[:limit-3] + "..."
}
