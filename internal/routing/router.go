// Package routing derives repository and issue routing from Discord channel
// naming conventions. All resolution is a pure function of live channel
// state; results are never cached because channels can be renamed at any
// time.
package routing

import "strings"

// IssueType classifies the tracker issue a channel collects.
type IssueType string

const (
	IssueTypeFeature IssueType = "feature"
	IssueTypeBug     IssueType = "bug"
	IssueTypeNone    IssueType = ""
)

// Label returns the tracker label for the issue type.
func (t IssueType) Label() string {
	if t == IssueTypeFeature {
		return "enhancement"
	}
	return "bug"
}

// Resolver maps channel names to repositories through an environment-style
// lookup ("neon-bug-reports" -> "NEON_REPO" -> value).
type Resolver struct {
	lookup func(key string) string
}

// NewResolver creates a resolver backed by the given lookup function.
func NewResolver(lookup func(key string) string) *Resolver {
	return &Resolver{lookup: lookup}
}

// RepoFromChannel resolves a repository from a channel name's prefix: the
// substring before the first hyphen, uppercased and suffixed with "_REPO",
// is looked up in the mapping. Returns "" when unmapped.
func (r *Resolver) RepoFromChannel(channelName string) string {
	prefix := channelName
	if i := strings.Index(channelName, "-"); i >= 0 {
		prefix = channelName[:i]
	}
	if prefix == "" {
		return ""
	}
	return r.lookup(strings.ToUpper(prefix) + "_REPO")
}

// IssueTypeFromChannel classifies a channel by its name. The substrings are
// mutually exclusive by naming convention, so check order does not matter.
func IssueTypeFromChannel(channelName string) IssueType {
	if strings.Contains(channelName, "feature-request") {
		return IssueTypeFeature
	}
	if strings.Contains(channelName, "bug-report") {
		return IssueTypeBug
	}
	return IssueTypeNone
}

// RepoFromCategory resolves a repository from a channel's parent category
// display name by stripping emoji and symbol glyphs ("📦 QiFlow" ->
// "QiFlow"). This is a distinct strategy from RepoFromChannel: slash
// commands use the category name verbatim, mentions use the prefix mapping.
func RepoFromCategory(categoryName string) string {
	var b strings.Builder
	for _, r := range categoryName {
		if isSymbolGlyph(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// isSymbolGlyph reports whether the rune falls in the emoji or miscellaneous
// symbol blocks stripped from category names.
func isSymbolGlyph(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1F9FF:
		return true
	case r >= 0x2600 && r <= 0x26FF:
		return true
	case r == 0xFE0F: // variation selector left behind by emoji sequences
		return true
	}
	return false
}
