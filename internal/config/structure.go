package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Structure is the guild structure document: the categories, channels and
// roles the bot provisions, plus the channel-prefix to repository mapping.
// It is always written back as a whole document.
type Structure struct {
	Categories []*Category       `json:"categories"`
	Roles      []*RoleSpec       `json:"roles"`
	Repos      map[string]string `json:"repos,omitempty"` // "<PREFIX>_REPO" -> repository name
}

// Category describes a channel category and its children.
type Category struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Channels    []*ChannelSpec    `json:"channels"`
	Permissions []*PermissionRule `json:"permissions,omitempty"`
}

// ChannelSpec describes a single text channel.
type ChannelSpec struct {
	Name        string            `json:"name"`
	Topic       string            `json:"topic,omitempty"`
	Permissions []*PermissionRule `json:"permissions,omitempty"`
}

// PermissionRule grants or denies named permissions to a role.
type PermissionRule struct {
	Role  string   `json:"role"`
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// RoleSpec describes a guild role to provision.
type RoleSpec struct {
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	Permissions []string `json:"permissions"`
	Mentionable bool     `json:"mentionable"`
	Hoist       bool     `json:"hoist"`
}

// Store provides serialized read-modify-write access to the structure
// document on disk. The document is re-read before every mutation and every
// lookup so the store never holds a stale copy; concurrent mutations are
// serialized through a single writer lock.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the current document from disk. A missing file yields an empty
// document rather than an error.
func (s *Store) Load() (*Structure, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Structure{Repos: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("read structure document: %w", err)
	}

	var doc Structure
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse structure document: %w", err)
	}
	if doc.Repos == nil {
		doc.Repos = map[string]string{}
	}
	return &doc, nil
}

// Mutate applies fn to a freshly loaded document and persists the result
// atomically (temp file + rename). The whole operation holds the writer
// lock so concurrent mutations cannot overwrite each other.
func (s *Store) Mutate(fn func(*Structure) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}

	if err := fn(doc); err != nil {
		return err
	}

	return s.write(doc)
}

func (s *Store) write(doc *Structure) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create structure directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal structure document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write structure document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace structure document: %w", err)
	}
	return nil
}

// RepoValue returns the repository mapped to an environment-style key such
// as "NEON_REPO", or "" if unmapped. The process environment takes
// precedence over the document so deployments can override mappings.
func (s *Store) RepoValue(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	doc, err := s.Load()
	if err != nil {
		return ""
	}
	return doc.Repos[key]
}

// RepoPrefix normalizes a repository name into its channel prefix
// ("NeonLadder" -> "neonladder").
func RepoPrefix(repoName string) string {
	return strings.ToLower(strings.ReplaceAll(repoName, " ", ""))
}

// RepoEnvKey returns the mapping key for a channel prefix
// ("neonladder" -> "NEONLADDER_REPO").
func RepoEnvKey(prefix string) string {
	return strings.ToUpper(prefix) + "_REPO"
}

// AddRepo appends a repository category with the standard channel set and
// records the prefix mapping. Returns the prefix used.
func (s *Store) AddRepo(repoName string, private bool) (string, error) {
	prefix := RepoPrefix(repoName)

	err := s.Mutate(func(doc *Structure) error {
		for _, cat := range doc.Categories {
			if strings.Contains(strings.ToLower(cat.Name), prefix) {
				return fmt.Errorf("a category for %q already exists", repoName)
			}
		}

		readOnly := []*PermissionRule{{
			Role:  "@everyone",
			Allow: []string{"ViewChannel", "ReadMessageHistory"},
			Deny:  []string{"SendMessages"},
		}}

		cat := &Category{
			Name:        "📦 " + repoName,
			Description: "Public Project",
			Channels: []*ChannelSpec{
				{Name: prefix + "-general", Topic: "General discussion about " + repoName},
				{Name: prefix + "-feature-requests", Topic: "Request features for " + repoName + " - Tag the bot to create GitHub issues"},
				{Name: prefix + "-bug-reports", Topic: "Report bugs - Tag the bot to create GitHub issues"},
				{Name: prefix + "-commits", Topic: "Automated commit feed from GitHub", Permissions: readOnly},
				{Name: prefix + "-releases", Topic: "Automated release announcements from GitHub", Permissions: readOnly},
				{Name: prefix + "-discussions", Topic: "Community discussions about " + repoName},
			},
		}

		if private {
			cat.Description = "Private Project"
			cat.Permissions = []*PermissionRule{{Role: "@everyone", Deny: []string{"ViewChannel"}}}
		}

		doc.Categories = append(doc.Categories, cat)
		doc.Repos[RepoEnvKey(prefix)] = repoName
		return nil
	})
	if err != nil {
		return "", err
	}
	return prefix, nil
}

// RemoveRepo removes the category matching prefix along with its mapping.
// Returns the removed category name.
func (s *Store) RemoveRepo(prefix string) (string, error) {
	prefix = strings.ToLower(prefix)
	var removed string

	err := s.Mutate(func(doc *Structure) error {
		idx := -1
		for i, cat := range doc.Categories {
			if strings.Contains(strings.ToLower(cat.Name), prefix) {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("repository with prefix %q not found", prefix)
		}

		removed = doc.Categories[idx].Name
		doc.Categories = append(doc.Categories[:idx], doc.Categories[idx+1:]...)
		delete(doc.Repos, RepoEnvKey(prefix))
		return nil
	})
	if err != nil {
		return "", err
	}
	return removed, nil
}

// AddRole appends a role spec with the standard member permissions.
func (s *Store) AddRole(name, color string, mentionable, hoist bool) error {
	return s.Mutate(func(doc *Structure) error {
		for _, r := range doc.Roles {
			if r.Name == name {
				return fmt.Errorf("role %q already exists", name)
			}
		}

		doc.Roles = append(doc.Roles, &RoleSpec{
			Name:        name,
			Color:       color,
			Permissions: []string{"ViewChannel", "SendMessages", "ReadMessageHistory"},
			Mentionable: mentionable,
			Hoist:       hoist,
		})
		return nil
	})
}

// RepoCategories returns the categories that represent repositories
// (marked with the package emoji).
func (doc *Structure) RepoCategories() []*Category {
	var out []*Category
	for _, cat := range doc.Categories {
		if strings.Contains(cat.Name, "📦") {
			out = append(out, cat)
		}
	}
	return out
}

// IsPrivate reports whether the category hides itself from @everyone.
func (c *Category) IsPrivate() bool {
	for _, p := range c.Permissions {
		if p.Role == "@everyone" && len(p.Deny) > 0 {
			return true
		}
	}
	return false
}

// Prefix returns the channel prefix of a repository category, derived from
// its first channel name.
func (c *Category) Prefix() string {
	if len(c.Channels) == 0 {
		return ""
	}
	name := c.Channels[0].Name
	if i := strings.Index(name, "-"); i > 0 {
		return name[:i]
	}
	return name
}
