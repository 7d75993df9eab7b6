// Package testutil provides testing utilities for the ladderbot project.
package testutil

// Safe test tokens that won't trigger GitHub's push protection.
// These are intentionally simple and obviously fake to avoid secret scanning.
const (
	// FakeDiscordToken is a safe test token for Discord bot authentication.
	FakeDiscordToken = "test-discord-bot-token"

	// FakeGitHubToken is a safe test token for GitHub API authentication.
	FakeGitHubToken = "test-github-token"

	// FakeApplicationID is a safe test Discord application ID.
	FakeApplicationID = "test-application-id"
)
