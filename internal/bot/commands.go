package bot

import (
	"github.com/irsiksoftware/ladderbot/internal/adapters/discord"
	"github.com/irsiksoftware/ladderbot/internal/approval"
)

// adminOnly restricts a command's default visibility to administrators.
var adminOnly = "8"

// slashCommands is the full command set registered per guild on READY.
func slashCommands() []discord.ApplicationCommand {
	priorityChoices := make([]discord.ApplicationCommandChoice, 0, len(approval.Priorities()))
	for _, p := range approval.Priorities() {
		priorityChoices = append(priorityChoices, discord.ApplicationCommandChoice{
			Name:  p.Emoji() + " " + string(p),
			Value: string(p),
		})
	}

	one := 1
	thousand := 1000

	return []discord.ApplicationCommand{
		{
			Name:        "ask-claude",
			Description: "Ask Claude AI about software development",
			Options: []discord.ApplicationCommandOption{
				{Type: discord.OptionTypeString, Name: "question", Description: "Your question for Claude", Required: true},
			},
		},
		{
			Name:        "readme",
			Description: "Fetch README from GitHub repository",
			Options: []discord.ApplicationCommandOption{
				{Type: discord.OptionTypeString, Name: "repo", Description: "Repository name (auto-detects from channel if not provided)"},
			},
		},
		{
			Name:        "feature-request",
			Description: "Submit a feature request (use in *-feature-requests channels)",
			Options: []discord.ApplicationCommandOption{
				{Type: discord.OptionTypeString, Name: "title", Description: "Feature request title", Required: true},
				{Type: discord.OptionTypeString, Name: "description", Description: "Detailed description of the feature", Required: true},
				{Type: discord.OptionTypeString, Name: "priority", Description: "Priority level", Required: true, Choices: priorityChoices},
			},
		},
		{
			Name:        "ping",
			Description: "Check bot latency and status",
		},
		{
			Name:        "clear",
			Description: "Clear conversation history for current channel",
		},
		{
			Name:        "help",
			Description: "Display comprehensive help guide",
		},
		{
			Name:        "listrepos",
			Description: "List all configured repositories",
		},
		{
			Name:        "addrepo",
			Description: "Add a new repository category (Admin only)",
			Options: []discord.ApplicationCommandOption{
				{Type: discord.OptionTypeString, Name: "name", Description: "Repository name", Required: true},
				{Type: discord.OptionTypeString, Name: "visibility", Description: "Repository visibility", Choices: []discord.ApplicationCommandChoice{
					{Name: "Public", Value: "public"},
					{Name: "Private", Value: "private"},
				}},
			},
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:        "removerepo",
			Description: "Remove a repository category (Admin only)",
			Options: []discord.ApplicationCommandOption{
				{Type: discord.OptionTypeString, Name: "prefix", Description: "Repository prefix to remove", Required: true},
			},
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:        "addrole",
			Description: "Add a custom role (Admin only)",
			Options: []discord.ApplicationCommandOption{
				{Type: discord.OptionTypeString, Name: "name", Description: "Role name", Required: true},
				{Type: discord.OptionTypeString, Name: "color", Description: "Hex color code (e.g., #FF0000)", Required: true},
				{Type: discord.OptionTypeBoolean, Name: "mentionable", Description: "Can the role be mentioned?"},
				{Type: discord.OptionTypeBoolean, Name: "hoisted", Description: "Display role separately in member list?"},
			},
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:                     "setup",
			Description:              "Setup Discord server channels from config (Admin only)",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:        "purge",
			Description: "Delete messages from a user or webhook (Admin only)",
			Options: []discord.ApplicationCommandOption{
				{Type: discord.OptionTypeUser, Name: "user", Description: "User to purge messages from"},
				{Type: discord.OptionTypeString, Name: "webhook", Description: "Webhook/integration name to purge"},
			},
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:        "purge-all",
			Description: "Delete ALL messages in this channel (Admin only)",
			Options: []discord.ApplicationCommandOption{
				{Type: discord.OptionTypeInteger, Name: "limit", Description: "Maximum number of messages to delete (default: 100, max: 1000)", MinValue: &one, MaxValue: &thousand},
			},
			DefaultMemberPermissions: &adminOnly,
		},
	}
}

// adminCommands gate on admin status at dispatch time as well, since default
// member permissions are only a client-side hint.
var adminCommands = map[string]bool{
	"addrepo":    true,
	"removerepo": true,
	"addrole":    true,
	"setup":      true,
	"purge":      true,
	"purge-all":  true,
}
