package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/irsiksoftware/ladderbot/internal/adapters/discord"
	"github.com/irsiksoftware/ladderbot/internal/adapters/github"
	"github.com/irsiksoftware/ladderbot/internal/approval"
	"github.com/irsiksoftware/ladderbot/internal/claude"
	"github.com/irsiksoftware/ladderbot/internal/delivery"
	"github.com/irsiksoftware/ladderbot/internal/routing"
)

const (
	colorClaude   = 0x9B59B6
	colorApproval = 0xFF6B6B
	colorStandard = 0x4ECDC4
	colorHelp     = 0xFFD700
	colorRepoList = 0x0099FF
)

// handleInteractionCreate dispatches slash commands. Long-running commands
// defer the response and finish in a goroutine so the event loop stays
// responsive.
func (h *Handler) handleInteractionCreate(ctx context.Context, event *discord.GatewayEvent) {
	var interaction discord.InteractionCreate
	if err := discord.DecodeEventData(*event, &interaction); err != nil {
		h.log.Warn("Failed to parse INTERACTION_CREATE", slog.Any("error", err))
		return
	}

	if interaction.Type != discord.InteractionTypeCommand {
		return
	}

	name := interaction.Data.Name
	h.log.Info("Command received",
		slog.String("command", name),
		slog.String("channel_id", interaction.ChannelID))

	if adminCommands[name] && !h.isAdmin(ctx, interaction.GuildID, interaction.Member) {
		_ = h.api.CreateInteractionResponse(ctx, interaction.ID, interaction.Token,
			discord.ResponseChannelMessage, "❌ This command requires admin privileges.")
		return
	}

	switch name {
	case "ping":
		h.replyNow(ctx, &interaction, fmt.Sprintf("Pong! 🏓 Uptime: %s", time.Since(h.startedAt).Round(time.Second)))
	case "clear":
		h.conversations.Clear(interaction.ChannelID)
		h.replyNow(ctx, &interaction, "✅ Conversation history cleared for this channel.")
	case "help":
		h.handleHelp(ctx, &interaction)
	case "ask-claude":
		h.deferThen(ctx, &interaction, h.handleAskClaude)
	case "readme":
		h.deferThen(ctx, &interaction, h.handleReadme)
	case "feature-request":
		h.deferThen(ctx, &interaction, h.handleFeatureRequest)
	case "listrepos":
		h.deferThen(ctx, &interaction, h.handleListRepos)
	case "addrepo":
		h.deferThen(ctx, &interaction, h.handleAddRepo)
	case "removerepo":
		h.deferThen(ctx, &interaction, h.handleRemoveRepo)
	case "addrole":
		h.deferThen(ctx, &interaction, h.handleAddRole)
	case "setup":
		h.deferThen(ctx, &interaction, h.handleSetup)
	case "purge":
		h.deferThen(ctx, &interaction, h.handlePurge)
	case "purge-all":
		h.deferThen(ctx, &interaction, h.handlePurgeAll)
	default:
		h.replyNow(ctx, &interaction, "❓ Unknown command!")
	}
}

// replyNow sends an immediate interaction response.
func (h *Handler) replyNow(ctx context.Context, interaction *discord.InteractionCreate, content string) {
	if err := h.api.CreateInteractionResponse(ctx, interaction.ID, interaction.Token,
		discord.ResponseChannelMessage, content); err != nil {
		h.log.Warn("Failed to reply", slog.Any("error", err))
	}
}

// deferThen acknowledges the interaction with a deferred response and runs
// the handler in a goroutine behind the recover boundary.
func (h *Handler) deferThen(ctx context.Context, interaction *discord.InteractionCreate, fn func(ctx context.Context, interaction *discord.InteractionCreate)) {
	if err := h.api.CreateInteractionResponse(ctx, interaction.ID, interaction.Token,
		discord.ResponseDeferredMessage, ""); err != nil {
		h.log.Warn("Failed to defer interaction", slog.Any("error", err))
		return
	}

	h.spawn(interaction.Data.Name, func() { fn(ctx, interaction) })
}

// editReply replaces the deferred response with plain text.
func (h *Handler) editReply(ctx context.Context, interaction *discord.InteractionCreate, content string) {
	if _, err := h.api.EditOriginalInteractionResponse(ctx, h.opts.ApplicationID, interaction.Token, content); err != nil {
		h.log.Warn("Failed to edit reply", slog.Any("error", err))
	}
}

func (h *Handler) handleAskClaude(ctx context.Context, interaction *discord.InteractionCreate) {
	question := interaction.Data.StringOption("question")
	prompt := withHistory(h.conversations.History(interaction.ChannelID), question)

	answer, err := h.invoker.Ask(prompt)
	if err != nil {
		if err == claude.ErrTimeout {
			h.editReply(ctx, interaction, "❌ Claude took too long to respond. Try a simpler question.")
			return
		}
		h.editReply(ctx, interaction, fmt.Sprintf("❌ Error calling Claude: %v\n\nMake sure Claude CLI is installed and configured.", err))
		return
	}

	h.conversations.Record(interaction.ChannelID, question, answer)

	description := answer
	if len(description) > 1900 {
		description = description[:1900] + "... (truncated)"
	}

	embed := discord.Embed{
		Title:       "🧠 Claude AI Analysis",
		Description: description,
		Color:       colorClaude,
		Fields: []discord.EmbedField{
			{Name: "❓ Question", Value: discord.TruncateText(question, 1000)},
		},
		Footer:    &discord.EmbedFooter{Text: "NeonLadder Development Assistant"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if _, err := h.api.EditOriginalInteractionEmbed(ctx, h.opts.ApplicationID, interaction.Token, embed); err != nil {
		h.log.Warn("Failed to send Claude reply", slog.Any("error", err))
	}
}

func (h *Handler) handleReadme(ctx context.Context, interaction *discord.InteractionCreate) {
	repo := interaction.Data.StringOption("repo")
	if repo == "" {
		repo = h.repoFromInteractionCategory(ctx, interaction)
		if repo == "" {
			h.editReply(ctx, interaction, "❌ Could not detect repository from channel category. Please use this command in a project channel or specify the repo name manually.")
			return
		}
	}

	fullRepo := h.opts.Owner + "/" + repo

	readme, err := h.github.GetReadme(ctx, h.opts.Owner, repo)
	if err != nil {
		h.log.Warn("README fetch failed", slog.String("repo", repo), slog.Any("error", err))
		h.editReply(ctx, interaction, fmt.Sprintf("❌ Could not fetch README for \"%s\".\nMake sure the repository exists at https://github.com/%s/blob/main/README.md and you have access to it.", repo, fullRepo))
		return
	}

	formatted := discord.FormatMarkdown(readme)

	// First segment replaces the deferred reply, the rest arrive as followups.
	first := true
	sink := delivery.SinkFunc(func(ctx context.Context, segment string) error {
		if first {
			first = false
			_, err := h.api.EditOriginalInteractionResponse(ctx, h.opts.ApplicationID, interaction.Token, segment)
			return err
		}
		_, err := h.api.CreateFollowup(ctx, h.opts.ApplicationID, interaction.Token, segment)
		return err
	})

	err = h.deliverer.Deliver(ctx, formatted, sink, delivery.Options{
		Header:      fmt.Sprintf("📄 **README for %s**", fullRepo),
		OverflowURL: fmt.Sprintf("https://github.com/%s/blob/main/README.md", fullRepo),
	})
	if err != nil {
		h.log.Warn("README delivery failed", slog.Any("error", err))
		return
	}

	h.log.Info("Delivered README", slog.String("repo", fullRepo))
}

// repoFromInteractionCategory walks channel -> parent category -> repo name.
func (h *Handler) repoFromInteractionCategory(ctx context.Context, interaction *discord.InteractionCreate) string {
	channel, err := h.api.GetChannel(ctx, interaction.ChannelID)
	if err != nil || channel.ParentID == "" {
		return ""
	}

	parent, err := h.api.GetChannel(ctx, channel.ParentID)
	if err != nil {
		return ""
	}

	return routing.RepoFromCategory(parent.Name)
}

func (h *Handler) handleFeatureRequest(ctx context.Context, interaction *discord.InteractionCreate) {
	channel, err := h.api.GetChannel(ctx, interaction.ChannelID)
	if err != nil {
		h.editReply(ctx, interaction, "❌ Could not resolve this channel.")
		return
	}

	if !strings.Contains(channel.Name, "feature-request") {
		h.editReply(ctx, interaction, "❌ This command can only be used in `*-feature-requests` channels.")
		return
	}

	title := interaction.Data.StringOption("title")
	description := interaction.Data.StringOption("description")
	priority := approval.Priority(interaction.Data.StringOption("priority"))
	if !priority.Valid() {
		h.editReply(ctx, interaction, "❌ Unknown priority level.")
		return
	}

	repo := h.repoFromInteractionCategory(ctx, interaction)
	if repo == "" {
		h.editReply(ctx, interaction, "❌ Could not detect repository from channel category.")
		return
	}

	requester := ""
	if interaction.Member != nil && interaction.Member.User != nil {
		requester = interaction.Member.User.Tag()
	} else if interaction.User != nil {
		requester = interaction.User.Tag()
	}

	needsApproval := priority.RequiresApproval()

	color := colorStandard
	if needsApproval {
		color = colorApproval
	}

	embed := discord.Embed{
		Title:       fmt.Sprintf("%s Feature Request: %s", priority.Emoji(), title),
		Description: description,
		Color:       color,
		Fields: []discord.EmbedField{
			{Name: "Repository", Value: repo, Inline: true},
			{Name: "Priority", Value: strings.ToUpper(string(priority)), Inline: true},
			{Name: "Requested by", Value: requester, Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if needsApproval {
		embed.Footer = &discord.EmbedFooter{Text: "⏳ Awaiting admin approval - React with ✅ to approve"}
	}

	msg, err := h.api.EditOriginalInteractionEmbed(ctx, h.opts.ApplicationID, interaction.Token, embed)
	if err != nil {
		h.log.Warn("Failed to post feature request", slog.Any("error", err))
		return
	}

	if !needsApproval {
		issue, err := h.createFeatureIssue(ctx, repo, title, description, priority, requester, false)
		if err != nil {
			h.followupOrSend(ctx, interaction, fmt.Sprintf("❌ Error creating GitHub issue: %v", err))
			return
		}
		h.followupOrSend(ctx, interaction, fmt.Sprintf("✅ Feature request created: %s", issue.HTMLURL))
		return
	}

	_ = h.api.CreateReaction(ctx, interaction.ChannelID, msg.ID, approval.ApprovalEmoji)

	ticket := approval.NewTicket(title, description, priority, requester, repo)
	outcomes := h.approvals.Track(ticket, msg.ID)

	h.spawn("await_approval", func() { h.awaitApproval(interaction.ChannelID, ticket, outcomes) })
}

// awaitApproval reacts to the ticket's final state. The interaction token
// expires well before the approval window closes, so outcome notices go to
// the channel directly.
func (h *Handler) awaitApproval(channelID string, ticket *approval.Ticket, outcomes <-chan approval.Outcome) {
	var outcome approval.Outcome
	select {
	case outcome = <-outcomes:
	case <-h.stopCh:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch outcome.State {
	case approval.StateApproved:
		issue, err := h.createFeatureIssue(ctx, ticket.Repository, ticket.Title, ticket.Description, ticket.Priority, ticket.RequesterID, true)
		if err != nil {
			h.log.Warn("Issue creation after approval failed", slog.Any("error", err))
			_, _ = h.api.SendMessage(ctx, channelID, fmt.Sprintf("❌ Error creating GitHub issue: %v", err))
			return
		}
		_, _ = h.api.SendMessage(ctx, channelID, fmt.Sprintf("✅ **Approved!** Feature request created: %s", issue.HTMLURL))
	case approval.StateExpired:
		_, _ = h.api.SendMessage(ctx, channelID, "⏱️ Request timed out after 24 hours without admin approval.")
	}
}

func (h *Handler) createFeatureIssue(ctx context.Context, repo, title, description string, priority approval.Priority, requester string, approved bool) (*github.Issue, error) {
	body := fmt.Sprintf("%s\n\n---\n**Priority:** %s\n**Requested by:** %s via Discord",
		description, strings.ToUpper(string(priority)), requester)
	if approved {
		body += "\n**Approved by:** Admin"
	}

	return h.github.CreateIssue(ctx, h.opts.Owner, repo, github.IssueInput{
		Title:  title,
		Body:   body,
		Labels: []string{"enhancement", priority.Label()},
	})
}

// followupOrSend prefers an interaction followup, falling back to a plain
// channel message.
func (h *Handler) followupOrSend(ctx context.Context, interaction *discord.InteractionCreate, content string) {
	if _, err := h.api.CreateFollowup(ctx, h.opts.ApplicationID, interaction.Token, content); err != nil {
		_, _ = h.api.SendMessage(ctx, interaction.ChannelID, content)
	}
}

func (h *Handler) handleHelp(ctx context.Context, interaction *discord.InteractionCreate) {
	var b strings.Builder
	b.WriteString("🤖 **NeonLadder Bot - Help**\n\n")
	b.WriteString("💬 **Mention Bot**: Tag the bot with `@bot <question>` to chat with Claude AI\n\n")
	b.WriteString("🎮 **AI Commands**\n`/ask-claude` - Ask Claude AI\n\n")
	b.WriteString("⚙️ **Bot Commands**\n`/ping` - Check latency\n`/clear` - Clear conversation\n`/help` - This message\n`/listrepos` - List repos\n`/readme` - Fetch repo README\n`/feature-request` - Submit a feature request\n")

	if h.isAdmin(ctx, interaction.GuildID, interaction.Member) {
		b.WriteString("\n🔧 **Admin Commands**\n`/addrepo` - Add repo category\n`/removerepo` - Remove repo\n`/addrole` - Add role\n`/setup` - Create channels\n`/purge` - Delete messages\n`/purge-all` - Delete all messages\n")
	}

	b.WriteString("\n🐛 **Create GitHub Issues**: Tag bot in `*-feature-requests` or `*-bug-reports` channels to create GitHub issues\n")
	b.WriteString("📄 **Fetch README**: Tag bot with `@bot readme <repo-name>` to fetch a repository README")

	h.replyNow(ctx, interaction, b.String())
}

func (h *Handler) handleListRepos(ctx context.Context, interaction *discord.InteractionCreate) {
	doc, err := h.store.Load()
	if err != nil {
		h.editReply(ctx, interaction, fmt.Sprintf("❌ Error listing repositories: %v", err))
		return
	}

	repos := doc.RepoCategories()
	if len(repos) == 0 {
		h.editReply(ctx, interaction, "No repositories configured.")
		return
	}

	embed := discord.Embed{
		Title:       "📦 Configured Repositories",
		Description: "List of all configured repository categories",
		Color:       colorRepoList,
	}
	for _, cat := range repos {
		visibility := "🌐 Public"
		if cat.IsPrivate() {
			visibility = "🔒 Private"
		}
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:   cat.Name,
			Value:  fmt.Sprintf("Type: %s\nPrefix: `%s-`\nChannels: %d", visibility, cat.Prefix(), len(cat.Channels)),
			Inline: true,
		})
	}

	if _, err := h.api.EditOriginalInteractionEmbed(ctx, h.opts.ApplicationID, interaction.Token, embed); err != nil {
		h.log.Warn("Failed to list repos", slog.Any("error", err))
	}
}

func (h *Handler) handleAddRepo(ctx context.Context, interaction *discord.InteractionCreate) {
	name := interaction.Data.StringOption("name")
	private := interaction.Data.StringOption("visibility") == "private"

	prefix, err := h.store.AddRepo(name, private)
	if err != nil {
		h.editReply(ctx, interaction, fmt.Sprintf("❌ Error adding repository: %v", err))
		return
	}

	visibility := "Public"
	if private {
		visibility = "Private"
	}

	h.editReply(ctx, interaction, fmt.Sprintf(
		"✅ Repository \"%s\" added to configuration!\n**Type**: %s\n**Channels**: %s-general, %s-feature-requests, %s-bug-reports, %s-commits, %s-releases, %s-discussions\n\nRun `/setup` to create the Discord channels.",
		name, visibility, prefix, prefix, prefix, prefix, prefix, prefix))
}

func (h *Handler) handleRemoveRepo(ctx context.Context, interaction *discord.InteractionCreate) {
	prefix := strings.ToLower(interaction.Data.StringOption("prefix"))

	removed, err := h.store.RemoveRepo(prefix)
	if err != nil {
		h.editReply(ctx, interaction, fmt.Sprintf("❌ %v", err))
		return
	}

	h.editReply(ctx, interaction, fmt.Sprintf(
		"✅ Repository configuration removed: %s\n\n**Note**: This only removes it from the config. To delete Discord channels, use Discord's interface.", removed))
}

func (h *Handler) handleAddRole(ctx context.Context, interaction *discord.InteractionCreate) {
	name := interaction.Data.StringOption("name")
	color := interaction.Data.StringOption("color")
	mentionable := interaction.Data.BoolOption("mentionable")
	hoisted := interaction.Data.BoolOption("hoisted")

	if err := h.store.AddRole(name, color, mentionable, hoisted); err != nil {
		h.editReply(ctx, interaction, fmt.Sprintf("❌ Error adding role: %v", err))
		return
	}

	h.editReply(ctx, interaction, fmt.Sprintf(
		"✅ Role \"%s\" added to configuration!\n**Color**: %s\n**Mentionable**: %s\n**Hoisted**: %s\n\nRun `/setup` to create the role in Discord.",
		name, color, yesNo(mentionable), yesNo(hoisted)))
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func (h *Handler) handleSetup(ctx context.Context, interaction *discord.InteractionCreate) {
	h.editReply(ctx, interaction, "Starting Discord server setup...")

	result, err := h.provisionGuild(ctx, interaction.GuildID)
	if err != nil {
		h.editReply(ctx, interaction, fmt.Sprintf("❌ Error during setup: %v", err))
		return
	}

	h.followupOrSend(ctx, interaction, fmt.Sprintf(
		"✅ Discord server setup complete!\nRoles created: %d\nChannels created: %d, skipped: %d",
		result.RolesCreated, result.ChannelsCreated, result.ChannelsSkipped))
}

func (h *Handler) handlePurge(ctx context.Context, interaction *discord.InteractionCreate) {
	targetUser := interaction.Data.StringOption("user")
	webhookName := strings.ToLower(interaction.Data.StringOption("webhook"))

	var match func(m *discord.Message) bool
	switch {
	case targetUser != "":
		match = func(m *discord.Message) bool { return m.Author.ID == targetUser }
	case webhookName != "":
		match = func(m *discord.Message) bool {
			return (m.WebhookID != "" || m.Author.Bot) &&
				strings.Contains(strings.ToLower(m.Author.Username), webhookName)
		}
	default:
		match = func(m *discord.Message) bool { return m.Author.ID == h.botUserID }
	}

	// Page backwards with a before cursor so undeletable matches and
	// match-free windows cannot stall the sweep.
	deleted := 0
	before := ""
	for {
		msgs, err := h.api.GetChannelMessages(ctx, interaction.ChannelID, 100, before)
		if err != nil {
			h.editReply(ctx, interaction, fmt.Sprintf("❌ Error: %v", err))
			return
		}
		if len(msgs) == 0 {
			break
		}

		for i := range msgs {
			if !match(&msgs[i]) {
				continue
			}
			if err := h.api.DeleteMessage(ctx, interaction.ChannelID, msgs[i].ID); err != nil {
				h.log.Warn("Failed to delete message", slog.Any("error", err))
				continue
			}
			deleted++
			time.Sleep(200 * time.Millisecond)
		}

		before = msgs[len(msgs)-1].ID
		if len(msgs) < 100 {
			break
		}
	}

	h.editReply(ctx, interaction, fmt.Sprintf("✅ Purged %d message(s).", deleted))
	h.log.Info("Purged messages",
		slog.Int("deleted", deleted),
		slog.String("channel_id", interaction.ChannelID))
}

func (h *Handler) handlePurgeAll(ctx context.Context, interaction *discord.InteractionCreate) {
	limit := interaction.Data.IntOption("limit")
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	h.editReply(ctx, interaction, fmt.Sprintf("🗑️ Deleting up to **%d** messages in this channel...", limit))

	deleted := 0
	for deleted < limit {
		fetch := limit - deleted
		if fetch > 100 {
			fetch = 100
		}

		msgs, err := h.api.GetChannelMessages(ctx, interaction.ChannelID, fetch, "")
		if err != nil {
			h.followupOrSend(ctx, interaction, fmt.Sprintf("❌ Error purging messages: %v", err))
			return
		}
		if len(msgs) == 0 {
			break
		}

		for i := range msgs {
			if deleted >= limit {
				break
			}
			if err := h.api.DeleteMessage(ctx, interaction.ChannelID, msgs[i].ID); err != nil {
				h.log.Warn("Failed to delete message", slog.Any("error", err))
				continue
			}
			deleted++
			time.Sleep(100 * time.Millisecond)
		}

		if len(msgs) < fetch {
			break
		}
	}

	h.followupOrSend(ctx, interaction, fmt.Sprintf("✅ Deleted %d message(s) from this channel.", deleted))
	h.log.Info("Purged all messages",
		slog.Int("deleted", deleted),
		slog.String("channel_id", interaction.ChannelID))
}
