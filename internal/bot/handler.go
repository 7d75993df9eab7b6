package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/irsiksoftware/ladderbot/internal/adapters/discord"
	"github.com/irsiksoftware/ladderbot/internal/adapters/github"
	"github.com/irsiksoftware/ladderbot/internal/approval"
	"github.com/irsiksoftware/ladderbot/internal/claude"
	"github.com/irsiksoftware/ladderbot/internal/config"
	"github.com/irsiksoftware/ladderbot/internal/delivery"
	"github.com/irsiksoftware/ladderbot/internal/logging"
	"github.com/irsiksoftware/ladderbot/internal/routing"
)

var mentionPattern = regexp.MustCompile(`<@!?\d+>`)

// Options holds handler configuration.
type Options struct {
	BotToken        string
	ApplicationID   string
	Owner           string
	PrivilegedRoles []string
}

// Handler processes incoming Discord events and coordinates the bot's
// responses: AI queries, README delivery, issue submission, and server
// administration.
type Handler struct {
	opts      Options
	gateway   *discord.GatewayClient
	api       *discord.Client
	github    *github.Client
	invoker   *claude.Invoker
	approvals *approval.Manager
	deliverer *delivery.Deliverer
	store     *config.Store
	resolver  *routing.Resolver

	conversations *ConversationStore

	botUserID string
	startedAt time.Time

	roleMu    sync.Mutex
	roleNames map[string]map[string]string // guild ID -> role ID -> name

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *slog.Logger
}

// New creates a handler wired to the given clients.
func New(opts Options, api *discord.Client, gh *github.Client, invoker *claude.Invoker, approvals *approval.Manager, store *config.Store) *Handler {
	return &Handler{
		opts:          opts,
		gateway:       discord.NewGatewayClient(opts.BotToken, discord.DefaultIntents),
		api:           api,
		github:        gh,
		invoker:       invoker,
		approvals:     approvals,
		deliverer:     delivery.New(),
		store:         store,
		resolver:      routing.NewResolver(store.RepoValue),
		conversations: NewConversationStore(),
		roleNames:     make(map[string]map[string]string),
		stopCh:        make(chan struct{}),
		log:           logging.WithComponent("bot"),
	}
}

// StartListening connects to Discord and processes events until ctx is
// cancelled or Stop is called.
func (h *Handler) StartListening(ctx context.Context) error {
	h.startedAt = time.Now()

	if err := h.gateway.Connect(ctx); err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}

	events, err := h.gateway.Listen(ctx)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	h.log.Info("Listening for Discord events")

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Listener stopping (context cancelled)")
			return ctx.Err()
		case <-h.stopCh:
			h.log.Info("Listener stopping (stop signal)")
			return nil
		case evt, ok := <-events:
			if !ok {
				h.log.Info("Event channel closed")
				return nil
			}
			h.processEvent(ctx, &evt)
		}
	}
}

// Stop gracefully stops the handler.
func (h *Handler) Stop() {
	close(h.stopCh)
	_ = h.gateway.Close()
	h.wg.Wait()
}

// processEvent routes a single gateway event. Handlers run behind a recover
// boundary so one bad event cannot take the bot down.
func (h *Handler) processEvent(ctx context.Context, event *discord.GatewayEvent) {
	if event.T == nil {
		return
	}

	switch *event.T {
	case "READY":
		h.runGuarded("ready", func() { h.handleReady(ctx, event) })
	case "MESSAGE_CREATE":
		h.runGuarded("message_create", func() { h.handleMessageCreate(ctx, event) })
	case "MESSAGE_REACTION_ADD":
		h.runGuarded("reaction_add", func() { h.handleReactionAdd(ctx, event) })
	case "INTERACTION_CREATE":
		h.runGuarded("interaction_create", func() { h.handleInteractionCreate(ctx, event) })
	}
}

func (h *Handler) runGuarded(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Handler panicked",
				slog.String("handler", name),
				slog.Any("panic", r))
		}
	}()
	fn()
}

// spawn runs fn on a tracked goroutine behind the recover boundary. Stop
// waits for all spawned work.
func (h *Handler) spawn(name string, fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runGuarded(name, fn)
	}()
}

// handleReady records the bot's own user ID and registers slash commands for
// every guild the bot is in. Per-guild registration applies instantly where
// global registration can take up to an hour.
func (h *Handler) handleReady(ctx context.Context, event *discord.GatewayEvent) {
	var ready discord.Ready
	if err := discord.DecodeEventData(*event, &ready); err != nil {
		h.log.Warn("Failed to parse READY", slog.Any("error", err))
		return
	}

	h.botUserID = ready.User.ID
	h.log.Info("Bot ready",
		slog.String("user", ready.User.Username),
		slog.Int("guilds", len(ready.Guilds)))

	commands := slashCommands()
	for _, guild := range ready.Guilds {
		if err := h.api.RegisterGuildCommands(ctx, h.opts.ApplicationID, guild.ID, commands); err != nil {
			h.log.Warn("Failed to register commands",
				slog.String("guild_id", guild.ID),
				slog.Any("error", err))
			continue
		}
		h.log.Info("Registered slash commands", slog.String("guild_id", guild.ID))
	}
}

// handleMessageCreate processes bot mentions: README requests, issue
// submission in feature/bug channels, and a pointer to slash commands
// everywhere else. The work runs off the event loop so a slow fetch or a
// paced chunked reply cannot stall other events.
func (h *Handler) handleMessageCreate(ctx context.Context, event *discord.GatewayEvent) {
	var msg discord.Message
	if err := discord.DecodeEventData(*event, &msg); err != nil {
		h.log.Warn("Failed to parse MESSAGE_CREATE", slog.Any("error", err))
		return
	}

	if msg.Author.Bot {
		return
	}

	if !h.mentionsBot(msg.Mentions) {
		return
	}

	h.spawn("mention", func() { h.handleMention(ctx, &msg) })
}

func (h *Handler) handleMention(ctx context.Context, msg *discord.Message) {
	channel, err := h.api.GetChannel(ctx, msg.ChannelID)
	if err != nil {
		h.log.Warn("Failed to fetch channel", slog.Any("error", err))
		return
	}

	content := strings.TrimSpace(mentionPattern.ReplaceAllString(msg.Content, ""))
	repo := h.resolver.RepoFromChannel(channel.Name)
	issueType := routing.IssueTypeFromChannel(channel.Name)

	if strings.Contains(strings.ToLower(content), "readme") {
		h.handleReadmeMention(ctx, msg, content, repo)
		return
	}

	if repo != "" && issueType != routing.IssueTypeNone {
		h.handleIssueMention(ctx, msg, content, repo, issueType)
		return
	}

	_, _ = h.api.SendMessage(ctx, msg.ChannelID,
		"💡 Please use slash commands to interact with me:\n"+
			"• `/ask-claude` - Ask Claude a question\n"+
			"• `/feature-request` - Submit a feature request\n"+
			"• `/readme` - Fetch a repository README\n"+
			"• `/help` - See all available commands")
}

func (h *Handler) mentionsBot(mentions []discord.User) bool {
	for _, u := range mentions {
		if u.ID == h.botUserID {
			return true
		}
	}
	return false
}

var readmeMentionPattern = regexp.MustCompile(`(?i)readme\s+(\S+)`)

// handleReadmeMention fetches a repository README and streams it to the
// channel in paced chunks.
func (h *Handler) handleReadmeMention(ctx context.Context, msg *discord.Message, content, repo string) {
	targetRepo := repo
	if m := readmeMentionPattern.FindStringSubmatch(content); m != nil {
		targetRepo = m[1]
	}

	if targetRepo == "" {
		_, _ = h.api.SendMessage(ctx, msg.ChannelID,
			"❌ Please specify a repository.\nUsage: `@bot readme <repo-name>`\nExample: `@bot readme NeonLadder`")
		return
	}

	_ = h.api.CreateReaction(ctx, msg.ChannelID, msg.ID, "⏳")

	readme, err := h.github.GetReadme(ctx, h.opts.Owner, targetRepo)
	if err != nil {
		h.log.Warn("README fetch failed",
			slog.String("repo", targetRepo),
			slog.Any("error", err))
		_ = h.api.CreateReaction(ctx, msg.ChannelID, msg.ID, "❌")
		_, _ = h.api.SendMessage(ctx, msg.ChannelID,
			fmt.Sprintf("❌ Could not fetch README for \"%s\".\nMake sure the repository exists and has a README file.", targetRepo))
		return
	}

	formatted := discord.FormatMarkdown(readme)
	sink := delivery.SinkFunc(func(ctx context.Context, segment string) error {
		_, err := h.api.SendMessage(ctx, msg.ChannelID, segment)
		return err
	})

	err = h.deliverer.Deliver(ctx, formatted, sink, delivery.Options{
		Header:      fmt.Sprintf("📄 **README for %s**", targetRepo),
		OverflowURL: fmt.Sprintf("https://github.com/%s/%s#readme", h.opts.Owner, targetRepo),
	})
	if err != nil {
		h.log.Warn("README delivery failed", slog.Any("error", err))
		return
	}

	h.log.Info("Delivered README",
		slog.String("repo", targetRepo),
		slog.String("channel_id", msg.ChannelID))
}

// handleIssueMention turns a mention in a feature/bug channel into a GitHub
// issue. The first line becomes the title, the rest the body.
func (h *Handler) handleIssueMention(ctx context.Context, msg *discord.Message, content, repo string, issueType routing.IssueType) {
	if len(content) < 10 {
		_, _ = h.api.SendMessage(ctx, msg.ChannelID,
			"Please provide more details for the issue. Format: @bot [issue title/description]")
		return
	}

	lines := strings.Split(content, "\n")
	title := lines[0]
	if len(title) > 100 {
		title = title[:100]
	}
	body := content
	if len(lines) > 1 {
		body = strings.Join(lines[1:], "\n")
	}

	_ = h.api.CreateReaction(ctx, msg.ChannelID, msg.ID, "⏳")

	issue, err := h.github.CreateIssue(ctx, h.opts.Owner, repo, github.IssueInput{
		Title:  title,
		Body:   fmt.Sprintf("%s\n\n---\n*Reported by %s via Discord*", body, msg.Author.Tag()),
		Labels: []string{issueType.Label()},
	})
	if err != nil {
		h.log.Warn("Issue creation failed",
			slog.String("repo", repo),
			slog.Any("error", err))
		_ = h.api.CreateReaction(ctx, msg.ChannelID, msg.ID, "❌")
		_, _ = h.api.SendMessage(ctx, msg.ChannelID, fmt.Sprintf("❌ Error creating GitHub issue: %v", err))
		return
	}

	_ = h.api.CreateReaction(ctx, msg.ChannelID, msg.ID, "✅")
	_, _ = h.api.SendMessage(ctx, msg.ChannelID,
		fmt.Sprintf("✅ Created GitHub %s issue: %s\n**#%d**: %s", issueType, issue.HTMLURL, issue.Number, issue.Title))

	h.log.Info("Created issue from mention",
		slog.String("repo", repo),
		slog.Int("number", issue.Number))
}

// handleReactionAdd feeds ✅ reactions into the approval workflow. Only
// reactions from admins count; everything else is ignored without touching
// ticket state.
func (h *Handler) handleReactionAdd(ctx context.Context, event *discord.GatewayEvent) {
	var reaction discord.MessageReactionAdd
	if err := discord.DecodeEventData(*event, &reaction); err != nil {
		h.log.Warn("Failed to parse MESSAGE_REACTION_ADD", slog.Any("error", err))
		return
	}

	if reaction.Emoji.Name != approval.ApprovalEmoji {
		return
	}
	if reaction.UserID == h.botUserID {
		return
	}

	authorized := h.isAdmin(ctx, reaction.GuildID, reaction.Member)
	if h.approvals.HandleReaction(reaction.MessageID, reaction.UserID, authorized) {
		h.log.Info("Approval granted",
			slog.String("message_id", reaction.MessageID),
			slog.String("user_id", reaction.UserID))
	}
}

// isAdmin reports whether a member holds the Administrator permission or one
// of the privileged role names.
func (h *Handler) isAdmin(ctx context.Context, guildID string, member *discord.Member) bool {
	if member == nil {
		return false
	}

	if member.Permissions != "" {
		if bits, err := strconv.ParseUint(member.Permissions, 10, 64); err == nil {
			if bits&discord.PermissionAdministrator != 0 {
				return true
			}
		}
	}

	if len(member.Roles) == 0 || guildID == "" {
		return false
	}

	names := h.guildRoleNames(ctx, guildID)
	for _, roleID := range member.Roles {
		name := names[roleID]
		for _, privileged := range h.opts.PrivilegedRoles {
			if name == privileged {
				return true
			}
		}
	}

	return false
}

// guildRoleNames resolves role IDs to names, caching per guild.
func (h *Handler) guildRoleNames(ctx context.Context, guildID string) map[string]string {
	h.roleMu.Lock()
	if names, ok := h.roleNames[guildID]; ok {
		h.roleMu.Unlock()
		return names
	}
	h.roleMu.Unlock()

	roles, err := h.api.GetGuildRoles(ctx, guildID)
	if err != nil {
		h.log.Warn("Failed to fetch guild roles",
			slog.String("guild_id", guildID),
			slog.Any("error", err))
		return nil
	}

	names := make(map[string]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}

	h.roleMu.Lock()
	h.roleNames[guildID] = names
	h.roleMu.Unlock()

	return names
}
