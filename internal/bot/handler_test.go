package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/irsiksoftware/ladderbot/internal/adapters/discord"
	"github.com/irsiksoftware/ladderbot/internal/adapters/github"
	"github.com/irsiksoftware/ladderbot/internal/approval"
	"github.com/irsiksoftware/ladderbot/internal/claude"
	"github.com/irsiksoftware/ladderbot/internal/config"
	"github.com/irsiksoftware/ladderbot/internal/testutil"
)

const testBotUserID = "bot-user-1"

// fakeDiscord records requests to the Discord REST API and serves canned
// channel data.
type fakeDiscord struct {
	mu       sync.Mutex
	server   *httptest.Server
	channels map[string]discord.Channel

	// pages holds message history keyed by the "before" cursor value.
	pages map[string][]discord.Message

	// failDeletes makes every DELETE return 403.
	failDeletes bool

	// channelGate, when set, blocks channel fetches until closed.
	channelGate chan struct{}

	sent     []string // message contents posted to channels
	requests []string // "METHOD path"
}

func newFakeDiscord(t *testing.T) *fakeDiscord {
	t.Helper()
	f := &fakeDiscord{channels: make(map[string]discord.Channel)}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDiscord) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/channels/") && !strings.Contains(r.URL.Path, "/messages"):
		id := strings.TrimPrefix(r.URL.Path, "/channels/")
		f.mu.Lock()
		ch, ok := f.channels[id]
		gate := f.channelGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "Unknown Channel"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(ch)

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
		f.mu.Lock()
		page := f.pages[r.URL.Query().Get("before")]
		f.mu.Unlock()
		if page == nil {
			page = []discord.Message{}
		}
		_ = json.NewEncoder(w).Encode(page)

	case r.Method == http.MethodDelete:
		f.mu.Lock()
		fail := f.failDeletes
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message": "Missing Permissions"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
		var payload struct {
			Content string          `json:"content"`
			Embeds  []discord.Embed `json:"embeds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		if payload.Content != "" {
			f.sent = append(f.sent, payload.Content)
		} else if len(payload.Embeds) > 0 {
			f.sent = append(f.sent, payload.Embeds[0].Title)
		}
		n := len(f.sent)
		f.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"id": "msg-%d"}`, n)

	case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/reactions/"):
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/roles"):
		_, _ = w.Write([]byte(`[{"id": "role-founder", "name": "Founder"}, {"id": "role-member", "name": "Member"}]`))

	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func (f *fakeDiscord) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeDiscord) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestHandler(t *testing.T, fd *fakeDiscord, githubURL string) *Handler {
	t.Helper()

	store := config.NewStore(filepath.Join(t.TempDir(), "discord-structure.json"))
	h := New(Options{
		BotToken:        testutil.FakeDiscordToken,
		ApplicationID:   testutil.FakeApplicationID,
		Owner:           "irsik",
		PrivilegedRoles: []string{"Founder", "Administrator"},
	},
		discord.NewClientWithBaseURL(testutil.FakeDiscordToken, fd.server.URL),
		github.NewClientWithBaseURL(testutil.FakeGitHubToken, githubURL),
		claude.NewInvoker(&claude.Config{Command: "claude"}),
		approval.NewManager(approval.DefaultWindow),
		store,
	)
	h.botUserID = testBotUserID
	h.startedAt = time.Now()
	return h
}

func eventOf(t *testing.T, eventType string, payload interface{}) *discord.GatewayEvent {
	t.Helper()
	return &discord.GatewayEvent{Op: discord.OpcodeDispatch, D: payload, T: &eventType}
}

func TestMentionCreatesIssue(t *testing.T) {
	var gotIssue github.IssueInput
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/irsik/NeonLadder/issues" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotIssue)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 7, "title": "Jump feels floaty", "html_url": "https://github.com/irsik/NeonLadder/issues/7"}`))
	}))
	defer gh.Close()

	fd := newFakeDiscord(t)
	fd.channels["chan-bugs"] = discord.Channel{ID: "chan-bugs", Name: "neon-bug-reports"}

	h := newTestHandler(t, fd, gh.URL)
	t.Setenv("NEON_REPO", "NeonLadder")

	h.processEvent(context.Background(), eventOf(t, "MESSAGE_CREATE", discord.Message{
		ID:        "msg-1",
		ChannelID: "chan-bugs",
		Author:    discord.User{ID: "player-1", Username: "dakota"},
		Content:   fmt.Sprintf("<@%s> Jump feels floaty\nHolding space keeps the player airborne too long.", testBotUserID),
		Mentions:  []discord.User{{ID: testBotUserID}},
	}))
	h.wg.Wait()

	if gotIssue.Title != "Jump feels floaty" {
		t.Errorf("unexpected issue title: %q", gotIssue.Title)
	}
	if !strings.Contains(gotIssue.Body, "Holding space") {
		t.Errorf("issue body missing description: %q", gotIssue.Body)
	}
	if !strings.Contains(gotIssue.Body, "Reported by dakota via Discord") {
		t.Errorf("issue body missing attribution: %q", gotIssue.Body)
	}
	if len(gotIssue.Labels) != 1 || gotIssue.Labels[0] != "bug" {
		t.Errorf("unexpected labels: %v", gotIssue.Labels)
	}

	sent := fd.sentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0], "issues/7") {
		t.Errorf("expected confirmation message with issue link, got %v", sent)
	}
}

func TestMentionTooShortAsksForDetails(t *testing.T) {
	fd := newFakeDiscord(t)
	fd.channels["chan-feat"] = discord.Channel{ID: "chan-feat", Name: "neon-feature-requests"}

	h := newTestHandler(t, fd, "http://unused.invalid")
	t.Setenv("NEON_REPO", "NeonLadder")

	h.processEvent(context.Background(), eventOf(t, "MESSAGE_CREATE", discord.Message{
		ID:        "msg-1",
		ChannelID: "chan-feat",
		Author:    discord.User{ID: "player-1", Username: "sam"},
		Content:   fmt.Sprintf("<@%s> short", testBotUserID),
		Mentions:  []discord.User{{ID: testBotUserID}},
	}))
	h.wg.Wait()

	sent := fd.sentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0], "more details") {
		t.Errorf("expected details prompt, got %v", sent)
	}
}

func TestMentionFromBotIgnored(t *testing.T) {
	fd := newFakeDiscord(t)
	h := newTestHandler(t, fd, "http://unused.invalid")

	h.processEvent(context.Background(), eventOf(t, "MESSAGE_CREATE", discord.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		Author:    discord.User{ID: "other-bot", Username: "webhook", Bot: true},
		Content:   fmt.Sprintf("<@%s> hello", testBotUserID),
		Mentions:  []discord.User{{ID: testBotUserID}},
	}))

	if got := fd.requestLog(); len(got) != 0 {
		t.Errorf("bot message should trigger no API calls, got %v", got)
	}
}

func TestMentionUnmappedChannelPointsToSlashCommands(t *testing.T) {
	fd := newFakeDiscord(t)
	fd.channels["chan-general"] = discord.Channel{ID: "chan-general", Name: "general"}

	h := newTestHandler(t, fd, "http://unused.invalid")

	h.processEvent(context.Background(), eventOf(t, "MESSAGE_CREATE", discord.Message{
		ID:        "msg-1",
		ChannelID: "chan-general",
		Author:    discord.User{ID: "player-1", Username: "sam"},
		Content:   fmt.Sprintf("<@%s> how do I save my game", testBotUserID),
		Mentions:  []discord.User{{ID: testBotUserID}},
	}))
	h.wg.Wait()

	sent := fd.sentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0], "/ask-claude") {
		t.Errorf("expected slash command pointer, got %v", sent)
	}
}

func TestReactionApprovesPendingTicket(t *testing.T) {
	fd := newFakeDiscord(t)
	h := newTestHandler(t, fd, "http://unused.invalid")

	ticket := approval.NewTicket("Add photo mode", "desc", approval.PriorityCritical, "sam", "NeonLadder")
	outcomes := h.approvals.Track(ticket, "msg-42")

	// arbitrary user without admin rights cannot approve
	h.processEvent(context.Background(), eventOf(t, "MESSAGE_REACTION_ADD", discord.MessageReactionAdd{
		UserID:    "player-1",
		ChannelID: "chan-1",
		MessageID: "msg-42",
		GuildID:   "guild-1",
		Member:    &discord.Member{User: &discord.User{ID: "player-1"}, Roles: []string{"role-member"}},
		Emoji:     discord.Emoji{Name: "✅"},
	}))

	select {
	case <-outcomes:
		t.Fatal("unauthorized reaction must not resolve the ticket")
	case <-time.After(50 * time.Millisecond):
	}

	// administrator permission bit approves
	h.processEvent(context.Background(), eventOf(t, "MESSAGE_REACTION_ADD", discord.MessageReactionAdd{
		UserID:    "admin-1",
		ChannelID: "chan-1",
		MessageID: "msg-42",
		GuildID:   "guild-1",
		Member:    &discord.Member{User: &discord.User{ID: "admin-1"}, Permissions: "8"},
		Emoji:     discord.Emoji{Name: "✅"},
	}))

	select {
	case outcome := <-outcomes:
		if outcome.State != approval.StateApproved {
			t.Errorf("expected approved, got %s", outcome.State)
		}
		if outcome.ApproverID != "admin-1" {
			t.Errorf("unexpected approver: %s", outcome.ApproverID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected outcome after admin reaction")
	}
}

func TestReactionPrivilegedRoleApproves(t *testing.T) {
	fd := newFakeDiscord(t)
	h := newTestHandler(t, fd, "http://unused.invalid")

	ticket := approval.NewTicket("t", "d", approval.PriorityUrgent, "sam", "NeonLadder")
	outcomes := h.approvals.Track(ticket, "msg-9")

	h.processEvent(context.Background(), eventOf(t, "MESSAGE_REACTION_ADD", discord.MessageReactionAdd{
		UserID:    "founder-1",
		ChannelID: "chan-1",
		MessageID: "msg-9",
		GuildID:   "guild-1",
		Member:    &discord.Member{User: &discord.User{ID: "founder-1"}, Roles: []string{"role-founder"}},
		Emoji:     discord.Emoji{Name: "✅"},
	}))

	select {
	case outcome := <-outcomes:
		if outcome.State != approval.StateApproved {
			t.Errorf("expected approved, got %s", outcome.State)
		}
	case <-time.After(time.Second):
		t.Fatal("expected outcome after founder reaction")
	}
}

func TestReactionWrongEmojiIgnored(t *testing.T) {
	fd := newFakeDiscord(t)
	h := newTestHandler(t, fd, "http://unused.invalid")

	ticket := approval.NewTicket("t", "d", approval.PriorityCritical, "sam", "NeonLadder")
	outcomes := h.approvals.Track(ticket, "msg-9")

	h.processEvent(context.Background(), eventOf(t, "MESSAGE_REACTION_ADD", discord.MessageReactionAdd{
		UserID:    "admin-1",
		MessageID: "msg-9",
		GuildID:   "guild-1",
		Member:    &discord.Member{User: &discord.User{ID: "admin-1"}, Permissions: "8"},
		Emoji:     discord.Emoji{Name: "👍"},
	}))

	select {
	case <-outcomes:
		t.Fatal("wrong emoji must not resolve the ticket")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAdminCommandRejectedForNonAdmin(t *testing.T) {
	fd := newFakeDiscord(t)
	h := newTestHandler(t, fd, "http://unused.invalid")

	h.processEvent(context.Background(), eventOf(t, "INTERACTION_CREATE", discord.InteractionCreate{
		ID:        "int-1",
		Token:     "tok",
		Type:      discord.InteractionTypeCommand,
		GuildID:   "guild-1",
		ChannelID: "chan-1",
		Member:    &discord.Member{User: &discord.User{ID: "player-1"}, Roles: []string{"role-member"}},
		Data:      discord.InteractionData{Name: "purge-all"},
	}))

	var sawCallback bool
	for _, req := range fd.requestLog() {
		if strings.Contains(req, "/interactions/int-1/tok/callback") {
			sawCallback = true
		}
		if strings.Contains(req, "DELETE") {
			t.Errorf("non-admin purge must not delete anything: %s", req)
		}
	}
	if !sawCallback {
		t.Error("expected rejection response to the interaction")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	fd := newFakeDiscord(t)
	h := newTestHandler(t, fd, "http://unused.invalid")

	// malformed payload: D is a bare string, decoding fails, handler returns
	h.processEvent(context.Background(), eventOf(t, "MESSAGE_CREATE", "not-an-object"))

	// a panicking handler must not crash the loop
	h.runGuarded("test", func() { panic("boom") })
}

func TestIsAdminPermissionBit(t *testing.T) {
	fd := newFakeDiscord(t)
	h := newTestHandler(t, fd, "http://unused.invalid")

	tests := []struct {
		name   string
		member *discord.Member
		want   bool
	}{
		{"nil member", nil, false},
		{"admin bit set", &discord.Member{Permissions: "8"}, true},
		{"admin bit among others", &discord.Member{Permissions: "2147483655"}, true},
		{"no admin bit", &discord.Member{Permissions: "1024"}, false},
		{"no permissions no roles", &discord.Member{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.isAdmin(context.Background(), "guild-1", tt.member); got != tt.want {
				t.Errorf("isAdmin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPurgePaginatesPastUndeletableMessages(t *testing.T) {
	fd := newFakeDiscord(t)
	fd.failDeletes = true

	// Every message matches the default bot-author filter but none can be
	// deleted, so the sweep must still walk past them to older history.
	newest := make([]discord.Message, 100)
	for i := range newest {
		newest[i] = discord.Message{
			ID:        fmt.Sprintf("m%d", 200-i),
			ChannelID: "chan-1",
			Author:    discord.User{ID: testBotUserID},
		}
	}
	fd.pages = map[string][]discord.Message{
		"":     newest,
		"m101": {{ID: "m1", ChannelID: "chan-1", Author: discord.User{ID: testBotUserID}}},
	}

	h := newTestHandler(t, fd, "http://unused.invalid")

	done := make(chan struct{})
	go func() {
		h.handlePurge(context.Background(), &discord.InteractionCreate{
			ID:        "int-1",
			Token:     "tok",
			ChannelID: "chan-1",
			Data:      discord.InteractionData{Name: "purge"},
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("purge did not terminate")
	}

	pages := 0
	for _, req := range fd.requestLog() {
		if strings.HasPrefix(req, "GET ") && strings.HasSuffix(req, "/messages") {
			pages++
		}
	}
	if pages != 2 {
		t.Errorf("expected both history pages fetched, got %d", pages)
	}
}

func TestMentionHandlingDoesNotBlockEventLoop(t *testing.T) {
	fd := newFakeDiscord(t)
	gate := make(chan struct{})
	fd.channelGate = gate
	fd.channels["chan-general"] = discord.Channel{ID: "chan-general", Name: "general"}

	h := newTestHandler(t, fd, "http://unused.invalid")

	start := time.Now()
	h.processEvent(context.Background(), eventOf(t, "MESSAGE_CREATE", discord.Message{
		ID:        "msg-1",
		ChannelID: "chan-general",
		Author:    discord.User{ID: "player-1", Username: "sam"},
		Content:   fmt.Sprintf("<@%s> how do I save my game", testBotUserID),
		Mentions:  []discord.User{{ID: testBotUserID}},
	}))
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("event dispatch blocked for %s while the channel fetch hung", elapsed)
	}

	close(gate)
	h.wg.Wait()

	if sent := fd.sentMessages(); len(sent) != 1 {
		t.Errorf("mention reply not delivered after unblocking, got %v", sent)
	}
}

func TestSlashCommandSchema(t *testing.T) {
	commands := slashCommands()

	byName := make(map[string]discord.ApplicationCommand)
	for _, cmd := range commands {
		byName[cmd.Name] = cmd
	}

	for _, name := range []string{"ask-claude", "readme", "feature-request", "ping", "clear", "help", "listrepos", "addrepo", "removerepo", "addrole", "setup", "purge", "purge-all"} {
		if _, ok := byName[name]; !ok {
			t.Errorf("missing command %s", name)
		}
	}

	fr := byName["feature-request"]
	if len(fr.Options) != 3 {
		t.Fatalf("feature-request should take 3 options, got %d", len(fr.Options))
	}
	if got := len(fr.Options[2].Choices); got != 5 {
		t.Errorf("expected 5 priority choices, got %d", got)
	}

	for name := range adminCommands {
		cmd, ok := byName[name]
		if !ok {
			t.Errorf("admin command %s not registered", name)
			continue
		}
		if cmd.DefaultMemberPermissions == nil {
			t.Errorf("admin command %s missing default permissions", name)
		}
	}
}
