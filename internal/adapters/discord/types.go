package discord

// Discord Gateway intents (https://discord.com/developers/docs/topics/gateway#gateway-intents)
const (
	IntentGuilds                 = 1 << 0
	IntentGuildMembers           = 1 << 1
	IntentGuildMessages          = 1 << 9
	IntentGuildMessageReactions  = 1 << 10
	IntentDirectMessages         = 1 << 12
	IntentDirectMessageReactions = 1 << 13
	IntentMessageContent         = 1 << 15
)

// DefaultIntents covers everything the bot listens for: guild messages with
// content, member data for permission checks, and reaction events for the
// approval workflow.
const DefaultIntents = IntentGuilds | IntentGuildMembers | IntentGuildMessages |
	IntentGuildMessageReactions | IntentMessageContent

// Discord API constants
const (
	DiscordAPIURL = "https://discord.com/api/v10"

	// Gateway opcodes
	OpcodeDispatch  = 0
	OpcodeHeartbeat = 1
	OpcodeIdentify  = 2
	OpcodeResume    = 6
	OpcodeHello     = 10

	// Channel types
	ChannelTypeText     = 0
	ChannelTypeCategory = 4

	// Interaction types
	InteractionTypeCommand = 2

	// Interaction response types
	ResponseChannelMessage  = 4
	ResponseDeferredMessage = 5
)

// PermissionAdministrator is the Administrator bit in a permission bitfield.
const PermissionAdministrator uint64 = 1 << 3

// MaxMessageLength is Discord's message-size ceiling.
const MaxMessageLength = 2000

// GatewayEvent is one frame from the Gateway.
type GatewayEvent struct {
	Op int         `json:"op"`
	D  interface{} `json:"d"`
	S  *int        `json:"s"`
	T  *string     `json:"t"`
}

// Heartbeat is sent by the client to keep the connection alive.
type Heartbeat struct {
	Op int  `json:"op"`
	D  *int `json:"d"`
}

// Identify is sent by the client after HELLO.
type Identify struct {
	Op int          `json:"op"`
	D  IdentifyData `json:"d"`
}

// IdentifyData is the identify payload.
type IdentifyData struct {
	Token      string            `json:"token"`
	Intents    int               `json:"intents"`
	Properties map[string]string `json:"properties"`
}

// Resume is sent by the client to resume a dropped session.
type Resume struct {
	Op int        `json:"op"`
	D  ResumeData `json:"d"`
}

// ResumeData is the resume payload.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
}

// Hello carries the heartbeat interval from the server.
type Hello struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// Ready carries session data after identify.
type Ready struct {
	SessionID string  `json:"session_id"`
	User      User    `json:"user"`
	Guilds    []Guild `json:"guilds"`
}

// Guild is a partial guild object.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// User is a Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Tag renders the user's display handle.
func (u User) Tag() string {
	return u.Username
}

// Member is a guild member with role and permission data.
type Member struct {
	User        *User    `json:"user,omitempty"`
	Nick        string   `json:"nick,omitempty"`
	Roles       []string `json:"roles"`
	Permissions string   `json:"permissions,omitempty"` // bitfield, present on interactions
}

// Role is a guild role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Mentionable bool   `json:"mentionable,omitempty"`
	Hoist       bool   `json:"hoist,omitempty"`
}

// Channel is a guild channel.
type Channel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	Name     string `json:"name,omitempty"`
	Topic    string `json:"topic,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	GuildID  string `json:"guild_id,omitempty"`
}

// Message is a channel message.
type Message struct {
	ID        string  `json:"id,omitempty"`
	ChannelID string  `json:"channel_id,omitempty"`
	GuildID   string  `json:"guild_id,omitempty"`
	Author    User    `json:"author,omitempty"`
	Member    *Member `json:"member,omitempty"`
	Content   string  `json:"content,omitempty"`
	Mentions  []User  `json:"mentions,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
	WebhookID string  `json:"webhook_id,omitempty"`
}

// Embed is a rich message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is one field inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is an embed footer.
type EmbedFooter struct {
	Text string `json:"text,omitempty"`
}

// MessageReactionAdd is the MESSAGE_REACTION_ADD event payload.
type MessageReactionAdd struct {
	UserID    string  `json:"user_id"`
	ChannelID string  `json:"channel_id"`
	MessageID string  `json:"message_id"`
	GuildID   string  `json:"guild_id,omitempty"`
	Member    *Member `json:"member,omitempty"`
	Emoji     Emoji   `json:"emoji"`
}

// Emoji identifies a reaction emoji.
type Emoji struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// InteractionCreate is the INTERACTION_CREATE event payload.
type InteractionCreate struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	Type      int             `json:"type"`
	GuildID   string          `json:"guild_id,omitempty"`
	ChannelID string          `json:"channel_id,omitempty"`
	Channel   *Channel        `json:"channel,omitempty"`
	Member    *Member         `json:"member,omitempty"`
	User      *User           `json:"user,omitempty"`
	Data      InteractionData `json:"data"`
}

// InteractionData carries the invoked command and its options.
type InteractionData struct {
	Name    string          `json:"name,omitempty"`
	Options []CommandOption `json:"options,omitempty"`
}

// CommandOption is one slash command argument.
type CommandOption struct {
	Name  string      `json:"name"`
	Type  int         `json:"type,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// StringOption returns the named option's string value, or "" if absent.
func (d InteractionData) StringOption(name string) string {
	for _, opt := range d.Options {
		if opt.Name == name {
			if s, ok := opt.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// IntOption returns the named option's integer value, or 0 if absent.
func (d InteractionData) IntOption(name string) int {
	for _, opt := range d.Options {
		if opt.Name == name {
			if f, ok := opt.Value.(float64); ok {
				return int(f)
			}
		}
	}
	return 0
}

// BoolOption returns the named option's boolean value, or false if absent.
func (d InteractionData) BoolOption(name string) bool {
	for _, opt := range d.Options {
		if opt.Name == name {
			if b, ok := opt.Value.(bool); ok {
				return b
			}
		}
	}
	return false
}

// ApplicationCommand is the registration schema for one slash command.
type ApplicationCommand struct {
	Name                     string                     `json:"name"`
	Description              string                     `json:"description"`
	Options                  []ApplicationCommandOption `json:"options,omitempty"`
	DefaultMemberPermissions *string                    `json:"default_member_permissions,omitempty"`
}

// ApplicationCommandOption describes one argument in a command schema.
type ApplicationCommandOption struct {
	Type        int                        `json:"type"`
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Required    bool                       `json:"required,omitempty"`
	Choices     []ApplicationCommandChoice `json:"choices,omitempty"`
	MinValue    *int                       `json:"min_value,omitempty"`
	MaxValue    *int                       `json:"max_value,omitempty"`
}

// ApplicationCommandChoice is one fixed choice for an option.
type ApplicationCommandChoice struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Application command option types.
const (
	OptionTypeString  = 3
	OptionTypeInteger = 4
	OptionTypeBoolean = 5
	OptionTypeUser    = 6
)
