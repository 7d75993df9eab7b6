package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is a Discord REST API client.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Discord client.
func NewClient(botToken string) *Client {
	return &Client{
		botToken: botToken,
		baseURL:  DiscordAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a new Discord client with a custom base URL (for testing).
func NewClientWithBaseURL(botToken, baseURL string) *Client {
	return &Client{
		botToken: botToken,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest sends an HTTP request to the Discord API.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DiscordBot (LadderBot, 1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("discord API error: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// SendMessage sends a plain text message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*Message, error) {
	payload := struct {
		Content string `json:"content"`
	}{Content: content}

	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), payload)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(resp, &msg); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &msg, nil
}

// DeleteMessage deletes a message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), nil)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

// GetChannelMessages fetches up to limit messages from a channel, newest
// first. A non-empty before ID pages further back in history.
func (c *Client) GetChannelMessages(ctx context.Context, channelID string, limit int, before string) ([]Message, error) {
	endpoint := fmt.Sprintf("/channels/%s/messages?limit=%d", channelID, limit)
	if before != "" {
		endpoint += "&before=" + url.QueryEscape(before)
	}
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get channel messages: %w", err)
	}

	var msgs []Message
	if err := json.Unmarshal(resp, &msgs); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return msgs, nil
}

// CreateReaction adds the bot's reaction to a message.
func (c *Client) CreateReaction(ctx context.Context, channelID, messageID, emoji string) error {
	endpoint := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		channelID, messageID, url.PathEscape(emoji))
	_, err := c.doRequest(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create reaction: %w", err)
	}

	return nil
}

// CreateInteractionResponse acknowledges an interaction. For deferred
// responses the data payload is omitted.
func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID, interactionToken string, responseType int, content string) error {
	payload := map[string]interface{}{
		"type": responseType,
	}
	if content != "" {
		payload["data"] = map[string]string{"content": content}
	}

	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/interactions/%s/%s/callback", interactionID, interactionToken), payload)
	if err != nil {
		return fmt.Errorf("create interaction response: %w", err)
	}

	return nil
}

// EditOriginalInteractionResponse replaces the deferred interaction reply.
func (c *Client) EditOriginalInteractionResponse(ctx context.Context, applicationID, interactionToken, content string) (*Message, error) {
	payload := struct {
		Content string `json:"content"`
	}{Content: content}

	resp, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/webhooks/%s/%s/messages/@original", applicationID, interactionToken), payload)
	if err != nil {
		return nil, fmt.Errorf("edit interaction response: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(resp, &msg); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &msg, nil
}

// EditOriginalInteractionEmbed replaces the deferred interaction reply with an embed.
func (c *Client) EditOriginalInteractionEmbed(ctx context.Context, applicationID, interactionToken string, embed Embed) (*Message, error) {
	payload := struct {
		Embeds []Embed `json:"embeds"`
	}{Embeds: []Embed{embed}}

	resp, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/webhooks/%s/%s/messages/@original", applicationID, interactionToken), payload)
	if err != nil {
		return nil, fmt.Errorf("edit interaction embed: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(resp, &msg); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &msg, nil
}

// CreateFollowup sends an additional message after a deferred interaction reply.
func (c *Client) CreateFollowup(ctx context.Context, applicationID, interactionToken, content string) (*Message, error) {
	payload := struct {
		Content string `json:"content"`
	}{Content: content}

	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/webhooks/%s/%s", applicationID, interactionToken), payload)
	if err != nil {
		return nil, fmt.Errorf("create followup: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(resp, &msg); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &msg, nil
}

// RegisterGuildCommands bulk-overwrites the bot's slash commands for a guild.
func (c *Client) RegisterGuildCommands(ctx context.Context, applicationID, guildID string, commands []ApplicationCommand) error {
	_, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/applications/%s/guilds/%s/commands", applicationID, guildID), commands)
	if err != nil {
		return fmt.Errorf("register guild commands: %w", err)
	}

	return nil
}

// GetChannel fetches a single channel.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/channels/%s", channelID), nil)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}

	var ch Channel
	if err := json.Unmarshal(resp, &ch); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &ch, nil
}

// GetGuildChannels lists all channels in a guild.
func (c *Client) GetGuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/channels", guildID), nil)
	if err != nil {
		return nil, fmt.Errorf("get guild channels: %w", err)
	}

	var channels []Channel
	if err := json.Unmarshal(resp, &channels); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return channels, nil
}

// GetGuildRoles lists all roles in a guild.
func (c *Client) GetGuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/roles", guildID), nil)
	if err != nil {
		return nil, fmt.Errorf("get guild roles: %w", err)
	}

	var roles []Role
	if err := json.Unmarshal(resp, &roles); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return roles, nil
}

// CreateGuildRole creates a role in a guild.
func (c *Client) CreateGuildRole(ctx context.Context, guildID string, role Role) (*Role, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/guilds/%s/roles", guildID), role)
	if err != nil {
		return nil, fmt.Errorf("create guild role: %w", err)
	}

	var created Role
	if err := json.Unmarshal(resp, &created); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &created, nil
}

// ChannelCreate is the payload for creating a guild channel.
type ChannelCreate struct {
	Name                 string                `json:"name"`
	Type                 int                   `json:"type"`
	Topic                string                `json:"topic,omitempty"`
	ParentID             string                `json:"parent_id,omitempty"`
	PermissionOverwrites []PermissionOverwrite `json:"permission_overwrites,omitempty"`
}

// PermissionOverwrite grants or denies permissions per role or member.
type PermissionOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"` // 0 = role, 1 = member
	Allow string `json:"allow,omitempty"`
	Deny  string `json:"deny,omitempty"`
}

// CreateGuildChannel creates a channel in a guild.
func (c *Client) CreateGuildChannel(ctx context.Context, guildID string, ch ChannelCreate) (*Channel, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/guilds/%s/channels", guildID), ch)
	if err != nil {
		return nil, fmt.Errorf("create guild channel: %w", err)
	}

	var created Channel
	if err := json.Unmarshal(resp, &created); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &created, nil
}

// GetGatewayURL returns the WebSocket gateway URL.
func (c *Client) GetGatewayURL(ctx context.Context) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/gateway", nil)
	if err != nil {
		return "", fmt.Errorf("get gateway: %w", err)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	return result.URL, nil
}
