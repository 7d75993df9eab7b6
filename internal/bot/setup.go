package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/irsiksoftware/ladderbot/internal/adapters/discord"
	"github.com/irsiksoftware/ladderbot/internal/config"
)

// permissionBits maps the structure document's permission names to Discord
// permission flags.
var permissionBits = map[string]uint64{
	"ViewChannel":        1 << 10,
	"SendMessages":       1 << 11,
	"ManageMessages":     1 << 13,
	"ReadMessageHistory": 1 << 16,
	"MentionEveryone":    1 << 17,
	"Administrator":      discord.PermissionAdministrator,
}

// SetupResult summarizes a provisioning run.
type SetupResult struct {
	RolesCreated    int
	ChannelsCreated int
	ChannelsSkipped int
}

// provisionGuild creates the roles, categories and channels the structure
// document describes. Existing entities are left alone, so rerunning is safe.
func (h *Handler) provisionGuild(ctx context.Context, guildID string) (*SetupResult, error) {
	doc, err := h.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load structure: %w", err)
	}

	result := &SetupResult{}

	roleIDs, created, err := h.provisionRoles(ctx, guildID, doc.Roles)
	if err != nil {
		return nil, err
	}
	result.RolesCreated = created

	channels, err := h.api.GetGuildChannels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	categoryIDs := make(map[string]string)
	existing := make(map[string]bool) // "parentID/name" -> present
	for _, ch := range channels {
		if ch.Type == discord.ChannelTypeCategory {
			categoryIDs[ch.Name] = ch.ID
			continue
		}
		existing[ch.ParentID+"/"+ch.Name] = true
	}

	// Overwrite target for @everyone is the guild ID itself.
	roleIDs["@everyone"] = guildID

	for _, cat := range doc.Categories {
		categoryID, ok := categoryIDs[cat.Name]
		if !ok {
			createdCat, err := h.api.CreateGuildChannel(ctx, guildID, discord.ChannelCreate{
				Name:                 cat.Name,
				Type:                 discord.ChannelTypeCategory,
				PermissionOverwrites: buildOverwrites(cat.Permissions, roleIDs),
			})
			if err != nil {
				return nil, fmt.Errorf("create category %s: %w", cat.Name, err)
			}
			categoryID = createdCat.ID
			h.log.Info("Created category", slog.String("name", cat.Name))
			time.Sleep(500 * time.Millisecond)
		}

		for _, spec := range cat.Channels {
			if existing[categoryID+"/"+spec.Name] {
				result.ChannelsSkipped++
				continue
			}

			_, err := h.api.CreateGuildChannel(ctx, guildID, discord.ChannelCreate{
				Name:                 spec.Name,
				Type:                 discord.ChannelTypeText,
				Topic:                spec.Topic,
				ParentID:             categoryID,
				PermissionOverwrites: buildOverwrites(spec.Permissions, roleIDs),
			})
			if err != nil {
				h.log.Warn("Failed to create channel",
					slog.String("name", spec.Name),
					slog.Any("error", err))
				continue
			}
			result.ChannelsCreated++
			h.log.Info("Created channel", slog.String("name", spec.Name))
			time.Sleep(300 * time.Millisecond)
		}
	}

	return result, nil
}

// provisionRoles creates any missing roles and returns a name -> ID mapping
// for all roles in the guild.
func (h *Handler) provisionRoles(ctx context.Context, guildID string, specs []*config.RoleSpec) (map[string]string, int, error) {
	roles, err := h.api.GetGuildRoles(ctx, guildID)
	if err != nil {
		return nil, 0, fmt.Errorf("list roles: %w", err)
	}

	roleIDs := make(map[string]string, len(roles))
	for _, r := range roles {
		roleIDs[r.Name] = r.ID
	}

	created := 0
	for _, spec := range specs {
		if _, ok := roleIDs[spec.Name]; ok {
			continue
		}

		role, err := h.api.CreateGuildRole(ctx, guildID, discord.Role{
			Name:        spec.Name,
			Color:       parseHexColor(spec.Color),
			Permissions: strconv.FormatUint(combineBits(spec.Permissions), 10),
			Mentionable: spec.Mentionable,
			Hoist:       spec.Hoist,
		})
		if err != nil {
			return nil, created, fmt.Errorf("create role %s: %w", spec.Name, err)
		}

		roleIDs[spec.Name] = role.ID
		created++
		h.log.Info("Created role", slog.String("name", spec.Name))
	}

	return roleIDs, created, nil
}

func buildOverwrites(rules []*config.PermissionRule, roleIDs map[string]string) []discord.PermissionOverwrite {
	var overwrites []discord.PermissionOverwrite
	for _, rule := range rules {
		roleID, ok := roleIDs[rule.Role]
		if !ok {
			continue
		}

		ow := discord.PermissionOverwrite{ID: roleID, Type: 0}
		if allow := combineBits(rule.Allow); allow != 0 {
			ow.Allow = strconv.FormatUint(allow, 10)
		}
		if deny := combineBits(rule.Deny); deny != 0 {
			ow.Deny = strconv.FormatUint(deny, 10)
		}
		overwrites = append(overwrites, ow)
	}
	return overwrites
}

func combineBits(names []string) uint64 {
	var bits uint64
	for _, name := range names {
		bits |= permissionBits[name]
	}
	return bits
}

// parseHexColor converts "#RRGGBB" to an integer color, 0 on bad input.
func parseHexColor(s string) int {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
