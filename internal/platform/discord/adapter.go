// Package discord adapts a discordgo session to the platform contract.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"guild-warden/internal/permission"
	"guild-warden/internal/platform"
)

// Adapter implements platform.Platform on top of a discordgo session.
type Adapter struct {
	session *discordgo.Session
}

var (
	_ platform.Platform = (*Adapter)(nil)
	_ platform.Purger   = (*Adapter)(nil)
)

// maxHistory is the most messages one history request returns.
const maxHistory = 100

// New wraps an opened session.
func New(s *discordgo.Session) *Adapter {
	return &Adapter{session: s}
}

func (a *Adapter) Name() string { return "discord" }

func (a *Adapter) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	g, err := a.session.State.Guild(guildID)
	if err == nil && len(g.Roles) > 0 {
		return g, nil
	}
	g, err = a.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}
	return g, nil
}

func (a *Adapter) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	m, err := a.session.State.Member(guildID, userID)
	if err == nil {
		return m, nil
	}
	m, err = a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member %s: %w", userID, err)
	}
	return m, nil
}

// Member returns a snapshot of the member with the bot's own ability to act on it.
func (a *Adapter) Member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	g, err := a.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	m, err := a.member(ctx, guildID, userID)
	if err != nil || m == nil {
		return nil, err
	}
	botID := a.session.State.User.ID
	bot, err := a.member(ctx, guildID, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("bot is not a member of guild %s", guildID)
	}
	return Snapshot(g, m, bot), nil
}

func (a *Adapter) GuildName(ctx context.Context, guildID string) (string, error) {
	g, err := a.guild(ctx, guildID)
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

func (a *Adapter) Ban(ctx context.Context, guildID, userID, reason string, deleteMessageDays int) error {
	return a.session.GuildBanCreateWithReason(guildID, userID, reason, deleteMessageDays, discordgo.WithContext(ctx))
}

func (a *Adapter) Unban(ctx context.Context, guildID, userID, reason string) error {
	return a.session.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

func (a *Adapter) IsBanned(ctx context.Context, guildID, userID string) (bool, error) {
	_, err := a.session.GuildBan(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *Adapter) Kick(ctx context.Context, guildID, userID, reason string) error {
	return a.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (a *Adapter) Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error {
	until := time.Now().Add(d)
	return a.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

func (a *Adapter) RemoveTimeout(ctx context.Context, guildID, userID, reason string) error {
	return a.session.GuildMemberTimeout(guildID, userID, nil, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

func (a *Adapter) SendChannel(ctx context.Context, channelID, text string) (string, error) {
	msg, err := a.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (a *Adapter) SendDirect(ctx context.Context, userID, text string) error {
	ch, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open dm channel: %w", err)
	}
	_, err = a.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

func (a *Adapter) RecentMessages(ctx context.Context, channelID string, limit int) ([]platform.Message, error) {
	if limit > maxHistory {
		limit = maxHistory
	}
	msgs, err := a.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return history(msgs), nil
}

// BulkDelete removes the messages in one request; discord rejects bulk
// deletes of messages older than two weeks.
func (a *Adapter) BulkDelete(ctx context.Context, channelID string, messageIDs []string) error {
	return a.session.ChannelMessagesBulkDelete(channelID, messageIDs, discordgo.WithContext(ctx))
}

func history(msgs []*discordgo.Message) []platform.Message {
	out := make([]platform.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		msg := platform.Message{ID: m.ID, At: m.Timestamp}
		if m.Author != nil {
			msg.AuthorID = m.Author.ID
		}
		out = append(out, msg)
	}
	return out
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// HighestRank returns the position of the member's highest role. Members
// holding only @everyone rank 0.
func HighestRank(guild *discordgo.Guild, roleIDs []string) int {
	highest := 0
	for _, roleID := range roleIDs {
		for _, role := range guild.Roles {
			if role.ID == roleID && role.Position > highest {
				highest = role.Position
			}
		}
	}
	return highest
}

// Permissions folds the guild-level permission bits of a member's roles,
// @everyone included. Administrator implies everything.
func Permissions(guild *discordgo.Guild, m *discordgo.Member) int64 {
	if m.User != nil && m.User.ID == guild.OwnerID {
		return discordgo.PermissionAll
	}
	var perms int64
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			perms |= role.Permissions
			continue
		}
		for _, id := range m.Roles {
			if role.ID == id {
				perms |= role.Permissions
				break
			}
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

// View builds the hierarchy snapshot of a member.
func View(guild *discordgo.Guild, m *discordgo.Member) permission.HierarchyView {
	var userID string
	if m.User != nil {
		userID = m.User.ID
	}
	return permission.HierarchyView{
		UserID:      userID,
		IsOwner:     userID != "" && userID == guild.OwnerID,
		HighestRank: HighestRank(guild, m.Roles),
		RoleIDs:     m.Roles,
	}
}

// ActorFromMember turns the invoking member into a permission actor.
func ActorFromMember(guild *discordgo.Guild, m *discordgo.Member) permission.Actor {
	perms := m.Permissions
	if perms == 0 {
		perms = Permissions(guild, m)
	}
	var userID string
	if m.User != nil {
		userID = m.User.ID
	}
	return permission.Actor{
		UserID: userID,
		Capabilities: permission.Capabilities{
			Administrator:   perms&discordgo.PermissionAdministrator != 0,
			ModerateMembers: perms&discordgo.PermissionModerateMembers != 0,
		},
		RoleIDs: m.Roles,
	}
}

// Snapshot combines a target member with the bot's ability to act on it.
// The bot can only act on members strictly below its own highest role and
// never on the owner. Administrators cannot be timed out.
func Snapshot(guild *discordgo.Guild, target, bot *discordgo.Member) *platform.Member {
	view := View(guild, target)
	botView := View(guild, bot)
	botPerms := Permissions(guild, bot)
	above := !view.IsOwner && botView.HighestRank > view.HighestRank
	if botView.IsOwner {
		above = !view.IsOwner
	}
	targetAdmin := Permissions(guild, target)&discordgo.PermissionAdministrator != 0

	return &platform.Member{
		View:        view,
		Tag:         Tag(target.User),
		Bannable:    above && botPerms&discordgo.PermissionBanMembers != 0,
		Kickable:    above && botPerms&discordgo.PermissionKickMembers != 0,
		Moderatable: above && !targetAdmin && botPerms&discordgo.PermissionModerateMembers != 0,
	}
}

// Tag renders a user the way moderation logs show it.
func Tag(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}
