// Package telegram adapts a telego bot to the platform contract. Group chats
// play the role of guilds; the owner outranks administrators who outrank
// everybody else.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"

	"guild-warden/internal/moderr"
	"guild-warden/internal/permission"
	"guild-warden/internal/platform"
)

// minRestriction is the shortest restriction telegram lifts by itself;
// until_date closer than this makes the restriction permanent.
const minRestriction = 30 * time.Second

// Ranks of the three tiers a telegram group knows.
const (
	RankMember = iota
	RankAdministrator
	RankOwner
)

// Pseudo role ids so that policies can name telegram tiers.
const (
	RoleAdministrator = "administrator"
	RoleOwner         = "creator"
)

// Adapter implements platform.Platform on top of a telego bot.
type Adapter struct {
	bot   *telego.Bot
	botID int64
}

var (
	_ platform.Platform      = (*Adapter)(nil)
	_ platform.TimeoutLimits = (*Adapter)(nil)
)

// New wraps bot; botID is the id returned by GetMe.
func New(bot *telego.Bot, botID int64) *Adapter {
	return &Adapter{bot: bot, botID: botID}
}

func (a *Adapter) Name() string { return "telegram" }

// ParseID converts a platform id back to telegram's numeric form.
func ParseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram id %q: %w", id, err)
	}
	return n, nil
}

// FormatID is the inverse of ParseID.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (a *Adapter) chatMember(ctx context.Context, chatID, userID int64) (telego.ChatMember, error) {
	return a.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: userID,
	})
}

func ids(guildID, userID string) (int64, int64, error) {
	chatID, err := ParseID(guildID)
	if err != nil {
		return 0, 0, err
	}
	uid, err := ParseID(userID)
	if err != nil {
		return 0, 0, err
	}
	return chatID, uid, nil
}

func (a *Adapter) Member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	chatID, uid, err := ids(guildID, userID)
	if err != nil {
		return nil, err
	}
	target, err := a.chatMember(ctx, chatID, uid)
	if err != nil {
		return nil, fmt.Errorf("error getting member info: %w", err)
	}
	if !IsPresent(target) {
		return nil, nil
	}
	bot, err := a.chatMember(ctx, chatID, a.botID)
	if err != nil {
		return nil, fmt.Errorf("error getting bot member info: %w", err)
	}
	return Snapshot(target, bot), nil
}

// Actor fetches the invoking user as a permission actor.
func (a *Adapter) Actor(ctx context.Context, chatID, userID int64) (permission.Actor, error) {
	cm, err := a.chatMember(ctx, chatID, userID)
	if err != nil {
		return permission.Actor{}, fmt.Errorf("error getting member info: %w", err)
	}
	return ActorFromMember(cm), nil
}

func (a *Adapter) GuildName(ctx context.Context, guildID string) (string, error) {
	chatID, err := ParseID(guildID)
	if err != nil {
		return "", err
	}
	chat, err := a.bot.GetChat(ctx, &telego.GetChatParams{ChatID: telego.ChatID{ID: chatID}})
	if err != nil {
		return "", fmt.Errorf("error getting chat info: %w", err)
	}
	return chat.Title, nil
}

// Ban removes the user for good. Telegram keeps no audit reason, and message
// history can only be revoked as a whole.
func (a *Adapter) Ban(ctx context.Context, guildID, userID, reason string, deleteMessageDays int) error {
	chatID, uid, err := ids(guildID, userID)
	if err != nil {
		return err
	}
	return a.bot.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID:         telego.ChatID{ID: chatID},
		UserID:         uid,
		RevokeMessages: deleteMessageDays > 0,
	})
}

func (a *Adapter) Unban(ctx context.Context, guildID, userID, reason string) error {
	chatID, uid, err := ids(guildID, userID)
	if err != nil {
		return err
	}
	return a.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID:       telego.ChatID{ID: chatID},
		UserID:       uid,
		OnlyIfBanned: true,
	})
}

func (a *Adapter) IsBanned(ctx context.Context, guildID, userID string) (bool, error) {
	chatID, uid, err := ids(guildID, userID)
	if err != nil {
		return false, err
	}
	cm, err := a.chatMember(ctx, chatID, uid)
	if err != nil {
		return false, fmt.Errorf("error getting member info: %w", err)
	}
	_, banned := cm.(*telego.ChatMemberBanned)
	return banned, nil
}

// Kick bans and immediately unbans so the user may rejoin.
func (a *Adapter) Kick(ctx context.Context, guildID, userID, reason string) error {
	chatID, uid, err := ids(guildID, userID)
	if err != nil {
		return err
	}
	if err := a.bot.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: uid,
	}); err != nil {
		return err
	}
	return a.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID:       telego.ChatID{ID: chatID},
		UserID:       uid,
		OnlyIfBanned: true,
	})
}

// MinTimeout is the shortest restriction that stays temporary.
func (a *Adapter) MinTimeout() time.Duration { return minRestriction }

// Timeout restricts the member until now+d. Shorter restrictions than
// minRestriction are refused, never rounded up.
func (a *Adapter) Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error {
	if d < minRestriction {
		return fmt.Errorf("telegram restriction of %s would never expire: %w", d, moderr.ErrOutOfRange)
	}
	chatID, uid, err := ids(guildID, userID)
	if err != nil {
		return err
	}
	return a.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID:      telego.ChatID{ID: chatID},
		UserID:      uid,
		Permissions: chatPermissions(false),
		UntilDate:   time.Now().Add(d).Unix(),
	})
}

func (a *Adapter) RemoveTimeout(ctx context.Context, guildID, userID, reason string) error {
	chatID, uid, err := ids(guildID, userID)
	if err != nil {
		return err
	}
	return a.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID:      telego.ChatID{ID: chatID},
		UserID:      uid,
		Permissions: chatPermissions(true),
	})
}

func (a *Adapter) SendChannel(ctx context.Context, channelID, text string) (string, error) {
	chatID, err := ParseID(channelID)
	if err != nil {
		return "", err
	}
	msg, err := a.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	})
	if err != nil {
		return "", err
	}
	return strconv.Itoa(msg.MessageID), nil
}

// SendDirect only reaches users who started a private chat with the bot.
func (a *Adapter) SendDirect(ctx context.Context, userID, text string) error {
	_, err := a.SendChannel(ctx, userID, text)
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	chatID, err := ParseID(channelID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", messageID, err)
	}
	return a.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: msgID,
	})
}

// chatPermissions grants or revokes everything a timeout takes away.
func chatPermissions(allow bool) telego.ChatPermissions {
	canSendMessages := allow
	canSendMedia := allow
	canSendPolls := allow
	canSendOther := allow
	canAddWebPreview := allow

	return telego.ChatPermissions{
		CanSendMessages:       &canSendMessages,
		CanSendAudios:         &canSendMedia,
		CanSendDocuments:      &canSendMedia,
		CanSendPhotos:         &canSendMedia,
		CanSendVideos:         &canSendMedia,
		CanSendVideoNotes:     &canSendMedia,
		CanSendVoiceNotes:     &canSendMedia,
		CanSendPolls:          &canSendPolls,
		CanSendOtherMessages:  &canSendOther,
		CanAddWebPagePreviews: &canAddWebPreview,
	}
}

// IsPresent reports whether the chat member is currently in the group.
func IsPresent(cm telego.ChatMember) bool {
	switch cm.(type) {
	case *telego.ChatMemberLeft, *telego.ChatMemberBanned:
		return false
	case nil:
		return false
	}
	return true
}

// Rank places a chat member in the group's hierarchy.
func Rank(cm telego.ChatMember) int {
	switch cm.(type) {
	case *telego.ChatMemberOwner:
		return RankOwner
	case *telego.ChatMemberAdministrator:
		return RankAdministrator
	}
	return RankMember
}

// roleIDs is the member's tier plus the custom title an admin was given,
// so a policy may list either.
func roleIDs(cm telego.ChatMember) []string {
	switch m := cm.(type) {
	case *telego.ChatMemberOwner:
		return withTitle(RoleOwner, m.CustomTitle)
	case *telego.ChatMemberAdministrator:
		return withTitle(RoleAdministrator, m.CustomTitle)
	}
	return nil
}

func withTitle(role, title string) []string {
	if title == "" {
		return []string{role}
	}
	return []string{role, title}
}

// View builds the hierarchy snapshot of a chat member.
func View(cm telego.ChatMember) permission.HierarchyView {
	_, owner := cm.(*telego.ChatMemberOwner)
	return permission.HierarchyView{
		UserID:      FormatID(cm.MemberUser().ID),
		IsOwner:     owner,
		HighestRank: Rank(cm),
		RoleIDs:     roleIDs(cm),
	}
}

// ActorFromMember maps the owner to administrator and admins allowed to
// restrict members to moderators.
func ActorFromMember(cm telego.ChatMember) permission.Actor {
	var caps permission.Capabilities
	switch m := cm.(type) {
	case *telego.ChatMemberOwner:
		caps.Administrator = true
	case *telego.ChatMemberAdministrator:
		caps.ModerateMembers = m.CanRestrictMembers
	}
	return permission.Actor{
		UserID:       FormatID(cm.MemberUser().ID),
		Capabilities: caps,
		RoleIDs:      roleIDs(cm),
	}
}

// Tag renders a telegram user for moderation logs.
func Tag(u telego.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// Snapshot combines a target with the bot's ability to act on it. Telegram
// only lets a bot restrict plain members, and only when it is an admin with
// the restrict right.
func Snapshot(target, bot telego.ChatMember) *platform.Member {
	canRestrict := false
	if admin, ok := bot.(*telego.ChatMemberAdministrator); ok {
		canRestrict = admin.CanRestrictMembers
	}
	actionable := canRestrict && Rank(target) == RankMember
	return &platform.Member{
		View:        View(target),
		Tag:         Tag(target.MemberUser()),
		Bannable:    actionable,
		Kickable:    actionable,
		Moderatable: actionable,
	}
}
