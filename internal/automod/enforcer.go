package automod

import (
	"context"
	"time"

	"guild-warden/internal/logger"
	"guild-warden/internal/models"
	"guild-warden/internal/notify"
	"guild-warden/internal/platform"
)

// Moderator is the part of the platform the enforcer acts through.
type Moderator interface {
	Member(ctx context.Context, guildID, userID string) (*platform.Member, error)
	Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Notifier delivers notification intents.
type Notifier interface {
	Dispatch(ctx context.Context, intents ...notify.Intent)
}

// Enforcer carries out a pipeline result. Every step is best effort: a
// failure is logged and the remaining steps still run.
type Enforcer struct {
	platform  Moderator
	notifier  Notifier
	noticeTTL time.Duration
}

func NewEnforcer(p Moderator, n Notifier, noticeTTL time.Duration) *Enforcer {
	return &Enforcer{
		platform:  p,
		notifier:  n,
		noticeTTL: noticeTTL,
	}
}

// Apply deletes the offending message, applies a requested timeout when the
// platform lets the bot mute the author, and posts a transient notice.
func (e *Enforcer) Apply(ctx context.Context, policy *models.GuildPolicy, msg *Message, res Result) {
	if !res.Delete {
		return
	}

	if err := e.platform.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
		logger.Warningf("Failed to delete message %s of %s in guild %s: %v", msg.MessageID, msg.AuthorID, msg.GuildID, err)
	}

	lang := models.LangEnglish
	if policy != nil && policy.Language != "" {
		lang = policy.Language
	}

	if res.Timeout > 0 {
		e.timeout(ctx, lang, msg, res.Timeout)
	}

	var settings models.AutoModSettings
	if policy != nil {
		settings = policy.AutoMod
	}
	mention := msg.AuthorMention
	if mention == "" {
		mention = msg.AuthorID
	}
	e.notifier.Dispatch(ctx, notify.Intent{
		Kind:      notify.ChannelNotice,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		Text:      notify.AutoModNotice(lang, mention, notify.AutoModReason(lang, res.Rule, settings)),
		TTL:       e.noticeTTL,
	})
}

func (e *Enforcer) timeout(ctx context.Context, lang string, msg *Message, d time.Duration) {
	member, err := e.platform.Member(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		logger.Warningf("Failed to look up %s in guild %s for auto timeout: %v", msg.AuthorID, msg.GuildID, err)
		return
	}
	if member == nil || !member.Moderatable {
		logger.Debugf("Skipping auto timeout of %s in guild %s: not moderatable", msg.AuthorID, msg.GuildID)
		return
	}
	reason := models.GetTranslation(lang, "automod_timeout_reason")
	if err := e.platform.Timeout(ctx, msg.GuildID, msg.AuthorID, d, reason); err != nil {
		logger.Warningf("Failed to time out %s in guild %s: %v", msg.AuthorID, msg.GuildID, err)
		return
	}
	logger.Infof("Timed out %s in guild %s for %v: %s", msg.AuthorID, msg.GuildID, d, reason)
}
