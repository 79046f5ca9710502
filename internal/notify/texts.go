package notify

import (
	"fmt"
	"strings"

	"guild-warden/internal/duration"
	"guild-warden/internal/models"
)

var ruleReasonKeys = map[string]string{
	"anti_spam":    "automod_reason_spam",
	"anti_invite":  "automod_reason_invite",
	"anti_link":    "automod_reason_link",
	"anti_caps":    "automod_reason_caps",
	"max_mentions": "automod_reason_mentions",
	"max_emojis":   "automod_reason_emojis",
}

// AutoModReason localizes the reason of an auto-moderation rule.
func AutoModReason(lang, rule string, settings models.AutoModSettings) string {
	key, ok := ruleReasonKeys[rule]
	if !ok {
		return rule
	}
	switch rule {
	case "max_mentions":
		return fmt.Sprintf(models.GetTranslation(lang, key), settings.MaxMentions)
	case "max_emojis":
		return fmt.Sprintf(models.GetTranslation(lang, key), settings.MaxEmojis)
	}
	return models.GetTranslation(lang, key)
}

// AutoModNotice is the transient notice posted after a deletion.
func AutoModNotice(lang, mention, reason string) string {
	return fmt.Sprintf(models.GetTranslation(lang, "automod_deleted"), mention, reason)
}

// LevelUp announces a new level.
func LevelUp(lang, mention string, level int) string {
	return fmt.Sprintf(models.GetTranslation(lang, "level_up"), mention, level)
}

// DirectMessageText is the text sent to the target of an action, empty when the
// action sends none.
func DirectMessageText(lang string, action models.ActionKind, guildName, reason string, c *models.ModerationCase) string {
	switch action {
	case models.ActionWarn, models.ActionKick, models.ActionBan, models.ActionUnmute:
		return fmt.Sprintf(models.GetTranslation(lang, "dm_"+string(action)), guildName, reason)
	case models.ActionTimeout, models.ActionMute:
		return fmt.Sprintf(models.GetTranslation(lang, "dm_timeout"), guildName, duration.Format(c.DurationValue()), reason)
	}
	return ""
}

// ModLogText is the mod-log entry of a case.
func ModLogText(lang string, c *models.ModerationCase) string {
	text := fmt.Sprintf(models.GetTranslation(lang, "modlog_entry"),
		c.UserTag, c.UserID, strings.ToUpper(string(c.Action)), c.ModeratorTag, c.Reason, c.CaseID)
	if c.Duration != nil {
		text += fmt.Sprintf(models.GetTranslation(lang, "modlog_duration"), duration.Format(c.DurationValue()))
	}
	return text
}

// CaseLine renders one case of a history listing.
func CaseLine(lang string, c *models.ModerationCase) string {
	return fmt.Sprintf(models.GetTranslation(lang, "reply_case_line"),
		c.CaseID, strings.ToUpper(string(c.Action)), c.UserTag, c.ModeratorTag, c.Reason)
}
