package handler

import (
	"fmt"
	"strings"

	"guild-warden/internal/moderation"
	"guild-warden/internal/moderr"
	"guild-warden/internal/models"
	"guild-warden/internal/notify"
)

// resultText confirms an executed action. A case that could not be
// recorded still reports the action itself.
func resultText(lang string, inv *Invocation, res *moderation.Result) string {
	var text string
	if res.Case != nil {
		text = fmt.Sprintf(models.GetTranslation(lang, "reply_success"),
			strings.ToUpper(inv.Name), inv.ActorTag, res.Case.UserTag, res.Case.CaseID, res.Case.Reason)
	}
	if res.Warning != nil {
		if text != "" {
			text += "\n"
		}
		text += fmt.Sprintf(models.GetTranslation(lang, "reply_partial"), moderr.Explain(res.Warning))
	}
	return text
}

func caseList(lang string, cases []*models.ModerationCase) string {
	var sb strings.Builder
	for i, c := range cases {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(notify.CaseLine(lang, c))
	}
	return sb.String()
}

func settingsText(policy *models.GuildPolicy) string {
	lang := policy.Language
	modLog := models.GetTranslation(lang, "state_unset")
	if policy.ModLogChannel != nil && *policy.ModLogChannel != "" {
		modLog = *policy.ModLogChannel
	}
	return fmt.Sprintf(models.GetTranslation(lang, "reply_settings"),
		stateText(lang, policy.AutoModEnabled),
		stateText(lang, policy.LevelingEnabled),
		models.GetLanguageName(lang),
		modLog,
	)
}

func stateText(lang string, on bool) string {
	if on {
		return models.GetTranslation(lang, "state_on")
	}
	return models.GetTranslation(lang, "state_off")
}
