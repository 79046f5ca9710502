package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"guild-warden/internal/duration"
	"guild-warden/internal/logger"
	"guild-warden/internal/models"
	"guild-warden/internal/moderation"
	"guild-warden/internal/moderr"
	"guild-warden/internal/notify"
	"guild-warden/internal/permission"
)

// Command names shared by every platform.
const (
	CmdWarn     = "warn"
	CmdKick     = "kick"
	CmdBan      = "ban"
	CmdTimeout  = "timeout"
	CmdUnmute   = "unmute"
	CmdUnban    = "unban"
	CmdModlogs  = "modlogs"
	CmdCase     = "case"
	CmdAutomod  = "automod"
	CmdLeveling = "leveling"
	CmdLanguage = "language"
	CmdModlog   = "modlog"
	CmdSettings = "settings"
	CmdStats    = "stats"
	CmdHelp     = "help"
	CmdPurge    = "purge"
	CmdUserinfo = "userinfo"
)

var usages = map[string]string{
	CmdWarn:     "/warn <user id> <reason>",
	CmdKick:     "/kick <user id> [reason]",
	CmdBan:      "/ban <user id> [reason]",
	CmdTimeout:  "/timeout <user id> <duration> [reason]",
	CmdUnmute:   "/unmute <user id> [reason]",
	CmdUnban:    "/unban <user id> [reason]",
	CmdModlogs:  "/modlogs [user id]",
	CmdCase:     "/case <id>",
	CmdAutomod:  "/automod on|off",
	CmdLeveling: "/leveling on|off",
	CmdLanguage: "/language en|zh_CN|zh_TW",
	CmdModlog:   "/modlog here|off",
	CmdSettings: "/settings",
	CmdStats:    "/stats",
	CmdHelp:     "/help",
	CmdPurge:    "/purge <amount> [user id]",
	CmdUserinfo: "/userinfo [user id]",
}

// Target is the user a command acts on.
type Target struct {
	ID string
	// Tag may be empty; the member's current tag is used then.
	Tag string
}

// Invocation is one command with its arguments resolved.
type Invocation struct {
	Name      string
	GuildID   string
	GuildName string
	ChannelID string
	Actor     permission.Actor
	ActorTag  string

	Target     *Target
	Reason     string
	Duration   string
	DeleteDays int
	CaseID     int64
	// Value is the argument of a settings command.
	Value string
	// Amount of messages to purge.
	Amount int
	// MessageID is the command message itself, when the platform has one.
	MessageID string
}

// UsageError reports a command whose arguments do not fit its usage.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

func usageError(name string) error {
	return &UsageError{Usage: usages[name]}
}

// IsCommand reports whether name is a known command.
func IsCommand(name string) bool {
	_, ok := usages[name]
	return ok
}

// Parse reads a text command such as "/timeout 42 10m flooding". reply is
// the author of the message the command answers; it takes precedence over a
// leading user id, which then belongs to the reason. Texts that are no known
// command yield nil without error.
func Parse(text string, reply *Target) (*Invocation, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, nil
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// telegram appends the bot name in groups: /ban@warden_bot
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if !IsCommand(name) {
		return nil, nil
	}

	args := fields[1:]
	inv := &Invocation{Name: name}

	switch name {
	case CmdWarn, CmdKick, CmdBan, CmdUnmute, CmdUnban:
		target, rest, ok := takeTarget(args, reply)
		if !ok {
			return nil, usageError(name)
		}
		inv.Target = target
		inv.Reason = strings.Join(rest, " ")
		if name == CmdWarn && inv.Reason == "" {
			return nil, usageError(name)
		}

	case CmdTimeout:
		target, rest, ok := takeTarget(args, reply)
		if !ok || len(rest) == 0 {
			return nil, usageError(name)
		}
		inv.Target = target
		inv.Duration = rest[0]
		inv.Reason = strings.Join(rest[1:], " ")

	case CmdPurge:
		if len(args) == 0 || len(args) > 2 {
			return nil, usageError(name)
		}
		amount, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, usageError(name)
		}
		inv.Amount = amount
		switch {
		case len(args) == 2:
			if !isID(args[1]) {
				return nil, usageError(name)
			}
			inv.Target = &Target{ID: args[1]}
		case reply != nil:
			inv.Target = reply
		}

	case CmdModlogs, CmdUserinfo:
		switch {
		case len(args) > 1:
			return nil, usageError(name)
		case len(args) == 1:
			if !isID(args[0]) {
				return nil, usageError(name)
			}
			inv.Target = &Target{ID: args[0]}
		case reply != nil:
			inv.Target = reply
		}

	case CmdCase:
		if len(args) != 1 {
			return nil, usageError(name)
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
		if err != nil || id < 1 {
			return nil, usageError(name)
		}
		inv.CaseID = id

	case CmdAutomod, CmdLeveling:
		if len(args) != 1 || !isSwitch(args[0]) {
			return nil, usageError(name)
		}
		inv.Value = strings.ToLower(args[0])

	case CmdLanguage:
		if len(args) != 1 || !isLanguage(args[0]) {
			return nil, usageError(name)
		}
		inv.Value = args[0]

	case CmdModlog:
		if len(args) != 1 {
			return nil, usageError(name)
		}
		inv.Value = strings.ToLower(args[0])
		if inv.Value != "here" && inv.Value != "off" {
			return nil, usageError(name)
		}

	default:
		if len(args) > 0 {
			return nil, usageError(name)
		}
	}
	return inv, nil
}

// takeTarget prefers the replied-to author; without a reply the first
// argument must be a user id.
func takeTarget(args []string, reply *Target) (*Target, []string, bool) {
	if reply != nil {
		return reply, args, true
	}
	if len(args) > 0 && isID(args[0]) {
		return &Target{ID: args[0]}, args[1:], true
	}
	return nil, nil, false
}

func isID(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isSwitch(s string) bool {
	s = strings.ToLower(s)
	return s == "on" || s == "off"
}

func isLanguage(s string) bool {
	_, ok := models.Translations[s]
	return ok
}

// Execute runs inv and returns the reply for the invoking user. Failures are
// explained in the reply instead of being returned.
func (h *Handler) Execute(ctx context.Context, inv *Invocation) string {
	incrementCounter(&totalCommands)
	lang := h.language(ctx, inv.GuildID)

	reply, err := h.execute(ctx, inv, lang)
	if err == nil {
		return reply
	}
	return h.explain(lang, inv, err)
}

// ParseFailure is the reply to a command text Parse rejected.
func (h *Handler) ParseFailure(ctx context.Context, guildID string, err error) string {
	incrementCounter(&totalCommands)
	return h.explain(h.language(ctx, guildID), &Invocation{GuildID: guildID}, err)
}

func (h *Handler) explain(lang string, inv *Invocation, err error) string {
	var usage *UsageError
	if errors.As(err, &usage) {
		return fmt.Sprintf(models.GetTranslation(lang, "reply_usage"), usage.Usage)
	}
	switch kind := moderr.KindOf(err); {
	case inv.Name == CmdCase && kind == moderr.KindNotFound:
		return fmt.Sprintf(models.GetTranslation(lang, "reply_case_not_found"), inv.CaseID)
	case inv.Name == CmdPurge && kind == moderr.KindNotFound:
		return models.GetTranslation(lang, "reply_purge_none")
	case inv.Name == CmdPurge && kind == moderr.KindOutOfRange:
		return fmt.Sprintf(models.GetTranslation(lang, "reply_purge_range"), moderation.MinPurge, moderation.MaxPurge)
	case inv.Name == CmdTimeout && kind == moderr.KindOutOfRange:
		return fmt.Sprintf(models.GetTranslation(lang, "reply_timeout_range"),
			duration.Format(h.engines.Executor.MinTimeout()), duration.Format(duration.MaxTimeout))
	case inv.Name == CmdUserinfo && kind == moderr.KindNotFound:
		return models.GetTranslation(lang, "reply_user_not_found")
	}
	if moderr.KindOf(err) == moderr.KindTransientIO {
		incrementCounter(&totalErrors)
		logger.Errorf("Command %s in guild %s by %s failed: %v", inv.Name, inv.GuildID, inv.Actor.UserID, err)
	} else {
		logger.Infof("Command %s in guild %s by %s refused: %v", inv.Name, inv.GuildID, inv.Actor.UserID, err)
	}
	return moderr.Explain(err)
}

// language is the reply language of the guild, English when unknown.
func (h *Handler) language(ctx context.Context, guildID string) string {
	policy, err := h.services.Policies.Get(ctx, guildID)
	if err != nil || policy == nil || policy.Language == "" {
		return models.LangEnglish
	}
	return policy.Language
}

func (h *Handler) execute(ctx context.Context, inv *Invocation, lang string) (string, error) {
	executor := h.engines.Executor

	switch inv.Name {
	case CmdWarn, CmdKick, CmdBan, CmdTimeout, CmdUnmute, CmdUnban:
		if inv.Target == nil {
			return "", usageError(inv.Name)
		}
		req := moderation.Request{
			GuildID:           inv.GuildID,
			GuildName:         inv.GuildName,
			Actor:             inv.Actor,
			ActorTag:          inv.ActorTag,
			TargetID:          inv.Target.ID,
			TargetTag:         inv.Target.Tag,
			Reason:            inv.Reason,
			DeleteMessageDays: inv.DeleteDays,
		}

		var (
			res *moderation.Result
			err error
		)
		switch inv.Name {
		case CmdWarn:
			res, err = executor.ExecuteWarn(ctx, req)
		case CmdKick:
			res, err = executor.ExecuteKick(ctx, req)
		case CmdBan:
			res, err = executor.ExecuteBan(ctx, req)
		case CmdTimeout:
			req.DurationText = inv.Duration
			res, err = executor.ExecuteTimeout(ctx, req)
		case CmdUnmute:
			res, err = executor.ExecuteUnmute(ctx, req)
		case CmdUnban:
			res, err = executor.ExecuteUnban(ctx, req)
		}
		if err != nil {
			return "", err
		}
		return resultText(lang, inv, res), nil

	case CmdModlogs:
		if inv.Target != nil {
			cases, err := executor.UserHistory(ctx, inv.Actor, inv.GuildID, inv.Target.ID)
			if err != nil {
				return "", err
			}
			if len(cases) == 0 {
				tag := inv.Target.Tag
				if tag == "" {
					tag = inv.Target.ID
				}
				return fmt.Sprintf(models.GetTranslation(lang, "reply_no_user_cases"), tag), nil
			}
			return caseList(lang, cases), nil
		}
		cases, err := executor.RecentCases(ctx, inv.Actor, inv.GuildID)
		if err != nil {
			return "", err
		}
		if len(cases) == 0 {
			return models.GetTranslation(lang, "reply_no_cases"), nil
		}
		return caseList(lang, cases), nil

	case CmdPurge:
		return h.purge(ctx, inv, lang)

	case CmdUserinfo:
		target := inv.Target
		if target == nil {
			target = &Target{ID: inv.Actor.UserID, Tag: inv.ActorTag}
		}
		info, err := h.services.UserInfo(ctx, h.engines.Platform, inv.GuildID, target.ID)
		if err != nil {
			return "", err
		}
		rec := info.Record
		return fmt.Sprintf(models.GetTranslation(lang, "reply_userinfo"),
			info.Tag, info.UserID, rec.Warnings, rec.Kicks, rec.Bans, rec.Mutes,
			rec.Level, rec.Experience, info.NextLevelXP, rec.Messages), nil

	case CmdCase:
		c, err := executor.Case(ctx, inv.Actor, inv.GuildID, inv.CaseID)
		if err != nil {
			return "", err
		}
		return caseList(lang, []*models.ModerationCase{c}), nil

	case CmdAutomod, CmdLeveling, CmdLanguage, CmdModlog:
		policy, err := h.services.Policies.Update(ctx, inv.GuildID, inv.Actor, settingMutation(inv))
		if err != nil {
			return "", err
		}
		return settingsText(policy), nil

	case CmdSettings:
		policy, err := h.policy(ctx, inv.GuildID, inv.GuildName)
		if err != nil {
			return "", moderr.Transient("load policy", err)
		}
		if !permission.IsAdmin(inv.Actor, policy) {
			return "", fmt.Errorf("%s may not read settings of guild %s: %w", inv.Actor.UserID, inv.GuildID, moderr.ErrUnauthorized)
		}
		return settingsText(policy), nil

	case CmdStats:
		stats, err := h.services.Stats(ctx, inv.Actor, inv.GuildID)
		if err != nil {
			return "", err
		}
		text := fmt.Sprintf(models.GetTranslation(lang, "reply_stats"),
			stats.TotalCases, stats.ActiveBans, stats.TotalWarnings, stats.TrackedUsers)
		if len(stats.RecentCases) > 0 {
			text += "\n\n" + caseList(lang, stats.RecentCases)
		}
		return text, nil

	case CmdHelp:
		return models.GetTranslation(lang, "reply_help"), nil
	}
	return "", usageError(CmdHelp)
}

// purgeNoticeTTL is how long the confirmation stays in the purged channel.
const purgeNoticeTTL = 5 * time.Second

// purge deletes the messages, then posts a short lived confirmation in the
// channel and the mod-log entry in the background.
func (h *Handler) purge(ctx context.Context, inv *Invocation, lang string) (string, error) {
	req := moderation.PurgeRequest{
		GuildID:       inv.GuildID,
		ChannelID:     inv.ChannelID,
		Actor:         inv.Actor,
		ActorTag:      inv.ActorTag,
		Amount:        inv.Amount,
		SkipMessageID: inv.MessageID,
	}
	if inv.Target != nil {
		req.UserID = inv.Target.ID
	}
	n, err := h.engines.Executor.Purge(ctx, req)
	if err != nil {
		return "", err
	}

	reply := fmt.Sprintf(models.GetTranslation(lang, "reply_purged"), n)
	if inv.Target != nil {
		tag := inv.Target.Tag
		if tag == "" {
			tag = inv.Target.ID
		}
		reply = fmt.Sprintf(models.GetTranslation(lang, "reply_purged_user"), n, tag)
	}

	intents := []notify.Intent{{
		Kind:      notify.ChannelNotice,
		GuildID:   inv.GuildID,
		ChannelID: inv.ChannelID,
		Text:      reply,
		TTL:       purgeNoticeTTL,
	}}
	if policy, err := h.services.Policies.Get(ctx, inv.GuildID); err == nil && policy != nil &&
		policy.ModLogChannel != nil && *policy.ModLogChannel != "" {
		intents = append(intents, notify.Intent{
			Kind:      notify.ModLog,
			GuildID:   inv.GuildID,
			ChannelID: *policy.ModLogChannel,
			Text:      fmt.Sprintf(models.GetTranslation(lang, "modlog_purge"), inv.ChannelID, n, inv.ActorTag),
		})
	}
	h.engines.Notifier.DispatchAsync(intents...)
	return reply, nil
}

func settingMutation(inv *Invocation) func(*models.GuildPolicy) {
	return func(p *models.GuildPolicy) {
		switch inv.Name {
		case CmdAutomod:
			p.AutoModEnabled = inv.Value == "on"
		case CmdLeveling:
			p.LevelingEnabled = inv.Value == "on"
		case CmdLanguage:
			p.Language = inv.Value
		case CmdModlog:
			if inv.Value == "off" {
				p.ModLogChannel = nil
				return
			}
			channel := inv.ChannelID
			p.ModLogChannel = &channel
		}
	}
}
