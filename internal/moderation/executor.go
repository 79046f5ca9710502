// Package moderation carries out moderator-issued actions.
//
// Every action follows the same order: the actor must be a moderator, the
// target must rank strictly below the actor, and the bot must be able to act
// on the target. Only then is the platform action performed, a case recorded
// with the next identifier of the guild, the user's counter bumped and the
// notifications handed to the notifier. A failure to persist after the
// platform action succeeded is reported as a warning on the result, since
// the action itself cannot be undone.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guild-warden/internal/duration"
	"guild-warden/internal/logger"
	"guild-warden/internal/metrics"
	"guild-warden/internal/models"
	"guild-warden/internal/moderr"
	"guild-warden/internal/notify"
	"guild-warden/internal/permission"
	"guild-warden/internal/platform"
)

const unknownTag = "Unknown#0000"

// PolicySource returns the policy of a guild, nil when it has none.
type PolicySource interface {
	Get(ctx context.Context, guildID string) (*models.GuildPolicy, error)
}

// CaseRecorder assigns case identifiers and stores cases.
type CaseRecorder interface {
	Record(ctx context.Context, c *models.ModerationCase) (int64, error)
}

// CaseStore reads and reverses recorded cases.
type CaseStore interface {
	DeactivateCases(ctx context.Context, guildID, userID string, kinds ...models.ActionKind) (int64, error)
	GetCase(ctx context.Context, guildID string, caseID int64) (*models.ModerationCase, error)
	ListUserCases(ctx context.Context, guildID, userID string, limit int) ([]*models.ModerationCase, error)
	ListRecentCases(ctx context.Context, guildID string, limit int) ([]*models.ModerationCase, error)
}

// CounterStore bumps per-user moderation counters, creating the user record
// when it does not exist yet.
type CounterStore interface {
	IncrementCounter(ctx context.Context, userID, guildID string, counter models.Counter) error
}

// Notifier delivers notification intents.
type Notifier interface {
	Dispatch(ctx context.Context, intents ...notify.Intent)
}

// Request is one moderation command.
type Request struct {
	GuildID   string
	GuildName string
	Actor     permission.Actor
	ActorTag  string
	TargetID  string
	TargetTag string
	Reason    string
	// Duration applies to timeouts. DurationText, when set, is parsed into
	// Duration once the actor is authorized.
	Duration     time.Duration
	DurationText string
	// DeleteMessageDays applies to bans.
	DeleteMessageDays int
}

// Result of an executed action. Warning is set when the platform action
// succeeded but its bookkeeping did not fully complete.
type Result struct {
	Case    *models.ModerationCase
	Warning error
}

type Deps struct {
	Platform  platform.Platform
	Policies  PolicySource
	Sequencer CaseRecorder
	Cases     CaseStore
	Counters  CounterStore
	Notifier  Notifier
}

type Executor struct {
	platform  platform.Platform
	policies  PolicySource
	sequencer CaseRecorder
	cases     CaseStore
	counters  CounterStore
	notifier  Notifier
	now       func() time.Time
}

func NewExecutor(d Deps) *Executor {
	return &Executor{
		platform:  d.Platform,
		policies:  d.Policies,
		sequencer: d.Sequencer,
		cases:     d.Cases,
		counters:  d.Counters,
		notifier:  d.Notifier,
		now:       time.Now,
	}
}

// action describes how one kind of moderation action is checked and applied.
type action struct {
	kind models.ActionKind
	// memberOnly actions need the target to be in the guild.
	memberOnly bool
	// actionable reports whether the bot can act on the member; nil when the
	// action needs no platform capability.
	actionable func(m *platform.Member) bool
	// dmFirst sends the direct message before acting, while the target can
	// still be reached through the guild.
	dmFirst bool
	apply   func(ctx context.Context, p platform.Platform, req *Request, audit string) error
}

var (
	banAction = action{
		kind:       models.ActionBan,
		actionable: func(m *platform.Member) bool { return m.Bannable },
		dmFirst:    true,
		apply: func(ctx context.Context, p platform.Platform, req *Request, audit string) error {
			return p.Ban(ctx, req.GuildID, req.TargetID, audit, req.DeleteMessageDays)
		},
	}
	kickAction = action{
		kind:       models.ActionKick,
		memberOnly: true,
		actionable: func(m *platform.Member) bool { return m.Kickable },
		dmFirst:    true,
		apply: func(ctx context.Context, p platform.Platform, req *Request, audit string) error {
			return p.Kick(ctx, req.GuildID, req.TargetID, audit)
		},
	}
	warnAction = action{
		kind:       models.ActionWarn,
		memberOnly: true,
	}
	timeoutAction = action{
		kind:       models.ActionTimeout,
		memberOnly: true,
		actionable: func(m *platform.Member) bool { return m.Moderatable },
		apply: func(ctx context.Context, p platform.Platform, req *Request, audit string) error {
			return p.Timeout(ctx, req.GuildID, req.TargetID, req.Duration, audit)
		},
	}
	unmuteAction = action{
		kind:       models.ActionUnmute,
		memberOnly: true,
		actionable: func(m *platform.Member) bool { return m.Moderatable },
		apply: func(ctx context.Context, p platform.Platform, req *Request, audit string) error {
			return p.RemoveTimeout(ctx, req.GuildID, req.TargetID, audit)
		},
	}
)

func (e *Executor) ExecuteBan(ctx context.Context, req Request) (*Result, error) {
	if req.DeleteMessageDays < 0 || req.DeleteMessageDays > 7 {
		return nil, e.deny(fmt.Errorf("delete message days %d: %w", req.DeleteMessageDays, moderr.ErrOutOfRange))
	}
	return e.execute(ctx, &req, banAction)
}

func (e *Executor) ExecuteKick(ctx context.Context, req Request) (*Result, error) {
	return e.execute(ctx, &req, kickAction)
}

// ExecuteWarn records a warning. Warnings need an explicit reason.
func (e *Executor) ExecuteWarn(ctx context.Context, req Request) (*Result, error) {
	if req.Reason == "" {
		return nil, e.deny(fmt.Errorf("warning without reason: %w", moderr.ErrInvalidFormat))
	}
	return e.execute(ctx, &req, warnAction)
}

func (e *Executor) ExecuteTimeout(ctx context.Context, req Request) (*Result, error) {
	return e.execute(ctx, &req, timeoutAction)
}

// ExecuteUnmute lifts a timeout and deactivates the user's active timeout cases.
func (e *Executor) ExecuteUnmute(ctx context.Context, req Request) (*Result, error) {
	return e.execute(ctx, &req, unmuteAction)
}

// ExecuteUnban lifts a ban and deactivates the user's active ban cases in the
// guild. The target is usually not a member, so no hierarchy check applies.
func (e *Executor) ExecuteUnban(ctx context.Context, req Request) (*Result, error) {
	if req.Reason == "" {
		req.Reason = models.GetTranslation(models.LangEnglish, "no_reason")
	}
	policy, err := e.authorize(ctx, &req)
	if err != nil {
		return nil, err
	}

	banned, err := e.platform.IsBanned(ctx, req.GuildID, req.TargetID)
	if err != nil {
		return nil, moderr.Transient("fetch ban", err)
	}
	if !banned {
		return nil, e.deny(fmt.Errorf("user %s is not banned from guild %s: %w", req.TargetID, req.GuildID, moderr.ErrNotFound))
	}

	if err := e.platform.Unban(ctx, req.GuildID, req.TargetID, auditReason(&req)); err != nil {
		return nil, moderr.Transient("unban", err)
	}
	if req.TargetTag == "" {
		req.TargetTag = unknownTag
	}
	return e.record(ctx, policy, &req, models.ActionUnban), nil
}

func (e *Executor) execute(ctx context.Context, req *Request, act action) (*Result, error) {
	if req.Reason == "" {
		req.Reason = models.GetTranslation(models.LangEnglish, "no_reason")
	}
	policy, err := e.authorize(ctx, req)
	if err != nil {
		return nil, err
	}

	if act.kind == models.ActionTimeout {
		if req.DurationText != "" {
			d, err := duration.Parse(req.DurationText)
			if err != nil {
				return nil, e.deny(err)
			}
			req.Duration = d
		}
		if err := duration.ValidateTimeout(req.Duration, e.MinTimeout()); err != nil {
			return nil, e.deny(err)
		}
	}

	target, err := e.platform.Member(ctx, req.GuildID, req.TargetID)
	if err != nil {
		return nil, moderr.Transient("fetch target member", err)
	}
	if target == nil && act.memberOnly {
		return nil, e.deny(fmt.Errorf("user %s is not in guild %s: %w", req.TargetID, req.GuildID, moderr.ErrNotFound))
	}

	if target != nil {
		if err := e.checkHierarchy(ctx, req, target); err != nil {
			return nil, err
		}
		if act.actionable != nil && !act.actionable(target) {
			return nil, e.deny(fmt.Errorf("cannot %s %s: %w", act.kind, req.TargetID, moderr.ErrInsufficientBotPermission))
		}
		if req.TargetTag == "" {
			req.TargetTag = target.Tag
		}
	}
	if req.TargetTag == "" {
		req.TargetTag = unknownTag
	}

	lang := language(policy)
	if act.dmFirst {
		e.directMessage(ctx, lang, req, act.kind, nil)
	}

	if act.apply != nil {
		if err := act.apply(ctx, e.platform, req, auditReason(req)); err != nil {
			if moderr.IsTerminal(err) {
				return nil, e.deny(err)
			}
			return nil, moderr.Transient(string(act.kind), err)
		}
	}

	res := e.record(ctx, policy, req, act.kind)
	if !act.dmFirst && res.Case != nil {
		e.directMessage(ctx, lang, req, act.kind, res.Case)
	}
	return res, nil
}

// MinTimeout is the shortest timeout the platform keeps temporary.
func (e *Executor) MinTimeout() time.Duration {
	if l, ok := e.platform.(platform.TimeoutLimits); ok && l.MinTimeout() > duration.MinTimeout {
		return l.MinTimeout()
	}
	return duration.MinTimeout
}

// authorize loads the guild policy and checks that the actor is a moderator.
func (e *Executor) authorize(ctx context.Context, req *Request) (*models.GuildPolicy, error) {
	policy, err := e.policies.Get(ctx, req.GuildID)
	if err != nil {
		return nil, moderr.Transient("load policy", err)
	}
	if !permission.IsModerator(req.Actor, policy) {
		return nil, e.deny(fmt.Errorf("%s is not a moderator of guild %s: %w", req.Actor.UserID, req.GuildID, moderr.ErrUnauthorized))
	}
	return policy, nil
}

// checkHierarchy compares fresh snapshots of the actor and the target.
func (e *Executor) checkHierarchy(ctx context.Context, req *Request, target *platform.Member) error {
	actor, err := e.platform.Member(ctx, req.GuildID, req.Actor.UserID)
	if err != nil {
		return moderr.Transient("fetch actor member", err)
	}
	if actor == nil {
		return e.deny(fmt.Errorf("%s is not in guild %s: %w", req.Actor.UserID, req.GuildID, moderr.ErrUnauthorized))
	}
	if !permission.CanModerate(actor.View, target.View) {
		return e.deny(fmt.Errorf("%s cannot moderate %s: %w", req.Actor.UserID, req.TargetID, moderr.ErrForbidden))
	}
	return nil
}

// record writes the case, reverses earlier cases, bumps the counter and
// posts the mod-log entry. Failures become the result's warning.
func (e *Executor) record(ctx context.Context, policy *models.GuildPolicy, req *Request, kind models.ActionKind) *Result {
	now := e.now()
	c := &models.ModerationCase{
		GuildID:      req.GuildID,
		Action:       kind,
		UserID:       req.TargetID,
		UserTag:      req.TargetTag,
		ModeratorID:  req.Actor.UserID,
		ModeratorTag: req.ActorTag,
		Reason:       req.Reason,
		Active:       true,
	}
	if kind == models.ActionTimeout {
		ms := req.Duration.Milliseconds()
		expires := now.Add(req.Duration)
		c.Duration = &ms
		c.ExpiresAt = &expires
	}

	if _, err := e.sequencer.Record(ctx, c); err != nil {
		logger.Errorf("Failed to record %s case for %s in guild %s after acting: %v", kind, req.TargetID, req.GuildID, err)
		return &Result{Warning: moderr.Transient("record case", err)}
	}
	metrics.CasesCreated.WithLabelValues(string(kind)).Inc()
	logger.Infof("Case %d in guild %s: %s %s by %s: %s", c.CaseID, c.GuildID, kind, c.UserID, c.ModeratorID, c.Reason)

	var warnings []error
	if reversed := kind.Reverses(); len(reversed) > 0 {
		n, err := e.cases.DeactivateCases(ctx, req.GuildID, req.TargetID, reversed...)
		if err != nil {
			warnings = append(warnings, moderr.Transient("deactivate cases", err))
		} else if n > 0 {
			logger.Infof("Deactivated %d %v case(s) of %s in guild %s", n, reversed, req.TargetID, req.GuildID)
		}
	}

	if counter, ok := models.CounterFor(kind); ok {
		if err := e.counters.IncrementCounter(ctx, req.TargetID, req.GuildID, counter); err != nil {
			warnings = append(warnings, moderr.Transient("increment "+string(counter), err))
		}
	}

	if policy != nil && policy.ModLogChannel != nil && *policy.ModLogChannel != "" {
		e.notifier.Dispatch(ctx, notify.Intent{
			Kind:      notify.ModLog,
			GuildID:   req.GuildID,
			ChannelID: *policy.ModLogChannel,
			Text:      notify.ModLogText(language(policy), c),
		})
	}

	res := &Result{Case: c}
	if len(warnings) > 0 {
		res.Warning = errors.Join(warnings...)
		logger.Warningf("Case %d in guild %s recorded with warnings: %v", c.CaseID, c.GuildID, res.Warning)
	}
	return res
}

func (e *Executor) directMessage(ctx context.Context, lang string, req *Request, kind models.ActionKind, c *models.ModerationCase) {
	guildName := req.GuildName
	if guildName == "" {
		if name, err := e.platform.GuildName(ctx, req.GuildID); err == nil {
			guildName = name
		} else {
			guildName = req.GuildID
		}
	}
	if c == nil {
		c = &models.ModerationCase{Action: kind}
	}
	text := notify.DirectMessageText(lang, kind, guildName, req.Reason, c)
	if text == "" {
		return
	}
	e.notifier.Dispatch(ctx, notify.Intent{
		Kind:    notify.DirectMessage,
		GuildID: req.GuildID,
		UserID:  req.TargetID,
		Text:    text,
	})
}

// deny counts a refused request and returns err unchanged.
func (e *Executor) deny(err error) error {
	metrics.ModerationDenied.WithLabelValues(string(moderr.KindOf(err))).Inc()
	return err
}

func auditReason(req *Request) string {
	return fmt.Sprintf("%s | Moderator: %s", req.Reason, req.ActorTag)
}

func language(policy *models.GuildPolicy) string {
	if policy == nil || policy.Language == "" {
		return models.LangEnglish
	}
	return policy.Language
}
