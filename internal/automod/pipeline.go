// Package automod evaluates inbound messages against a guild's content policy.
//
// Rules run in a fixed order: anti-spam, anti-invite, anti-link, anti-caps,
// max mentions, max emojis. The first violation decides the result and the
// remaining rules are not evaluated. Anti-spam runs first so that every
// evaluated message is recorded in its sender's window.
package automod

import (
	"context"
	"time"

	"guild-warden/internal/logger"
	"guild-warden/internal/metrics"
	"guild-warden/internal/models"
)

// Message is an inbound chat message as seen by the pipeline.
type Message struct {
	GuildID          string
	ChannelID        string
	MessageID        string
	AuthorID         string
	AuthorMention    string
	Content          string
	MentionedUserIDs []string
	// CustomEmojiCount counts custom emojis the platform reports outside the
	// text, added to the tokens found in Content.
	CustomEmojiCount int
	At               time.Time
}

// DistinctMentions returns the number of distinct mentioned users.
func (m *Message) DistinctMentions() int {
	seen := make(map[string]struct{}, len(m.MentionedUserIDs))
	for _, id := range m.MentionedUserIDs {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// EmojiCount returns the number of custom emoji tokens of the message.
func (m *Message) EmojiCount() int {
	return len(emojiRegex.FindAllStringIndex(m.Content, -1)) + m.CustomEmojiCount
}

// Result is the decision for one message.
type Result struct {
	Delete  bool
	Reason  string
	Rule    string
	Timeout time.Duration
}

// Config holds the fixed anti-spam parameters.
type Config struct {
	SpamThreshold int
	SpamTimeframe time.Duration
	SpamTimeout   time.Duration
}

// DefaultConfig flags more than 5 messages within 5 seconds and times the
// sender out for 5 minutes.
var DefaultConfig = Config{
	SpamThreshold: 5,
	SpamTimeframe: 5 * time.Second,
	SpamTimeout:   5 * time.Minute,
}

type Pipeline struct {
	rules []Rule
	now   func() time.Time
}

// New builds the pipeline with its rules in evaluation order.
func New(cfg Config, windows WindowStore) *Pipeline {
	return &Pipeline{
		rules: []Rule{
			&spamRule{
				store:     windows,
				threshold: cfg.SpamThreshold,
				timeframe: cfg.SpamTimeframe,
				timeout:   cfg.SpamTimeout,
			},
			inviteRule{},
			linkRule{},
			capsRule{},
			mentionRule{},
			emojiRule{},
		},
		now: time.Now,
	}
}

// Rules returns the rule names in evaluation order.
func (p *Pipeline) Rules() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name()
	}
	return names
}

// Evaluate decides whether msg must be deleted under policy. Messages of
// guilds without auto-moderation, or in ignored channels, are clean and leave
// no trace in the spam windows. A rule that fails to evaluate is logged and
// treated as clean.
func (p *Pipeline) Evaluate(ctx context.Context, policy *models.GuildPolicy, msg *Message) Result {
	if policy == nil || !policy.AutoModEnabled || policy.IsChannelIgnored(msg.ChannelID) {
		return Result{}
	}
	if msg.At.IsZero() {
		msg.At = p.now()
	}

	start := time.Now()
	out := p.reduce(ctx, msg, policy.AutoMod)
	metrics.AutoModEvaluationDuration.Observe(time.Since(start).Seconds())

	if !out.Violation {
		metrics.AutoModMessagesEvaluated.WithLabelValues("clean").Inc()
		return Result{}
	}

	metrics.AutoModMessagesEvaluated.WithLabelValues("violation").Inc()
	metrics.AutoModViolations.WithLabelValues(out.Rule).Inc()
	return Result{
		Delete:  true,
		Reason:  out.Reason,
		Rule:    out.Rule,
		Timeout: out.Timeout,
	}
}

// reduce runs the rules in order and stops at the first violation.
func (p *Pipeline) reduce(ctx context.Context, msg *Message, settings models.AutoModSettings) Outcome {
	for _, rule := range p.rules {
		out, err := rule.Evaluate(ctx, msg, settings)
		if err != nil {
			logger.Warningf("automod rule %s failed for %s in guild %s: %v", rule.Name(), msg.AuthorID, msg.GuildID, err)
			continue
		}
		if out.Violation {
			return out
		}
	}
	return Clean
}
