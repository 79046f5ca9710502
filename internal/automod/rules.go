package automod

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"unicode"

	"github.com/rivo/uniseg"

	"guild-warden/internal/models"
)

// Rule names, also used as metric labels.
const (
	RuleAntiSpam    = "anti_spam"
	RuleAntiInvite  = "anti_invite"
	RuleAntiLink    = "anti_link"
	RuleAntiCaps    = "anti_caps"
	RuleMaxMentions = "max_mentions"
	RuleMaxEmojis   = "max_emojis"
)

const (
	capsMinLength = 10
	capsMaxRatio  = 0.7
)

var (
	inviteRegex = regexp.MustCompile(`(?i)(discord\.gg|discord\.com/invite|discordapp\.com/invite)/[\w-]+|t\.me/(\+|joinchat/)[\w-]+`)
	linkRegex   = regexp.MustCompile(`(?i)https?://\S+`)
	emojiRegex  = regexp.MustCompile(`<a?:\w+:\d+>`)
)

// Outcome is the tagged result of one rule: clean or a violation.
type Outcome struct {
	Violation bool
	Rule      string
	Reason    string
	// Timeout is an extra punishment requested alongside the deletion.
	Timeout time.Duration
}

// Clean is the outcome of a rule that found nothing.
var Clean = Outcome{}

func violation(rule, reason string) Outcome {
	return Outcome{Violation: true, Rule: rule, Reason: reason}
}

// Rule is one content-policy evaluator.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, msg *Message, settings models.AutoModSettings) (Outcome, error)
}

type spamRule struct {
	store     WindowStore
	threshold int
	timeframe time.Duration
	timeout   time.Duration
}

func (r *spamRule) Name() string { return RuleAntiSpam }

func (r *spamRule) Evaluate(ctx context.Context, msg *Message, settings models.AutoModSettings) (Outcome, error) {
	if !settings.AntiSpam {
		return Clean, nil
	}
	count, err := r.store.Observe(ctx, WindowKey(msg.GuildID, msg.AuthorID), msg.At, r.timeframe)
	if err != nil {
		return Clean, err
	}
	if count <= r.threshold {
		return Clean, nil
	}
	out := violation(RuleAntiSpam, "Spam detected")
	out.Timeout = r.timeout
	return out, nil
}

type inviteRule struct{}

func (inviteRule) Name() string { return RuleAntiInvite }

func (inviteRule) Evaluate(_ context.Context, msg *Message, settings models.AutoModSettings) (Outcome, error) {
	if settings.AntiInvite && inviteRegex.MatchString(msg.Content) {
		return violation(RuleAntiInvite, "Invite link detected"), nil
	}
	return Clean, nil
}

type linkRule struct{}

func (linkRule) Name() string { return RuleAntiLink }

func (linkRule) Evaluate(_ context.Context, msg *Message, settings models.AutoModSettings) (Outcome, error) {
	if settings.AntiLink && linkRegex.MatchString(msg.Content) {
		return violation(RuleAntiLink, "External link detected"), nil
	}
	return Clean, nil
}

type capsRule struct{}

func (capsRule) Name() string { return RuleAntiCaps }

func (capsRule) Evaluate(_ context.Context, msg *Message, settings models.AutoModSettings) (Outcome, error) {
	if settings.AntiCaps && CapsRatio(msg.Content) > capsMaxRatio && uniseg.GraphemeClusterCount(msg.Content) > capsMinLength {
		return violation(RuleAntiCaps, "Excessive caps"), nil
	}
	return Clean, nil
}

// CapsRatio returns the share of uppercase letters among all user-perceived
// characters of s.
func CapsRatio(s string) float64 {
	length := uniseg.GraphemeClusterCount(s)
	if length == 0 {
		return 0
	}
	upper := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(length)
}

type mentionRule struct{}

func (mentionRule) Name() string { return RuleMaxMentions }

func (mentionRule) Evaluate(_ context.Context, msg *Message, settings models.AutoModSettings) (Outcome, error) {
	if msg.DistinctMentions() > settings.MaxMentions {
		return violation(RuleMaxMentions, fmt.Sprintf("Exceeded max mentions (%d)", settings.MaxMentions)), nil
	}
	return Clean, nil
}

type emojiRule struct{}

func (emojiRule) Name() string { return RuleMaxEmojis }

func (emojiRule) Evaluate(_ context.Context, msg *Message, settings models.AutoModSettings) (Outcome, error) {
	if msg.EmojiCount() > settings.MaxEmojis {
		return violation(RuleMaxEmojis, fmt.Sprintf("Exceeded max emojis (%d)", settings.MaxEmojis)), nil
	}
	return Clean, nil
}
