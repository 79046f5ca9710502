package automod

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-warden/internal/models"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testPolicy() *models.GuildPolicy {
	return &models.GuildPolicy{
		GuildID:        "g1",
		AutoModEnabled: true,
		AutoMod: models.AutoModSettings{
			AntiSpam:    true,
			AntiInvite:  true,
			AntiLink:    false,
			AntiCaps:    true,
			MaxMentions: 5,
			MaxEmojis:   10,
		},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *MemoryWindowStore) {
	t.Helper()
	store, err := NewMemoryWindowStore(1000, DefaultConfig.SpamThreshold+1)
	require.NoError(t, err)
	return New(DefaultConfig, store), store
}

func msgAt(at time.Time, content string) *Message {
	return &Message{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
		AuthorID:  "u1",
		Content:   content,
		At:        at,
	}
}

func TestSpamTripsOnSixthMessage(t *testing.T) {
	p, _ := newTestPipeline(t)
	policy := testPolicy()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res := p.Evaluate(ctx, policy, msgAt(t0.Add(time.Duration(i)*500*time.Millisecond), "hello"))
		assert.False(t, res.Delete, "message %d", i+1)
	}

	res := p.Evaluate(ctx, policy, msgAt(t0.Add(2600*time.Millisecond), "hello"))
	assert.True(t, res.Delete)
	assert.Equal(t, RuleAntiSpam, res.Rule)
	assert.Equal(t, "Spam detected", res.Reason)
	assert.Equal(t, 5*time.Minute, res.Timeout)
}

func TestSpacedMessagesNeverTrip(t *testing.T) {
	p, _ := newTestPipeline(t)
	policy := testPolicy()

	for i := 0; i < 20; i++ {
		res := p.Evaluate(context.Background(), policy, msgAt(t0.Add(time.Duration(i)*6000*time.Millisecond), "same text"))
		assert.False(t, res.Delete, "message %d", i+1)
	}
}

func TestSpamWindowBoundary(t *testing.T) {
	p, _ := newTestPipeline(t)
	policy := testPolicy()
	ctx := context.Background()

	// six messages spanning exactly the timeframe: the first has aged out
	for i := 0; i <= 5; i++ {
		res := p.Evaluate(ctx, policy, msgAt(t0.Add(time.Duration(i)*time.Second), "hi"))
		assert.False(t, res.Delete, "message %d", i+1)
	}
}

func TestSpamWindowsArePerUserAndGuild(t *testing.T) {
	p, _ := newTestPipeline(t)
	policy := testPolicy()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m := msgAt(t0, "hi")
		assert.False(t, p.Evaluate(ctx, policy, m).Delete)
	}
	other := msgAt(t0, "hi")
	other.AuthorID = "u2"
	assert.False(t, p.Evaluate(ctx, policy, other).Delete)

	otherGuild := msgAt(t0, "hi")
	otherGuild.GuildID = "g2"
	assert.False(t, p.Evaluate(ctx, policy, otherGuild).Delete)

	assert.True(t, p.Evaluate(ctx, policy, msgAt(t0, "hi")).Delete)
}

func TestDisabledPolicyLeavesNoTrace(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	off := testPolicy()
	off.AutoModEnabled = false
	for i := 0; i < 10; i++ {
		assert.False(t, p.Evaluate(ctx, off, msgAt(t0, "discord.gg/abc")).Delete)
	}
	assert.False(t, p.Evaluate(ctx, nil, msgAt(t0, "discord.gg/abc")).Delete)

	ignored := testPolicy()
	ignored.IgnoredChannels = []string{"c1"}
	assert.False(t, p.Evaluate(ctx, ignored, msgAt(t0, "discord.gg/abc")).Delete)

	assert.Zero(t, store.Len())
}

func TestInviteAndLinkRules(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		invite  bool
		link    bool
		content string
		rule    string
	}{
		{"discord invite", true, false, "join us at discord.gg/abc-123", RuleAntiInvite},
		{"discord.com invite", true, false, "https://discord.com/invite/xyz", RuleAntiInvite},
		{"telegram invite", true, false, "https://t.me/+AbCdEf", RuleAntiInvite},
		{"invite case-insensitive", true, false, "DISCORD.GG/abc", RuleAntiInvite},
		{"invite wins over link", true, true, "https://discord.gg/abc", RuleAntiInvite},
		{"link", false, true, "see https://example.com/page", RuleAntiLink},
		{"link off", false, false, "see https://example.com/page", ""},
		{"invite off", false, false, "discord.gg/abc", ""},
		{"plain text", true, true, "nothing to see here", ""},
		{"scheme without host", true, true, "http://", ""},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := testPolicy()
			policy.AutoMod.AntiSpam = false
			policy.AutoMod.AntiInvite = tt.invite
			policy.AutoMod.AntiLink = tt.link

			res := p.Evaluate(ctx, policy, msgAt(t0.Add(time.Duration(i)*time.Minute), tt.content))
			assert.Equal(t, tt.rule != "", res.Delete)
			assert.Equal(t, tt.rule, res.Rule)
		})
	}
}

func TestCapsRule(t *testing.T) {
	p, _ := newTestPipeline(t)
	policy := testPolicy()
	policy.AutoMod.AntiSpam = false
	ctx := context.Background()

	res := p.Evaluate(ctx, policy, msgAt(t0, "THIS IS ALL CAPS YES"))
	assert.True(t, res.Delete)
	assert.Equal(t, RuleAntiCaps, res.Rule)

	assert.False(t, p.Evaluate(ctx, policy, msgAt(t0, "HELLO")).Delete)
	assert.False(t, p.Evaluate(ctx, policy, msgAt(t0, "This Is A Normal Sentence")).Delete)
	// eleven characters is the first length checked
	assert.True(t, p.Evaluate(ctx, policy, msgAt(t0, "ABCDEFGHIJK")).Delete)
	assert.False(t, p.Evaluate(ctx, policy, msgAt(t0, "ABCDEFGHIJ")).Delete)

	policy.AutoMod.AntiCaps = false
	assert.False(t, p.Evaluate(ctx, policy, msgAt(t0, "THIS IS ALL CAPS YES")).Delete)
}

func TestCapsRatioCountsCharacters(t *testing.T) {
	assert.Equal(t, 0.0, CapsRatio(""))
	assert.Equal(t, 1.0, CapsRatio("ABC"))
	assert.Equal(t, 0.5, CapsRatio("Ab"))
	// a flag emoji is one character made of two runes
	assert.InDelta(t, 2.0/3.0, CapsRatio("AB🇺🇸"), 1e-9)
}

func TestMentionRule(t *testing.T) {
	p, _ := newTestPipeline(t)
	policy := testPolicy()
	policy.AutoMod.AntiSpam = false
	policy.AutoMod.MaxMentions = 2
	ctx := context.Background()

	m := msgAt(t0, "hey")
	m.MentionedUserIDs = []string{"a", "b", "a", "b"}
	assert.False(t, p.Evaluate(ctx, policy, m).Delete)

	m.MentionedUserIDs = []string{"a", "b", "c"}
	res := p.Evaluate(ctx, policy, m)
	assert.True(t, res.Delete)
	assert.Equal(t, RuleMaxMentions, res.Rule)
	assert.Equal(t, "Exceeded max mentions (2)", res.Reason)
}

func TestEmojiRule(t *testing.T) {
	p, _ := newTestPipeline(t)
	policy := testPolicy()
	policy.AutoMod.AntiSpam = false
	policy.AutoMod.MaxEmojis = 2
	ctx := context.Background()

	assert.False(t, p.Evaluate(ctx, policy, msgAt(t0, "<:a:1> <a:b:2>")).Delete)

	res := p.Evaluate(ctx, policy, msgAt(t0, "<:a:1> <a:b:2> <:c:3>"))
	assert.True(t, res.Delete)
	assert.Equal(t, RuleMaxEmojis, res.Rule)

	m := msgAt(t0, "<:a:1>")
	m.CustomEmojiCount = 2
	assert.True(t, p.Evaluate(ctx, policy, m).Delete)
}

func TestFirstViolationWins(t *testing.T) {
	p, _ := newTestPipeline(t)
	policy := testPolicy()
	policy.AutoMod.AntiLink = true
	policy.AutoMod.MaxMentions = 0
	ctx := context.Background()

	loud := "CHECK DISCORD.GG/ABCDEF NOW"
	for i := 0; i < 5; i++ {
		m := msgAt(t0, loud)
		m.MentionedUserIDs = []string{"x"}
		assert.Equal(t, RuleAntiInvite, p.Evaluate(ctx, policy, m).Rule)
	}
	m := msgAt(t0, loud)
	m.MentionedUserIDs = []string{"x"}
	assert.Equal(t, RuleAntiSpam, p.Evaluate(ctx, policy, m).Rule)
}

func TestRuleOrder(t *testing.T) {
	p, _ := newTestPipeline(t)
	assert.Equal(t, []string{RuleAntiSpam, RuleAntiInvite, RuleAntiLink, RuleAntiCaps, RuleMaxMentions, RuleMaxEmojis}, p.Rules())
}

type failingStore struct{}

func (failingStore) Observe(context.Context, string, time.Time, time.Duration) (int, error) {
	return 0, errors.New("store down")
}

func TestFailingWindowStoreDoesNotHideOtherRules(t *testing.T) {
	p := New(DefaultConfig, failingStore{})
	policy := testPolicy()
	ctx := context.Background()

	assert.False(t, p.Evaluate(ctx, policy, msgAt(t0, "hello")).Delete)
	assert.Equal(t, RuleAntiInvite, p.Evaluate(ctx, policy, msgAt(t0, "discord.gg/x")).Rule)
}

func TestZeroTimestampUsesClock(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.now = func() time.Time { return t0 }
	m := msgAt(time.Time{}, "hi")
	p.Evaluate(context.Background(), testPolicy(), m)
	assert.Equal(t, t0, m.At)
}
