package models

import (
	"slices"
	"sync"
	"time"
)

// AutoModSettings holds the per-rule toggles of the auto-moderation pipeline.
// No gorm defaults here: a default would override an explicit false on insert.
type AutoModSettings struct {
	AntiSpam    bool
	AntiInvite  bool
	AntiLink    bool
	AntiCaps    bool
	MaxMentions int
	MaxEmojis   int
}

// GuildPolicy is the per-guild configuration read by every pipeline
// evaluation. At most one row exists per GuildID.
type GuildPolicy struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	GuildID   string `gorm:"size:64;uniqueIndex;not null"`
	GuildName string `gorm:"size:255"`
	Language  string `gorm:"size:8;default:'en'"`

	AutoModEnabled  bool
	AutoMod         AutoModSettings `gorm:"embedded;embeddedPrefix:automod_"`
	LevelingEnabled bool

	ModeratorRoles  []string `gorm:"serializer:json;type:text"`
	AdminRoles      []string `gorm:"serializer:json;type:text"`
	IgnoredChannels []string `gorm:"serializer:json;type:text"`
	ModLogChannel   *string  `gorm:"size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsChannelIgnored reports whether auto-moderation and leveling skip channelID.
func (p *GuildPolicy) IsChannelIgnored(channelID string) bool {
	return slices.Contains(p.IgnoredChannels, channelID)
}

// Clone returns a deep copy so cached policies are never mutated in place.
func (p *GuildPolicy) Clone() *GuildPolicy {
	if p == nil {
		return nil
	}
	c := *p
	c.ModeratorRoles = slices.Clone(p.ModeratorRoles)
	c.AdminRoles = slices.Clone(p.AdminRoles)
	c.IgnoredChannels = slices.Clone(p.IgnoredChannels)
	if p.ModLogChannel != nil {
		ch := *p.ModLogChannel
		c.ModLogChannel = &ch
	}
	return &c
}

// PolicyCache keeps loaded guild policies in memory.
type PolicyCache struct {
	policies map[string]*GuildPolicy
	mu       sync.RWMutex
}

func NewPolicyCache() *PolicyCache {
	return &PolicyCache{
		policies: make(map[string]*GuildPolicy),
	}
}

func (c *PolicyCache) Get(guildID string) *GuildPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policies[guildID].Clone()
}

func (c *PolicyCache) Put(policy *GuildPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies[policy.GuildID] = policy.Clone()
}

func (c *PolicyCache) Remove(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.policies, guildID)
}

func (c *PolicyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.policies)
}
