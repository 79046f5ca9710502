package models

import "time"

// Counter names one of the moderation counters of a UserRecord.
type Counter string

const (
	CounterWarnings Counter = "warnings"
	CounterKicks    Counter = "kicks"
	CounterBans     Counter = "bans"
	CounterMutes    Counter = "mutes"
)

// CounterFor maps an action to the counter it increments, if any.
func CounterFor(kind ActionKind) (Counter, bool) {
	switch kind {
	case ActionWarn:
		return CounterWarnings, true
	case ActionKick:
		return CounterKicks, true
	case ActionBan:
		return CounterBans, true
	case ActionTimeout, ActionMute:
		return CounterMutes, true
	}
	return "", false
}

// UserRecord holds per (user, guild) moderation and engagement counters.
type UserRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	UserID        string `gorm:"size:64;not null;uniqueIndex:idx_user_guild"`
	GuildID       string `gorm:"size:64;not null;uniqueIndex:idx_user_guild"`
	Warnings      int    `gorm:"default:0"`
	Kicks         int    `gorm:"default:0"`
	Bans          int    `gorm:"default:0"`
	Mutes         int    `gorm:"default:0"`
	Messages      int    `gorm:"default:0"`
	Experience    int    `gorm:"default:0"`
	Level         int    `gorm:"default:0"`
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Get returns the value of counter c.
func (u *UserRecord) Get(c Counter) int {
	switch c {
	case CounterWarnings:
		return u.Warnings
	case CounterKicks:
		return u.Kicks
	case CounterBans:
		return u.Bans
	case CounterMutes:
		return u.Mutes
	}
	return 0
}
