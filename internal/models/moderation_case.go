package models

import "time"

// ActionKind is the type of a moderation action recorded in a case.
type ActionKind string

const (
	ActionWarn    ActionKind = "warn"
	ActionKick    ActionKind = "kick"
	ActionBan     ActionKind = "ban"
	ActionMute    ActionKind = "mute"
	ActionUnmute  ActionKind = "unmute"
	ActionUnban   ActionKind = "unban"
	ActionTimeout ActionKind = "timeout"
)

// Valid reports whether k is one of the known action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionWarn, ActionKick, ActionBan, ActionMute, ActionUnmute, ActionUnban, ActionTimeout:
		return true
	}
	return false
}

// Reverses lists the action kinds whose active cases k deactivates.
func (k ActionKind) Reverses() []ActionKind {
	switch k {
	case ActionUnban:
		return []ActionKind{ActionBan}
	case ActionUnmute:
		return []ActionKind{ActionTimeout, ActionMute}
	}
	return nil
}

// ModerationCase is the audit record of one moderation action.
// (GuildID, CaseID) is unique and CaseID grows without gaps per guild.
// Rows are never deleted; only Active flips when a reversing action is recorded.
type ModerationCase struct {
	ID           uint       `gorm:"primaryKey;autoIncrement"`
	GuildID      string     `gorm:"size:64;not null;uniqueIndex:idx_guild_case;index:idx_guild_user"`
	CaseID       int64      `gorm:"not null;uniqueIndex:idx_guild_case"`
	Action       ActionKind `gorm:"size:16;not null"`
	UserID       string     `gorm:"size:64;not null;index:idx_guild_user"`
	UserTag      string     `gorm:"size:255;not null"`
	ModeratorID  string     `gorm:"size:64;not null"`
	ModeratorTag string     `gorm:"size:255;not null"`
	Reason       string     `gorm:"type:text;not null"`
	Duration     *int64     // milliseconds
	Active       bool
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DurationValue returns the recorded duration, zero when none.
func (c *ModerationCase) DurationValue() time.Duration {
	if c.Duration == nil {
		return 0
	}
	return time.Duration(*c.Duration) * time.Millisecond
}
