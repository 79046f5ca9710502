// Package platform is the contract between the engines and a chat platform.
package platform

import (
	"context"
	"time"

	"guild-warden/internal/permission"
)

// Member is a snapshot of one guild member, taken for a single decision.
type Member struct {
	View permission.HierarchyView
	Tag  string
	// Actionable flags report whether the bot itself can act on the member.
	Bannable    bool
	Kickable    bool
	Moderatable bool
}

// Messenger delivers and removes messages.
type Messenger interface {
	// SendChannel posts text to a channel and returns the new message id.
	SendChannel(ctx context.Context, channelID, text string) (string, error)
	// SendDirect sends text to a user privately.
	SendDirect(ctx context.Context, userID, text string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Platform is everything the engines need from a chat platform. Audit
// reasons are passed through to the platform's audit log where it keeps one.
type Platform interface {
	Messenger

	// Name identifies the platform in persisted records.
	Name() string
	// Member returns nil without error when userID is not a member of guildID.
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	GuildName(ctx context.Context, guildID string) (string, error)

	Ban(ctx context.Context, guildID, userID, reason string, deleteMessageDays int) error
	Unban(ctx context.Context, guildID, userID, reason string) error
	IsBanned(ctx context.Context, guildID, userID string) (bool, error)
	Kick(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error
	RemoveTimeout(ctx context.Context, guildID, userID, reason string) error
}

// TimeoutLimits is implemented by platforms that cannot keep every timeout
// of the general range temporary.
type TimeoutLimits interface {
	// MinTimeout is the shortest timeout the platform lifts by itself.
	MinTimeout() time.Duration
}

// Message references one message of a channel history.
type Message struct {
	ID       string
	AuthorID string
	At       time.Time
}

// Purger is implemented by platforms able to list a channel's history and
// delete from it in bulk.
type Purger interface {
	// RecentMessages returns up to limit of the newest messages of channelID,
	// newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	BulkDelete(ctx context.Context, channelID string, messageIDs []string) error
}
