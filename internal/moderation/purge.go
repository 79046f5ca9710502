package moderation

import (
	"context"
	"fmt"
	"time"

	"guild-warden/internal/logger"
	"guild-warden/internal/moderr"
	"guild-warden/internal/permission"
	"guild-warden/internal/platform"
)

const (
	MinPurge = 1
	MaxPurge = 100
	// platforms refuse to bulk delete messages older than this
	purgeMaxAge = 14 * 24 * time.Hour
)

// PurgeRequest deletes up to Amount recent messages of a channel, only those
// of UserID when it is set. SkipMessageID is the invoking command message.
type PurgeRequest struct {
	GuildID       string
	ChannelID     string
	Actor         permission.Actor
	ActorTag      string
	Amount        int
	UserID        string
	SkipMessageID string
}

// Purge deletes recent messages and returns how many were deleted. Purges
// are not recorded as cases.
func (e *Executor) Purge(ctx context.Context, req PurgeRequest) (int, error) {
	if _, err := e.authorize(ctx, &Request{GuildID: req.GuildID, Actor: req.Actor}); err != nil {
		return 0, err
	}
	if req.Amount < MinPurge || req.Amount > MaxPurge {
		return 0, e.deny(fmt.Errorf("purge amount %d outside %d..%d: %w", req.Amount, MinPurge, MaxPurge, moderr.ErrOutOfRange))
	}
	purger, ok := e.platform.(platform.Purger)
	if !ok {
		return 0, e.deny(fmt.Errorf("purge on %s: %w", e.platform.Name(), moderr.ErrUnsupported))
	}

	limit := req.Amount
	if req.SkipMessageID != "" && limit < MaxPurge {
		limit++
	}
	messages, err := purger.RecentMessages(ctx, req.ChannelID, limit)
	if err != nil {
		return 0, moderr.Transient("fetch messages", err)
	}

	cutoff := e.now().Add(-purgeMaxAge)
	ids := make([]string, 0, req.Amount)
	for _, m := range messages {
		if len(ids) == req.Amount {
			break
		}
		if m.ID == req.SkipMessageID {
			continue
		}
		if req.UserID != "" && m.AuthorID != req.UserID {
			continue
		}
		if !m.At.After(cutoff) {
			continue
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return 0, e.deny(fmt.Errorf("no deletable messages in channel %s: %w", req.ChannelID, moderr.ErrNotFound))
	}

	if err := purger.BulkDelete(ctx, req.ChannelID, ids); err != nil {
		return 0, moderr.Transient("bulk delete", err)
	}
	logger.Infof("Purged %d message(s) in channel %s of guild %s by %s", len(ids), req.ChannelID, req.GuildID, req.Actor.UserID)
	return len(ids), nil
}
