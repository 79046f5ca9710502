package service

import (
	"context"
	"fmt"

	"guild-warden/internal/models"
	"guild-warden/internal/moderation"
	"guild-warden/internal/moderr"
	"guild-warden/internal/permission"
)

// GuildStats summarizes the moderation history of a guild.
type GuildStats struct {
	TotalCases    int64
	ActiveBans    int64
	TotalWarnings int64
	TrackedUsers  int64
	RecentCases   []*models.ModerationCase
}

// Stats returns the guild summary; only guild admins may read it.
func (s *Services) Stats(ctx context.Context, actor permission.Actor, guildID string) (*GuildStats, error) {
	policy, err := s.Policies.Get(ctx, guildID)
	if err != nil {
		return nil, moderr.Transient("load policy", err)
	}
	if !permission.IsAdmin(actor, policy) {
		return nil, fmt.Errorf("user %s may not read stats of guild %s: %w", actor.UserID, guildID, moderr.ErrUnauthorized)
	}

	stats := &GuildStats{}
	if stats.TotalCases, err = s.Cases.CountCases(ctx, guildID, "", false); err != nil {
		return nil, moderr.Transient("count cases", err)
	}
	if stats.ActiveBans, err = s.Cases.CountCases(ctx, guildID, models.ActionBan, true); err != nil {
		return nil, moderr.Transient("count bans", err)
	}
	if stats.TotalWarnings, err = s.Cases.CountCases(ctx, guildID, models.ActionWarn, false); err != nil {
		return nil, moderr.Transient("count warnings", err)
	}
	if stats.TrackedUsers, err = s.Users.CountUsers(ctx, guildID); err != nil {
		return nil, moderr.Transient("count users", err)
	}
	if stats.RecentCases, err = s.Cases.ListRecentCases(ctx, guildID, moderation.HistoryLimit); err != nil {
		return nil, moderr.Transient("list recent cases", err)
	}
	return stats, nil
}
