package service

import (
	"context"
	"fmt"

	"guild-warden/internal/leveling"
	"guild-warden/internal/models"
	"guild-warden/internal/moderr"
	"guild-warden/internal/platform"
)

// UserInfo is a member's moderation record and level in one guild.
type UserInfo struct {
	UserID      string
	Tag         string
	Record      models.UserRecord
	NextLevelXP int
}

// UserInfo looks the member up on p and returns their record, zeroed when
// nothing was recorded yet. Any member may read it.
func (s *Services) UserInfo(ctx context.Context, p platform.Platform, guildID, userID string) (*UserInfo, error) {
	member, err := p.Member(ctx, guildID, userID)
	if err != nil {
		return nil, moderr.Transient("fetch member", err)
	}
	if member == nil {
		return nil, fmt.Errorf("user %s is not in guild %s: %w", userID, guildID, moderr.ErrNotFound)
	}

	rec, err := s.Users.GetUser(ctx, userID, guildID)
	if err != nil {
		return nil, moderr.Transient("load user", err)
	}
	if rec == nil {
		rec = &models.UserRecord{UserID: userID, GuildID: guildID}
	}
	return &UserInfo{
		UserID:      userID,
		Tag:         member.Tag,
		Record:      *rec,
		NextLevelXP: leveling.RequiredXP(rec.Level),
	}, nil
}
