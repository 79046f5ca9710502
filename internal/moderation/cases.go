package moderation

import (
	"context"
	"fmt"

	"guild-warden/internal/models"
	"guild-warden/internal/moderr"
	"guild-warden/internal/permission"
)

// HistoryLimit is the number of cases returned by history queries.
const HistoryLimit = 10

// Case returns one case of the guild.
func (e *Executor) Case(ctx context.Context, actor permission.Actor, guildID string, caseID int64) (*models.ModerationCase, error) {
	if _, err := e.authorize(ctx, &Request{GuildID: guildID, Actor: actor}); err != nil {
		return nil, err
	}
	c, err := e.cases.GetCase(ctx, guildID, caseID)
	if err != nil {
		return nil, moderr.Transient("get case", err)
	}
	if c == nil {
		return nil, fmt.Errorf("case %d in guild %s: %w", caseID, guildID, moderr.ErrNotFound)
	}
	return c, nil
}

// UserHistory returns the newest cases of a user, newest first.
func (e *Executor) UserHistory(ctx context.Context, actor permission.Actor, guildID, userID string) ([]*models.ModerationCase, error) {
	if _, err := e.authorize(ctx, &Request{GuildID: guildID, Actor: actor}); err != nil {
		return nil, err
	}
	cases, err := e.cases.ListUserCases(ctx, guildID, userID, HistoryLimit)
	if err != nil {
		return nil, moderr.Transient("list user cases", err)
	}
	return cases, nil
}

// RecentCases returns the newest cases of the guild, newest first.
func (e *Executor) RecentCases(ctx context.Context, actor permission.Actor, guildID string) ([]*models.ModerationCase, error) {
	if _, err := e.authorize(ctx, &Request{GuildID: guildID, Actor: actor}); err != nil {
		return nil, err
	}
	cases, err := e.cases.ListRecentCases(ctx, guildID, HistoryLimit)
	if err != nil {
		return nil, moderr.Transient("list recent cases", err)
	}
	return cases, nil
}
