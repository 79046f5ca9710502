package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guild-warden/internal/models"
	"guild-warden/internal/moderr"

	"gorm.io/gorm"
)

// CaseRepository handles database operations for ModerationCase
type CaseRepository struct {
	db *gorm.DB
}

// NewCaseRepository creates a new CaseRepository
func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// MigrateTable ensures the ModerationCase table exists
func (r *CaseRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.ModerationCase{})
}

// MaxCaseID returns the highest case id of a guild, 0 when it has none
func (r *CaseRepository) MaxCaseID(ctx context.Context, guildID string) (int64, error) {
	var maxID sql.NullInt64
	err := r.db.WithContext(ctx).Model(&models.ModerationCase{}).
		Where("guild_id = ?", guildID).
		Select("MAX(case_id)").
		Row().
		Scan(&maxID)
	if err != nil {
		return 0, err
	}
	return maxID.Int64, nil
}

// InsertCase inserts a case; a taken (guild_id, case_id) yields moderr.ErrDuplicate,
// an unknown action moderr.ErrInvalidFormat
func (r *CaseRepository) InsertCase(ctx context.Context, c *models.ModerationCase) error {
	if !c.Action.Valid() {
		return fmt.Errorf("case %d in guild %s has unknown action %q: %w", c.CaseID, c.GuildID, c.Action, moderr.ErrInvalidFormat)
	}
	err := r.db.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("case %d in guild %s: %w", c.CaseID, c.GuildID, moderr.ErrDuplicate)
	}
	return err
}

// GetCase retrieves one case, nil if absent
func (r *CaseRepository) GetCase(ctx context.Context, guildID string, caseID int64) (*models.ModerationCase, error) {
	var c models.ModerationCase
	result := r.db.WithContext(ctx).Where("guild_id = ? AND case_id = ?", guildID, caseID).First(&c)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &c, nil
}

// GetActiveCasesByUser returns the active cases of the given kinds for a user in a guild
func (r *CaseRepository) GetActiveCasesByUser(ctx context.Context, guildID, userID string, kinds ...models.ActionKind) ([]*models.ModerationCase, error) {
	var cases []*models.ModerationCase
	result := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ? AND action IN ? AND active = ?", guildID, userID, kinds, true).
		Order("case_id ASC").
		Find(&cases)
	return cases, result.Error
}

// DeactivateCases flips active cases of the given kinds for a user in a guild,
// returning how many were reversed
func (r *CaseRepository) DeactivateCases(ctx context.Context, guildID, userID string, kinds ...models.ActionKind) (int64, error) {
	if len(kinds) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.ModerationCase{}).
		Where("guild_id = ? AND user_id = ? AND action IN ? AND active = ?", guildID, userID, kinds, true).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now()})
	return result.RowsAffected, result.Error
}

// ListUserCases returns the newest cases of a user in a guild
func (r *CaseRepository) ListUserCases(ctx context.Context, guildID, userID string, limit int) ([]*models.ModerationCase, error) {
	var cases []*models.ModerationCase
	result := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Order("case_id DESC").
		Limit(limit).
		Find(&cases)
	return cases, result.Error
}

// ListRecentCases returns the newest cases of a guild
func (r *CaseRepository) ListRecentCases(ctx context.Context, guildID string, limit int) ([]*models.ModerationCase, error) {
	var cases []*models.ModerationCase
	result := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("case_id DESC").
		Limit(limit).
		Find(&cases)
	return cases, result.Error
}

// CountCases counts the cases of a guild, optionally of one action and only active ones
func (r *CaseRepository) CountCases(ctx context.Context, guildID string, action models.ActionKind, activeOnly bool) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.ModerationCase{}).Where("guild_id = ?", guildID)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
