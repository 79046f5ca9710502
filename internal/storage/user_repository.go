package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guild-warden/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository handles database operations for UserRecord
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// MigrateTable ensures the UserRecord table exists
func (r *UserRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.UserRecord{})
}

// GetUser retrieves the record of a user in a guild, nil if absent
func (r *UserRepository) GetUser(ctx context.Context, userID, guildID string) (*models.UserRecord, error) {
	var rec models.UserRecord
	result := r.db.WithContext(ctx).Where("user_id = ? AND guild_id = ?", userID, guildID).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &rec, nil
}

// GetOrCreate returns the record of a user in a guild, creating a zeroed one lazily
func (r *UserRepository) GetOrCreate(ctx context.Context, userID, guildID string) (*models.UserRecord, error) {
	rec := models.UserRecord{UserID: userID, GuildID: guildID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return nil, err
	}

	existing, err := r.GetUser(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("user record %s/%s vanished after create", guildID, userID)
	}
	return existing, nil
}

// IncrementCounter bumps one moderation counter. When the record exists it is
// incremented in place; when absent it is created with the counter at one.
// A concurrent creation falls back to the increment.
func (r *UserRepository) IncrementCounter(ctx context.Context, userID, guildID string, counter models.Counter) error {
	column, err := counterColumn(counter)
	if err != nil {
		return err
	}

	db := r.db.WithContext(ctx)
	increment := func() (int64, error) {
		result := db.Model(&models.UserRecord{}).
			Where("user_id = ? AND guild_id = ?", userID, guildID).
			UpdateColumns(map[string]interface{}{
				column:       gorm.Expr(column+" + ?", 1),
				"updated_at": time.Now(),
			})
		return result.RowsAffected, result.Error
	}

	rows, err := increment()
	if err != nil || rows > 0 {
		return err
	}

	rec := models.UserRecord{UserID: userID, GuildID: guildID}
	switch counter {
	case models.CounterWarnings:
		rec.Warnings = 1
	case models.CounterKicks:
		rec.Kicks = 1
	case models.CounterBans:
		rec.Bans = 1
	case models.CounterMutes:
		rec.Mutes = 1
	}

	err = db.Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		_, err = increment()
	}
	return err
}

// SaveProgress persists the leveling fields of a record
func (r *UserRepository) SaveProgress(ctx context.Context, rec *models.UserRecord) error {
	return r.db.WithContext(ctx).Model(&models.UserRecord{}).
		Where("user_id = ? AND guild_id = ?", rec.UserID, rec.GuildID).
		Updates(map[string]interface{}{
			"messages":        rec.Messages,
			"experience":      rec.Experience,
			"level":           rec.Level,
			"last_message_at": rec.LastMessageAt,
			"updated_at":      time.Now(),
		}).Error
}

// CountUsers returns how many users have a record in a guild
func (r *UserRepository) CountUsers(ctx context.Context, guildID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserRecord{}).Where("guild_id = ?", guildID).Count(&n).Error
	return n, err
}

func counterColumn(c models.Counter) (string, error) {
	switch c {
	case models.CounterWarnings, models.CounterKicks, models.CounterBans, models.CounterMutes:
		return string(c), nil
	}
	return "", fmt.Errorf("unknown counter %q", c)
}
