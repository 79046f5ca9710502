package storage

import (
	"context"
	"time"

	"guild-warden/internal/models"

	"gorm.io/gorm"
)

// PendingMsgRepository handles database operations for PendingMessage
type PendingMsgRepository struct {
	db *gorm.DB
}

// NewPendingMsgRepository creates a new PendingMsgRepository
func NewPendingMsgRepository(db *gorm.DB) *PendingMsgRepository {
	return &PendingMsgRepository{db: db}
}

// MigrateTable ensures the PendingMessage table exists
func (r *PendingMsgRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.PendingMessage{})
}

// AddPendingMsg adds a new pending message record
func (r *PendingMsgRepository) AddPendingMsg(ctx context.Context, pm *models.PendingMessage) error {
	return r.db.WithContext(ctx).Create(pm).Error
}

// RemovePendingMsg removes a pending message record
func (r *PendingMsgRepository) RemovePendingMsg(ctx context.Context, platform, chatID, messageID string) error {
	return r.db.WithContext(ctx).
		Where("platform = ? AND chat_id = ? AND message_id = ?", platform, chatID, messageID).
		Delete(&models.PendingMessage{}).Error
}

// GetDuePendingMsgs retrieves records whose deletion time has passed
func (r *PendingMsgRepository) GetDuePendingMsgs(ctx context.Context, now time.Time) ([]models.PendingMessage, error) {
	var msgs []models.PendingMessage
	result := r.db.WithContext(ctx).Where("delete_at <= ?", now).Order("delete_at ASC").Find(&msgs)
	return msgs, result.Error
}
