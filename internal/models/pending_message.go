package models

import "time"

// PendingMessage represents a transient notice scheduled for deletion.
type PendingMessage struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Platform  string    `gorm:"size:16;index:idx_chat_message,unique"`
	ChatID    string    `gorm:"size:64;index:idx_chat_message,unique"`
	MessageID string    `gorm:"size:64;index:idx_chat_message,unique"`
	DeleteAt  time.Time `gorm:"index"`
}
