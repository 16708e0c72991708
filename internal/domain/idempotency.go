package domain

import "time"

// Idempotency remembers which message pair a keyed send produced, so that a
// retry carrying the same Idempotency-Key gets that pair back instead of a
// second tutor reply. Keys are scoped to one user and chat, and expire.
type Idempotency struct {
	ID                 string    `gorm:"type:char(36);primaryKey"`
	UserID             string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_chat_key,priority:1"`
	ChatID             string    `gorm:"type:char(36);not null;uniqueIndex:ux_user_chat_key,priority:2"`
	Key                string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_user_chat_key,priority:3"`
	UserMessageID      string    `gorm:"type:char(36);not null"`
	AssistantMessageID string    `gorm:"type:char(36);not null"`
	Status             int       `gorm:"not null"`
	CreatedAt          time.Time `gorm:"not null"`
	ExpiresAt          time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for Idempotency.
func (Idempotency) TableName() string { return "idempotency" }

// Expired reports whether the record stopped replaying at now.
func (r Idempotency) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }
