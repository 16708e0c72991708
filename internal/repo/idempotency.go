package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// ErrDuplicate is returned when an insert hits a unique index.
var ErrDuplicate = errors.New("duplicate")

// SendOutcome identifies the message pair one send produced.
type SendOutcome struct {
	UserMessageID      string
	AssistantMessageID string
	Status             int
}

func idempotencyKey(db *gorm.DB, userID, chatID, key string) *gorm.DB {
	return db.Where("user_id = ? AND chat_id = ? AND key = ?", userID, chatID, key)
}

// GetIdempotency returns the live record for (user, chat, key) or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, chatID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(chatID) == "" || key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := idempotencyKey(db.WithContext(ctx), userID, chatID, key).
		Where("expires_at > ?", now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records out under (user, chat, key) for ttl. An expired
// record holding the same key is replaced; a live one yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, chatID, key string, out SendOutcome, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:                 uuid.NewString(),
		UserID:             userID,
		ChatID:             chatID,
		Key:                key,
		UserMessageID:      out.UserMessageID,
		AssistantMessageID: out.AssistantMessageID,
		Status:             out.Status,
		CreatedAt:          now,
		ExpiresAt:          now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := idempotencyKey(tx, userID, chatID, key).
			Where("expires_at <= ?", now).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// DeleteExpiredIdempotency removes every record that stopped replaying at
// now and reports how many went.
func DeleteExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// glebarez/sqlite reports unique failures as text rather than
// gorm.ErrDuplicatedKey unless TranslateError is on.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
