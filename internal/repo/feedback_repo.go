package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// CreateFeedback stores fb, assigning an id and timestamps when unset.
// A second rating by the same user on the same message is ErrDuplicate.
func CreateFeedback(ctx context.Context, db *gorm.DB, fb *domain.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	fb.UpdatedAt = fb.CreatedAt
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FeedbackTally counts the up and down ratings on the replies of chatID.
func FeedbackTally(ctx context.Context, db *gorm.DB, chatID string) (up, down int64, err error) {
	var row struct {
		Up   int64
		Down int64
	}
	err = db.WithContext(ctx).
		Table("feedback AS f").
		Select("COALESCE(SUM(CASE WHEN f.value = 1 THEN 1 ELSE 0 END), 0) AS up, "+
			"COALESCE(SUM(CASE WHEN f.value = -1 THEN 1 ELSE 0 END), 0) AS down").
		Joins("JOIN messages m ON m.id = f.message_id AND m.deleted_at IS NULL").
		Where("m.chat_id = ? AND f.deleted_at IS NULL", chatID).
		Scan(&row).Error
	return row.Up, row.Down, err
}
