package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// The *Stats helpers report the size of a collection and the newest
// updated_at in it (nil when empty). Handlers hash both into a weak ETag.

// ChatsStats covers the chats owned by userID.
func ChatsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return collectionStats(db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID))
}

// MessagesStats covers the messages of chatID.
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (int64, *time.Time, error) {
	return collectionStats(db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID))
}

// CoursesStats covers the submitted courses of userID.
func CoursesStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return collectionStats(db.WithContext(ctx).Model(&domain.Course{}).Where("user_id = ?", userID))
}

// TopicSetsStats covers the generated topic sets of userID.
func TopicSetsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return collectionStats(db.WithContext(ctx).Model(&domain.TopicSet{}).Where("user_id = ?", userID))
}

func collectionStats(scope *gorm.DB) (int64, *time.Time, error) {
	var n int64
	if err := scope.Session(&gorm.Session{}).Count(&n).Error; err != nil || n == 0 {
		return 0, nil, err
	}
	// SQLite returns MAX(updated_at) as TEXT, so take the newest row instead.
	var newest struct{ UpdatedAt time.Time }
	err := scope.Session(&gorm.Session{}).
		Select("updated_at").
		Order("updated_at DESC").
		Limit(1).
		Scan(&newest).Error
	if err != nil {
		return 0, nil, err
	}
	return n, &newest.UpdatedAt, nil
}
