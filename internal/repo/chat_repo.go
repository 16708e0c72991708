package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist or is not
// owned by the caller. It is gorm.ErrRecordNotFound.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat starts a chat for userID in study mode.
func CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Mode:      domain.ModeStudy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ownedChats scopes a query to the chats of userID.
func ownedChats(ctx context.Context, db *gorm.DB, userID string) *gorm.DB {
	return db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID)
}

// ListChats returns the chats of userID, most recently active first. Every
// send bumps a chat's updated_at, so the conversation the student is working
// in stays on top. A limit <= 0 returns all of them.
func ListChats(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	q := ownedChats(ctx, db, userID).Order("updated_at DESC, id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	out := []domain.Chat{}
	err := q.Find(&out).Error
	return out, err
}

// CountChats returns how many chats userID has.
func CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := ownedChats(ctx, db, userID).Count(&n).Error
	return n, err
}

// GetChat loads chat id if it belongs to userID.
func GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	var c domain.Chat
	if err := ownedChats(ctx, db, userID).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChatTitle renames chat id of userID.
func UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return updateChat(ctx, db, id, userID, map[string]any{"title": title})
}

// UpdateChatMode records the tutoring mode of chat id.
func UpdateChatMode(ctx context.Context, db *gorm.DB, id, userID, mode string) error {
	return updateChat(ctx, db, id, userID, map[string]any{"mode": mode})
}

// updateChat applies fields to one owned chat; no matching row is
// ErrNotFound.
func updateChat(ctx context.Context, db *gorm.DB, id, userID string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := ownedChats(ctx, db, userID).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
