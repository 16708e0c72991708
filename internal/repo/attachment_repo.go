package repo

// Attachments are staged on a chat before send and bound to the user message
// that carried them.

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// NewAttachment carries an uploaded file to stage on a chat.
type NewAttachment struct {
	ChatID      string
	UserID      string
	Name        string
	ContentType string
	Data        []byte
}

// CreateAttachment stages a file on a chat. The row has no message until send.
func CreateAttachment(ctx context.Context, db *gorm.DB, in NewAttachment) (*domain.Attachment, error) {
	a := &domain.Attachment{
		ID:          uuid.NewString(),
		ChatID:      in.ChatID,
		UserID:      in.UserID,
		Name:        in.Name,
		Size:        int64(len(in.Data)),
		ContentType: in.ContentType,
		Data:        in.Data,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// ListStagedAttachments returns the previews staged on a chat in the order
// they were added. File bytes are included only when withData is set.
func ListStagedAttachments(ctx context.Context, db *gorm.DB, chatID, userID string, withData bool) ([]domain.Attachment, error) {
	var out []domain.Attachment
	q := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ? AND message_id IS NULL", chatID, userID).
		Order("created_at ASC, id ASC")
	if !withData {
		q = q.Select(attachmentMetaColumns)
	}
	err := q.Find(&out).Error
	return out, err
}

// DeleteStagedAttachment removes exactly one staged preview and its bytes.
// ErrNotFound is returned when nothing matched.
func DeleteStagedAttachment(ctx context.Context, db *gorm.DB, chatID, userID, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND chat_id = ? AND user_id = ? AND message_id IS NULL", id, chatID, userID).
		Delete(&domain.Attachment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearStagedAttachments removes every staged preview of a chat and reports
// how many were dropped.
func ClearStagedAttachments(ctx context.Context, db *gorm.DB, chatID, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ? AND message_id IS NULL", chatID, userID).
		Delete(&domain.Attachment{})
	return res.RowsAffected, res.Error
}

// BindAttachments moves the given staged attachments onto messageID so they
// leave the staging list.
func BindAttachments(ctx context.Context, db *gorm.DB, messageID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("id IN ? AND message_id IS NULL", ids).
		Update("message_id", messageID).Error
}

// SaveAttachmentAnalysis stores what the analysis endpoint returned for a file.
func SaveAttachmentAnalysis(ctx context.Context, db *gorm.DB, id, summary, content string) error {
	return db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("id = ?", id).
		Updates(map[string]any{"summary": summary, "analysis": content}).Error
}
