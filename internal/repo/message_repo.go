package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// Message helpers take a *gorm.DB the caller already scoped with WithContext
// or a transaction; a send writes both halves of an exchange in one tx.

// attachmentMetaColumns excludes the file bytes.
var attachmentMetaColumns = []string{
	"id", "chat_id", "user_id", "message_id", "name", "size",
	"content_type", "summary", "analysis", "created_at",
}

// NewMessage carries the fields of a message to append.
type NewMessage struct {
	ChatID  string
	Role    string
	Mode    string
	Content string
	Failed  bool
}

// CreateMessage appends a message to a chat.
func CreateMessage(db *gorm.DB, in NewMessage) (*domain.Message, error) {
	now := time.Now().UTC()
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    in.ChatID,
		Role:      in.Role,
		Mode:      in.Mode,
		Content:   in.Content,
		Failed:    in.Failed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if m.Mode == "" {
		m.Mode = domain.ModeStudy
	}
	return m, db.Create(m).Error
}

func chronological(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }

func withAttachmentMeta(db *gorm.DB) *gorm.DB {
	return db.Preload("Attachments", func(tx *gorm.DB) *gorm.DB {
		return chronological(tx.Select(attachmentMetaColumns))
	})
}

// ListMessages returns the oldest limit messages of a chat in send order.
// A limit <= 0 returns the full history.
func ListMessages(db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	q := chronological(db.Where("chat_id = ?", chatID))
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ? AND deleted_at IS NULL", chatID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns one page of a chat in send order, each message
// with the metadata of the files it carried.
func ListMessagesPage(db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	err := chronological(withAttachmentMeta(db)).
		Where("chat_id = ?", chatID).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMessagesByIDs loads the given messages with attachment metadata, in
// the order of ids. Missing ids are skipped.
func GetMessagesByIDs(db *gorm.DB, ids ...string) ([]domain.Message, error) {
	if len(ids) == 0 {
		return []domain.Message{}, nil
	}
	var found []domain.Message
	err := withAttachmentMeta(db).Where("id IN ?", ids).Find(&found).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Message, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}
	out := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
