package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

const defaultChatPageSize = 20

// ChatService manages the chats a student keeps with the tutor. Chats are
// never deleted; they are renamed, listed and switched between modes.
// Naming a chat after its first prompt happens in MessageService.
type ChatService struct {
	DB     *gorm.DB
	Titles Titler
}

// NewChatService returns a ChatService with default title rules.
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{DB: db}
}

// Create starts a chat. A blank title becomes "New chat", which the first
// prompt later replaces.
func (s *ChatService) Create(ctx context.Context, userID, title string) (*domain.Chat, error) {
	title = s.Titles.Tidy(title)
	if title == "" {
		title = defaultTitleNew
	}
	return repo.CreateChat(ctx, s.DB, userID, title)
}

// ListPage returns page (1-based) of userID's chats and their total.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultChatPageSize
	}
	total, err := repo.CountChats(ctx, s.DB, userID)
	if err != nil || total == 0 {
		return []domain.Chat{}, total, err
	}
	items, err := repo.ListChats(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get returns chat chatID of userID.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	chat, err := repo.GetChat(ctx, s.DB, chatID, userID)
	if err != nil {
		return nil, chatErr(err)
	}
	return chat, nil
}

// UpdateTitle renames a chat. A blank title stores "Untitled", which keeps
// the chat eligible for naming from the next prompt.
func (s *ChatService) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	title = s.Titles.Tidy(title)
	if title == "" {
		title = defaultTitleUntitled
	}
	return chatErr(repo.UpdateChatTitle(ctx, s.DB, chatID, userID, title))
}

// SetMode switches the tutoring mode of a chat; "" selects study.
func (s *ChatService) SetMode(ctx context.Context, userID, chatID, mode string) error {
	if mode == "" {
		mode = domain.ModeStudy
	}
	if !domain.ValidMode(mode) {
		return ErrInvalidMode
	}
	return chatErr(repo.UpdateChatMode(ctx, s.DB, chatID, userID, mode))
}

// chatErr maps a missing or foreign chat to ErrChatNotFound.
func chatErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrChatNotFound
	}
	return err
}
