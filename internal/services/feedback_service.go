package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

// FeedbackInput is a rating on a tutor reply.
type FeedbackInput struct {
	Value   int    `json:"value"`
	Comment string `json:"comment" validate:"max=1000"`
}

// FeedbackSummary aggregates the ratings left in one chat.
type FeedbackSummary struct {
	ChatID string `json:"chat_id"`
	Up     int64  `json:"up"`
	Down   int64  `json:"down"`
}

// FeedbackService lets students rate the tutor's replies in their own chats.
type FeedbackService struct {
	DB *gorm.DB
}

// Rate stores in as userID's rating of messageID.
//
// Only assistant replies that were actually answered can be rated; a reply
// stored as Failed carries the generic apology and is rejected with
// ErrForbiddenFeedback, as are replies in chats the user does not own.
func (s *FeedbackService) Rate(ctx context.Context, userID, messageID string, in FeedbackInput) (*domain.Feedback, error) {
	if in.Value != -1 && in.Value != 1 {
		return nil, ErrInvalidFeedback
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	fb := &domain.Feedback{MessageID: messageID, UserID: userID, Value: in.Value, Comment: in.Comment}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := repo.GetMessage(tx, messageID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return ErrMessageNotFound
		case err != nil:
			return err
		}
		if msg.Role != domain.RoleAssistant || msg.Failed {
			return ErrForbiddenFeedback
		}
		if _, err := repo.GetChat(ctx, tx, msg.ChatID, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrForbiddenFeedback
			}
			return err
		}

		if err := repo.CreateFeedback(ctx, tx, fb); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateFeedback
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// Summary tallies the ratings in one of userID's chats.
func (s *FeedbackService) Summary(ctx context.Context, userID, chatID string) (*FeedbackSummary, error) {
	if _, err := repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	up, down, err := repo.FeedbackTally(ctx, s.DB, chatID)
	if err != nil {
		return nil, err
	}
	return &FeedbackSummary{ChatID: chatID, Up: up, Down: down}, nil
}
