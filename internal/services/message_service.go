// Package services – MessageService
//
// MessageService owns the send flow of a chat turn. A send appends the user
// message, binds the staged attachments to it, and produces exactly one
// assistant message:
//
//   - with attachments, each file is analyzed in upload order and the results
//     are combined into a single reply;
//   - without attachments, the whole ordered history goes to the chat
//     backend together with the mode and token limit.
//
// Backend failures never surface as errors. They are stored as an assistant
// message flagged Failed with a generic text, and the send is not retried.
//
// The chat title is generated from the first prompt while it still holds a
// placeholder. Sends carrying an idempotency key are recorded so that a retry
// with the same key returns the stored pair instead of sending again.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/upstream"
)

// FailedReplyText is stored as the assistant reply when the backend fails.
const FailedReplyText = "Sorry, I couldn't process that request. Please try again."

// ChatBackend is the part of the AI backend used by a send.
type ChatBackend interface {
	Analyze(ctx context.Context, in upstream.AnalyzeRequest) (*upstream.AnalysisResult, error)
	Chat(ctx context.Context, in upstream.ChatRequest) (string, error)
}

// Quota meters sends. *UsageService implements it.
type Quota interface {
	Consume(ctx context.Context, userID string, anonymous bool) (*UsageStatus, error)
}

// SendInput is one user turn.
type SendInput struct {
	Content        string
	Mode           string
	IdempotencyKey string
	// Anonymous selects the anonymous quota.
	Anonymous bool
}

// SendResult is the stored pair of a send.
type SendResult struct {
	User      *domain.Message `json:"user"`
	Assistant *domain.Message `json:"assistant"`
	// Replayed is set when the pair comes from an earlier send with the same
	// idempotency key.
	Replayed bool `json:"-"`
}

// MessageService coordinates message persistence and assistant replies.
type MessageService struct {
	DB      *gorm.DB
	Backend ChatBackend
	// Quota is optional; nil disables metering.
	Quota Quota

	// Optional guards
	MaxPromptRunes int
	MaxTokens      int
	IdempotencyTTL time.Duration

	// Titles names a chat after its first prompt.
	Titles Titler
}

// Send validates the input, stores the user message, obtains the assistant
// reply and stores it. The returned error covers validation, ownership, quota
// and persistence only.
func (s *MessageService) Send(ctx context.Context, userID, chatID string, in SendInput) (*SendResult, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	content := strings.TrimSpace(in.Content)
	mode := in.Mode
	if mode == "" {
		mode = domain.ModeStudy
	}
	if !domain.ValidMode(mode) {
		return nil, ErrInvalidMode
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(content) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}
	span.SetAttributes(attribute.String("chat.mode", mode))

	db := s.DB.WithContext(ctx)
	chat, err := repo.GetChat(ctx, s.DB, chatID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	if in.IdempotencyKey != "" {
		if res := s.replay(ctx, userID, chatID, in.IdempotencyKey); res != nil {
			span.SetAttributes(attribute.Bool("idempotency.replayed", true))
			return res, nil
		}
	}

	staged, err := repo.ListStagedAttachments(ctx, s.DB, chatID, userID, true)
	if err != nil {
		return nil, err
	}
	if content == "" && len(staged) == 0 {
		return nil, ErrEmptyPrompt
	}

	if s.Quota != nil {
		if _, err := s.Quota.Consume(ctx, userID, in.Anonymous); err != nil {
			return nil, err
		}
	}

	var userMsg *domain.Message
	err = db.Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, repo.NewMessage{
			ChatID: chatID, Role: domain.RoleUser, Mode: mode, Content: content,
		})
		if err != nil {
			return err
		}
		userMsg = m

		if len(staged) > 0 {
			ids := make([]string, len(staged))
			for i := range staged {
				ids[i] = staged[i].ID
			}
			if err := repo.BindAttachments(ctx, tx, m.ID, ids); err != nil {
				return err
			}
		}

		updates := map[string]any{"mode": mode, "updated_at": time.Now().UTC()}
		if isPlaceholderTitle(chat.Title) {
			seed := content
			if seed == "" {
				seed = strings.TrimSuffix(staged[0].Name, fileExt(staged[0].Name))
			}
			if gen := s.Titles.FromPrompt(seed); gen != "" {
				updates["title"] = gen
			}
		}
		return tx.Model(&domain.Chat{}).Where("id = ?", chatID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	var reply string
	var replyErr error
	kind := "chat"
	if len(staged) > 0 {
		kind = "analysis"
		reply, replyErr = s.analyzeAll(ctx, userID, mode, content, staged)
	} else {
		reply, replyErr = s.chatReply(ctx, userID, chatID, mode)
	}

	failed := replyErr != nil
	outcome := "ok"
	if failed {
		outcome = "failed"
		reply = FailedReplyText
		span.RecordError(replyErr)
		log.Error().Err(replyErr).
			Str("chat_id", chatID).
			Str("user_id", userID).
			Str("kind", kind).
			Msg("assistant reply failed")
	}
	chatReplies.WithLabelValues(kind, outcome).Inc()

	asst, err := repo.CreateMessage(db, repo.NewMessage{
		ChatID: chatID, Role: domain.RoleAssistant, Mode: mode, Content: reply, Failed: failed,
	})
	if err != nil {
		return nil, err
	}

	if msgs, err := repo.GetMessagesByIDs(db, userMsg.ID); err == nil && len(msgs) == 1 {
		userMsg = &msgs[0]
	}
	res := &SendResult{User: userMsg, Assistant: asst}

	if in.IdempotencyKey != "" {
		ttl := s.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		out := repo.SendOutcome{UserMessageID: userMsg.ID, AssistantMessageID: asst.ID, Status: 200}
		if _, err := repo.CreateIdempotency(ctx, s.DB, userID, chatID, in.IdempotencyKey, out, ttl); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("idempotency record not stored")
		}
	}
	return res, nil
}

// replay returns the stored pair for a still-valid idempotency key.
func (s *MessageService) replay(ctx context.Context, userID, chatID, key string) *SendResult {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, chatID, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil
	}
	msgs, err := repo.GetMessagesByIDs(s.DB.WithContext(ctx), rec.UserMessageID, rec.AssistantMessageID)
	if err != nil || len(msgs) != 2 {
		return nil
	}
	return &SendResult{User: &msgs[0], Assistant: &msgs[1], Replayed: true}
}

// chatReply sends the ordered history, including the new user message.
// Earlier failed replies are left out of the history.
func (s *MessageService) chatReply(ctx context.Context, userID, chatID, mode string) (string, error) {
	history, err := repo.ListMessages(s.DB.WithContext(ctx), chatID, 0)
	if err != nil {
		return "", err
	}
	msgs := make([]upstream.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Failed || strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, upstream.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return s.Backend.Chat(ctx, upstream.ChatRequest{
		Messages:  msgs,
		Mode:      mode,
		MaxTokens: s.MaxTokens,
		UserID:    userID,
	})
}

// analyzeAll analyzes each file in order and combines the results into one
// reply. Any failure fails the whole reply.
func (s *MessageService) analyzeAll(ctx context.Context, userID, mode, prompt string, files []domain.Attachment) (string, error) {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		res, err := s.Backend.Analyze(ctx, upstream.AnalyzeRequest{
			File:        bytes.NewReader(f.Data),
			FileName:    f.Name,
			ContentType: f.ContentType,
			Mode:        mode,
			Prompt:      prompt,
			UserID:      userID,
		})
		if err != nil {
			return "", fmt.Errorf("analyze %q: %w", f.Name, err)
		}
		if err := repo.SaveAttachmentAnalysis(ctx, s.DB, f.ID, res.Summary, res.Content); err != nil {
			log.Warn().Err(err).Str("attachment_id", f.ID).Msg("analysis not stored")
		}
		parts = append(parts, formatAnalysis(f.Name, res, len(files) > 1))
	}
	return strings.Join(parts, "\n\n"), nil
}

// formatAnalysis renders one file's result; headed marks multi-file replies.
func formatAnalysis(name string, res *upstream.AnalysisResult, headed bool) string {
	var b strings.Builder
	if headed {
		b.WriteString("### ")
		b.WriteString(name)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(res.Summary))
	if c := strings.TrimSpace(res.Content); c != "" {
		b.WriteString("\n\n")
		b.WriteString(c)
	}
	return b.String()
}

// ListPage returns paginated messages for a chat owned by userID.
func (s *MessageService) ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrChatNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), chatID, offset, pageSize)
	return items, total, err
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
