// Package services – AttachmentService
//
// AttachmentService owns the per-chat staging list of uploaded files. Files
// are staged before a send, show up as previews (metadata only), and are
// bound to the user message when it is sent. Removing a preview deletes that
// preview and its bytes and nothing else.
package services

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

// allowedContentTypes lists the file types the analysis backend accepts.
var allowedContentTypes = map[string]struct{}{
	"application/pdf":    {},
	"image/png":          {},
	"image/jpeg":         {},
	"image/gif":          {},
	"image/webp":         {},
	"text/plain":         {},
	"text/markdown":      {},
	"text/csv":           {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// extContentTypes resolves types that sniffing cannot tell apart.
var extContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// AttachmentService manages staged chat attachments.
type AttachmentService struct {
	DB *gorm.DB
	// MaxBytes caps a single file; <= 0 disables the check.
	MaxBytes int64
}

// Upload is one file offered for staging.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Add stages a file for the next send in chatID.
func (s *AttachmentService) Add(ctx context.Context, userID, chatID, name, contentType string, data []byte) (*domain.Attachment, error) {
	staged, err := s.Stage(ctx, userID, chatID, []Upload{{Name: name, ContentType: contentType, Data: data}})
	if err != nil {
		return nil, err
	}
	return &staged[0], nil
}

// Stage checks every file of a batch and stages them in one transaction:
// either all of them are staged, in order, or none is.
func (s *AttachmentService) Stage(ctx context.Context, userID, chatID string, files []Upload) ([]domain.Attachment, error) {
	tr := otel.Tracer("services/AttachmentService")
	ctx, span := tr.Start(ctx, "Stage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("files.count", len(files)),
		),
	)
	defer span.End()

	if len(files) == 0 {
		return nil, ErrEmptyFile
	}
	rows := make([]repo.NewAttachment, 0, len(files))
	for _, f := range files {
		row, err := s.prepare(chatID, userID, f)
		if err != nil {
			span.SetAttributes(attribute.String("file.rejected", f.Name))
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := s.ownChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	staged := make([]domain.Attachment, 0, len(rows))
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			a, err := repo.CreateAttachment(ctx, tx, row)
			if err != nil {
				return err
			}
			staged = append(staged, *a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}

func (s *AttachmentService) prepare(chatID, userID string, f Upload) (repo.NewAttachment, error) {
	if len(f.Data) == 0 {
		return repo.NewAttachment{}, ErrEmptyFile
	}
	if s.MaxBytes > 0 && int64(len(f.Data)) > s.MaxBytes {
		return repo.NewAttachment{}, ErrFileTooLarge
	}
	ct, ok := resolveContentType(f.Name, f.ContentType, f.Data)
	if !ok {
		return repo.NewAttachment{}, ErrUnsupportedFile
	}
	name := strings.TrimSpace(filepath.Base(f.Name))
	if name == "" || name == "." || name == "/" {
		name = "upload"
	}
	return repo.NewAttachment{
		ChatID:      chatID,
		UserID:      userID,
		Name:        name,
		ContentType: ct,
		Data:        f.Data,
	}, nil
}

// List returns the staged previews of a chat in upload order.
func (s *AttachmentService) List(ctx context.Context, userID, chatID string) ([]domain.Attachment, error) {
	if err := s.ownChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return repo.ListStagedAttachments(ctx, s.DB, chatID, userID, false)
}

// Remove deletes exactly one staged preview and its bytes.
func (s *AttachmentService) Remove(ctx context.Context, userID, chatID, id string) error {
	if err := s.ownChat(ctx, userID, chatID); err != nil {
		return err
	}
	if err := repo.DeleteStagedAttachment(ctx, s.DB, chatID, userID, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAttachmentNotFound
		}
		return err
	}
	return nil
}

// Clear drops every staged file of the chat and reports how many were removed.
func (s *AttachmentService) Clear(ctx context.Context, userID, chatID string) (int64, error) {
	if err := s.ownChat(ctx, userID, chatID); err != nil {
		return 0, err
	}
	return repo.ClearStagedAttachments(ctx, s.DB, chatID, userID)
}

func (s *AttachmentService) ownChat(ctx context.Context, userID, chatID string) error {
	if _, err := repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

// resolveContentType picks the first allowed type among the declared type,
// the file extension and the sniffed content.
func resolveContentType(name, declared string, data []byte) (string, bool) {
	candidates := make([]string, 0, 3)
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		candidates = append(candidates, strings.ToLower(mt))
	}
	if ct, ok := extContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		candidates = append(candidates, ct)
	}
	if mt, _, err := mime.ParseMediaType(http.DetectContentType(data)); err == nil {
		candidates = append(candidates, mt)
	}
	for _, c := range candidates {
		if _, ok := allowedContentTypes[c]; ok {
			return c, true
		}
	}
	return "", false
}
