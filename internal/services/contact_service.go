// Package services – ContactService
//
// ContactService handles the contact form: the submission is validated,
// stored, and mailed to the support inbox. The stored row records whether the
// relay accepted it, so failed deliveries can be found later.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/mailer"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

// ContactInput is a contact form submission.
type ContactInput struct {
	Name    string `json:"name"    validate:"notblank,max=255"`
	Email   string `json:"email"   validate:"required,email,max=255"`
	Subject string `json:"subject" validate:"omitempty,max=255"`
	Message string `json:"message" validate:"notblank,max=5000"`
}

// ContactService implements the contact form.
type ContactService struct {
	DB     *gorm.DB
	Mailer mailer.Mailer
	// Inbox receives the submissions.
	Inbox string
}

// Submit stores and mails in. A delivery failure is returned wrapped in
// ErrUpstreamFailure together with the stored submission.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*domain.ContactMessage, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	msg := &domain.ContactMessage{Name: in.Name, Email: in.Email, Subject: in.Subject, Message: in.Message}
	if err := repo.CreateContactMessage(ctx, s.DB, msg); err != nil {
		return nil, err
	}

	subject := in.Subject
	if subject == "" {
		subject = "Contact form message from " + in.Name
	}
	err := s.Mailer.Send(ctx, mailer.Message{
		To:      s.Inbox,
		ReplyTo: in.Email,
		Subject: subject,
		HTML:    mailer.ContactBody(in.Name, in.Email, in.Subject, in.Message),
	})
	if err != nil {
		return msg, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}

	if err := repo.MarkContactDelivered(ctx, s.DB, msg.ID); err != nil {
		log.Warn().Err(err).Str("contact_id", msg.ID).Msg("delivery flag not stored")
	} else {
		msg.Delivered = true
	}
	return msg, nil
}
