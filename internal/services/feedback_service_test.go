package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

func seedReply(t *testing.T, db *gorm.DB, chatID string, role string, failed bool) *domain.Message {
	t.Helper()
	m, err := repo.CreateMessage(db, repo.NewMessage{ChatID: chatID, Role: role, Content: "Photosynthesis turns light into sugar.", Failed: failed})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return m
}

func TestFeedbackRate_StoresTrimmedComment(t *testing.T) {
	db := newServiceDB(t)
	svc := &FeedbackService{DB: db}
	chat := seedChat(t, db, "u1")
	reply := seedReply(t, db, chat.ID, domain.RoleAssistant, false)

	fb, err := svc.Rate(context.Background(), "u1", reply.ID, FeedbackInput{Value: -1, Comment: "  too abstract \n"})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if fb.ID == "" || fb.Value != -1 || fb.Comment != "too abstract" || fb.CreatedAt.IsZero() {
		t.Fatalf("returned rating: %+v", fb)
	}

	var stored domain.Feedback
	if err := db.First(&stored, "id = ?", fb.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.MessageID != reply.ID || stored.UserID != "u1" || stored.Comment != "too abstract" {
		t.Fatalf("stored rating: %+v", stored)
	}
}

func TestFeedbackRate_Rejections(t *testing.T) {
	db := newServiceDB(t)
	svc := &FeedbackService{DB: db}
	chat := seedChat(t, db, "owner")
	reply := seedReply(t, db, chat.ID, domain.RoleAssistant, false)
	question := seedReply(t, db, chat.ID, domain.RoleUser, false)
	apology := seedReply(t, db, chat.ID, domain.RoleAssistant, true)

	cases := []struct {
		name      string
		user, msg string
		in        FeedbackInput
		want      error
	}{
		{"zero value", "owner", reply.ID, FeedbackInput{Value: 0}, ErrInvalidFeedback},
		{"out of range", "owner", reply.ID, FeedbackInput{Value: 2}, ErrInvalidFeedback},
		{"comment too long", "owner", reply.ID, FeedbackInput{Value: 1, Comment: strings.Repeat("ж", 1001)}, ErrValidation},
		{"unknown message", "owner", "00000000-0000-0000-0000-000000000000", FeedbackInput{Value: 1}, ErrMessageNotFound},
		{"student message", "owner", question.ID, FeedbackInput{Value: 1}, ErrForbiddenFeedback},
		{"failed reply", "owner", apology.ID, FeedbackInput{Value: -1}, ErrForbiddenFeedback},
		{"not the owner", "intruder", reply.ID, FeedbackInput{Value: 1}, ErrForbiddenFeedback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb, err := svc.Rate(context.Background(), tc.user, tc.msg, tc.in)
			if !errors.Is(err, tc.want) || fb != nil {
				t.Fatalf("got (%v, %v), want %v", fb, err, tc.want)
			}
		})
	}

	var n int64
	db.Model(&domain.Feedback{}).Count(&n)
	if n != 0 {
		t.Fatalf("%d ratings stored by rejected calls", n)
	}
}

func TestFeedbackRate_CommentLimitCountsCharacters(t *testing.T) {
	db := newServiceDB(t)
	svc := &FeedbackService{DB: db}
	chat := seedChat(t, db, "u1")
	reply := seedReply(t, db, chat.ID, domain.RoleAssistant, false)

	// 1000 two-byte runes stay within the limit
	if _, err := svc.Rate(context.Background(), "u1", reply.ID, FeedbackInput{Value: 1, Comment: strings.Repeat("ж", 1000)}); err != nil {
		t.Fatalf("1000 runes rejected: %v", err)
	}
}

func TestFeedbackRate_OncePerUser(t *testing.T) {
	db := newServiceDB(t)
	svc := &FeedbackService{DB: db}
	chat := seedChat(t, db, "u1")
	reply := seedReply(t, db, chat.ID, domain.RoleAssistant, false)
	ctx := context.Background()

	if _, err := svc.Rate(ctx, "u1", reply.ID, FeedbackInput{Value: 1}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.Rate(ctx, "u1", reply.ID, FeedbackInput{Value: -1}); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("second: %v", err)
	}
}

func TestFeedbackRate_StorageErrorsPassThrough(t *testing.T) {
	db := newServiceDB(t)
	svc := &FeedbackService{DB: db}
	chat := seedChat(t, db, "u1")
	reply := seedReply(t, db, chat.ID, domain.RoleAssistant, false)

	boom := errors.New("disk full")
	if err := db.Callback().Create().Before("gorm:create").Register("fail_feedback_insert", func(tx *gorm.DB) {
		if tx.Statement.Table == "feedback" {
			tx.AddError(boom)
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err := svc.Rate(context.Background(), "u1", reply.ID, FeedbackInput{Value: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("want raw storage error, got %v", err)
	}
	for _, sentinel := range []error{ErrDuplicateFeedback, ErrForbiddenFeedback, ErrMessageNotFound} {
		if errors.Is(err, sentinel) {
			t.Fatalf("storage error mapped to %v", sentinel)
		}
	}
}

func TestFeedbackSummary(t *testing.T) {
	db := newServiceDB(t)
	svc := &FeedbackService{DB: db}
	ctx := context.Background()
	chat := seedChat(t, db, "u1")
	other := seedChat(t, db, "u1")

	for _, v := range []int{1, 1, -1} {
		reply := seedReply(t, db, chat.ID, domain.RoleAssistant, false)
		if _, err := svc.Rate(ctx, "u1", reply.ID, FeedbackInput{Value: v}); err != nil {
			t.Fatalf("rate: %v", err)
		}
	}
	elsewhere := seedReply(t, db, other.ID, domain.RoleAssistant, false)
	if _, err := svc.Rate(ctx, "u1", elsewhere.ID, FeedbackInput{Value: -1}); err != nil {
		t.Fatalf("rate: %v", err)
	}

	sum, err := svc.Summary(ctx, "u1", chat.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Up != 2 || sum.Down != 1 || sum.ChatID != chat.ID {
		t.Fatalf("summary: %+v", sum)
	}

	empty, err := svc.Summary(ctx, "u1", seedChat(t, db, "u1").ID)
	if err != nil || empty.Up != 0 || empty.Down != 0 {
		t.Fatalf("empty chat: %+v %v", empty, err)
	}
	if _, err := svc.Summary(ctx, "u2", chat.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("foreign chat: %v", err)
	}
}
