package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

func newAttachmentDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:attach_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Chat{}, &domain.Message{}, &domain.Attachment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	return db
}

func stage(t *testing.T, db *gorm.DB, name string) *domain.Attachment {
	t.Helper()
	a, err := CreateAttachment(context.Background(), db, NewAttachment{ChatID: "c1", UserID: "u1", Name: name, ContentType: "text/plain", Data: []byte(name)})
	if err != nil {
		t.Fatalf("CreateAttachment(%s): %v", name, err)
	}
	return a
}

func TestCreateAttachment_SetsSizeAndStages(t *testing.T) {
	db := newAttachmentDB(t)
	a := stage(t, db, "abc.txt")
	if a.Size != int64(len("abc.txt")) || a.MessageID != nil {
		t.Fatalf("unexpected attachment: %+v", a)
	}
}

func TestListStagedAttachments_OrderAndDataToggle(t *testing.T) {
	db := newAttachmentDB(t)
	first := stage(t, db, "one.txt")
	second := stage(t, db, "two.txt")

	meta, err := ListStagedAttachments(context.Background(), db, "c1", "u1", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(meta) != 2 || meta[0].ID != first.ID || meta[1].ID != second.ID {
		t.Fatalf("unexpected order: %+v", meta)
	}
	if len(meta[0].Data) != 0 {
		t.Fatalf("metadata listing should not load bytes")
	}

	full, err := ListStagedAttachments(context.Background(), db, "c1", "u1", true)
	if err != nil || string(full[0].Data) != "one.txt" {
		t.Fatalf("expected bytes with withData, got %+v err=%v", full, err)
	}

	other, err := ListStagedAttachments(context.Background(), db, "c1", "u2", false)
	if err != nil || len(other) != 0 {
		t.Fatalf("foreign user should see nothing, got %+v err=%v", other, err)
	}
}

func TestDeleteStagedAttachment_RemovesExactlyOne(t *testing.T) {
	db := newAttachmentDB(t)
	a := stage(t, db, "a.txt")
	b := stage(t, db, "b.txt")
	c := stage(t, db, "c.txt")

	if err := DeleteStagedAttachment(context.Background(), db, "c1", "u1", b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	left, _ := ListStagedAttachments(context.Background(), db, "c1", "u1", false)
	if len(left) != 2 || left[0].ID != a.ID || left[1].ID != c.ID {
		t.Fatalf("unexpected remaining previews: %+v", left)
	}
	var n int64
	db.Model(&domain.Attachment{}).Where("id = ?", b.ID).Count(&n)
	if n != 0 {
		t.Fatalf("bytes row should be gone")
	}

	if err := DeleteStagedAttachment(context.Background(), db, "c1", "u1", b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestBindAndClearStagedAttachments(t *testing.T) {
	db := newAttachmentDB(t)
	a := stage(t, db, "a.txt")
	b := stage(t, db, "b.txt")
	_ = stage(t, db, "c.txt")

	if err := db.Create(&domain.Message{ID: "m1", ChatID: "c1", Role: "user", Content: "x"}).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
	if err := BindAttachments(context.Background(), db, "m1", []string{a.ID, b.ID}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := BindAttachments(context.Background(), db, "m1", nil); err != nil {
		t.Fatalf("Bind(nil) should be a no-op: %v", err)
	}
	if err := SaveAttachmentAnalysis(context.Background(), db, a.ID, "sum", "body"); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	staged, _ := ListStagedAttachments(context.Background(), db, "c1", "u1", false)
	if len(staged) != 1 || staged[0].Name != "c.txt" {
		t.Fatalf("only c.txt should remain staged, got %+v", staged)
	}

	n, err := ClearStagedAttachments(context.Background(), db, "c1", "u1")
	if err != nil || n != 1 {
		t.Fatalf("Clear: n=%d err=%v", n, err)
	}

	var bound domain.Attachment
	if err := db.First(&bound, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("bound attachment should survive clear: %v", err)
	}
	if bound.MessageID == nil || *bound.MessageID != "m1" || bound.Summary != "sum" || bound.Analysis != "body" {
		t.Fatalf("unexpected bound attachment: %+v", bound)
	}
}
