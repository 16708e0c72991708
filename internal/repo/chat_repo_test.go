package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

func TestCreateChat(t *testing.T) {
	db := newRepoDB(t)
	before := time.Now().UTC().Add(-time.Second)

	c, err := CreateChat(context.Background(), db, "u1", "Cell biology")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" || c.UserID != "u1" || c.Title != "Cell biology" || c.Mode != domain.ModeStudy {
		t.Fatalf("chat = %+v", c)
	}
	if c.CreatedAt.Before(before) || !c.UpdatedAt.Equal(c.CreatedAt) {
		t.Fatalf("timestamps = %v / %v", c.CreatedAt, c.UpdatedAt)
	}

	if _, err := CreateChat(context.Background(), newBareDB(t), "u1", "x"); err == nil {
		t.Fatalf("create without a chats table must fail")
	}
}

func TestListChats_MostRecentlyActiveFirst(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	base := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	seed := []domain.Chat{
		{ID: "c-old", UserID: "u1", Title: "Old", Mode: domain.ModeStudy, CreatedAt: base, UpdatedAt: base},
		{ID: "c-mid", UserID: "u1", Title: "Mid", Mode: domain.ModeStudy, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{ID: "c-new", UserID: "u1", Title: "New", Mode: domain.ModeStudy, CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour)},
		// created first but used last
		{ID: "c-busy", UserID: "u1", Title: "Busy", Mode: domain.ModeQuiz, CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(3 * time.Hour)},
		{ID: "c-foreign", UserID: "u2", Title: "Other", Mode: domain.ModeStudy, CreatedAt: base, UpdatedAt: base.Add(9 * time.Hour)},
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	ids := func(cs []domain.Chat) []string {
		out := make([]string, len(cs))
		for i := range cs {
			out[i] = cs[i].ID
		}
		return out
	}
	eq := func(got []domain.Chat, want ...string) bool {
		g := ids(got)
		if len(g) != len(want) {
			return false
		}
		for i := range g {
			if g[i] != want[i] {
				return false
			}
		}
		return true
	}

	all, err := ListChats(ctx, db, "u1", 0, 0)
	if err != nil || !eq(all, "c-busy", "c-new", "c-mid", "c-old") {
		t.Fatalf("all = %v, %v", ids(all), err)
	}
	page, err := ListChats(ctx, db, "u1", 1, 2)
	if err != nil || !eq(page, "c-new", "c-mid") {
		t.Fatalf("page = %v, %v", ids(page), err)
	}
	past, err := ListChats(ctx, db, "u1", 10, 2)
	if err != nil || past == nil || len(past) != 0 {
		t.Fatalf("past the end = %v, %v", past, err)
	}

	n, err := CountChats(ctx, db, "u1")
	if err != nil || n != 4 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestGetChat_ScopedToOwner(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	c, _ := CreateChat(ctx, db, "owner", "Algebra")

	got, err := GetChat(ctx, db, c.ID, "owner")
	if err != nil || got.ID != c.ID {
		t.Fatalf("owner get = %+v, %v", got, err)
	}
	if _, err := GetChat(ctx, db, c.ID, "intruder"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign get: %v", err)
	}
	if _, err := GetChat(ctx, db, "missing", "owner"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing get: %v", err)
	}
}

func TestUpdateChat_TitleAndModeBumpActivity(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	c, _ := CreateChat(ctx, db, "u1", "Draft")
	time.Sleep(2 * time.Millisecond)

	if err := UpdateChatTitle(ctx, db, c.ID, "u1", "Chemistry"); err != nil {
		t.Fatalf("title: %v", err)
	}
	if err := UpdateChatMode(ctx, db, c.ID, "u1", domain.ModeHomeworkHelper); err != nil {
		t.Fatalf("mode: %v", err)
	}
	got, _ := GetChat(ctx, db, c.ID, "u1")
	if got.Title != "Chemistry" || got.Mode != domain.ModeHomeworkHelper {
		t.Fatalf("chat = %+v", got)
	}
	if !got.UpdatedAt.After(c.UpdatedAt) {
		t.Fatalf("updated_at not bumped: %v -> %v", c.UpdatedAt, got.UpdatedAt)
	}

	// an unchanged value still counts as a match
	if err := UpdateChatTitle(ctx, db, c.ID, "u1", "Chemistry"); err != nil {
		t.Fatalf("same title: %v", err)
	}
	if err := UpdateChatTitle(ctx, db, c.ID, "u2", "Hijack"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign title: %v", err)
	}
	if err := UpdateChatMode(ctx, db, "missing", "u1", domain.ModeQuiz); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing mode: %v", err)
	}
	if err := UpdateChatTitle(ctx, newBareDB(t), c.ID, "u1", "x"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("missing table: %v", err)
	}
}
