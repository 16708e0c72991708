package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/upstream"
)

// newServiceDB opens a private in-memory database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedChat(t *testing.T, db *gorm.DB, userID string) *domain.Chat {
	t.Helper()
	c, err := repo.CreateChat(context.Background(), db, userID, defaultTitleNew)
	if err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	return c
}

func stageFile(t *testing.T, db *gorm.DB, chatID, userID, name, data string) *domain.Attachment {
	t.Helper()
	a, err := repo.CreateAttachment(context.Background(), db, repo.NewAttachment{
		ChatID: chatID, UserID: userID, Name: name, ContentType: "text/plain", Data: []byte(data),
	})
	if err != nil {
		t.Fatalf("stage file: %v", err)
	}
	// distinct created_at values keep upload order deterministic
	time.Sleep(2 * time.Millisecond)
	return a
}

type analyzeCall struct {
	Name, Data, Mode, Prompt, UserID string
}

// fakeBackend records every call and answers from its fields.
type fakeBackend struct {
	mu sync.Mutex

	chatCalls    []upstream.ChatRequest
	analyzeCalls []analyzeCall
	promptCalls  []string
	topicCalls   []upstream.TopicsRequest
	contentCalls []upstream.ContentRequest
	validCalls   []string

	chatReply string
	chatErr   error

	analyze func(name string) (*upstream.AnalysisResult, error)

	prompt func(attempt int) (string, error)

	topics func(attempt int) ([]domain.Topic, error)

	content func(in upstream.ContentRequest) (string, error)

	validMsg string
	validErr error
}

func (f *fakeBackend) Chat(_ context.Context, in upstream.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls = append(f.chatCalls, in)
	return f.chatReply, f.chatErr
}

func (f *fakeBackend) Analyze(_ context.Context, in upstream.AnalyzeRequest) (*upstream.AnalysisResult, error) {
	data, _ := io.ReadAll(in.File)
	f.mu.Lock()
	f.analyzeCalls = append(f.analyzeCalls, analyzeCall{
		Name: in.FileName, Data: string(data), Mode: in.Mode, Prompt: in.Prompt, UserID: in.UserID,
	})
	fn := f.analyze
	f.mu.Unlock()
	if fn == nil {
		return &upstream.AnalysisResult{Summary: "summary of " + in.FileName}, nil
	}
	return fn(in.FileName)
}

func (f *fakeBackend) GeneratePrompt(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.promptCalls = append(f.promptCalls, prompt)
	n := len(f.promptCalls)
	f.mu.Unlock()
	return f.prompt(n)
}

func (f *fakeBackend) GenerateTopics(_ context.Context, in upstream.TopicsRequest) ([]domain.Topic, error) {
	f.mu.Lock()
	f.topicCalls = append(f.topicCalls, in)
	n := len(f.topicCalls)
	f.mu.Unlock()
	return f.topics(n)
}

func (f *fakeBackend) GenerateContent(_ context.Context, in upstream.ContentRequest) (string, error) {
	f.mu.Lock()
	f.contentCalls = append(f.contentCalls, in)
	f.mu.Unlock()
	return f.content(in)
}

func (f *fakeBackend) Validate(_ context.Context, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validCalls = append(f.validCalls, user)
	return f.validMsg, f.validErr
}

// recordSleep is a SleepFunc that returns at once and records the delays.
type recordSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}
