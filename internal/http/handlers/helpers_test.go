package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-tutor-backend/internal/auth"
	"github.com/tbourn/go-tutor-backend/internal/config"
	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/mailer"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/services"
	"github.com/tbourn/go-tutor-backend/internal/upstream"
)

// ---------- test DB ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// ---------- AI backend double ----------

const testOutline = `{"title":"Intro to Algebra","description":"Basics","topics":[{"title":"Equations","subtopics":["Linear"]}]}`

// fakeBackend answers every upstream call with canned data. Errors set on it
// are returned instead.
type fakeBackend struct {
	mu sync.Mutex

	chatReply string
	chatErr   error
	promptOut string
	topics    []domain.Topic
	validErr  error

	chatCalls    int
	contentCalls []upstream.ContentRequest
}

func (f *fakeBackend) Analyze(_ context.Context, in upstream.AnalyzeRequest) (*upstream.AnalysisResult, error) {
	return &upstream.AnalysisResult{Summary: "summary of " + in.FileName}, nil
}

func (f *fakeBackend) Chat(context.Context, upstream.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	return f.chatReply, f.chatErr
}

func (f *fakeBackend) GeneratePrompt(context.Context, string) (string, error) {
	if f.promptOut == "" {
		return testOutline, nil
	}
	return f.promptOut, nil
}

func (f *fakeBackend) GenerateTopics(context.Context, upstream.TopicsRequest) ([]domain.Topic, error) {
	return f.topics, nil
}

func (f *fakeBackend) GenerateContent(_ context.Context, in upstream.ContentRequest) (string, error) {
	f.mu.Lock()
	f.contentCalls = append(f.contentCalls, in)
	f.mu.Unlock()
	return "Study notes on " + strings.ToLower(in.SubtopicTitle) + " within " + strings.ToLower(in.MainTopic) + ".", nil
}

func (f *fakeBackend) Validate(context.Context, string) (string, error) {
	if f.validErr != nil {
		return "", f.validErr
	}
	return "User is valid", nil
}

// failingMailer refuses every message.
type failingMailer struct{}

func (failingMailer) Send(context.Context, mailer.Message) error { return errors.New("smtp down") }

// ---------- wired handlers over real services ----------

type testEnv struct {
	db      *gorm.DB
	backend *fakeBackend
	h       *Handlers
	r       *gin.Engine
}

// headerUserType lets tests act as an anonymous caller without a token.
const headerUserType = "X-Test-User-Type"

func newTestEnv(t *testing.T, freeDaily int, mail mailer.Mailer) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	fb := &fakeBackend{
		chatReply: "Chlorophyll absorbs light.",
		topics: []domain.Topic{
			{Title: "Cells", Subtopics: []string{"Membrane", "Mitochondria"}},
			{Title: "Genetics"},
		},
	}
	if mail == nil {
		mail = mailer.Log{}
	}
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	usage := services.NewUsageService(db, freeDaily)
	topics := services.NewTopicService(db, fb, config.GenerationConfig{TopicCacheTTL: time.Minute, DefaultLanguage: "English"})
	topics.Sleep = noSleep

	h := New(Deps{
		Chats:         services.NewChatService(db),
		Messages:      &services.MessageService{DB: db, Backend: fb, Quota: usage, MaxPromptRunes: 50, IdempotencyTTL: time.Hour},
		Feedback:      &services.FeedbackService{DB: db},
		Attachments:   &services.AttachmentService{DB: db, MaxBytes: 64},
		Wizard:        &services.WizardService{DB: db, Backend: fb, MaxAttempts: 1, PDFMaxBytes: 64, Sleep: noSleep},
		Topics:        topics,
		Account:       &services.AccountService{DB: db},
		Subscriptions: &services.SubscriptionService{DB: db},
		Contact:       &services.ContactService{DB: db, Mailer: mail, Inbox: "support@example.com"},
		Identity:      &services.VerificationService{Backend: fb, Tokens: auth.NewTokens("secret", time.Hour, "test")},
		Usage:         usage,
		DB:            db,

		UploadMaxBytes: 64,
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if typ := c.GetHeader(headerUserType); typ != "" {
			c.Set("userType", typ)
		}
		c.Next()
	})
	mount(r, h)
	return &testEnv{db: db, backend: fb, h: h, r: r}
}

// mount registers every handler under the same paths the router uses.
func mount(r *gin.Engine, h *Handlers) {
	r.POST("/users/anonymous", h.CreateAnonymousUser)
	r.POST("/auth/verify", h.VerifyUser)
	r.GET("/usage", h.GetUsage)

	r.POST("/chats", h.CreateChat)
	r.GET("/chats", h.ListChats)
	r.GET("/chats/:id", h.GetChat)
	r.PUT("/chats/:id/title", h.UpdateChatTitle)
	r.PUT("/chats/:id/mode", h.UpdateChatMode)
	r.GET("/chats/:id/messages", h.ListMessages)
	r.POST("/chats/:id/messages", h.PostMessage)
	r.POST("/chats/:id/attachments", h.UploadAttachments)
	r.GET("/chats/:id/attachments", h.ListAttachments)
	r.DELETE("/chats/:id/attachments", h.ClearAttachments)
	r.DELETE("/chats/:id/attachments/:aid", h.RemoveAttachment)
	r.POST("/messages/:id/feedback", h.RateMessage)
	r.GET("/chats/:id/feedback", h.GetFeedbackSummary)

	r.POST("/courses/drafts", h.CreateDraft)
	r.GET("/courses/drafts/:id", h.GetDraft)
	r.PATCH("/courses/drafts/:id", h.UpdateDraft)
	r.POST("/courses/drafts/:id/next", h.NextStep)
	r.POST("/courses/drafts/:id/prev", h.PrevStep)
	r.POST("/courses/drafts/:id/pdf", h.AttachDraftPDF)
	r.POST("/courses/drafts/:id/submit", h.SubmitDraft)
	r.GET("/courses", h.ListCourses)
	r.GET("/courses/:id", h.GetCourse)

	r.POST("/topics", h.GenerateTopics)
	r.GET("/topics", h.ListTopicSets)
	r.GET("/topics/:id", h.GetTopicSet)
	r.POST("/topics/:id/topics/:index/content", h.GenerateContent)
	r.GET("/topics/:id/contents", h.ListContents)
	r.GET("/topics/:id/search", h.SearchContents)

	r.GET("/profile", h.GetProfile)
	r.PUT("/profile/personal", h.UpdatePersonalInfo)
	r.PUT("/profile/social", h.UpdateSocialMedia)
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
	r.GET("/plans", h.ListPlans)
	r.GET("/subscription", h.GetSubscription)
	r.PUT("/subscription", h.ChangePlan)
	r.POST("/subscription/cancel", h.CancelSubscription)
	r.POST("/subscription/resume", h.ResumeSubscription)
	r.POST("/contact", h.SubmitContact)
}

// call sends a JSON (or empty) request as user uid.
func (e *testEnv) call(method, path, uid, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

// upload posts files as multipart parts named field.
func (e *testEnv) upload(path, uid, field string, files map[string][]byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		fw, _ := mw.CreateFormFile(field, name)
		_, _ = fw.Write(data)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", uid)
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e ErrorResponse
	decodeJSON(t, w, &e)
	return e.Code
}

func (e *testEnv) newChat(t *testing.T, uid string) *domain.Chat {
	t.Helper()
	w := e.call(http.MethodPost, "/chats", uid, `{}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat: %d %s", w.Code, w.Body.String())
	}
	var c domain.Chat
	decodeJSON(t, w, &c)
	return &c
}
