// Package handlers holds the HTTP endpoints of the tutor API. Each file
// covers one resource; this one declares the services they call and the
// request helpers they share.
//
// Handlers only bind and check input, call a service and render the result.
// Service errors are translated in one place (see failService).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/auth"
	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/services"
	"github.com/tbourn/go-tutor-backend/internal/utils"
)

const defaultUploadMax = 10 << 20

// ChatService owns chat metadata: titles, modes and the per-user list.
type ChatService interface {
	Create(ctx context.Context, userID, title string) (*domain.Chat, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error)
	Get(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
	SetMode(ctx context.Context, userID, chatID, mode string) error
}

// MessageService runs a tutoring exchange and pages through the history.
type MessageService interface {
	// Send stores the user turn with its staged files and the tutor reply.
	Send(ctx context.Context, userID, chatID string, in services.SendInput) (*services.SendResult, error)
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
}

// FeedbackService rates tutor replies.
type FeedbackService interface {
	Rate(ctx context.Context, userID, messageID string, in services.FeedbackInput) (*domain.Feedback, error)
	Summary(ctx context.Context, userID, chatID string) (*services.FeedbackSummary, error)
}

// AttachmentService stages files on a chat for the next send.
type AttachmentService interface {
	Stage(ctx context.Context, userID, chatID string, files []services.Upload) ([]domain.Attachment, error)
	List(ctx context.Context, userID, chatID string) ([]domain.Attachment, error)
	Remove(ctx context.Context, userID, chatID, id string) error
	Clear(ctx context.Context, userID, chatID string) (int64, error)
}

// WizardService drives course drafts and lists generated courses.
type WizardService interface {
	Create(ctx context.Context, userID string) (*domain.CourseDraft, error)
	Get(ctx context.Context, userID, id string) (*domain.CourseDraft, error)
	Update(ctx context.Context, userID, id string, p services.DraftPatch) (*domain.CourseDraft, error)
	Next(ctx context.Context, userID, id string) (*domain.CourseDraft, error)
	Prev(ctx context.Context, userID, id string) (*domain.CourseDraft, error)
	AttachPDF(ctx context.Context, userID, id, name string, data []byte) (*domain.CourseDraft, error)
	Submit(ctx context.Context, userID, id string) (*domain.Course, error)
	Courses(ctx context.Context, userID string) ([]domain.Course, error)
	Course(ctx context.Context, userID, id string) (*domain.Course, error)
}

// TopicService generates topic sets and their contents.
type TopicService interface {
	Generate(ctx context.Context, userID string, in services.TopicsInput) (*domain.TopicSet, error)
	GenerateContent(ctx context.Context, userID, setID string, topicIndex int, opts services.ContentOptions) ([]domain.TopicContent, error)
	Get(ctx context.Context, userID, id string) (*domain.TopicSet, error)
	List(ctx context.Context, userID string) ([]domain.TopicSet, error)
	Contents(ctx context.Context, userID, id string) ([]domain.TopicContent, error)
	Search(ctx context.Context, userID, id, q string, k int) ([]services.SearchHit, error)
}

// AccountService manages the profile and settings of a user.
type AccountService interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdatePersonalInfo(ctx context.Context, userID string, in services.PersonalInfo) (*domain.Profile, error)
	UpdateSocialMedia(ctx context.Context, userID string, in services.SocialMedia) (*domain.Profile, error)
	GetSettings(ctx context.Context, userID string) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, userID string, in services.SettingsInput) (*domain.Settings, error)
}

// SubscriptionService exposes plans and the user's subscription.
type SubscriptionService interface {
	Plans() []services.Plan
	Get(ctx context.Context, userID string) (*domain.Subscription, error)
	ChangePlan(ctx context.Context, userID, planID, cycle string) (*services.PlanChange, error)
	Cancel(ctx context.Context, userID string) (*domain.Subscription, error)
	Resume(ctx context.Context, userID string) (*domain.Subscription, error)
}

// ContactService records contact form submissions.
type ContactService interface {
	Submit(ctx context.Context, in services.ContactInput) (*domain.ContactMessage, error)
}

// IdentityService mints anonymous identities and verifies users.
type IdentityService interface {
	Anonymous(ctx context.Context) (*services.Session, error)
	Verify(ctx context.Context, user string) (*services.Session, error)
}

// UsageService reports the message quota of a user.
type UsageService interface {
	Get(ctx context.Context, userID string, anonymous bool) (*services.UsageStatus, error)
}

// Deps lists the collaborators of Handlers. A nil service must not be routed.
type Deps struct {
	Chats         ChatService
	Messages      MessageService
	Feedback      FeedbackService
	Attachments   AttachmentService
	Wizard        WizardService
	Topics        TopicService
	Account       AccountService
	Subscriptions SubscriptionService
	Contact       ContactService
	Identity      IdentityService
	Usage         UsageService

	// DB answers the ETag checks of list endpoints; nil turns them off.
	DB *gorm.DB
	// UploadMaxBytes caps a multipart file part, 10 MiB when <= 0.
	UploadMaxBytes int64
}

// Handlers carries the services behind every endpoint.
type Handlers struct {
	chatSvc    ChatService
	msgSvc     MessageService
	fbSvc      FeedbackService
	attSvc     AttachmentService
	wizardSvc  WizardService
	topicSvc   TopicService
	accountSvc AccountService
	subSvc     SubscriptionService
	contactSvc ContactService
	idSvc      IdentityService
	usageSvc   UsageService

	db        *gorm.DB
	uploadMax int64
}

// New binds the handlers to d.
func New(d Deps) *Handlers {
	h := &Handlers{
		chatSvc:    d.Chats,
		msgSvc:     d.Messages,
		fbSvc:      d.Feedback,
		attSvc:     d.Attachments,
		wizardSvc:  d.Wizard,
		topicSvc:   d.Topics,
		accountSvc: d.Account,
		subSvc:     d.Subscriptions,
		contactSvc: d.Contact,
		idSvc:      d.Identity,
		usageSvc:   d.Usage,
		db:         d.DB,
		uploadMax:  d.UploadMaxBytes,
	}
	if h.uploadMax <= 0 {
		h.uploadMax = defaultUploadMax
	}
	return h
}

// userID is the caller set by the auth middleware. Without one it reads the
// X-User-ID header, then falls back to "demo-user".
func userID(c *gin.Context) string {
	if id := c.GetString("userID"); id != "" {
		return id
	}
	if c.Request != nil {
		if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
			return id
		}
	}
	return "demo-user"
}

func isAnonymous(c *gin.Context) bool {
	return c.GetString("userType") == auth.TypeAnonymous
}

// pathUUID reads a UUID path parameter and answers 400 when it is malformed.
func pathUUID(c *gin.Context, name, what string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

// Pagination describes the page a list response carries.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageParams reads page (from 1) and page_size (1..100, default 20).
func pageParams(c *gin.Context) (page, size int) {
	page = max(utils.AtoiDefault(c.Query("page"), 1), 1)
	size = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return page, size
}

func newPagination(page, size int, total int64) Pagination {
	pages := int((total + int64(size) - 1) / int64(size))
	return Pagination{Page: page, PageSize: size, Total: total, TotalPages: pages, HasNext: page < pages}
}

// statsFunc sizes a collection and dates its newest row.
type statsFunc func(ctx context.Context, db *gorm.DB, scope string) (int64, *time.Time, error)

// notModified stamps a weak ETag built from the collection stats and answers
// 304 when If-None-Match carries it. Stats failures fall through to a full
// response.
func (h *Handlers) notModified(c *gin.Context, kind, scope string, stats statsFunc) bool {
	if h.db == nil {
		return false
	}
	n, newest, err := stats(c.Request.Context(), h.db, scope)
	if err != nil {
		return false
	}
	var stamp int64
	if newest != nil {
		stamp = newest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, scope, n, stamp)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") != etag {
		return false
	}
	c.Status(http.StatusNotModified)
	return true
}
