// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, compression,
// metrics, identity, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/auth"
	"github.com/tbourn/go-tutor-backend/internal/config"
	"github.com/tbourn/go-tutor-backend/internal/docs"
	"github.com/tbourn/go-tutor-backend/internal/http/handlers"
	"github.com/tbourn/go-tutor-backend/internal/http/middleware"
	"github.com/tbourn/go-tutor-backend/internal/mailer"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/services"
)

// Backend is the AI backend as seen by the services. *upstream.Client
// implements it.
type Backend interface {
	services.ChatBackend
	services.CourseBackend
	services.TopicBackend
	services.UserValidator
}

// NewHandlers builds every service from cfg and binds them to handlers.
func NewHandlers(db *gorm.DB, backend Backend, mail mailer.Mailer, tokens *auth.Tokens, cfg config.Config) *handlers.Handlers {
	usageSvc := services.NewUsageService(db, cfg.Billing.FreeDailyMessages)
	titles := services.Titler{Locale: language.English}
	msgSvc := &services.MessageService{
		DB:             db,
		Backend:        backend,
		Quota:          usageSvc,
		MaxPromptRunes: cfg.MaxPromptRunes,
		MaxTokens:      cfg.Generation.ChatMaxTokens,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Titles:         titles,
	}
	wizardSvc := &services.WizardService{
		DB:          db,
		Backend:     backend,
		MaxAttempts: cfg.Generation.PromptMaxAttempts,
		BaseDelay:   cfg.Generation.PromptRetryBaseDelay,
		PDFMaxBytes: cfg.UploadMaxBytes,
	}

	return handlers.New(handlers.Deps{
		Chats:         &services.ChatService{DB: db, Titles: titles},
		Messages:      msgSvc,
		Feedback:      &services.FeedbackService{DB: db},
		Attachments:   &services.AttachmentService{DB: db, MaxBytes: cfg.UploadMaxBytes},
		Wizard:        wizardSvc,
		Topics:        services.NewTopicService(db, backend, cfg.Generation),
		Account:       &services.AccountService{DB: db},
		Subscriptions: &services.SubscriptionService{DB: db},
		Contact:       &services.ContactService{DB: db, Mailer: mail, Inbox: cfg.Mail.Inbox},
		Identity:      &services.VerificationService{Backend: backend, Tokens: tokens},
		Usage:         usageSvc,

		DB:             db,
		UploadMaxBytes: cfg.UploadMaxBytes,
	})
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Gzip and body size limiter
//  6. Metrics
//  7. Auth: bearer token or X-User-ID identity
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, backend Backend, mail mailer.Mailer, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderUserID},
		MaskQuery:   []string{"q"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Compression and a 1 MiB body cap; upload routes get their own cap below
	base := cfg.APIBasePath
	if base == "/" {
		base = ""
	}
	uploadRoutes := map[string]bool{
		base + "/chats/:id/attachments":  true,
		base + "/courses/drafts/:id/pdf": true,
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(limitBody(1<<20, func(c *gin.Context) bool {
		return c.Request.Method == http.MethodPost && uploadRoutes[c.FullPath()]
	}))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Identity
	r.Use(middleware.Auth(tokens))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			Routes: []string{base + "/chats/:id/messages"},
		},
		func(ctx context.Context, userID, chatID, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, db, userID, chatID, key, now)
			switch {
			case errors.Is(err, repo.ErrNotFound):
				return false, nil
			case err != nil:
				return false, err
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
		DocsPrefix:   "/swagger/",
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness and readiness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(db))

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := NewHandlers(db, backend, mail, tokens, cfg)
	upload := limitBody(cfg.UploadMaxBytes+(1<<20), nil)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		// Identity
		api.POST("/users/anonymous", h.CreateAnonymousUser)
		api.POST("/auth/verify", h.VerifyUser)
		api.GET("/usage", h.GetUsage)

		// Chats
		api.POST("/chats", h.CreateChat)
		api.GET("/chats", h.ListChats)
		api.GET("/chats/:id", h.GetChat)
		api.PUT("/chats/:id/title", h.UpdateChatTitle)
		api.PUT("/chats/:id/mode", h.UpdateChatMode)
		api.GET("/chats/:id/feedback", h.GetFeedbackSummary)

		// Messages
		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats/:id/messages", h.PostMessage)

		// Attachments
		api.POST("/chats/:id/attachments", upload, h.UploadAttachments)
		api.GET("/chats/:id/attachments", h.ListAttachments)
		api.DELETE("/chats/:id/attachments", h.ClearAttachments)
		api.DELETE("/chats/:id/attachments/:aid", h.RemoveAttachment)

		// Feedback
		api.POST("/messages/:id/feedback", h.RateMessage)

		// Course wizard
		api.POST("/courses/drafts", h.CreateDraft)
		api.GET("/courses/drafts/:id", h.GetDraft)
		api.PATCH("/courses/drafts/:id", h.UpdateDraft)
		api.POST("/courses/drafts/:id/next", h.NextStep)
		api.POST("/courses/drafts/:id/prev", h.PrevStep)
		api.POST("/courses/drafts/:id/pdf", upload, h.AttachDraftPDF)
		api.POST("/courses/drafts/:id/submit", h.SubmitDraft)
		api.GET("/courses", h.ListCourses)
		api.GET("/courses/:id", h.GetCourse)

		// Topics
		api.POST("/topics", h.GenerateTopics)
		api.GET("/topics", h.ListTopicSets)
		api.GET("/topics/:id", h.GetTopicSet)
		api.POST("/topics/:id/topics/:index/content", h.GenerateContent)
		api.GET("/topics/:id/contents", h.ListContents)
		api.GET("/topics/:id/search", h.SearchContents)

		// Account
		api.GET("/profile", h.GetProfile)
		api.PUT("/profile/personal", h.UpdatePersonalInfo)
		api.PUT("/profile/social", h.UpdateSocialMedia)
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)

		// Pricing and subscription
		api.GET("/plans", h.ListPlans)
		api.GET("/subscription", h.GetSubscription)
		api.PUT("/subscription", h.ChangePlan)
		api.POST("/subscription/cancel", h.CancelSubscription)
		api.POST("/subscription/resume", h.ResumeSubscription)

		// Contact
		api.POST("/contact", h.SubmitContact)
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error. Requests for which skip reports true are
// left to a route-level limit.
func limitBody(maxBytes int64, skip func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skip != nil && skip(c) {
			c.Next()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// readiness answers 200 while the database responds and 503 otherwise.
func readiness(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := repo.Ping(ctx, db); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
