// Package services – UsageService
//
// UsageService enforces the daily message quota of anonymous and free users.
// The counter window restarts once it is older than Window (24h by default);
// users on a paid plan, including a canceled one still inside its paid
// period, are not metered.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

// UsageStatus reports a user's quota position.
type UsageStatus struct {
	Unlimited bool      `json:"unlimited"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// UsageService meters messages per user.
type UsageService struct {
	DB *gorm.DB
	// DailyLimit is the free allowance per window; 0 disables metering.
	DailyLimit int
	Window     time.Duration
	Now        func() time.Time
}

// NewUsageService returns a service with a 24h window.
func NewUsageService(db *gorm.DB, dailyLimit int) *UsageService {
	return &UsageService{DB: db, DailyLimit: dailyLimit, Window: 24 * time.Hour, Now: time.Now}
}

// Get reports the current status without consuming.
func (s *UsageService) Get(ctx context.Context, userID string, anonymous bool) (*UsageStatus, error) {
	var st *UsageStatus
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = s.step(ctx, tx, userID, anonymous, false)
		return err
	})
	return st, err
}

// Consume counts one message. When the window's allowance is spent it returns
// the current status and a *QuotaError carrying the reset time.
func (s *UsageService) Consume(ctx context.Context, userID string, anonymous bool) (*UsageStatus, error) {
	var st *UsageStatus
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = s.step(ctx, tx, userID, anonymous, true)
		return err
	})
	return st, err
}

func (s *UsageService) step(ctx context.Context, tx *gorm.DB, userID string, anonymous, consume bool) (*UsageStatus, error) {
	if s.DailyLimit <= 0 {
		return &UsageStatus{Unlimited: true}, nil
	}
	now := s.now()
	if !anonymous {
		sub, err := repo.EnsureSubscription(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		if sub.Paid(now) {
			return &UsageStatus{Unlimited: true}, nil
		}
	}

	u, err := repo.EnsureUsage(ctx, tx, userID, anonymous, now)
	if err != nil {
		return nil, err
	}
	dirty := false
	if now.Sub(u.LastResetAt) >= s.window() {
		u.MessageCount = 0
		u.LastResetAt = now
		dirty = true
	}

	if consume {
		if u.MessageCount >= s.DailyLimit {
			st := s.status(u)
			return st, &QuotaError{ResetAt: st.ResetAt}
		}
		u.MessageCount++
		dirty = true
	}
	if dirty {
		if err := repo.SaveUsage(ctx, tx, u); err != nil {
			return nil, err
		}
	}
	return s.status(u), nil
}

func (s *UsageService) status(u *domain.Usage) *UsageStatus {
	rem := s.DailyLimit - u.MessageCount
	if rem < 0 {
		rem = 0
	}
	return &UsageStatus{
		Limit:     s.DailyLimit,
		Used:      u.MessageCount,
		Remaining: rem,
		ResetAt:   u.LastResetAt.Add(s.window()),
	}
}

func (s *UsageService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *UsageService) window() time.Duration {
	if s.Window <= 0 {
		return 24 * time.Hour
	}
	return s.Window
}
