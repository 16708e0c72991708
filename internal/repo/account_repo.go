package repo

// Per-user account records (profile, settings, subscription, usage) and
// contact form submissions.
//
// Per-user rows are created lazily: the Ensure* helpers insert the given
// defaults when the row is missing and return the stored row either way.

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// ensure loads the row keyed by user_id into dst, inserting def first when
// it does not exist yet.
func ensure(ctx context.Context, db *gorm.DB, userID string, dst, def any) error {
	tx := db.WithContext(ctx)
	err := tx.Where("user_id = ?", userID).First(dst).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(def).Error; err != nil {
		return err
	}
	return tx.Where("user_id = ?", userID).First(dst).Error
}

// EnsureProfile returns the user's profile, creating an empty one first.
func EnsureProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := ensure(ctx, db, userID, &p, &domain.Profile{UserID: userID}); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile writes every profile column back.
func SaveProfile(ctx context.Context, db *gorm.DB, p *domain.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(p).Error
}

// EnsureSettings returns the user's settings, creating defaults first.
func EnsureSettings(ctx context.Context, db *gorm.DB, userID string) (*domain.Settings, error) {
	var s domain.Settings
	def := &domain.Settings{UserID: userID, EmailNotifications: true, Language: "en"}
	if err := ensure(ctx, db, userID, &s, def); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSettings writes every settings column back, false flags included.
func SaveSettings(ctx context.Context, db *gorm.DB, s *domain.Settings) error {
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(s).Error
}

// EnsureSubscription returns the user's subscription, creating an active
// free plan first.
func EnsureSubscription(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscription, error) {
	var s domain.Subscription
	def := &domain.Subscription{
		UserID:       userID,
		Plan:         domain.PlanFree,
		Status:       domain.SubscriptionActive,
		BillingCycle: domain.CycleMonthly,
	}
	if err := ensure(ctx, db, userID, &s, def); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSubscription writes every subscription column back.
func SaveSubscription(ctx context.Context, db *gorm.DB, s *domain.Subscription) error {
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(s).Error
}

// EnsureUsage returns the user's usage counter, starting a fresh window at now.
func EnsureUsage(ctx context.Context, db *gorm.DB, userID string, anonymous bool, now time.Time) (*domain.Usage, error) {
	var u domain.Usage
	def := &domain.Usage{UserID: userID, Anonymous: anonymous, LastResetAt: now}
	if err := ensure(ctx, db, userID, &u, def); err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUsage writes the usage counter back.
func SaveUsage(ctx context.Context, db *gorm.DB, u *domain.Usage) error {
	u.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(u).Error
}

// CreateContactMessage stores a contact form submission.
func CreateContactMessage(ctx context.Context, db *gorm.DB, m *domain.ContactMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(m).Error
}

// MarkContactDelivered records that the mail relay accepted a submission.
func MarkContactDelivered(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Model(&domain.ContactMessage{}).Where("id = ?", id).Update("delivered", true).Error
}
