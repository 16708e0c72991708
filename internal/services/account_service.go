// Package services – AccountService
//
// AccountService serves the profile and settings pages. Rows are created with
// defaults on first read, so a new user always sees a complete page.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

// PersonalInfo is the personal section of the profile page.
type PersonalInfo struct {
	FirstName string `json:"first_name" validate:"notblank,max=128"`
	LastName  string `json:"last_name"  validate:"notblank,max=128"`
	Email     string `json:"email"      validate:"required,email,max=255"`
	Phone     string `json:"phone"      validate:"omitempty,e164"`
	Bio       string `json:"bio"        validate:"omitempty,max=2000"`
	Location  string `json:"location"   validate:"omitempty,max=255"`
}

// SocialMedia is the links section of the profile page.
type SocialMedia struct {
	Twitter  string `json:"twitter"  validate:"omitempty,url,max=255"`
	LinkedIn string `json:"linkedin" validate:"omitempty,url,max=255"`
	GitHub   string `json:"github"   validate:"omitempty,url,max=255"`
	Website  string `json:"website"  validate:"omitempty,url,max=255"`
}

// SettingsInput replaces the user's preferences.
type SettingsInput struct {
	EmailNotifications bool   `json:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications"`
	MarketingEmails    bool   `json:"marketing_emails"`
	DarkMode           bool   `json:"dark_mode"`
	Language           string `json:"language" validate:"omitempty,bcp47_language_tag"`
	TwoFactor          bool   `json:"two_factor"`
}

// AccountService implements the profile and settings use-cases.
type AccountService struct {
	DB *gorm.DB
}

// GetProfile returns the user's profile.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return repo.EnsureProfile(ctx, s.DB, userID)
}

// UpdatePersonalInfo replaces the personal section of the profile.
func (s *AccountService) UpdatePersonalInfo(ctx context.Context, userID string, in PersonalInfo) (*domain.Profile, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	in.Location = strings.TrimSpace(in.Location)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	return s.updateProfile(ctx, userID, func(p *domain.Profile) {
		p.FirstName, p.LastName, p.Email = in.FirstName, in.LastName, in.Email
		p.Phone, p.Bio, p.Location = in.Phone, in.Bio, in.Location
	})
}

// UpdateSocialMedia replaces the profile links. Empty values clear a link.
func (s *AccountService) UpdateSocialMedia(ctx context.Context, userID string, in SocialMedia) (*domain.Profile, error) {
	in.Twitter = strings.TrimSpace(in.Twitter)
	in.LinkedIn = strings.TrimSpace(in.LinkedIn)
	in.GitHub = strings.TrimSpace(in.GitHub)
	in.Website = strings.TrimSpace(in.Website)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	return s.updateProfile(ctx, userID, func(p *domain.Profile) {
		p.Twitter, p.LinkedIn, p.GitHub, p.Website = in.Twitter, in.LinkedIn, in.GitHub, in.Website
	})
}

func (s *AccountService) updateProfile(ctx context.Context, userID string, fn func(*domain.Profile)) (*domain.Profile, error) {
	var out *domain.Profile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.EnsureProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		fn(p)
		if err := repo.SaveProfile(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// GetSettings returns the user's preferences.
func (s *AccountService) GetSettings(ctx context.Context, userID string) (*domain.Settings, error) {
	return repo.EnsureSettings(ctx, s.DB, userID)
}

// UpdateSettings replaces the user's preferences. An empty language keeps
// the current one.
func (s *AccountService) UpdateSettings(ctx context.Context, userID string, in SettingsInput) (*domain.Settings, error) {
	in.Language = strings.TrimSpace(in.Language)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var out *domain.Settings
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := repo.EnsureSettings(ctx, tx, userID)
		if err != nil {
			return err
		}
		st.EmailNotifications = in.EmailNotifications
		st.PushNotifications = in.PushNotifications
		st.MarketingEmails = in.MarketingEmails
		st.DarkMode = in.DarkMode
		st.TwoFactor = in.TwoFactor
		if in.Language != "" {
			st.Language = in.Language
		}
		if err := repo.SaveSettings(ctx, tx, st); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}
