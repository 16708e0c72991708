package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription plans, statuses and billing cycles.
const (
	PlanFree    = "free"
	PlanPro     = "pro"
	PlanPremium = "premium"

	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"

	CycleMonthly = "monthly"
	CycleYearly  = "yearly"
)

// Profile holds the personal information and social links shown on the
// profile dashboard. It is keyed by user.
type Profile struct {
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);primaryKey"`
	FirstName string    `json:"first_name" gorm:"type:varchar(128)"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(128)"`
	Email     string    `json:"email"      gorm:"type:varchar(255)"`
	Phone     string    `json:"phone"      gorm:"type:varchar(64)"`
	Bio       string    `json:"bio"        gorm:"type:text"`
	Location  string    `json:"location"   gorm:"type:varchar(255)"`
	Twitter   string    `json:"twitter"    gorm:"type:varchar(255)"`
	LinkedIn  string    `json:"linkedin"   gorm:"type:varchar(255)"`
	GitHub    string    `json:"github"     gorm:"type:varchar(255)"`
	Website   string    `json:"website"    gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Settings are per-user notification and display preferences.
type Settings struct {
	UserID             string    `json:"user_id"             gorm:"type:varchar(64);primaryKey"`
	EmailNotifications bool      `json:"email_notifications" gorm:"not null;default:true"`
	PushNotifications  bool      `json:"push_notifications"  gorm:"not null;default:false"`
	MarketingEmails    bool      `json:"marketing_emails"    gorm:"not null;default:false"`
	DarkMode           bool      `json:"dark_mode"           gorm:"not null;default:false"`
	Language           string    `json:"language"            gorm:"type:varchar(32);not null;default:'en'"`
	TwoFactor          bool      `json:"two_factor"          gorm:"not null;default:false"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName returns the database table name for Settings.
func (Settings) TableName() string { return "settings" }

// Subscription is the user's current plan. Price is stored as a decimal
// string so that amounts survive the round trip exactly.
type Subscription struct {
	UserID            string          `json:"user_id"              gorm:"type:varchar(64);primaryKey"`
	Plan              string          `json:"plan"                 gorm:"type:varchar(32);not null;default:'free'"`
	Status            string          `json:"status"               gorm:"type:varchar(16);not null;default:'active'"`
	BillingCycle      string          `json:"billing_cycle"        gorm:"type:varchar(16);not null;default:'monthly'"`
	Price             decimal.Decimal `json:"price"                gorm:"type:varchar(32);not null;default:'0'"`
	CurrentPeriodEnd  *time.Time      `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool            `json:"cancel_at_period_end" gorm:"not null;default:false"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// Paid reports whether the subscription lifts the free message quota at now.
// A canceled plan keeps its benefits until the paid period ends.
func (s Subscription) Paid(now time.Time) bool {
	if s.Plan == PlanFree || s.Plan == "" {
		return false
	}
	switch s.Status {
	case SubscriptionActive:
		return true
	case SubscriptionCanceled:
		return s.CurrentPeriodEnd != nil && now.Before(*s.CurrentPeriodEnd)
	}
	return false
}

// Usage tracks the rolling daily message count for quota enforcement.
type Usage struct {
	UserID       string    `json:"user_id"       gorm:"type:varchar(64);primaryKey"`
	Anonymous    bool      `json:"anonymous"     gorm:"not null;default:false"`
	MessageCount int       `json:"message_count" gorm:"not null;default:0"`
	LastResetAt  time.Time `json:"last_reset_at" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Usage.
func (Usage) TableName() string { return "usage" }

// ContactMessage is a submission from the contact form. Delivered records
// whether the mail relay accepted it.
type ContactMessage struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null"`
	Subject   string    `json:"subject"    gorm:"type:varchar(255)"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	Delivered bool      `json:"delivered"  gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ContactMessage.
func (ContactMessage) TableName() string { return "contact_messages" }
