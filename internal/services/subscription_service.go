// Package services – SubscriptionService
//
// SubscriptionService serves the pricing page and the user's plan. Prices are
// decimals so that amounts and prorated credits are exact. A canceled paid
// plan stays canceled until its period ends and then falls back to free.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

// Plan is one entry of the pricing page.
type Plan struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Monthly  decimal.Decimal `json:"monthly_price"`
	Yearly   decimal.Decimal `json:"yearly_price"`
	Features []string        `json:"features"`
}

// Price returns the plan's price for cycle.
func (p Plan) Price(cycle string) decimal.Decimal {
	if cycle == domain.CycleYearly {
		return p.Yearly
	}
	return p.Monthly
}

// YearlySavings is what a yearly plan saves over twelve monthly payments.
func (p Plan) YearlySavings() decimal.Decimal {
	return p.Monthly.Mul(decimal.NewFromInt(12)).Sub(p.Yearly)
}

// DefaultPlans is the built-in price list.
var DefaultPlans = []Plan{
	{
		ID:       domain.PlanFree,
		Name:     "Free",
		Monthly:  decimal.Zero,
		Yearly:   decimal.Zero,
		Features: []string{"Daily message allowance", "All chat modes", "Course wizard"},
	},
	{
		ID:       domain.PlanPro,
		Name:     "Pro",
		Monthly:  decimal.RequireFromString("9.99"),
		Yearly:   decimal.RequireFromString("99.99"),
		Features: []string{"Unlimited messages", "File analysis", "Topic content generation"},
	},
	{
		ID:       domain.PlanPremium,
		Name:     "Premium",
		Monthly:  decimal.RequireFromString("19.99"),
		Yearly:   decimal.RequireFromString("199.99"),
		Features: []string{"Everything in Pro", "Priority generation", "Course PDF references"},
	},
}

// PlanChange is the result of switching plans. Credit is the prorated value
// of the unused part of the previous paid period.
type PlanChange struct {
	Subscription *domain.Subscription `json:"subscription"`
	Credit       decimal.Decimal      `json:"credit"`
}

// SubscriptionService implements the subscription use-cases.
type SubscriptionService struct {
	DB *gorm.DB
	// PriceList defaults to DefaultPlans.
	PriceList []Plan
	Now       func() time.Time
}

// Plans returns the pricing page.
func (s *SubscriptionService) Plans() []Plan {
	if len(s.PriceList) == 0 {
		return DefaultPlans
	}
	return s.PriceList
}

func (s *SubscriptionService) plan(id string) (Plan, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range s.Plans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Get returns the user's subscription, free and active by default.
func (s *SubscriptionService) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	var out *domain.Subscription
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.load(ctx, tx, userID)
		out = sub
		return err
	})
	return out, err
}

// ChangePlan moves the user to plan on cycle and starts a new period.
func (s *SubscriptionService) ChangePlan(ctx context.Context, userID, planID, cycle string) (*PlanChange, error) {
	p, ok := s.plan(planID)
	if !ok {
		return nil, ErrInvalidPlan
	}
	cycle = strings.ToLower(strings.TrimSpace(cycle))
	if cycle == "" {
		cycle = domain.CycleMonthly
	}
	if cycle != domain.CycleMonthly && cycle != domain.CycleYearly {
		return nil, ErrInvalidPlan
	}

	var out *PlanChange
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		credit := Prorate(sub.Price, sub.BillingCycle, sub.CurrentPeriodEnd, now)

		sub.Plan = p.ID
		sub.BillingCycle = cycle
		sub.Price = p.Price(cycle)
		sub.Status = domain.SubscriptionActive
		sub.CancelAtPeriodEnd = false
		sub.CurrentPeriodEnd = nil
		if p.ID != domain.PlanFree {
			end := periodEnd(now, cycle)
			sub.CurrentPeriodEnd = &end
		}
		if err := repo.SaveSubscription(ctx, tx, sub); err != nil {
			return err
		}
		out = &PlanChange{Subscription: sub, Credit: credit}
		return nil
	})
	return out, err
}

// Cancel stops renewal of a paid plan. Resume reverts it until the period
// ends.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.mutate(ctx, userID, func(sub *domain.Subscription) error {
		if sub.Plan == domain.PlanFree {
			return ErrInvalidPlan
		}
		sub.Status = domain.SubscriptionCanceled
		sub.CancelAtPeriodEnd = true
		return nil
	})
}

// Resume undoes a cancellation before the period ends.
func (s *SubscriptionService) Resume(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.mutate(ctx, userID, func(sub *domain.Subscription) error {
		if sub.Status != domain.SubscriptionCanceled {
			return ErrNotCanceled
		}
		sub.Status = domain.SubscriptionActive
		sub.CancelAtPeriodEnd = false
		return nil
	})
}

func (s *SubscriptionService) mutate(ctx context.Context, userID string, fn func(*domain.Subscription) error) (*domain.Subscription, error) {
	var out *domain.Subscription
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(sub); err != nil {
			return err
		}
		if err := repo.SaveSubscription(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	return out, err
}

// load returns the subscription, expiring a canceled plan whose period has
// ended.
func (s *SubscriptionService) load(ctx context.Context, tx *gorm.DB, userID string) (*domain.Subscription, error) {
	sub, err := repo.EnsureSubscription(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if sub.Status == domain.SubscriptionCanceled && sub.CurrentPeriodEnd != nil && !s.now().Before(*sub.CurrentPeriodEnd) {
		sub.Plan = domain.PlanFree
		sub.Status = domain.SubscriptionActive
		sub.Price = decimal.Zero
		sub.CancelAtPeriodEnd = false
		sub.CurrentPeriodEnd = nil
		if err := repo.SaveSubscription(ctx, tx, sub); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

func (s *SubscriptionService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func periodEnd(from time.Time, cycle string) time.Time {
	if cycle == domain.CycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// Prorate returns the unused share of price for a period of cycle ending at
// end, rounded to cents. It is zero when nothing is left.
func Prorate(price decimal.Decimal, cycle string, end *time.Time, now time.Time) decimal.Decimal {
	if end == nil || !price.IsPositive() || !now.Before(*end) {
		return decimal.Zero
	}
	var start time.Time
	if cycle == domain.CycleYearly {
		start = end.AddDate(-1, 0, 0)
	} else {
		start = end.AddDate(0, -1, 0)
	}
	total := end.Sub(start)
	left := end.Sub(now)
	if left > total {
		left = total
	}
	share := decimal.NewFromInt(int64(left)).Div(decimal.NewFromInt(int64(total)))
	return price.Mul(share).Round(2)
}
