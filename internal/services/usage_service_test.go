package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

func TestUsageService_ConsumeUntilExceededThenReset(t *testing.T) {
	db := newServiceDB(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewUsageService(db, 2)
	s.Now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		st, err := s.Consume(ctx, "anon-1", true)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if st.Used != i || st.Remaining != 2-i || st.Limit != 2 {
			t.Fatalf("consume %d: %+v", i, st)
		}
	}
	st, err := s.Consume(ctx, "anon-1", true)
	var qe *QuotaError
	if !errors.Is(err, ErrQuotaExceeded) || !errors.As(err, &qe) || !qe.ResetAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("want *QuotaError resetting at %v, got %v", now.Add(24*time.Hour), err)
	}
	if st == nil || st.Remaining != 0 || !st.ResetAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("exceeded status: %+v", st)
	}

	now = now.Add(25 * time.Hour)
	st, err = s.Get(ctx, "anon-1", true)
	if err != nil || st.Used != 0 || st.Remaining != 2 {
		t.Fatalf("after window: %+v %v", st, err)
	}
	if _, err := s.Consume(ctx, "anon-1", true); err != nil {
		t.Fatalf("consume after reset: %v", err)
	}
}

func TestUsageService_PaidAndUnlimited(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	off := NewUsageService(db, 0)
	if st, err := off.Consume(ctx, "u1", false); err != nil || !st.Unlimited {
		t.Fatalf("limit 0 should be unlimited: %+v %v", st, err)
	}

	sub, err := repo.EnsureSubscription(ctx, db, "payer")
	if err != nil {
		t.Fatalf("ensure sub: %v", err)
	}
	sub.Plan = domain.PlanPro
	if err := repo.SaveSubscription(ctx, db, sub); err != nil {
		t.Fatalf("save sub: %v", err)
	}

	s := NewUsageService(db, 1)
	for i := 0; i < 3; i++ {
		st, err := s.Consume(ctx, "payer", false)
		if err != nil || !st.Unlimited {
			t.Fatalf("paid user should not be metered: %+v %v", st, err)
		}
	}

	if _, err := s.Consume(ctx, "free", false); err != nil {
		t.Fatalf("first free send: %v", err)
	}
	if _, err := s.Consume(ctx, "free", false); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("free user second send: want ErrQuotaExceeded, got %v", err)
	}
}

func TestUsageService_WindowRollsFromFirstSendNotMidnight(t *testing.T) {
	db := newServiceDB(t)
	first := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	now := first
	s := NewUsageService(db, 1)
	s.Now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := s.Consume(ctx, "u1", false); err != nil {
		t.Fatalf("first send: %v", err)
	}

	now = time.Date(2026, 1, 2, 0, 0, 1, 0, time.UTC)
	_, err := s.Consume(ctx, "u1", false)
	var qe *QuotaError
	if !errors.As(err, &qe) || !qe.ResetAt.Equal(first.Add(24*time.Hour)) {
		t.Fatalf("after midnight: want reset at %v, got %v", first.Add(24*time.Hour), err)
	}

	now = qe.ResetAt
	if _, err := s.Consume(ctx, "u1", false); err != nil {
		t.Fatalf("at the reported reset time: %v", err)
	}
}

func TestUsageService_CanceledPlanUnmeteredUntilPeriodEnd(t *testing.T) {
	db := newServiceDB(t)
	now := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ctx := context.Background()

	subs := &SubscriptionService{DB: db, Now: clock}
	ch, err := subs.ChangePlan(ctx, "u1", domain.PlanPro, domain.CycleMonthly)
	if err != nil {
		t.Fatalf("change plan: %v", err)
	}
	end := *ch.Subscription.CurrentPeriodEnd
	if _, err := subs.Cancel(ctx, "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	usage := NewUsageService(db, 1)
	usage.Now = clock
	now = now.Add(48 * time.Hour)
	for i := 0; i < 3; i++ {
		st, err := usage.Consume(ctx, "u1", false)
		if err != nil || !st.Unlimited {
			t.Fatalf("send %d inside the paid period: %+v %v", i+1, st, err)
		}
	}

	now = end.Add(time.Minute)
	if _, err := usage.Consume(ctx, "u1", false); err != nil {
		t.Fatalf("first send after period end: %v", err)
	}
	if _, err := usage.Consume(ctx, "u1", false); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("second send after period end: want ErrQuotaExceeded, got %v", err)
	}
}
