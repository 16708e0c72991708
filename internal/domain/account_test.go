package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSubscription_Paid(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	later := now.Add(72 * time.Hour)
	earlier := now.Add(-time.Hour)
	cases := []struct {
		sub  Subscription
		want bool
	}{
		{Subscription{Plan: PlanFree, Status: SubscriptionActive}, false},
		{Subscription{Plan: "", Status: SubscriptionActive}, false},
		{Subscription{Plan: PlanPro, Status: SubscriptionActive}, true},
		{Subscription{Plan: PlanPremium, Status: SubscriptionCanceled, CurrentPeriodEnd: &later}, true},
		{Subscription{Plan: PlanPremium, Status: SubscriptionCanceled, CurrentPeriodEnd: &earlier}, false},
		{Subscription{Plan: PlanPro, Status: SubscriptionCanceled, CurrentPeriodEnd: &now}, false},
		{Subscription{Plan: PlanPro, Status: SubscriptionCanceled}, false},
		{Subscription{Plan: PlanPro, Status: "past_due"}, false},
	}
	for _, c := range cases {
		if got := c.sub.Paid(now); got != c.want {
			t.Fatalf("Paid(%+v) = %v want %v", c.sub, got, c.want)
		}
	}
}

func TestAccountTables_DecimalPriceRoundTrip(t *testing.T) {
	dsn := fmt.Sprintf("file:account_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Profile{}, &Settings{}, &Subscription{}, &Usage{}, &ContactMessage{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	end := time.Now().UTC().Add(24 * time.Hour)
	sub := &Subscription{
		UserID: "u1", Plan: PlanPro, Status: SubscriptionActive, BillingCycle: CycleYearly,
		Price: decimal.RequireFromString("95.90"), CurrentPeriodEnd: &end,
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	var got Subscription
	if err := db.First(&got, "user_id = ?", "u1").Error; err != nil {
		t.Fatalf("read subscription: %v", err)
	}
	if !got.Price.Equal(decimal.RequireFromString("95.9")) {
		t.Fatalf("price round trip mismatch: %s", got.Price)
	}
	if got.CurrentPeriodEnd == nil {
		t.Fatalf("period end lost")
	}

	if err := db.Create(&Usage{UserID: "anon-1", Anonymous: true, MessageCount: 3, LastResetAt: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("create usage: %v", err)
	}
	var u Usage
	if err := db.First(&u, "user_id = ?", "anon-1").Error; err != nil || u.MessageCount != 3 || !u.Anonymous {
		t.Fatalf("usage round trip: %+v err=%v", u, err)
	}
}
