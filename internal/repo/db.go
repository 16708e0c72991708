// Package repo persists the tutor's records with GORM on SQLite.
//
// Functions take a *gorm.DB so they run equally on the root handle or
// inside a caller's transaction. Ownership is expressed in the queries
// (user_id predicates); what a missing or foreign record means is decided
// by the services.
package repo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// Pool limits for the file database. SQLite serializes writers, so a small
// pool is enough; busy_timeout absorbs short write contention.
const (
	maxOpenConns    = 10
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// connPragmas are set through the DSN so that every pooled connection gets
// them, not only the first one.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// sqliteDSN appends connPragmas to path.
func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// OpenSQLite opens (or creates) the database file at path with tracing
// installed, so each query is a span under the request that issued it.
func OpenSQLite(path string) (*gorm.DB, error) {
	// the driver reports a missing directory as "out of memory (14)"
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("gorm tracing: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxOpenConns)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

// Ping checks that the database answers a query.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("no database")
	}
	var one int
	if err := db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return err
	}
	if one != 1 {
		return fmt.Errorf("unexpected ping result %d", one)
	}
	return nil
}

// schema lists every table the service owns, parents first.
func schema() []any {
	return []any{
		&domain.Chat{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.Feedback{},
		&domain.Idempotency{},
		&domain.CourseDraft{},
		&domain.Course{},
		&domain.TopicSet{},
		&domain.TopicContent{},
		&domain.Profile{},
		&domain.Settings{},
		&domain.Subscription{},
		&domain.Usage{},
		&domain.ContactMessage{},
	}
}

// AutoMigrate creates or updates every table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(schema()...)
}
