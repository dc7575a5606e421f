// Package dbtest opens throwaway SQLite databases for repository and
// transaction tests. Production code connects to Postgres; the schema here
// mirrors the migrations with SQLite-compatible column types.
package dbtest

import (
	"context"
	"io"
	"log"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL UNIQUE,
		hashed_password TEXT NOT NULL,
		phone TEXT,
		full_name TEXT,
		tier TEXT NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		two_factor_secret TEXT,
		total_spent NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE guests (
		id TEXT PRIMARY KEY,
		email TEXT,
		phone TEXT NOT NULL,
		full_name TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		original_title TEXT,
		publisher TEXT,
		isbn TEXT UNIQUE,
		pages INTEGER,
		price NUMERIC NOT NULL,
		cover_type TEXT,
		language TEXT,
		description TEXT,
		stock_count INTEGER NOT NULL DEFAULT 0,
		external_rating NUMERIC,
		rating_updated_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE book_categories (
		book_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		PRIMARY KEY (book_id, category_id)
	)`,
	`CREATE TABLE category_subcategories (
		parent_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		PRIMARY KEY (parent_id, child_id)
	)`,
	`CREATE TABLE promotions (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		discount_percent NUMERIC NOT NULL,
		starts_at DATETIME NOT NULL,
		ends_at DATETIME NOT NULL,
		description TEXT,
		created_by TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		guest_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		total_price NUMERIC NOT NULL,
		shipping_address TEXT,
		phone TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		price_per_item NUMERIC NOT NULL,
		discount_percent NUMERIC NOT NULL
	)`,
	`CREATE TABLE reviews (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
}

// Open returns an in-memory SQLite connection with the full schema applied.
// The database is private to the test and closed on cleanup.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("applying schema: %v", err)
		}
	}
	return conn
}

// TxRunner runs functions inside a real database transaction, matching the
// commit and rollback behaviour of the production client.
type TxRunner struct {
	DB *gorm.DB
}

// WithTx executes fn inside a transaction, rolling back on error/panic.
func (r TxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
			panic(rec)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
