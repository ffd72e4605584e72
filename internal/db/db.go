// Package db opens and initializes the application's SQLite database.
// The database is optionally encrypted at rest with SQLCipher when a
// 32-byte hex key is configured.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// MaxOpenConns is the maximum number of open connections.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns = 2
)

// Open opens the application database at path, creating parent directories
// and initializing the schema as needed. keyHex is an optional SQLCipher
// key (64 hex characters); pass "" for an unencrypted database.
func Open(path, keyHex string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := path
	if keyHex != "" {
		if len(keyHex) != 64 {
			return nil, fmt.Errorf("database key must be 64 hex characters, got %d", len(keyHex))
		}
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, keyHex)
	}
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	// Verify connection and, when encrypted, that the key is correct.
	var sqliteVersion string
	if err := sqlDB.QueryRow("SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return sqlDB, nil
}

// OpenInMemory opens a fresh in-memory database with the schema applied.
// Intended for tests. Each call returns an isolated database.
func OpenInMemory() (*sql.DB, error) {
	// A unique name per call keeps databases isolated while cache=shared
	// lets the pool's connections see the same data.
	name := fmt.Sprintf("memdb-%d", inMemorySeq.Add(1))
	dsn := appendSQLiteParams(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), sqliteCommonParams())

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(MaxOpenConns)

	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return sqlDB, nil
}

var inMemorySeq atomic.Int64

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint
// violation, optionally on a specific column ("table.column").
func IsUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique &&
		sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	if column == "" {
		return true
	}
	return strings.Contains(sqliteErr.Error(), column)
}

func sqliteCommonParams() string {
	// Production-safe defaults: WAL + NORMAL provides good throughput while preserving safety.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
