package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"eventconnect/pkg/db/sqlite"
)

var DB *sql.DB

// InitDB opens the database at dataSourceName, applies migrations and
// installs it as the package-level DB.
func InitDB(dataSourceName string) error {
	db, err := sqlite.ConnectAndMigrate(dataSourceName)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	DB = db
	log.Info().Str("path", dataSourceName).Msg("successfully connected to the database")
	return nil
}

// Close closes the package-level DB if it is open.
func Close() error {
	if DB == nil {
		return nil
	}
	return DB.Close()
}

// Ping reports whether the package-level DB is reachable.
func Ping(ctx context.Context) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	return DB.PingContext(ctx)
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// IsForeignKeyViolation reports whether err came from a FOREIGN KEY constraint.
func IsForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// NullInt64 turns an optional id into a nullable SQL argument.
func NullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// Int64Ptr is the reverse of NullInt64.
func Int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
