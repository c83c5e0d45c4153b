package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Service wraps the SQL database behind the persistence layer.
type Service interface {
	DB() *sql.DB
	Health() map[string]string
	Close() error
}

type service struct {
	db      *sql.DB
	dialect string
}

// New opens the database for the given DSN and applies migrations. A DSN
// beginning with postgres:// (or postgresql://) uses the pgx driver; anything
// else is treated as a SQLite file path.
func New(dsn string) (Service, error) {
	driver, dialect := driverFor(dsn)

	if driver == "sqlite3" {
		dsn = dsn + "?_foreign_keys=on"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := runMigrations(db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &service{db: db, dialect: dialect}, nil
}

func driverFor(dsn string) (driver, dialect string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", "postgres"
	}
	return "sqlite3", "sqlite3"
}

func runMigrations(db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Health() map[string]string {
	stats := make(map[string]string)

	start := time.Now()
	if err := s.db.Ping(); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	stats["status"] = "up"
	stats["dialect"] = s.dialect
	stats["ping"] = time.Since(start).String()
	stats["open_connections"] = fmt.Sprintf("%d", s.db.Stats().OpenConnections)
	return stats
}

func (s *service) Close() error {
	return s.db.Close()
}
