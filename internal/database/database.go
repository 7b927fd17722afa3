// FilePath: internal/database/database.go
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/hydrozen/leakwatch/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	nuts "github.com/vaudience/go-nuts"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is the connection handle shared by the postgres repositories
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	GetDB() *sqlx.DB
}

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	db *sqlx.DB
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// DSN builds a lib/pq connection string from cfg.
func DSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.DatabaseConfig) (DB, error) {
	pg := cfg.Postgres
	db, err := sqlx.Connect("postgres", DSN(pg))
	if err != nil {
		return nil, fmt.Errorf("error connecting to PostgreSQL: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifeMs > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeMs) * time.Millisecond)
	}

	nuts.L.Infof("[PostgresDB] Connected to %s:%d/%s", pg.Host, pg.Port, pg.DBName)
	return &PostgresDB{db: db}, nil
}

// Wrap adapts an existing sqlx handle, e.g. one opened by a test harness.
func Wrap(db *sqlx.DB) DB {
	return &PostgresDB{db: db}
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) GetDB() *sqlx.DB {
	return p.db
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("error setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.GetDB().DB, "migrations"); err != nil {
		return fmt.Errorf("error applying migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, db.GetDB().DB)
	if err == nil {
		nuts.L.Infof("[PostgresDB] Schema at migration version %d", version)
	}
	return nil
}

// MigrationFiles lists the embedded migration files in order.
func MigrationFiles() ([]string, error) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
