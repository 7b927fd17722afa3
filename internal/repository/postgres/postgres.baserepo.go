package postgres

import (
	"context"
	stderrors "errors"

	"github.com/hydrozen/leakwatch/internal/database"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/lib/pq"
)

// Postgres error codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type PostgresBaseRepo struct {
	db database.DB
}

func (r *PostgresBaseRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", err)
	}
	return tx, nil
}

func (r *PostgresBaseRepo) Commit(tx database.Transaction) error {
	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("failed to commit transaction", err)
	}
	return nil
}

func (r *PostgresBaseRepo) Rollback(tx database.Transaction) error {
	if err := tx.Rollback(); err != nil {
		return errors.NewDatabaseError("failed to rollback transaction", err)
	}
	return nil
}

func (r *PostgresBaseRepo) Ping(ctx context.Context) error {
	if err := r.db.GetDB().PingContext(ctx); err != nil {
		return errors.NewDatabaseError("failed to ping database", err)
	}
	return nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pqCode(err) == codeForeignKeyViolation
}
