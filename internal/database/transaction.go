package database

import (
	"context"
	"database/sql/driver"
	"errors"

	"playroomserver/internal/auth"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SecurityContextSetting is the Postgres setting read by the row level
// security policies.
const SecurityContextSetting = "app.current_auth0_user_id"

// Transaction runs fn in a single transaction with the identity carried by
// ctx bound as the security context. A transient failure reruns fn once, so
// fn must not have side effects outside tx.
func Transaction(ctx context.Context, db *gorm.DB, logger *zap.Logger, fn func(tx *gorm.DB) error) error {
	err := run(ctx, db, fn)
	if err == nil || !IsTransient(err) || ctx.Err() != nil {
		return err
	}

	logger.Warn("Retrying transaction after transient error", zap.Error(err))
	return run(ctx, db, fn)
}

func run(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := BindSecurityContext(ctx, tx); err != nil {
			return err
		}
		return fn(tx)
	})
}

// BindSecurityContext sets the security context for the rest of tx.
// set_config with is_local=true scopes the value to the transaction, so a
// pooled connection never carries one caller's identity into another
// request. Only Postgres has the setting; other dialects skip it.
func BindSecurityContext(ctx context.Context, tx *gorm.DB) error {
	id, ok := auth.FromContext(ctx)
	if !ok || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT set_config(?, ?, true)", SecurityContextSetting, id.UserID).Error
}

// IsTransient reports errors worth retrying the whole transaction for:
// serialization failures, deadlocks and connections that died before the
// statement was sent.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

// ForUpdate adds a row lock to the query on Postgres. SQLite serialises
// writers on its own and has no FOR UPDATE.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
