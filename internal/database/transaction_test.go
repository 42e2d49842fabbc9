package database_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"playroomserver/internal/auth"
	"playroomserver/internal/database"
	"playroomserver/internal/database/testdb"
	"playroomserver/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, database.IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, database.IsTransient(fmt.Errorf("join: %w", &pgconn.PgError{Code: "40P01"})))
	assert.True(t, database.IsTransient(driver.ErrBadConn))
	assert.False(t, database.IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, database.IsTransient(errors.New("boom")))
	assert.False(t, database.IsTransient(gorm.ErrRecordNotFound))
}

func TestTransaction_RetriesTransientOnce(t *testing.T) {
	db := testdb.New(t)
	core, logs := observer.New(zap.WarnLevel)

	calls := 0
	err := database.Transaction(context.Background(), db, zap.New(core), func(tx *gorm.DB) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return tx.Create(&models.ParentProfile{Auth0UserID: "auth0|retry", Email: "r@example.com"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, logs.Len())

	var n int64
	db.Model(&models.ParentProfile{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestTransaction_GivesUpAfterSecondTransientFailure(t *testing.T) {
	db := testdb.New(t)

	calls := 0
	err := database.Transaction(context.Background(), db, zap.NewNop(), func(*gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	assert.True(t, database.IsTransient(err))
	assert.Equal(t, 2, calls)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	db := testdb.New(t)
	boom := errors.New("boom")

	calls := 0
	err := database.Transaction(context.Background(), db, zap.NewNop(), func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&models.ParentProfile{Auth0UserID: "auth0|rollback", Email: "x@example.com"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	var n int64
	db.Model(&models.ParentProfile{}).Count(&n)
	assert.Zero(t, n)
}

func TestBindSecurityContext_SkipsNonPostgres(t *testing.T) {
	db := testdb.New(t)
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "auth0|p1"})

	err := database.Transaction(ctx, db, zap.NewNop(), func(tx *gorm.DB) error {
		return tx.Create(&models.ParentProfile{Auth0UserID: "auth0|p1", Email: "p1@example.com"}).Error
	})
	assert.NoError(t, err)
}

func TestForUpdate_NoLockOnSQLite(t *testing.T) {
	db := testdb.New(t)
	stmt := database.ForUpdate(db.Session(&gorm.Session{DryRun: true})).Find(&[]models.GameRoom{}).Statement
	assert.NotContains(t, stmt.SQL.String(), "FOR UPDATE")
}
