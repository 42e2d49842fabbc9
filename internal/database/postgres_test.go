package database_test

import (
	"context"
	"testing"

	"playroomserver/internal/auth"
	"playroomserver/internal/database"
	"playroomserver/internal/database/testdb"
	"playroomserver/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const currentSetting = "SELECT COALESCE(current_setting(?, true), '')"

func TestPostgres_SecurityContextIsTransactionLocal(t *testing.T) {
	db := testdb.Postgres(t, 1)
	logger := zaptest.NewLogger(t)
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "auth0|pg-user"})

	var (
		inside    string
		insidePID int
		after     string
		afterPID  int
		anonymous string
		anonPID   int
	)
	require.NoError(t, database.Transaction(ctx, db, logger, func(tx *gorm.DB) error {
		if err := tx.Raw("SELECT pg_backend_pid()").Scan(&insidePID).Error; err != nil {
			return err
		}
		return tx.Raw(currentSetting, database.SecurityContextSetting).Scan(&inside).Error
	}))
	assert.Equal(t, "auth0|pg-user", inside)

	require.NoError(t, db.Raw("SELECT pg_backend_pid()").Scan(&afterPID).Error)
	require.NoError(t, db.Raw(currentSetting, database.SecurityContextSetting).Scan(&after).Error)
	require.Equal(t, insidePID, afterPID, "the pool reuses its only connection")
	assert.Empty(t, after, "the identity does not survive the commit")

	require.NoError(t, database.Transaction(context.Background(), db, logger, func(tx *gorm.DB) error {
		if err := tx.Raw("SELECT pg_backend_pid()").Scan(&anonPID).Error; err != nil {
			return err
		}
		return tx.Raw(currentSetting, database.SecurityContextSetting).Scan(&anonymous).Error
	}))
	require.Equal(t, insidePID, anonPID)
	assert.Empty(t, anonymous, "a caller without identity binds nothing")
}

func TestPostgres_SecurityContextClearedAfterRollback(t *testing.T) {
	db := testdb.Postgres(t, 1)
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "auth0|rolled-back"})

	err := database.Transaction(ctx, db, zaptest.NewLogger(t), func(tx *gorm.DB) error {
		if err := tx.Create(&models.ParentProfile{Auth0UserID: "auth0|dup", Email: "a@example.com"}).Error; err != nil {
			return err
		}
		return tx.Create(&models.ParentProfile{Auth0UserID: "auth0|dup", Email: "b@example.com"}).Error
	})
	require.Error(t, err)

	var after string
	require.NoError(t, db.Raw(currentSetting, database.SecurityContextSetting).Scan(&after).Error)
	assert.Empty(t, after)
}

func TestPostgres_ForUpdateLocksRows(t *testing.T) {
	db := testdb.Postgres(t, 1)
	stmt := database.ForUpdate(db.Session(&gorm.Session{DryRun: true})).Find(&[]models.GameRoom{}).Statement
	assert.Contains(t, stmt.SQL.String(), "FOR UPDATE")
}
