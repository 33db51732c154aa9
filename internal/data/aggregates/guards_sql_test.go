package aggregates

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/techform-backend/internal/platform/dbctx"
)

func mockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestCASGuardUpdateByVersionSQL(t *testing.T) {
	db, mock := mockGorm(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "triage_stage" SET .*"row_version"=.* WHERE id = \$\d+ AND row_version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "triage_stage" SET .* WHERE id = \$\d+ AND row_version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	guard := NewCASGuard(db)
	dbc := dbctx.Context{Ctx: context.Background()}

	ok, err := guard.UpdateByVersion(dbc, "triage_stage", id, 4, map[string]any{"technology_overview": "x"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = guard.UpdateByVersion(dbc, "triage_stage", id, 4, map[string]any{"technology_overview": "y"})
	require.NoError(t, err)
	require.False(t, ok, "second writer with the same version must match zero rows")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCASGuardRejectsBadArguments(t *testing.T) {
	db, mock := mockGorm(t)
	guard := NewCASGuard(db)
	dbc := dbctx.Context{Ctx: context.Background()}

	_, err := guard.UpdateByVersion(dbc, "", uuid.New(), 0, nil)
	require.ErrorIs(t, err, ErrValidation)
	_, err = guard.UpdateByVersion(dbc, "technology", uuid.Nil, 0, nil)
	require.ErrorIs(t, err, ErrValidation)
	_, err = guard.UpdateByVersion(dbc, "technology", uuid.New(), -1, nil)
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, mock.ExpectationsWereMet())
}
