package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, errMock := sqlmock.New()
	require.NoError(t, errMock)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, errOpen := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, errOpen)
	return New(conn), mock
}

func TestDeleteAccount_PostgresRollsBackWhenChildDeleteFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "sessions" WHERE user_id = \$1`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "password_reset_tokens" WHERE user_id = \$1`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.DeleteAccount(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccount_PostgresCommitsInOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	for _, table := range []string{"sessions", "password_reset_tokens", "usage_logs", "api_keys"} {
		mock.ExpectExec(`DELETE FROM "` + table + `" WHERE user_id = \$1`).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`DELETE FROM "users" WHERE "users"."id" = \$1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteAccount(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeQuota_PostgresStoreErrorIsWrapped(t *testing.T) {
	s, mock := newMockStore(t)
	errConn := errors.New("server closed the connection")
	mock.ExpectQuery(`UPDATE api_keys`).WillReturnError(errConn)

	_, ok, err := s.ConsumeQuota(context.Background(), 1, "2026-03-01", time.Time{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, errConn)
	assert.NoError(t, mock.ExpectationsWereMet())
}
