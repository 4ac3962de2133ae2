// Package dbtest wires gorm to go-sqlmock for manager tests.
package dbtest

import (
	"testing"

	"github.com/glowface/api/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// New returns a postgres-flavoured *gorm.DB whose statements are asserted by the returned mock
func New(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
	})

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn: conn,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 db.Logger(zap.NewNop()),
	})
	require.NoError(t, err)

	return gdb, mock
}
