package database

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/models"
)

func TestConnectSelectsSQLite(t *testing.T) {
	db, err := Connect(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.Equal(t, "sqlite", db.Dialector.Name())

	require.NoError(t, Migrate(db))
	require.True(t, db.Migrator().HasTable(&models.Thread{}))
	require.True(t, db.Migrator().HasTable(&models.Message{}))
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	_, err := Connect("")
	require.Error(t, err)
}
