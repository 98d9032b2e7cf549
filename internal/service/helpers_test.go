package service

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/realtime"
	"github.com/mitcstore/mitc-api/internal/repository"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestChatService(t *testing.T) (ChatService, *gorm.DB) {
	t.Helper()
	db := setupServiceDB(t)
	broker := realtime.NewBroker(nil, nil, "", zerolog.Nop())
	return NewChatService(repository.NewChatRepository(db), broker, zerolog.Nop()), db
}

var (
	customer = Identity{UserID: "u1", Role: models.RoleUser}
	other    = Identity{UserID: "u2", Role: models.RoleUser}
	admin    = Identity{UserID: "a1", Role: models.RoleAdmin}
)
