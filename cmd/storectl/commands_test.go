package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/database"
	"github.com/mitcstore/mitc-api/internal/models"
)

func testOpener(t *testing.T) (dbOpener, *gorm.DB) {
	t.Helper()
	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return func() (*gorm.DB, error) { return db, nil }, db
}

func run(t *testing.T, open dbOpener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open, &out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	open, _ := testOpener(t)
	out, err := run(t, open, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, fmt.Sprintf("migrated %d tables", len(models.All())))
}

func TestPromoteAdminCommand(t *testing.T) {
	open, db := testOpener(t)
	require.NoError(t, db.Create(&models.User{UID: "u1", Name: "Owner", Email: "owner@example.com", Role: models.RoleUser}).Error)

	out, err := run(t, open, "promote-admin", "Owner@Example.com")
	require.NoError(t, err)
	require.Contains(t, out, "owner@example.com (u1) is now admin")

	var user models.User
	require.NoError(t, db.First(&user, "uid = ?", "u1").Error)
	require.Equal(t, models.RoleAdmin, user.Role)

	_, err = run(t, open, "promote-admin", "missing@example.com")
	require.ErrorContains(t, err, "no profile registered")

	_, err = run(t, open, "promote-admin", "owner@example.com", "--role", "root")
	require.ErrorContains(t, err, "unknown role")
}

func TestUsersCommand(t *testing.T) {
	open, db := testOpener(t)
	require.NoError(t, db.Create(&models.User{UID: "u1", Name: "A", Email: "a@example.com", Role: models.RoleUser}).Error)
	require.NoError(t, db.Create(&models.User{UID: "a1", Name: "B", Email: "b@example.com", Role: models.RoleAdmin}).Error)

	out, err := run(t, open, "users", "--role", "admin")
	require.NoError(t, err)
	require.Contains(t, out, "b@example.com")
	require.NotContains(t, out, "a@example.com")
	require.Contains(t, out, "1 profiles")
}

func TestImportProductsCommand(t *testing.T) {
	open, db := testOpener(t)

	catalog := `[
		{"title": "ThinkPad T14", "brand": "Lenovo", "specs": {"ram": "16GB"}, "price_low": 45000, "price_high": 52000, "stock": 4, "status": "published"},
		{"title": "ThinkPad  T14", "brand": "lenovo", "price_low": 45000},
		{"title": "Mystery box", "brand": "HP", "price_low": 0}
	]`
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))

	out, err := run(t, open, "import-products", path)
	require.NoError(t, err)
	require.Contains(t, out, "item 2 rejected")
	require.Contains(t, out, "created 1, skipped 1, rejected 1")

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	_, err = run(t, open, "import-products", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
