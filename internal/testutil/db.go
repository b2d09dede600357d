// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"crm-gin/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an isolated in-memory sqlite database with every table migrated.
// The name is derived from the test so parallel tests never share state.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the shared memory database alive and serialises writes
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// SeedTenant creates a tenant with the given settings
func SeedTenant(t *testing.T, db *gorm.DB, slug string, settings models.TenantSettings) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: slug, Slug: slug, Settings: settings, IsActive: true}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

// SeedClient creates an active client of tenant
func SeedClient(t *testing.T, db *gorm.DB, tenant *models.Tenant, company string) *models.Client {
	t.Helper()
	client := &models.Client{CompanyName: company, Status: models.ClientActive, Email: "contact@" + strings.ToLower(strings.ReplaceAll(company, " ", "")) + ".fr"}
	client.TenantID = tenant.ID
	require.NoError(t, db.Create(client).Error)
	return client
}
