package database_test

import (
	"testing"

	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	db, err := database.Open("sqlite", "file:database_test?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	for _, model := range []interface{}{&models.Category{}, &models.Product{}, &models.User{}, &models.Order{}, &models.OrderItem{}} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&models.OrderItem{}, "idx_order_product"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := database.Open("oracle", "")
	assert.Error(t, err)
}
