package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strapisync/internal/models"
)

func TestNewSQLiteMigratesCommerceTables(t *testing.T) {
	db, err := NewWithOptions("sqlite://file:database_test?mode=memory&cache=shared", Options{AutoMigrate: true})
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []interface{}{
		&models.Product{},
		&models.ProductVariant{},
		&models.MoneyAmount{},
		&models.Region{},
		&models.ProductType{},
		&models.ProductMetafield{},
		&models.User{},
	} {
		assert.True(t, db.DB.Migrator().HasTable(table), "%T table missing", table)
	}

	product := models.Product{Title: "Shirt", Handle: "shirt"}
	require.NoError(t, db.DB.Create(&product).Error)
	assert.Contains(t, product.ID, "prod_")
}

func TestTablesUseCommerceNames(t *testing.T) {
	db, err := NewWithOptions("sqlite://file:database_names_test?mode=memory&cache=shared", Options{AutoMigrate: true})
	require.NoError(t, err)
	defer db.Close()

	for _, name := range []string{
		"product",
		"product_type",
		"product_tag",
		"product_tags",
		"product_option",
		"product_option_value",
		"product_variant",
		"money_amount",
		"region",
		"country",
		"user",
	} {
		assert.True(t, db.DB.Migrator().HasTable(name), "table %s missing", name)
	}
	assert.False(t, db.DB.Migrator().HasTable("products"))
	assert.False(t, db.DB.Migrator().HasTable("product_tags_link"))
}

func TestNewLeavesSchemaAloneByDefault(t *testing.T) {
	db, err := New("sqlite://file:database_nomigrate_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	assert.False(t, db.DB.Migrator().HasTable(&models.Product{}))
}
