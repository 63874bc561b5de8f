package database

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"strapisync/internal/models"
)

type Database struct {
	DB *gorm.DB
}

// Options tweaks how the connection is opened.
type Options struct {
	// LogLevel for gorm's own logger, defaults to Warn.
	LogLevel logger.LogLevel
	// AutoMigrate creates the commerce tables. Leave it off against a live
	// commerce database, whose schema is not ours to change.
	AutoMigrate bool
}

func New(databaseURL string) (*Database, error) {
	return NewWithOptions(databaseURL, Options{})
}

func NewWithOptions(databaseURL string, opts Options) (*Database, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(level),
		// The commerce backend names its tables in the singular
		// (product, product_variant, region, "user").
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	}

	var db *gorm.DB
	var err error

	if strings.HasPrefix(databaseURL, "sqlite://") {
		// SQLite for development and tests
		dbPath := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), gormConfig)
	} else {
		// PostgreSQL through lib/pq
		db, err = gorm.Open(postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        databaseURL,
		}), gormConfig)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	return &Database{DB: db}, nil
}

// Migrate creates or updates the commerce tables the connector reads from.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.ProductType{},
		&models.ProductTag{},
		&models.Product{},
		&models.ProductOption{},
		&models.ProductVariant{},
		&models.ProductOptionValue{},
		&models.MoneyAmount{},
		&models.ProductMetafield{},
		&models.Region{},
		&models.Country{},
		&models.User{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
