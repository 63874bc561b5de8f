package app

import (
	"context"
	"errors"
	"fmt"

	"strapisync/internal/config"
	"strapisync/internal/connectors/medusa"
	"strapisync/internal/database"
	"strapisync/internal/guard"
	"strapisync/internal/logger"
	"strapisync/internal/mirror"
	"strapisync/internal/services/strapi"
)

// App holds the long-lived services shared by the API and the worker.
type App struct {
	DB     *database.Database
	Guard  *guard.Guard
	Client *strapi.Client
	Engine *mirror.Engine
}

// Build wires the database, echo guard, remote client and sync engine.
func Build(cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := database.NewWithOptions(cfg.DatabaseURL, database.Options{AutoMigrate: cfg.DatabaseAutoMigrate})
	if err != nil {
		return nil, err
	}

	store, err := guard.NewStoreFromURL(cfg.IgnoreStoreURL)
	if err != nil {
		db.Close()
		return nil, err
	}
	g := guard.New(store, cfg.IgnoreTTL)

	cipher, err := strapi.NewCipher(cfg.EncryptionAlgorithm)
	if err != nil {
		g.Close()
		db.Close()
		return nil, err
	}

	client := strapi.NewClient(strapi.Options{
		BaseURL:            cfg.StrapiURL(),
		RequestTimeout:     cfg.RequestTimeout,
		HealthCacheTTL:     cfg.HealthCacheTTL,
		HealthPollInterval: cfg.HealthPollInterval,
		TokenReuseWindow:   cfg.TokenReuseWindow,
		MaxRetries:         retryLimit(cfg.MaxRetries),
		Admin: strapi.Identity{
			Email:     cfg.SuperUserEmail,
			Password:  cfg.SuperUserPassword,
			FirstName: cfg.SuperUserFirstname,
			LastName:  cfg.SuperUserLastname,
		},
		Cipher: cipher,
		Logger: log.Named("strapi"),
	})

	engine, err := mirror.NewEngine(client, medusa.New(db.DB, log.Named("medusa")), g, mirror.Options{
		ServiceUser: strapi.Identity{
			Email:    cfg.DefaultUserEmail,
			Username: cfg.DefaultUserUsername,
			Password: cfg.DefaultUserPassword,
		},
		FieldOverrides:   cfg.FieldOverrides,
		BulkSyncPath:     cfg.BulkSyncPath,
		BulkSyncTimeout:  cfg.BulkSyncTimeout,
		MedusaBackendURL: cfg.MedusaBackendURL,
	}, log)
	if err != nil {
		g.Close()
		db.Close()
		return nil, fmt.Errorf("failed to build sync engine: %w", err)
	}

	return &App{DB: db, Guard: g, Client: client, Engine: engine}, nil
}

// retryLimit maps the configured retry count onto the client, where zero
// selects the default and a negative value disables retries.
func retryLimit(configured int) int {
	if configured == 0 {
		return -1
	}
	return configured
}

// Bootstrap provisions the accounts and starts the bulk sync when both
// identities are configured. It is skipped otherwise.
func (a *App) Bootstrap(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.SuperUserEmail == "" || cfg.DefaultUserEmail == "" {
		log.Warn("Skipping bootstrap: super user or default user email not configured")
		a.Engine.SkipBootstrap()
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.BulkSyncTimeout)
	defer cancel()
	return a.Engine.Bootstrap(ctx)
}

func (a *App) Close() error {
	return errors.Join(a.Guard.Close(), a.DB.Close())
}
