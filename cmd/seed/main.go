package main

import (
	"context"
	"log"
	"os"

	"github.com/tvloc02/EventVer1-sub001/shared/accounts"
	"github.com/tvloc02/EventVer1-sub001/shared/config"
	"github.com/tvloc02/EventVer1-sub001/shared/database"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
)

// seed migrates the account tables and creates the super admin from
// SUPER_ADMIN_EMAIL and SUPER_ADMIN_PASSWORD.
func main() {
	log.Println("starting database seeding...")

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.SuperAdminPassword == "" {
		log.Fatal("SUPER_ADMIN_PASSWORD is required")
	}

	ctx := context.Background()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	cfg.Report(context.Background(), logger)

	var store accounts.Store
	if cfg.DBDriver == "mongo" {
		client, err := database.ConnectMongo(ctx, cfg.MongoURI, logger)
		if err != nil {
			log.Fatalf("failed to connect to MongoDB: %v", err)
		}
		defer client.Disconnect(context.Background())
		db := client.Database(cfg.MongoDB)
		if err := database.EnsureMongoIndexes(ctx, db, logger); err != nil {
			log.Fatalf("failed to create indexes: %v", err)
		}
		store = accounts.NewMongoStore(db)
	} else {
		db, err := database.Open(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}
		defer database.Close(db)
		if err := database.Migrate(ctx, db, logger); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		store = accounts.NewGormStore(db)
	}

	svc, err := accounts.NewService(accounts.Config{
		Store: store,
		Issuer: token.NewIssuer(token.Options{
			AccessSecret:  []byte(cfg.JWTAccessSecret),
			RefreshSecret: []byte(cfg.JWTRefreshSecret),
			Issuer:        cfg.JWTIssuer,
			Audience:      cfg.JWTAudience,
		}),
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to build account service: %v", err)
	}

	created, err := svc.EnsureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword, "Super", "Admin")
	if err != nil {
		log.Fatalf("failed to create super admin: %v", err)
	}
	if !created {
		log.Printf("super admin %s already exists", cfg.SuperAdminEmail)
	}

	log.Println("database seeding completed successfully")
}
