package main

import (
	"context"
	"log"
	"os"

	"github.com/tvloc02/EventVer1-sub001/shared/config"
	"github.com/tvloc02/EventVer1-sub001/shared/database"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

// reset-db drops every auth table (or the Mongo database). Redis session
// state is left alone; it expires on its own.
func main() {
	log.Println("starting database reset...")

	cfg := config.LoadConfig()
	ctx := context.Background()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	cfg.Report(context.Background(), logger)

	if cfg.DBDriver == "mongo" {
		client, err := database.ConnectMongo(ctx, cfg.MongoURI, logger)
		if err != nil {
			log.Fatalf("failed to connect to MongoDB: %v", err)
		}
		defer client.Disconnect(context.Background())
		if err := client.Database(cfg.MongoDB).Drop(ctx); err != nil {
			log.Fatalf("failed to drop database %s: %v", cfg.MongoDB, err)
		}
		log.Printf("database reset completed - %s dropped", cfg.MongoDB)
		return
	}

	db, err := database.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close(db)

	log.Println("dropping all tables...")
	if err := database.Reset(db); err != nil {
		log.Fatalf("reset failed: %v", err)
	}

	log.Println("database reset completed - all tables dropped!")
	log.Println("run 'make seed' to recreate tables and seed data")
}
