package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"path-backend/infrastructure/config"
	"path-backend/infrastructure/di"
	"path-backend/infrastructure/persistence/dynamodb"
)

// migrate prepares the configured storage backend: it creates the DynamoDB
// table (the SQLite schema is applied on open) and registers points.
func main() {
	points := flag.String("points", "", "comma separated point ids to register")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *points != "" {
		cfg.SeedPoints = append(cfg.SeedPoints, strings.Split(*points, ",")...)
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.StorageBackend == config.BackendDynamoDB {
		awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to load AWS configuration", zap.Error(err))
		}
		if err := dynamodb.CreateTable(ctx, di.ProvideDynamoDBClient(awsCfg, cfg), cfg.DynamoDBTable); err != nil {
			logger.Fatal("Failed to create table", zap.String("table", cfg.DynamoDBTable), zap.Error(err))
		}
		logger.Info("Table ready", zap.String("table", cfg.DynamoDBTable))
	}

	// Opening the backend applies the SQLite schema and registers the points
	_, cleanup, err := di.InitializeBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to prepare storage", zap.Error(err))
	}
	cleanup()

	logger.Info("Migration complete",
		zap.String("backend", cfg.StorageBackend),
		zap.Strings("points", cfg.SeedPoints),
	)
}
