// Command cleanup runs one expiry and purge pass over deliveries and exits.
// It is meant to be started by an external scheduler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sealdrop-api/internal/application/cleanup"
	"github.com/sealdrop-api/internal/config"
	"github.com/sealdrop-api/internal/infrastructure/dynamo"
	s3infra "github.com/sealdrop-api/internal/infrastructure/s3"
	"github.com/sealdrop-api/internal/infrastructure/sns"
	"github.com/sealdrop-api/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if _, err := logging.New(cfg.LogLevel, cfg.LogFormat, nil); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("cleanup failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dynamodb client: %w", err)
	}
	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}
	events, err := sns.NewPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("sns publisher: %w", err)
	}

	svc := cleanup.NewService(
		dynamo.NewDeliveryRepo(dynamoClient, cfg.DynamoTables),
		s3infra.NewStore(s3Client, cfg.S3BucketName),
		events,
	)
	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(report)
}
