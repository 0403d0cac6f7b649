package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sealdrop-api/internal/config"
	"github.com/sealdrop-api/internal/infrastructure/dynamo"
	"github.com/sealdrop-api/internal/infrastructure/google"
	jwtinfra "github.com/sealdrop-api/internal/infrastructure/jwt"
	"github.com/sealdrop-api/internal/infrastructure/lemonsqueezy"
	s3infra "github.com/sealdrop-api/internal/infrastructure/s3"
	"github.com/sealdrop-api/internal/infrastructure/smtp"
	"github.com/sealdrop-api/internal/infrastructure/sns"
	"github.com/sealdrop-api/internal/logging"
	transporthttp "github.com/sealdrop-api/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	if _, err := logging.New(cfg.LogLevel, cfg.LogFormat, nil); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		fatal("dynamodb client", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		fatal("jwt provider", err)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		fatal("s3 client", err)
	}

	events, err := sns.NewPublisher(ctx, cfg)
	if err != nil {
		fatal("sns publisher", err)
	}

	if cfg.GoogleClientID == "" {
		slog.Warn("GOOGLE_CLIENT_ID not set, Google sign-in is disabled")
	}
	if cfg.CronSecret == "" {
		slog.Warn("CRON_SECRET not set, the cleanup endpoint rejects every request")
	}

	deps := &transporthttp.Deps{
		ProfileRepo:      dynamo.NewProfileRepo(dynamoClient, cfg.DynamoTables.Profiles),
		OrganizationRepo: dynamo.NewOrganizationRepo(dynamoClient, cfg.DynamoTables.Organizations),
		SessionRepo:      dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		DeliveryRepo:     dynamo.NewDeliveryRepo(dynamoClient, cfg.DynamoTables),
		AccessCodeRepo:   dynamo.NewAccessCodeRepo(dynamoClient, cfg.DynamoTables.AccessCodes),
		InvitationRepo:   dynamo.NewInvitationRepo(dynamoClient, cfg.DynamoTables.Invitations),
		SubscriptionRepo: dynamo.NewSubscriptionRepo(dynamoClient, cfg.DynamoTables.Subscriptions),
		EarlyAdopterRepo: dynamo.NewEarlyAdopterRepo(dynamoClient, cfg.DynamoTables.EarlyAdopter),
		WaitlistRepo:     dynamo.NewWaitlistRepo(dynamoClient, cfg.DynamoTables.Waitlist),
		S3Store:          s3infra.NewStore(s3Client, cfg.S3BucketName),
		Messages:         smtp.NewMessages(smtp.NewMailer(cfg), cfg.AppURL),
		Events:           events,
		JWTProvider:      jwtProvider,
		Google:           google.NewVerifier(cfg.GoogleClientID),
		Payments:         lemonsqueezy.NewClient(cfg),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal("forced shutdown", err)
	}
	slog.Info("server stopped")
}

func fatal(what string, err error) {
	slog.Error(what, "err", err)
	os.Exit(1)
}
