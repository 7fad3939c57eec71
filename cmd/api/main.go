package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-shop-api/internal/application/reconcile"
	"github.com/go-shop-api/internal/config"
	"github.com/go-shop-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-shop-api/internal/infrastructure/jwt"
	"github.com/go-shop-api/internal/infrastructure/notify"
	"github.com/go-shop-api/internal/infrastructure/smtp"
	"github.com/go-shop-api/internal/infrastructure/sns"
	transporthttp "github.com/go-shop-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	orderRepo := dynamo.NewOrderRepo(dynamoClient, cfg.DynamoTables.Orders)
	reconcileSvc := reconcile.NewService(orderRepo, cfg.ConfirmGracePeriod)
	scheduler := reconcile.NewScheduler(reconcileSvc, cfg.ReconcileInterval)
	if cfg.ReconcileAutostart {
		scheduler.Start()
	}

	deps := &transporthttp.Deps{
		VerificationRepo: dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.VerificationCodes),
		Notifier:         notify.New(mailer, smsSender),
		Scheduler:        scheduler,
		JWTProvider:      jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop() // in-flight pass finishes; no new passes start

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
