package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/investours/backend/internal/audit"
	"github.com/investours/backend/internal/cache"
	"github.com/investours/backend/internal/config"
	"github.com/investours/backend/internal/database"
	"github.com/investours/backend/internal/handlers"
	"github.com/investours/backend/internal/jobs"
	"github.com/investours/backend/internal/routes"
	"github.com/investours/backend/internal/services/gfe"
	"github.com/investours/backend/internal/services/referral"
	"github.com/investours/backend/internal/services/wallet"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	store, err := cache.NewStore(cfg.Redis)
	if err != nil {
		log.Printf("redis unavailable, continuing without cache: %v", err)
		store = nil
	}
	defer store.Close()

	auditLogger := audit.NewLogger(db)
	wallets := wallet.NewService(db, auditLogger)
	graph := referral.NewGraphService(db)
	engine := referral.NewEngine(db, wallets, cfg.GFE.OnboardingBonus)
	gfeService := gfe.NewService(db, graph, wallets, store, auditLogger, cfg.GFE, cfg.FrontendURL)

	worker := jobs.NewWorker(db, engine, gfeService, wallets)
	if err := worker.Start(); err != nil {
		log.Fatalf("failed to start background worker: %v", err)
	}
	defer worker.Stop()

	gfeHandler := handlers.NewGFEHandler(db, gfeService, wallets)
	referralHandler := handlers.NewReferralHandler(graph, engine)
	adminHandler := handlers.NewAdminGFEHandler(gfeService, wallets, auditLogger)

	router := routes.SetupRouter(cfg, gfeHandler, referralHandler, adminHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
}
