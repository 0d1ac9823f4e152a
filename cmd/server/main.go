package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatstream-backend/internal/api"
	"chatstream-backend/internal/broker"
	"chatstream-backend/internal/config"
	"chatstream-backend/internal/crypto"
	"chatstream-backend/internal/handlers"
	"chatstream-backend/internal/services"
	"chatstream-backend/internal/store/postgres"
	"chatstream-backend/internal/tools"
	"chatstream-backend/internal/upstream"
)

func main() {
	log.Println("Starting chatstream backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatalf("FATAL: Unable to ping database: %v\n", err)
	}
	log.Println("Database connection pool established and pinged successfully.")

	// 3. Initialize Dependencies (Store, Services, Handlers)
	pgStore := postgres.NewPostgresStore(dbpool)
	log.Println("Postgres store initialized.")

	aead, err := crypto.NewAESGCM(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("FATAL: Failed to create AES-GCM cipher: %v", err)
	}
	log.Println("AES-GCM cipher initialized.")

	// --- Upstream generation client ---
	upstreamClient := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, cfg.UpstreamModel)
	log.Printf("Upstream client initialized (model %s).", cfg.UpstreamModel)

	// --- Tool capability providers ---
	googleTools := tools.NewGoogleTools(pgStore, aead)
	notionTools := tools.NewNotionTools(cfg.NotionSecret)
	slackTools := tools.NewSlackTools(cfg.SlackBotToken, cfg.SlackChannelID)
	if notionTools != nil {
		verifyCtx, verifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := notionTools.Verify(verifyCtx); err != nil {
			log.Printf("WARN: Notion integration disabled: %v", err)
			notionTools = nil
		}
		verifyCancel()
	}

	var brokerDial services.BrokerDialer
	if cfg.ToolBrokerURL != "" {
		brokerURL := cfg.ToolBrokerURL
		brokerDial = func(ctx context.Context) (services.ToolSession, error) {
			return broker.Dial(ctx, brokerURL)
		}
		log.Printf("Tool broker configured at %s.", brokerURL)
	}

	// --- Initialize Services ---
	authService := services.NewAuthService(pgStore, cfg)
	log.Println("AuthService initialized.")
	documentService := services.NewDocumentService(pgStore)
	log.Println("DocumentService initialized.")
	chatService := services.NewChatService(services.ChatServiceConfig{
		Store:         pgStore,
		Generator:     services.UpstreamGenerator{Client: upstreamClient},
		Google:        googleTools,
		Notion:        notionTools,
		Slack:         slackTools,
		Retriever:     documentService,
		BrokerDial:    brokerDial,
		HistoryWindow: cfg.HistoryWindow,
	})
	log.Println("ChatService initialized.")

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService, cfg.TokenExpiration, cfg.SecureCookies)
	chatHandler := handlers.NewChatHandlers(chatService)
	documentHandler := handlers.NewDocumentHandlers(documentService)

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:     authHandler,
		ChatHandler:     chatHandler,
		DocumentHandler: documentHandler,
		Config:          cfg,
	})
	log.Println("HTTP router configured.")

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// WriteTimeout stays 0: the stream endpoint holds the response
		// open for the whole generation.
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
		log.Fatal("Forcing shutdown due to error.")
	}

	log.Println("Server shutdown complete.")
}
