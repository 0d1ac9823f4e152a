package config

import (
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	HTTPPort        string
	TokenExpiration time.Duration
	EncryptionKey   []byte // Raw key bytes (32 for AES-256), encrypts linked account tokens at rest

	// Upstream generation adapter
	UpstreamBaseURL string
	UpstreamAPIKey  string
	UpstreamModel   string

	// Tool broker (optional; empty disables remote tool loading)
	ToolBrokerURL string

	// Number of prior messages loaded as prompt context
	HistoryWindow int

	// Optional tool capability credentials
	SlackBotToken  string
	SlackChannelID string
	NotionSecret   string

	// Marks auth cookies Secure; enable behind TLS
	SecureCookies bool
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file (useful for development)
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
		// Don't fail if .env is not present, might be in production
	}

	port := getEnv("HTTP_PORT", "8080")
	jwtSecret := getEnv("JWT_SECRET", "default-super-secret-key") // CHANGE THIS IN PRODUCTION!
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set.")
	}

	tokenExpStr := getEnv("JWT_EXPIRATION_HOURS", "168") // Default 7 days
	tokenExpHours, err := strconv.Atoi(tokenExpStr)
	if err != nil {
		log.Printf("Warning: Invalid JWT_EXPIRATION_HOURS '%s', using default 168h. Error: %v", tokenExpStr, err)
		tokenExpHours = 168
	}

	// Load and decode the Encryption Key (MUST be 64 hex characters for 32 bytes)
	encryptionKeyHex := getEnv("ENCRYPTION_KEY", "")
	if encryptionKeyHex == "" {
		log.Fatal("FATAL: ENCRYPTION_KEY environment variable is not set.")
	}
	encryptionKeyBytes, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		log.Fatalf("FATAL: Failed to decode ENCRYPTION_KEY from hex: %v", err)
	}
	if len(encryptionKeyBytes) != 32 {
		log.Fatalf("FATAL: ENCRYPTION_KEY must be 32 bytes (64 hex characters) long, got %d bytes", len(encryptionKeyBytes))
	}

	upstreamBaseURL := getEnv("UPSTREAM_BASE_URL", "https://openrouter.ai/api/v1")
	upstreamAPIKey := getEnv("UPSTREAM_API_KEY", "")
	if upstreamAPIKey == "" {
		log.Fatal("FATAL: UPSTREAM_API_KEY environment variable is not set.")
	}
	upstreamModel := getEnv("UPSTREAM_MODEL", "google/gemini-2.0-flash-001")

	historyStr := getEnv("HISTORY_WINDOW", "10")
	historyWindow, err := strconv.Atoi(historyStr)
	if err != nil || historyWindow < 0 {
		log.Printf("Warning: Invalid HISTORY_WINDOW '%s', using default 10.", historyStr)
		historyWindow = 10
	}

	cfg := &Config{
		HTTPPort:        port,
		JWTSecret:       jwtSecret,
		DatabaseURL:     dbURL,
		TokenExpiration: time.Hour * time.Duration(tokenExpHours),
		EncryptionKey:   encryptionKeyBytes,
		UpstreamBaseURL: upstreamBaseURL,
		UpstreamAPIKey:  upstreamAPIKey,
		UpstreamModel:   upstreamModel,
		ToolBrokerURL:   getEnv("TOOL_BROKER_URL", ""),
		HistoryWindow:   historyWindow,
		SlackBotToken:   getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:  getEnv("SLACK_CHANNEL_ID", ""),
		NotionSecret:    getEnv("NOTION_INTEGRATION_SECRET", ""),
		SecureCookies:   getEnv("COOKIE_SECURE", "false") == "true",
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, TokenExp=%s, Upstream=%s model=%s, HistoryWindow=%d",
		cfg.HTTPPort, cfg.TokenExpiration, cfg.UpstreamBaseURL, cfg.UpstreamModel, cfg.HistoryWindow)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
