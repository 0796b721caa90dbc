// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings.
type Config struct {
	Port          int
	Source        string
	OutputDir     string
	DBPath        string
	ModelEndpoint string
	PlateEndpoint string
	ConfThreshold float64
	FPS           int
	FrameWidth    int
	FrameHeight   int
	AuthEnabled   bool
	AuthUsername  string
	AuthPassword  string
	JWTSecret     string
	JWTExpiry     string

	TelegramEnabled  bool
	TelegramBotToken string
	TelegramChatID   string
	TelegramCooldown int
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Config] Skipping .env: %v", err)
	}

	return &Config{
		Port:          getEnvAsInt("PORT", 8080),
		Source:        getEnv("VIDEO_SOURCE", "/dev/video0"),
		OutputDir:     getEnv("OUTPUT_DIR", filepath.Join(".", "violations")),
		DBPath:        getEnv("DB_PATH", filepath.Join(".", "trafficwatch.db")),
		ModelEndpoint: getEnv("MODEL_ENDPOINT", "http://localhost:8090"),
		PlateEndpoint: getEnv("PLATE_ENDPOINT", ""),
		ConfThreshold: getEnvAsFloat("CONF_THRESHOLD", 0.5),
		FPS:           getEnvAsInt("CAPTURE_FPS", 10),
		FrameWidth:    getEnvAsInt("FRAME_WIDTH", 1280),
		FrameHeight:   getEnvAsInt("FRAME_HEIGHT", 720),
		AuthEnabled:   getEnv("AUTH_ENABLED", "") == "true",
		AuthUsername:  getEnv("AUTH_USERNAME", "admin"),
		AuthPassword:  getEnv("AUTH_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiry:     getEnv("JWT_EXPIRY", ""),

		TelegramEnabled:  getEnv("TELEGRAM_ENABLED", "") == "true",
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		TelegramCooldown: getEnvAsInt("TELEGRAM_COOLDOWN_SECONDS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
