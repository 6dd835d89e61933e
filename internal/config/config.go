package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string

	HTTPPort    string
	FrontendURL string
	LogLevel    string

	ModelRunnerURL   string
	VisionEncoderURL string
	GeminiAPIKey     string // optional, enables image captioning

	EmbeddingDim     int
	MaxNewTokens     int
	MaxContextLength int
	TopP             float64
	Temperature      float64
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		PGHost:     getEnv("PGHOST", "localhost"),
		PGPort:     getEnv("PGPORT", "5432"),
		PGUser:     getEnv("PGUSER", "postgres"),
		PGPassword: getEnv("PGPASSWORD", "password"),
		PGDatabase: getEnv("PGDATABASE", "minigpt4"),

		HTTPPort:    getEnv("HTTP_PORT", "8000"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		ModelRunnerURL:   getEnv("MODEL_RUNNER_URL", "http://localhost:9090"),
		VisionEncoderURL: getEnv("VISION_ENCODER_URL", "http://localhost:9091"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),

		EmbeddingDim:     getEnvAsInt("EMBEDDING_DIM", 512),
		MaxNewTokens:     getEnvAsInt("MAX_NEW_TOKENS", 300),
		MaxContextLength: getEnvAsInt("MAX_CONTEXT_LENGTH", 2000),
		TopP:             getEnvAsFloat("TOP_P", 0.9),
		Temperature:      getEnvAsFloat("TEMPERATURE", 1.2),
	}

	if AppConfig.ModelRunnerURL == "" {
		log.Fatal("MODEL_RUNNER_URL environment variable is required")
	}

	if AppConfig.VisionEncoderURL == "" {
		log.Fatal("VISION_ENCODER_URL environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
