package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadENV loads variables from .env unless GO_ENV says otherwise.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(); err != nil {
			return err
		}
	}

	return nil
}

// Config holds every environment-driven setting. It is built once at
// process start and passed into component constructors.
type Config struct {
	GoEnv string
	Port  int

	// Database
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string
	DBSSLMode  string

	// Object storage (MinIO / S3-compatible)
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioRegion        string
	MinioBucketPending string
	MinioBucketKB      string

	// RAGFlow
	RagflowBaseURL    string
	RagflowAPIKey     string
	RagflowHostHeader string

	// Redis (optional; empty disables caching)
	RedisURL string

	// Auth behaviour. Plaintext comparison is a development convenience
	// and stays off unless explicitly enabled.
	AllowPlaintextPasswords bool
}

func Get() (*Config, error) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	pendingBucket := os.Getenv("MINIO_BUCKET_PENDING")
	if pendingBucket == "" {
		pendingBucket = "pending"
	}

	kbBucket := os.Getenv("MINIO_BUCKET_KB")
	if kbBucket == "" {
		kbBucket = "knowledge"
	}

	ragflowBaseURL := os.Getenv("RAGFLOW_BASE_URL")
	if ragflowBaseURL == "" {
		ragflowBaseURL = "http://localhost:8080"
	}

	cfg := &Config{
		GoEnv: os.Getenv("GO_ENV"),
		Port:  port,

		DBUser:     os.Getenv("DB_USER_NAME"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBHost:     dbHost,
		DBPort:     dbPort,
		DBSSLMode:  os.Getenv("DB_SSL_MODE"),

		MinioEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinioRegion:        os.Getenv("MINIO_REGION"),
		MinioBucketPending: pendingBucket,
		MinioBucketKB:      kbBucket,

		RagflowBaseURL:    ragflowBaseURL,
		RagflowAPIKey:     os.Getenv("RAGFLOW_API_KEY"),
		RagflowHostHeader: os.Getenv("RAGFLOW_HOST_HEADER"),

		RedisURL: os.Getenv("REDIS_URL"),

		AllowPlaintextPasswords: os.Getenv("AUTH_ALLOW_PLAINTEXT") == "true",
	}

	return cfg, nil
}
