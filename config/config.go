package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	StartURL        string
	PagesToScrape   int
	MaxConcurrency  int
	RateLimitMs     int
	MaxRetries      int
	ScraperMode     string
	ChromeBin       string
	ClassifyWorkers int

	StoreDriver      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string
	Collection       string
	Provenance       string
	WriteBatchSize   int

	OCREnabled   bool
	OCREndpoint  string
	OCRLang      string
	OCRMaxImages int
	OCRTimeout   time.Duration
	OCRRPS       float64

	StripTrackingOnly bool

	ExportS3Bucket     string
	ExportS3Region     string
	ExportS3Endpoint   string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	RawCSVPath string
	LogLevel   string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StartURL:        getEnv("START_URL", "https://www.labancaria.org/beneficios/"),
		PagesToScrape:   getEnvInt("PAGES_TO_SCRAPE", 5),
		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		ScraperMode:     strings.ToLower(getEnv("SCRAPER_MODE", "browser")),
		ChromeBin:       getEnv("CHROME_BIN", ""),
		ClassifyWorkers: getEnvInt("CLASSIFY_WORKERS", 8),

		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "beneficios_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./output/beneficios.db"),
		Collection:       getEnv("COLLECTION", "beneficios"),
		Provenance:       getEnv("PROVENANCE", "bulk-upload"),
		WriteBatchSize:   getEnvInt("WRITE_BATCH_SIZE", 400),

		OCREnabled:   getEnvBool("OCR_ENABLED", false),
		OCREndpoint:  getEnv("OCR_ENDPOINT", "http://localhost:8884/ocr"),
		OCRLang:      getEnv("OCR_LANG", "spa+eng"),
		OCRMaxImages: getEnvInt("OCR_MAX_IMAGES", 3),
		OCRTimeout:   getEnvDuration("OCR_TIMEOUT", 30*time.Second),
		OCRRPS:       getEnvFloat("OCR_RPS", 2),

		StripTrackingOnly: getEnvBool("STRIP_TRACKING_ONLY", false),

		ExportS3Bucket:     getEnv("EXPORT_S3_BUCKET", ""),
		ExportS3Region:     getEnv("EXPORT_S3_REGION", "us-east-1"),
		ExportS3Endpoint:   getEnv("EXPORT_S3_ENDPOINT", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		RawCSVPath: getEnv("RAW_CSV_PATH", "./output/raw_signals.csv"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// StoreDSN returns the data source name matching StoreDriver.
func (c *Config) StoreDSN() string {
	if c.StoreDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.DSN()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
