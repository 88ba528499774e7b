package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	LogLevel         string
	ServerRunAddress string
	DatabaseURI      string

	// APIBaseURL is the root of the upstream admin REST API, without the /admin suffix.
	APIBaseURL string
	// LoginRoute is where the front end is sent after any 401.
	LoginRoute string

	SessionSecret  string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	SearchDebounce time.Duration

	ImageMaxWidth  int
	ImageQuality   int
	ImageMaxBytes  int64
	ImageMaxPixels int64
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	LogLevel = os.Getenv("LOG_LEVEL")
	if LogLevel == "" {
		LogLevel = "info"
	}

	ServerRunAddress = os.Getenv("SERVER_RUN_ADDRESS")
	if ServerRunAddress == "" {
		ServerRunAddress = "0.0.0.0:8080"
	}

	DatabaseURI = os.Getenv("DATABASE_URI")
	if DatabaseURI == "" {
		DatabaseURI = "host=db user=postgres password=password dbname=console sslmode=disable"
	}

	APIBaseURL = os.Getenv("API_BASE_URL")
	if APIBaseURL == "" {
		APIBaseURL = "http://localhost:8000/api"
	}

	LoginRoute = os.Getenv("LOGIN_ROUTE")
	if LoginRoute == "" {
		LoginRoute = "/login"
	}

	SessionSecret = os.Getenv("SESSION_SECRET")
	if SessionSecret == "" {
		SessionSecret = "console-development-secret"
	}

	SessionTTL = durationEnv("SESSION_TTL", 8*time.Hour)
	RequestTimeout = durationEnv("REQUEST_TIMEOUT", 10*time.Second)
	SearchDebounce = durationEnv("SEARCH_DEBOUNCE", 500*time.Millisecond)

	ImageMaxWidth = intEnv("IMAGE_MAX_WIDTH", 800)
	ImageQuality = intEnv("IMAGE_QUALITY", 70)
	ImageMaxBytes = int64(intEnv("IMAGE_MAX_BYTES", 5<<20))
	ImageMaxPixels = int64(intEnv("IMAGE_MAX_PIXELS", 40_000_000))
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}
