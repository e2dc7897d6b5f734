package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	MongoURI     string
	DBName       string
	Port         string
	StoreBackend string
	LogMode      string

	SerpAPIKey       string
	SerpAPIEndpoint  string
	ShoppingEngine   string
	ShoppingRegion   string
	ShoppingLang     string
	ShoppingLocation string

	SearchTimeout     time.Duration
	SearchMaxAttempts int
	SearchBackoffBase time.Duration
	SearchResultsHint int
	SearchMaxResults  int
	SearchMode        string
	SearchRatePerSec  float64
	SearchBreaker     bool

	EnrichConcurrency int

	CacheRedisAddr string
	CacheTTL       time.Duration

	GeminiAPIKey string
	GeminiModel  string

	AWSRegion     string
	AWSBucketName string

	SendGridAPIKey  string
	NotifyFromEmail string

	JWTSecret string

	InspectLinks           bool
	InspectBrowserFallback bool
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	MongoURI = getString("MONGO_URI", "mongodb://localhost:27017/")
	DBName = getString("DB_NAME", "fitly")
	Port = getString("PORT", "8080")
	StoreBackend = strings.ToLower(getString("STORE_BACKEND", "mongo"))
	LogMode = getString("LOG_MODE", "dev")

	SerpAPIKey = os.Getenv("SERPAPI_KEY")
	SerpAPIEndpoint = getString("SERPAPI_ENDPOINT", "https://serpapi.com/search.json")
	ShoppingEngine = getString("SHOPPING_ENGINE", "google_shopping")
	ShoppingRegion = getString("SHOPPING_REGION", "ae")
	ShoppingLang = getString("SHOPPING_LANG", "en")
	ShoppingLocation = os.Getenv("SHOPPING_LOCATION")

	SearchTimeout = getDuration("SEARCH_TIMEOUT", 20*time.Second)
	SearchMaxAttempts = getInt("SEARCH_MAX_ATTEMPTS", 3)
	SearchBackoffBase = getDuration("SEARCH_BACKOFF_BASE", 700*time.Millisecond)
	SearchMode = strings.ToLower(getString("SEARCH_MODE", "one-shot"))
	SearchMaxResults = getInt("SEARCH_MAX_RESULTS", 1)
	// catalog mode asks the backend for a page of results, one-shot only needs the top hit
	defaultHint := 1
	if SearchMode == "catalog" {
		defaultHint = 10
	}
	SearchResultsHint = getInt("SEARCH_RESULTS_HINT", defaultHint)
	SearchRatePerSec = getFloat("SEARCH_RATE_PER_SEC", 0)
	SearchBreaker = getBool("SEARCH_BREAKER", true)

	EnrichConcurrency = getInt("ENRICH_CONCURRENCY", 4)

	CacheRedisAddr = os.Getenv("CACHE_REDIS_ADDR")
	CacheTTL = getDuration("CACHE_TTL", 6*time.Hour)

	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	GeminiModel = getString("GEMINI_MODEL", "gemini-1.5-flash")

	AWSRegion = os.Getenv("AWS_REGION")
	AWSBucketName = os.Getenv("AWS_BUCKET_NAME")

	SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	NotifyFromEmail = getString("NOTIFY_FROM_EMAIL", "no-reply@tryonfusion.com")

	JWTSecret = os.Getenv("JWT_SECRET")

	InspectLinks = getBool("INSPECT_LINKS", false)
	InspectBrowserFallback = getBool("INSPECT_BROWSER_FALLBACK", false)
}

func getString(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func getInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", name, v, def)
		return def
	}
	return i
}

func getFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using %v", name, v, def)
		return def
	}
	return f
}

func getBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %v", name, v, def)
		return def
	}
	return b
}

// getDuration accepts Go duration strings ("700ms") or plain seconds ("20").
func getDuration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	log.Printf("Invalid %s=%q, using %v", name, v, def)
	return def
}
