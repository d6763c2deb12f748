package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	URL string
}

type SnapshotConfig struct {
	Dir string
}

// CrawlerConfig groups every knob of the fetch/walk pipeline. Delays are
// ranges; the effective sleep is drawn uniformly from them per event.
type CrawlerConfig struct {
	SearchURLs []string

	RequestsPerSecond float64
	JitterFactor      float64
	MaxRetries        int
	BackoffBase       time.Duration
	RequestTimeout    time.Duration

	ItemDelayMin time.Duration
	ItemDelayMax time.Duration
	PageDelayMin time.Duration
	PageDelayMax time.Duration

	InterURLDelayMin time.Duration
	InterURLDelayMax time.Duration

	// ResultsPerPageThreshold is the "last page" heuristic: a search page
	// yielding fewer links than this ends the walk.
	ResultsPerPageThreshold int

	// KeywordsPath optionally overrides the embedded feature keyword YAML.
	KeywordsPath string
}

type RESTConfig struct {
	Port string
}

type RabbitMQConfig struct {
	URL     string
	Enabled bool
}

type WebhookConfig struct {
	URL string
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

type StdoutLogConfig struct {
	Level string
}

// AppConfig holds the full application configuration.
type AppConfig struct {
	AppName      string
	Database     DatabaseConfig
	Snapshot     SnapshotConfig
	Crawler      CrawlerConfig
	Rest         RESTConfig
	RabbitMQ     RabbitMQConfig
	Webhook      WebhookConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
}

// LoadConfig reads configuration from environment variables, optionally
// preloading a .env file. A missing .env file is not an error; explicit env
// vars always win.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: could not load .env file (path: %v): %v", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "rental-ingest-service")

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.Snapshot.Dir = getEnvAsString("SNAPSHOT_DIR", "snapshots")

	rawURLs := os.Getenv("SEARCH_URLS")
	if rawURLs == "" {
		return nil, fmt.Errorf("SEARCH_URLS environment variable is required")
	}
	for _, u := range strings.Split(rawURLs, ",") {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			cfg.Crawler.SearchURLs = append(cfg.Crawler.SearchURLs, trimmed)
		}
	}
	if len(cfg.Crawler.SearchURLs) == 0 {
		return nil, fmt.Errorf("SEARCH_URLS contains no usable URLs")
	}

	cfg.Crawler.RequestsPerSecond = getEnvAsFloat("REQUESTS_PER_SECOND", 1.5)
	if cfg.Crawler.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("REQUESTS_PER_SECOND must be positive, got %f", cfg.Crawler.RequestsPerSecond)
	}
	cfg.Crawler.JitterFactor = getEnvAsFloat("REQUEST_JITTER_FACTOR", 0.5)
	cfg.Crawler.MaxRetries = getEnvAsInt("MAX_RETRIES", 3)
	cfg.Crawler.BackoffBase = getEnvAsMillis("BACKOFF_BASE_MS", 500*time.Millisecond)
	cfg.Crawler.RequestTimeout = getEnvAsMillis("REQUEST_TIMEOUT_MS", 20*time.Second)

	cfg.Crawler.ItemDelayMin = getEnvAsMillis("ITEM_DELAY_MIN_MS", 800*time.Millisecond)
	cfg.Crawler.ItemDelayMax = getEnvAsMillis("ITEM_DELAY_MAX_MS", 2200*time.Millisecond)
	cfg.Crawler.PageDelayMin = getEnvAsMillis("PAGE_DELAY_MIN_MS", 2*time.Second)
	cfg.Crawler.PageDelayMax = getEnvAsMillis("PAGE_DELAY_MAX_MS", 3500*time.Millisecond)
	cfg.Crawler.InterURLDelayMin = getEnvAsMillis("INTER_URL_DELAY_MIN_MS", 3*time.Second)
	cfg.Crawler.InterURLDelayMax = getEnvAsMillis("INTER_URL_DELAY_MAX_MS", 7*time.Second)

	cfg.Crawler.ResultsPerPageThreshold = getEnvAsInt("RESULTS_PER_PAGE_THRESHOLD", 10)
	cfg.Crawler.KeywordsPath = os.Getenv("KEYWORDS_PATH")

	cfg.Rest.Port = getEnvAsString("PORT", "8086")

	cfg.RabbitMQ.Enabled = getEnvAsBool("RABBITMQ_ENABLED", false)
	if cfg.RabbitMQ.Enabled {
		cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
		if cfg.RabbitMQ.URL == "" {
			log.Println("WARNING: RABBITMQ_ENABLED is true, but RABBITMQ_URL is not set. Disabling RabbitMQ reporting.")
			cfg.RabbitMQ.Enabled = false
		}
	}

	cfg.Webhook.URL = os.Getenv("WEBHOOK_URL")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")

	return cfg, nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueFloat, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %f", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueFloat
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	ms, err := strconv.Atoi(valueStr)
	if err != nil || ms < 0 {
		log.Printf("Warning: environment variable %s (value: %s) is not a valid millisecond count. Using default value: %s", key, valueStr, defaultValue)
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
