// package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// bot
	BotToken       string
	AdminIDs       []int64
	AllowedUserIDs []int64
	WebhookURL     string
	WebhookListen  string
	PollTimeout    time.Duration

	// database
	DatabaseURL string

	// nats
	NatsURL string

	// telegram automation account
	TGApiID      int
	TGApiHash    string
	TGSessionStr string
	TGRPS        float64

	// invite campaigns
	DailyInviteLimit  int
	InviteDelay       time.Duration
	DeclineWaitDays   int
	InviteBatchSize   int
	InviteMaxAttempts int
	MaxFloodWait      time.Duration
	ProgressEvery     int
	// transient errors on one user are retried this many times with
	// exponential backoff starting at InviteRetryDelay
	InviteRetries    int
	InviteRetryDelay time.Duration

	// group search and member scraping
	SearchDelay    time.Duration
	SearchLimit    int
	ScrapeDelay    time.Duration
	ScrapePageSize int

	// subscription tiers
	LimitsFile string
	Tiers      Tiers

	// server
	HTTPPort int

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults. Required values are checked by Validate.
func Load() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:       getEnv("BOT_TOKEN", ""),
		AdminIDs:       getEnvInt64List("ADMIN_IDS"),
		AllowedUserIDs: getEnvInt64List("ALLOWED_USER_IDS"),
		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		WebhookListen:  getEnv("WEBHOOK_LISTEN", ":8443"),
		PollTimeout:    getEnvDuration("POLL_TIMEOUT", 30*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", "bot_database.db"),
		NatsURL:     getEnv("NATS_URL", ""),

		TGApiID:      getEnvInt("TG_API_ID", 0),
		TGApiHash:    getEnv("TG_API_HASH", ""),
		TGSessionStr: getEnv("TG_SESSION_STRING", ""),
		TGRPS:        getEnvFloat("TG_RPS", 2.0),

		DailyInviteLimit:  getEnvInt("DAILY_INVITE_LIMIT", 50),
		InviteDelay:       getEnvDuration("INVITE_DELAY", 3*time.Second),
		DeclineWaitDays:   getEnvInt("DECLINE_WAIT_DAYS", 30),
		InviteBatchSize:   getEnvInt("INVITE_BATCH_SIZE", 50),
		InviteMaxAttempts: getEnvInt("INVITE_MAX_ATTEMPTS", 3),
		MaxFloodWait:      getEnvDuration("MAX_FLOOD_WAIT", 5*time.Minute),
		ProgressEvery:     getEnvInt("PROGRESS_EVERY", 5),
		InviteRetries:     getEnvInt("INVITE_RETRIES", 2),
		InviteRetryDelay:  getEnvDuration("INVITE_RETRY_DELAY", 2*time.Second),

		SearchDelay:    getEnvDuration("SEARCH_DELAY", 2*time.Second),
		SearchLimit:    getEnvInt("SEARCH_LIMIT", 100),
		ScrapeDelay:    getEnvDuration("SCRAPE_DELAY", time.Second),
		ScrapePageSize: getEnvInt("SCRAPE_PAGE_SIZE", 200),

		LimitsFile: getEnv("LIMITS_FILE", ""),
		Tiers:      DefaultTiers(),

		HTTPPort: getEnvInt("HTTP_PORT", 3100),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "./logs/bot.log"),
	}

	if getEnvBool("DEBUG", false) {
		cfg.LogLevel = "debug"
	}

	if cfg.LimitsFile != "" {
		tiers, err := LoadTiers(cfg.LimitsFile)
		if err != nil {
			return nil, fmt.Errorf("load tier limits: %w", err)
		}
		cfg.Tiers = tiers
	}

	return cfg, nil
}

// Validate reports every missing required variable at once.
func (c *Config) Validate() error {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.TGApiID == 0 {
		missing = append(missing, "TG_API_ID")
	}
	if c.TGApiHash == "" {
		missing = append(missing, "TG_API_HASH")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.DailyInviteLimit <= 0 || c.InviteBatchSize <= 0 {
		return errors.New("DAILY_INVITE_LIMIT and INVITE_BATCH_SIZE must be positive")
	}
	return nil
}

// DeclineWait is DECLINE_WAIT_DAYS as a duration.
func (c *Config) DeclineWait() time.Duration {
	return time.Duration(c.DeclineWaitDays) * 24 * time.Hour
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("1m30s") or a bare number of seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}

// getEnvInt64List parses a comma separated list, skipping malformed entries.
func getEnvInt64List(key string) []int64 {
	var out []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
