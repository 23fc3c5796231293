package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// RabbitMQ
	QueueHost        string
	QueuePort        int
	QueueVirtualHost string
	QueueUsername    string
	QueuePassword    string

	QueueTransStatus string
	QueueEmail       string
	QueueSMS         string
	QueueRequest     string

	// Currency scheduler
	UpdateHours []int
	Timezone    string
	Location    *time.Location

	// SMTP
	MailServer        string
	MailPort          int
	MailUsername      string
	MailPassword      string
	MailDefaultSender string

	// Internal APIs
	AdminBaseURL  string
	ClientBaseURL string

	// Auth
	AuthKey           string
	AuthAlgorithm     string
	AuthTokenLifetime time.Duration
	AuthSystemUserID  string

	// Storage
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	SubscribersCacheTTL time.Duration

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	// HTTP rate limiting
	RLEnabled  bool
	RLIPLimit  int
	RLIPWindow time.Duration

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Env = getEnv("APP_ENV", "dev")
	cfg.Port = getInt("PORT", 7461)

	cfg.QueueHost = getEnv("QUEUE_HOST", "127.0.0.1")
	cfg.QueuePort = getInt("QUEUE_PORT", 5672)
	cfg.QueueVirtualHost = getEnv("QUEUE_VIRTUAL_HOST", "/xopay")
	cfg.QueueUsername = getEnv("QUEUE_USERNAME", "xopay_rabbit")
	cfg.QueuePassword = getEnv("QUEUE_PASSWORD", "")

	cfg.QueueTransStatus = getEnv("QUEUE_TRANS_STATUS", "transactions_status")
	cfg.QueueEmail = getEnv("QUEUE_EMAIL", "notify_email")
	cfg.QueueSMS = getEnv("QUEUE_SMS", "notify_sms")
	cfg.QueueRequest = getEnv("QUEUE_REQUEST", "notify_request")

	hours, err := parseHours(getEnv("UPDATE_HOURS", "0,6,12,18"))
	if err != nil {
		return nil, err
	}
	cfg.UpdateHours = hours

	cfg.Timezone = getEnv("TIMEZONE", "Europe/Riga")
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bad TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.MailServer = getEnv("MAIL_SERVER", "smtp.gmail.com")
	cfg.MailPort = getInt("MAIL_PORT", 587)
	cfg.MailUsername = getEnv("MAIL_USERNAME", "")
	cfg.MailPassword = getEnv("MAIL_PASSWORD", "")
	cfg.MailDefaultSender = getEnv("MAIL_DEFAULT_SENDER", cfg.MailUsername)

	cfg.AdminBaseURL = strings.TrimRight(getEnv("ADMIN_BASE_URL", "http://127.0.0.1:7128/api/admin/dev"), "/")
	cfg.ClientBaseURL = strings.TrimRight(getEnv("CLIENT_BASE_URL", "http://127.0.0.1:7254/api/client/dev"), "/")

	cfg.AuthKey = strings.TrimSpace(os.Getenv("AUTH_KEY"))
	if cfg.AuthKey == "" {
		return nil, fmt.Errorf("missing required env var: AUTH_KEY")
	}
	cfg.AuthAlgorithm = getEnv("AUTH_ALGORITHM", "HS512")
	cfg.AuthTokenLifetime = getDuration("AUTH_TOKEN_LIFETIME", 30*time.Minute)
	cfg.AuthSystemUserID = getEnv("AUTH_SYSTEM_USER_ID", "xopay.notify")

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing required env var: DATABASE_URL")
	}

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)
	cfg.SubscribersCacheTTL = getDuration("SUBSCRIBERS_CACHE_TTL", 5*time.Minute)

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")
	cfg.LogFile = getEnv("LOG_FILE", "")
	cfg.LogMaxSizeMB = getInt("LOG_MAX_SIZE_MB", 100)
	cfg.LogMaxBackups = getInt("LOG_MAX_BACKUPS", 5)

	cfg.RLEnabled = getBool("RL_ENABLED", false)
	cfg.RLIPLimit = getInt("RL_IP_LIMIT", 60)
	cfg.RLIPWindow = getDuration("RL_IP_WINDOW", time.Minute)

	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second)

	return cfg, nil
}

// AMQPURL assembles the broker URI; the virtual host is path-escaped so
// names like "/xopay" survive.
func (c *Config) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		url.QueryEscape(c.QueueUsername),
		url.QueryEscape(c.QueuePassword),
		c.QueueHost,
		c.QueuePort,
		url.PathEscape(c.QueueVirtualHost),
	)
}

func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func parseHours(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	seen := make(map[int]bool, len(parts))
	hours := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		h, err := strconv.Atoi(p)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("bad UPDATE_HOURS entry %q: must be 0..23", p)
		}
		if !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
	}
	if len(hours) == 0 {
		return nil, fmt.Errorf("UPDATE_HOURS must name at least one hour")
	}
	sort.Ints(hours)
	return hours, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
