package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

// Config holds the sandbox backend settings.
type Config struct {
	Port              string
	JWTSecret         string
	AppEnv            string
	LogLevel          string
	MetricsEnabled    bool
	SeedDemoData      bool
	SendRatePerSecond float64
	SendBurst         int
}

// ClientConfig holds the settings of one authenticated client session.
type ClientConfig struct {
	APIBaseURL       string
	SocketURL        string
	AuthToken        string
	UserID           string
	Role             models.Role
	AppEnv           string
	LogLevel         string
	ConnectTimeout   time.Duration
	SendTimeout      time.Duration
	RequestTimeout   time.Duration
	MessageFilter    string
	NotificationPoll time.Duration
	Reconnect        ReconnectConfig
}

type ReconnectConfig struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	Jitter      float64
	MaxAttempts int
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
}

func LoadConfig() (*Config, error) {
	loadDotEnv()

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		JWTSecret:         jwtSecret,
		AppEnv:            normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		SeedDemoData:      getEnvBool("SEED_DEMO_DATA", false),
		SendRatePerSecond: getEnvFloat("SEND_RATE_PER_SECOND", 5),
		SendBurst:         getEnvInt("SEND_BURST", 10),
	}, nil
}

func LoadClientConfig() (*ClientConfig, error) {
	loadDotEnv()

	baseURL := strings.TrimRight(getEnv("API_BASE_URL", ""), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	token := getEnv("AUTH_TOKEN", "")
	if token == "" {
		return nil, fmt.Errorf("AUTH_TOKEN is required")
	}
	role := models.Role(strings.ToLower(strings.TrimSpace(getEnv("USER_ROLE", ""))))
	if !role.Valid() {
		return nil, fmt.Errorf("USER_ROLE must be coach or member")
	}

	socketURL := getEnv("SOCKET_URL", "")
	if socketURL == "" {
		derived, err := DeriveSocketURL(baseURL)
		if err != nil {
			return nil, err
		}
		socketURL = derived
	}

	filter := strings.ToLower(getEnv("MESSAGE_FILTER", "role"))
	if filter != "role" && filter != "peer" {
		return nil, fmt.Errorf("MESSAGE_FILTER must be role or peer")
	}

	return &ClientConfig{
		APIBaseURL:       baseURL,
		SocketURL:        socketURL,
		AuthToken:        token,
		UserID:           getEnv("USER_ID", ""),
		Role:             role,
		AppEnv:           normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ConnectTimeout:   getEnvDuration("CONNECT_TIMEOUT", 10*time.Second),
		SendTimeout:      getEnvDuration("SEND_TIMEOUT", 5*time.Second),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		MessageFilter:    filter,
		NotificationPoll: getEnvDuration("NOTIFICATION_POLL_INTERVAL", 30*time.Second),
		Reconnect: ReconnectConfig{
			Initial:     getEnvDuration("RECONNECT_INITIAL", 500*time.Millisecond),
			Max:         getEnvDuration("RECONNECT_MAX", 30*time.Second),
			Multiplier:  getEnvFloat("RECONNECT_MULTIPLIER", 2),
			Jitter:      getEnvFloat("RECONNECT_JITTER", 0.2),
			MaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 0),
		},
	}, nil
}

// DeriveSocketURL maps http(s)://host/base to ws(s)://host/base/ws.
func DeriveSocketURL(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse API_BASE_URL: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported API_BASE_URL scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/ws"
	return parsed.String(), nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

func (c *ClientConfig) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
