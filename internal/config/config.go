package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the coordinator process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Call      CallConfig
	Signaling SignalingConfig
	History   HistoryConfig
	DB        DBConfig
	Redis     RedisConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// CallConfig tunes the call session state machine.
//
// RingTimeout bounds how long a ringing state may persist without a signaling
// update before the session is force-terminated. EndedGrace is the short delay
// the "call ended" snapshot stays visible before the session is cleared; it is
// a UI affordance, not a correctness boundary.
type CallConfig struct {
	RingTimeout time.Duration
	EndedGrace  time.Duration
}

type SignalingConfig struct {
	// URL is the signaling server WebSocket endpoint (ws:// or wss://).
	URL string

	// TokenSecret signs the device token presented on the signaling handshake.
	TokenSecret string
	TokenTTL    time.Duration

	// UserID and DeviceID identify this client to the signaling server.
	UserID   string
	DeviceID string
}

// HistoryBackend selects the call history persistence implementation.
type HistoryBackend string

const (
	HistoryBackendMemory   HistoryBackend = "memory"
	HistoryBackendRedis    HistoryBackend = "redis"
	HistoryBackendPostgres HistoryBackend = "postgres"
)

type HistoryConfig struct {
	Backend HistoryBackend
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	// Durations are optional; defaults applied in Validate().
	c.Call.RingTimeout = mustDuration("RING_TIMEOUT")
	c.Call.EndedGrace = mustDuration("ENDED_GRACE")

	c.Signaling.URL = strings.TrimSpace(os.Getenv("SIGNALING_URL"))
	c.Signaling.TokenSecret = os.Getenv("SIGNALING_TOKEN_SECRET")
	c.Signaling.TokenTTL = mustDuration("SIGNALING_TOKEN_TTL")
	c.Signaling.UserID = strings.TrimSpace(os.Getenv("SIGNALING_USER_ID"))
	c.Signaling.DeviceID = strings.TrimSpace(os.Getenv("SIGNALING_DEVICE_ID"))

	c.History.Backend = HistoryBackend(strings.TrimSpace(os.Getenv("HISTORY_BACKEND")))

	// DB and Redis are only required when the matching history backend is selected.
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if v := strings.TrimSpace(os.Getenv("DB_PORT")); v != "" {
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if v := strings.TrimSpace(os.Getenv("REDIS_PORT")); v != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Call.RingTimeout <= 0 {
		// Typical mobile dialers give up after 30-60s.
		c.Call.RingTimeout = 45 * time.Second
	}
	if c.Call.EndedGrace <= 0 {
		c.Call.EndedGrace = 2 * time.Second
	}
	if c.Call.EndedGrace >= c.Call.RingTimeout {
		errs = append(errs, errors.New("ENDED_GRACE must be shorter than RING_TIMEOUT"))
	}

	if c.Signaling.URL == "" {
		errs = append(errs, errors.New("SIGNALING_URL is required"))
	} else if !strings.HasPrefix(c.Signaling.URL, "ws://") && !strings.HasPrefix(c.Signaling.URL, "wss://") {
		errs = append(errs, fmt.Errorf("SIGNALING_URL must be a ws:// or wss:// URL, got %q", c.Signaling.URL))
	}
	if c.Signaling.TokenSecret == "" {
		errs = append(errs, errors.New("SIGNALING_TOKEN_SECRET is required"))
	}
	if c.Signaling.TokenTTL <= 0 {
		c.Signaling.TokenTTL = 12 * time.Hour
	}
	if c.Signaling.UserID == "" {
		errs = append(errs, errors.New("SIGNALING_USER_ID is required"))
	}
	if c.Signaling.DeviceID == "" {
		errs = append(errs, errors.New("SIGNALING_DEVICE_ID is required"))
	}

	switch c.History.Backend {
	case "":
		c.History.Backend = HistoryBackendMemory
	case HistoryBackendMemory:
	case HistoryBackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when HISTORY_BACKEND=redis"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	case HistoryBackendPostgres:
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required when HISTORY_BACKEND=postgres"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when HISTORY_BACKEND=postgres"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when HISTORY_BACKEND=postgres"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND must be one of memory, redis, postgres, got %q", c.History.Backend))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
