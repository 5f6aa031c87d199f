package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/postgresengine"
)

// Supported values of the enumerated settings.
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

var (
	// ErrInvalidEngine is returned for an unknown SIM_DB_ENGINE.
	ErrInvalidEngine = errors.New("SIM_DB_ENGINE must be postgres or sqlite")

	// ErrMissingPassword is returned when postgres is configured without password and without DSN.
	ErrMissingPassword = errors.New("SIM_DB_PASSWORD is required for postgres unless SIM_DB_DSN is set")

	// ErrInvalidLogLevel is returned for an unknown SIM_LOG_LEVEL.
	ErrInvalidLogLevel = errors.New("SIM_LOG_LEVEL must be debug, info, warn or error")

	// ErrInvalidLogFormat is returned for an unknown SIM_LOG_FORMAT.
	ErrInvalidLogFormat = errors.New("SIM_LOG_FORMAT must be text or json")
)

// Config holds the simulator configuration loaded from environment variables.
type Config struct {
	Engine     string `env:"SIM_DB_ENGINE" envDefault:"postgres"`
	Adapter    string `env:"SIM_DB_ADAPTER" envDefault:"pgx"`
	DBHost     string `env:"SIM_DB_HOST" envDefault:"postgres"`
	DBPort     int    `env:"SIM_DB_PORT" envDefault:"5432"`
	DBName     string `env:"SIM_DB_NAME" envDefault:"main_db"`
	DBUser     string `env:"SIM_DB_USER" envDefault:"admin"`
	DBPassword string `env:"SIM_DB_PASSWORD"`
	DBSSLMode  string `env:"SIM_DB_SSLMODE" envDefault:"disable"`
	DSN        string `env:"SIM_DB_DSN"` // overrides the single DB settings above
	SQLitePath string `env:"SIM_SQLITE_PATH" envDefault:"./data/events.db"`
	TableName  string `env:"SIM_TABLE_NAME" envDefault:"events"`

	// Connection retry
	ConnectTimeout       time.Duration `env:"SIM_CONNECT_TIMEOUT" envDefault:"5s"`
	RetryMaxAttempts     int           `env:"SIM_RETRY_MAX_ATTEMPTS" envDefault:"0"` // 0 retries forever
	RetryBaseDelay       time.Duration `env:"SIM_RETRY_BASE_DELAY" envDefault:"2s"`
	RetryMultiplier      float64       `env:"SIM_RETRY_MULTIPLIER" envDefault:"1"`
	RetryMaxDelay        time.Duration `env:"SIM_RETRY_MAX_DELAY" envDefault:"30s"`
	RetryJitter          float64       `env:"SIM_RETRY_JITTER" envDefault:"0"`
	RetryPermanentErrors bool          `env:"SIM_RETRY_PERMANENT_ERRORS" envDefault:"false"`

	// Generation loop
	Interval               time.Duration `env:"SIM_INTERVAL" envDefault:"500ms"`
	MaxEvents              int64         `env:"SIM_MAX_EVENTS" envDefault:"0"` // 0 runs until stopped
	ErrorPolicy            string        `env:"SIM_ERROR_POLICY" envDefault:"exit"`
	MaxConsecutiveFailures int           `env:"SIM_MAX_CONSECUTIVE_FAILURES" envDefault:"0"`

	// Observability
	LogLevel        string `env:"SIM_LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"SIM_LOG_FORMAT" envDefault:"text"`
	OTelEnabled     bool   `env:"SIM_OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string `env:"SIM_OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTelServiceName string `env:"SIM_OTEL_SERVICE_NAME" envDefault:"cdc-event-simulator"`
	MetricsAddr     string `env:"SIM_METRICS_ADDR"` // empty disables the /metrics endpoint
}

// Load parses the process environment and validates the result.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFromMap parses the given variables instead of the process environment.
func LoadFromMap(environment map[string]string) (*Config, error) {
	return load(env.Options{Environment: environment})
}

func load(options env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, options); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks the enumerated settings and builds every derived value once.
func (c *Config) Validate() error {
	switch c.Engine {
	case EnginePostgres:
		if _, err := c.AdapterType(); err != nil {
			return err
		}

		if c.DSN == "" && c.DBPassword == "" {
			return ErrMissingPassword
		}
	case EngineSQLite:
	default:
		return errors.Join(ErrInvalidEngine, fmt.Errorf("got %q", c.Engine))
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return errors.Join(ErrInvalidLogFormat, fmt.Errorf("got %q", c.LogFormat))
	}

	if _, err := c.RetryPolicy(); err != nil {
		return err
	}

	if _, err := c.SimulatorOptions(); err != nil {
		return err
	}

	return nil
}

// AdapterType returns the Postgres adapter selected by SIM_DB_ADAPTER.
func (c *Config) AdapterType() (postgresengine.AdapterType, error) {
	return postgresengine.ParseAdapterType(c.Adapter)
}

// PostgresDSN returns SIM_DB_DSN if set, otherwise a URL built from the single settings.
// The connect timeout is passed on in whole seconds, rounded up.
func (c *Config) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	query := url.Values{}
	query.Set("sslmode", c.DBSSLMode)
	if c.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(math.Ceil(c.ConnectTimeout.Seconds()))))
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: query.Encode(),
	}

	return dsn.String()
}

// RedactedTarget describes the database for log output without credentials.
func (c *Config) RedactedTarget() string {
	if c.Engine == EngineSQLite {
		return c.SQLitePath
	}

	parsed, err := url.Parse(c.PostgresDSN())
	if err != nil || parsed.Host == "" {
		// keyword/value DSNs are not parsed; keep only the engine
		return EnginePostgres
	}

	return parsed.Redacted()
}

// RetryPolicy builds the connection retry policy.
func (c *Config) RetryPolicy() (eventsim.RetryPolicy, error) {
	return eventsim.NewRetryPolicy(
		eventsim.WithMaxAttempts(c.RetryMaxAttempts),
		eventsim.WithBaseDelay(c.RetryBaseDelay),
		eventsim.WithMultiplier(c.RetryMultiplier),
		eventsim.WithMaxDelay(c.RetryMaxDelay),
		eventsim.WithJitterFactor(c.RetryJitter),
		eventsim.WithConnectTimeout(c.ConnectTimeout),
		eventsim.WithRetryPermanentErrors(c.RetryPermanentErrors),
	)
}

// SimulatorOptions returns the loop settings as simulator options.
func (c *Config) SimulatorOptions() ([]eventsim.SimulatorOption, error) {
	policy, err := eventsim.ParseErrorPolicy(c.ErrorPolicy)
	if err != nil {
		return nil, err
	}

	if c.Interval < 0 {
		return nil, eventsim.ErrInvalidInterval
	}

	if c.MaxEvents < 0 {
		return nil, eventsim.ErrInvalidMaxEvents
	}

	if c.MaxConsecutiveFailures < 0 {
		return nil, eventsim.ErrInvalidMaxConsecutiveFailures
	}

	return []eventsim.SimulatorOption{
		eventsim.WithInterval(c.Interval),
		eventsim.WithMaxEvents(c.MaxEvents),
		eventsim.WithErrorPolicy(policy),
		eventsim.WithMaxConsecutiveFailures(c.MaxConsecutiveFailures),
	}, nil
}

// SlogLevel maps SIM_LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Join(ErrInvalidLogLevel, fmt.Errorf("got %q", c.LogLevel))
	}
}

// LogHandler builds the local slog handler writing to w in the configured format and level.
func (c *Config) LogHandler(w io.Writer) slog.Handler {
	level, _ := c.SlogLevel()
	options := &slog.HandlerOptions{Level: level}

	if c.LogFormat == LogFormatJSON {
		return slog.NewJSONHandler(w, options)
	}

	return slog.NewTextHandler(w, options)
}
