package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Ledger   string
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Hub      HubConfig
	CheckIn  CheckInConfig
	LogLevel slog.Level
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

// DSN is the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode,
	)
}

// RabbitMQConfig is disabled when URL is empty.
type RabbitMQConfig struct {
	URL string
}

type HubConfig struct {
	ConnBuffer int
}

type CheckInConfig struct {
	RateLimit      int
	RateWindow     time.Duration
	IdempotencyTTL time.Duration
	FlightCacheTTL time.Duration
}

// New reads the configuration from the environment. envFile, when set, is
// loaded first and must exist; otherwise a .env in the working directory
// is loaded if present. Variables already set in the environment win.
func New(envFile string) (*Config, error) {
	const op = "config.New"

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("%s: load %s: %w", op, envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	serverCfg := ServerConfig{
		Host: envStr("SERVER_HOST", "localhost"),
		Port: serverPort,
	}

	ledger := strings.ToLower(envStr("LEDGER_DRIVER", LedgerPostgres))
	if ledger != LedgerPostgres && ledger != LedgerMemory {
		return nil, fmt.Errorf("%s: invalid LEDGER_DRIVER %q", op, ledger)
	}

	var postgresCfg PostgresConfig
	if ledger == LedgerPostgres {
		postgresCfg, err = loadPostgres()
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	redisEnabled, err := envBool("REDIS_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisCfg := RedisConfig{
		Enabled:  redisEnabled,
		Addr:     envStr("REDIS_ADDR", "localhost:6380"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	connBuffer, err := envInt("HUB_CONN_BUFFER", 64)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if connBuffer < 1 {
		return nil, fmt.Errorf("%s: HUB_CONN_BUFFER must be positive", op)
	}

	checkInCfg, err := loadCheckIn()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	logLevel, err := parseLevel(envStr("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Ledger:   ledger,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		RabbitMQ: RabbitMQConfig{URL: os.Getenv("RABBITMQ_URL")},
		Hub:      HubConfig{ConnBuffer: connBuffer},
		CheckIn:  checkInCfg,
		LogLevel: logLevel,
	}, nil
}

func loadPostgres() (PostgresConfig, error) {
	port, err := envInt("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}

	cfg := PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     os.Getenv("POSTGRES_DB"),
		Host:     envStr("POSTGRES_HOST", "localhost"),
		Port:     port,
		SSLMode:  envStr("POSTGRES_SSLMODE", "disable"),
	}

	switch {
	case cfg.User == "":
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_USER")
	case cfg.Password == "":
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_PASSWORD")
	case cfg.Name == "":
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_DB")
	}

	return cfg, nil
}

func loadCheckIn() (CheckInConfig, error) {
	limit, err := envInt("CHECKIN_RATE_LIMIT", 30)
	if err != nil {
		return CheckInConfig{}, err
	}
	if limit < 1 {
		return CheckInConfig{}, fmt.Errorf("CHECKIN_RATE_LIMIT must be positive")
	}

	window, err := envDur("CHECKIN_RATE_WINDOW", time.Minute)
	if err != nil {
		return CheckInConfig{}, err
	}

	idemTTL, err := envDur("IDEMPOTENCY_TTL", 2*time.Hour)
	if err != nil {
		return CheckInConfig{}, err
	}

	cacheTTL, err := envDur("FLIGHT_CACHE_TTL", time.Minute)
	if err != nil {
		return CheckInConfig{}, err
	}

	return CheckInConfig{
		RateLimit:      limit,
		RateWindow:     window,
		IdempotencyTTL: idemTTL,
		FlightCacheTTL: cacheTTL,
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return lvl, nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return n, nil
}

func envBool(k string, d bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", k, err)
	}
	return b, nil
}

func envDur(k string, d time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", k)
	}
	return dur, nil
}
