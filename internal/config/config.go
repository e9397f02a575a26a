package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultLobbySecret = "dev-secret-change-me"

// Lobby backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config describes all runtime settings for the server.
//
// Load once in main, validate, then pass it down explicitly.
type Config struct {
	Env string // dev|stage|prod

	Log struct {
		Format string // text|json
		Level  string // debug|info|warn|error
	}

	HTTP struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration
		ShutdownTimeout   time.Duration
	}

	Postgres struct {
		URL           string
		RunMigrations bool
		MigrationsDir string
	}

	Redis struct {
		Addr string
		DB   int
	}

	Lobby struct {
		Backend      string // memory|redis|postgres
		URL          string // remote lobby; empty runs the counter in process
		Secret       string
		TokenTTL     time.Duration
		Timeout      time.Duration
		ResetOnStart bool // clear the stored tally left by a previous run
	}

	Game struct {
		RoomIdleTTL     time.Duration
		CleanupInterval time.Duration
		SendBuffer      int
	}
}

// LoadFromEnv reads an optional .env file, then the environment.
func LoadFromEnv() (Config, error) {
	_ = godotenv.Load()

	var c Config

	c.Env = envString("APP_ENV", "dev")
	c.Log.Format = envString("LOG_FORMAT", "text")
	c.Log.Level = envString("LOG_LEVEL", "info")

	port := envString("PORT", "8080")
	c.HTTP.Addr = envString("HTTP_ADDR", ":"+port)
	c.HTTP.ReadHeaderTimeout = envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	c.HTTP.ReadTimeout = envDuration("HTTP_READ_TIMEOUT", 0)
	c.HTTP.WriteTimeout = envDuration("HTTP_WRITE_TIMEOUT", 0)
	c.HTTP.IdleTimeout = envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)
	c.HTTP.ShutdownTimeout = envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)

	c.Postgres.URL = envString("DATABASE_URL", "")
	c.Postgres.RunMigrations = envBool("RUN_MIGRATIONS", false)
	c.Postgres.MigrationsDir = envString("MIGRATIONS_DIR", "./db/migrations")

	c.Redis.Addr = envString("REDIS_ADDR", "localhost:6379")
	c.Redis.DB = envInt("REDIS_DB", 0)

	c.Lobby.Backend = envString("LOBBY_BACKEND", BackendMemory)
	c.Lobby.URL = envString("LOBBY_URL", "")
	c.Lobby.Secret = envString("LOBBY_SECRET", defaultLobbySecret)
	c.Lobby.TokenTTL = envDuration("LOBBY_TOKEN_TTL", time.Minute)
	c.Lobby.Timeout = envDuration("LOBBY_TIMEOUT", 5*time.Second)
	c.Lobby.ResetOnStart = envBool("LOBBY_RESET_ON_START", true)

	c.Game.RoomIdleTTL = envDuration("ROOM_IDLE_TTL", 10*time.Minute)
	c.Game.CleanupInterval = envDuration("ROOM_CLEANUP_INTERVAL", time.Minute)
	c.Game.SendBuffer = envInt("CONN_SEND_BUFFER", 64)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP addr is empty")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported LOG_LEVEL=%q (want debug|info|warn|error)", c.Log.Level)
	}

	switch c.Lobby.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is empty")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("DATABASE_URL is empty")
		}
	default:
		return fmt.Errorf("unsupported LOBBY_BACKEND=%q (want memory|redis|postgres)", c.Lobby.Backend)
	}
	if c.Postgres.RunMigrations && c.Postgres.URL == "" {
		return errors.New("RUN_MIGRATIONS needs DATABASE_URL")
	}

	if c.Lobby.Secret == "" {
		return errors.New("LOBBY_SECRET is empty")
	}
	if c.Env != "dev" && c.Lobby.Secret == defaultLobbySecret {
		return fmt.Errorf("refuse to run with default LOBBY_SECRET in %s", c.Env)
	}
	if c.Lobby.TokenTTL <= 0 {
		return errors.New("LOBBY_TOKEN_TTL must be positive")
	}

	if c.Game.RoomIdleTTL <= 0 {
		return errors.New("ROOM_IDLE_TTL must be positive")
	}
	if c.Game.CleanupInterval <= 0 {
		return errors.New("ROOM_CLEANUP_INTERVAL must be positive")
	}
	if c.Game.SendBuffer < 1 {
		return errors.New("CONN_SEND_BUFFER must be at least 1")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
