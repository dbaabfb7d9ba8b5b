// Package config reads settings from the environment, after loading an
// optional .env file.
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

// Server holds the settings of the game server.
type Server struct {
	HTTPAddr        string
	SessionSecret   string
	SessionTTL      time.Duration
	MinFlipInterval time.Duration
	RedisURL        string // empty: in-memory sessions
	DatabaseURL     string // empty: results kept in memory
	NATSURL         string // empty: no event forwarding
	CPUOpponent     bool
	AllowedOrigins  []string
	LogLevel        string
	LogFormat       string
	GinMode         string
}

// Client holds the settings of the command-line player.
type Client struct {
	ServerURL        string
	MinClickInterval time.Duration // 0 turns the click limit off
	MismatchDelay    time.Duration // 0 turns the delay off
	LogLevel         string
	LogFormat        string
}

// LoadDotEnv loads the given .env files, or ./.env when none are given.
// A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadServer reads the server settings from the environment.
func LoadServer() (Server, error) {
	var (
		c   Server
		err error
	)
	c.HTTPAddr = str("HTTP_ADDR", ":5000")
	c.SessionSecret = os.Getenv("SESSION_SECRET")
	if c.SessionSecret == "" {
		return c, errors.New("config: SESSION_SECRET is required")
	}
	if c.SessionTTL, err = duration("SESSION_TTL", 30*time.Minute); err != nil {
		return c, err
	}
	if c.MinFlipInterval, err = duration("MIN_FLIP_INTERVAL", 200*time.Millisecond); err != nil {
		return c, err
	}
	if c.CPUOpponent, err = boolean("CPU_OPPONENT", false); err != nil {
		return c, err
	}
	c.RedisURL = os.Getenv("REDIS_URL")
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.NATSURL = os.Getenv("NATS_URL")
	c.AllowedOrigins = list("ALLOWED_ORIGINS")
	c.LogLevel = str("LOG_LEVEL", "info")
	c.LogFormat = str("LOG_FORMAT", "text")
	c.GinMode = str("GIN_MODE", "release")
	return c, nil
}

// LoadClient reads the client settings from the environment.
func LoadClient() (Client, error) {
	var (
		c   Client
		err error
	)
	c.ServerURL = str("MEMORY_SERVER_URL", "http://localhost:5000")
	if c.MinClickInterval, err = duration("MIN_CLICK_INTERVAL", 200*time.Millisecond); err != nil {
		return c, err
	}
	if c.MismatchDelay, err = duration("MISMATCH_DELAY", time.Second); err != nil {
		return c, err
	}
	c.LogLevel = str("LOG_LEVEL", "info")
	c.LogFormat = str("LOG_FORMAT", "text")
	return c, nil
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", key)
	}
	return d, nil
}

func boolean(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func list(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
