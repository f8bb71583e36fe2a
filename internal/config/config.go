package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	HTTPAddr               string
	AppEnv                 string
	DatabaseURL            string
	InterRoundPauseMS      int
	GameOverPauseMS        int
	LobbyTTLMinutes        int
	CleanupIntervalMinutes int
	PublicLobbyLimit       int
	StatsTimeoutSeconds    int
	LobbyIdleSeconds       int
	DBMaxOpenConns         int
	DBMaxIdleConns         int
	// AllowedOrigins is a comma separated list of websocket origin patterns.
	AllowedOrigins string
}

func Default() Config {
	return Config{
		HTTPAddr:               ":8080",
		AppEnv:                 "production",
		InterRoundPauseMS:      3000,
		GameOverPauseMS:        2000,
		LobbyTTLMinutes:        120,
		CleanupIntervalMinutes: 10,
		PublicLobbyLimit:       20,
		StatsTimeoutSeconds:    5,
		LobbyIdleSeconds:       120,
		DBMaxOpenConns:         10,
		DBMaxIdleConns:         10,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("HTTP_ADDR"); raw != "" {
		cfg.HTTPAddr = raw
	}
	if raw := os.Getenv("APP_ENV"); raw != "" {
		cfg.AppEnv = raw
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("INTER_ROUND_PAUSE_MS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.InterRoundPauseMS = value
		}
	}
	if raw := os.Getenv("GAME_OVER_PAUSE_MS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.GameOverPauseMS = value
		}
	}
	if raw := os.Getenv("LOBBY_TTL_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.LobbyTTLMinutes = value
		}
	}
	if raw := os.Getenv("CLEANUP_INTERVAL_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.CleanupIntervalMinutes = value
		}
	}
	if raw := os.Getenv("PUBLIC_LOBBY_LIMIT"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.PublicLobbyLimit = value
		}
	}
	if raw := os.Getenv("STATS_TIMEOUT_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.StatsTimeoutSeconds = value
		}
	}
	if raw := os.Getenv("LOBBY_IDLE_TIMEOUT_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.LobbyIdleSeconds = value
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		cfg.AllowedOrigins = raw
	}
	return cfg
}

func (c Config) Development() bool { return c.AppEnv == "development" }

func (c Config) InterRoundPause() time.Duration {
	return time.Duration(c.InterRoundPauseMS) * time.Millisecond
}

func (c Config) GameOverPause() time.Duration {
	return time.Duration(c.GameOverPauseMS) * time.Millisecond
}

func (c Config) LobbyTTL() time.Duration {
	return time.Duration(c.LobbyTTLMinutes) * time.Minute
}

func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func (c Config) StatsTimeout() time.Duration {
	return time.Duration(c.StatsTimeoutSeconds) * time.Second
}

// LobbyIdleTimeout is how long a lobby may have no attached connection before
// it is torn down. Zero disables reaping.
func (c Config) LobbyIdleTimeout() time.Duration {
	return time.Duration(c.LobbyIdleSeconds) * time.Second
}
