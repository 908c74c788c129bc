package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL          string `yaml:"ttl"`
		AbandonAfter string `yaml:"abandonAfter"`
	} `yaml:"quiz"`
	Scoring struct {
		MatchPairs string `yaml:"matchPairs"`
	} `yaml:"scoring"`
	Gamification struct {
		FirstAttemptBonus int `yaml:"firstAttemptBonus"`
	} `yaml:"gamification"`
	Leaderboards struct {
		RefreshInterval string `yaml:"refreshInterval"`
		Size            int    `yaml:"size"`
	} `yaml:"leaderboards"`
	Scheduler struct {
		SweepInterval string `yaml:"sweepInterval"`
	} `yaml:"scheduler"`
	Certificates struct {
		ChromePath string `yaml:"chromePath"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"certificates"`
}

// DefaultFirstAttemptBonus is credited on a passed first attempt unless configured otherwise.
const DefaultFirstAttemptBonus = 10

// Load reads YAML config from path, then applies .env and ECOQUEST_* overrides.
// A missing file is not an error so the service can run from the environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	cfg.Gamification.FirstAttemptBonus = DefaultFirstAttemptBonus
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	// .env is optional
	_ = godotenv.Load()
	ApplyEnv(&cfg)
	return cfg, nil
}

// ApplyEnv overlays environment variables on top of file values.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "ECOQUEST_PORT")
	setString(&cfg.Auth.JWTSecret, "ECOQUEST_JWT_SECRET")
	setString(&cfg.Redis.Addr, "ECOQUEST_REDIS_ADDR")
	setString(&cfg.Redis.Password, "ECOQUEST_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ECOQUEST_REDIS_DB")
	setString(&cfg.Postgres.URL, "ECOQUEST_POSTGRES_URL")
	setString(&cfg.Quiz.TTL, "ECOQUEST_QUIZ_TTL")
	setString(&cfg.Quiz.AbandonAfter, "ECOQUEST_ABANDON_AFTER")
	setString(&cfg.Scoring.MatchPairs, "ECOQUEST_MATCH_PAIRS")
	setInt(&cfg.Gamification.FirstAttemptBonus, "ECOQUEST_FIRST_ATTEMPT_BONUS")
	setString(&cfg.Leaderboards.RefreshInterval, "ECOQUEST_LEADERBOARD_REFRESH")
	setInt(&cfg.Leaderboards.Size, "ECOQUEST_LEADERBOARD_SIZE")
	setString(&cfg.Scheduler.SweepInterval, "ECOQUEST_SWEEP_INTERVAL")
	setString(&cfg.Certificates.ChromePath, "ECOQUEST_CHROME_PATH")
	setString(&cfg.Certificates.Timeout, "ECOQUEST_CERTIFICATE_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
