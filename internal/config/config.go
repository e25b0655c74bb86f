package config

import (
	"errors"
	"fmt"
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
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Player Player `yaml:"player"`
}

// Player configures the quiz-taking client.
type Player struct {
	BaseURL        string `yaml:"base_url"`
	Session        string `yaml:"session"`
	TimerReference int    `yaml:"timer_reference"`
	RequestTimeout string `yaml:"request_timeout"`
	Push           bool   `yaml:"push"`
}

const (
	defaultBaseURL        = "http://localhost:8080/api"
	defaultTimerReference = 20
)

// Load reads YAML config from path, then applies environment overrides.
// A .env file in the working directory is loaded first when present.
// A missing config file yields the defaults.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Redis.TTL, "REDIS_TTL")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Quiz.TTL, "QUIZ_TTL")
	setString(&cfg.Player.BaseURL, "QUIZ_API_URL")
	setString(&cfg.Player.Session, "QUIZ_SESSION")
	setString(&cfg.Player.RequestTimeout, "QUIZ_REQUEST_TIMEOUT")

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}
	if v := os.Getenv("QUIZ_TIMER_REFERENCE"); v != "" {
		ref, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUIZ_TIMER_REFERENCE: %w", err)
		}
		cfg.Player.TimerReference = ref
	}
	if v := os.Getenv("QUIZ_PUSH"); v != "" {
		push, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("QUIZ_PUSH: %w", err)
		}
		cfg.Player.Push = push
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Player.BaseURL == "" {
		cfg.Player.BaseURL = defaultBaseURL
	}
	if cfg.Player.TimerReference <= 0 {
		cfg.Player.TimerReference = defaultTimerReference
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
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
