package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Listen      string   `yaml:"listen"`
	Admin       Admin    `yaml:"admin"`
	Competition []string `yaml:"competition"`
	Logger      Logger   `yaml:"logger"`
	Storage     Storage  `yaml:"storage"`
	Auth        Auth     `yaml:"auth"`
	Engine      Engine   `yaml:"engine"`
	CORS        CORS     `yaml:"cors"`
}

type Logger struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Storage struct {
	Database string `yaml:"database"`
	Media    string `yaml:"media"`
	Previews string `yaml:"previews"`
}

type Auth struct {
	JWT   JWT   `yaml:"jwt"`
	OIDC  OIDC  `yaml:"oidc"`
	Local Local `yaml:"local"`
}

// Local defines configuration for username/password authentication.
type Local struct {
	Enabled bool `yaml:"enabled"`
}

type JWT struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

// OIDC configures an optional single-sign-on provider for participant login.
type OIDC struct {
	Enabled             bool   `yaml:"enabled"`
	IssuerURL           string `yaml:"issuer_url"`
	ClientID            string `yaml:"client_id"`
	ClientSecret        string `yaml:"client_secret"`
	RedirectURI         string `yaml:"redirect_uri"`
	FrontendCallbackURL string `yaml:"frontend_callback_url"`
}

type Admin struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Engine tunes the per-run update loop.
type Engine struct {
	TickIntervalMS       int `yaml:"tick_interval_ms"`
	ScoreboardIntervalMS int `yaml:"scoreboard_interval_ms"`
	ReadyTimeoutSeconds  int `yaml:"ready_timeout_seconds"`
}

func (e Engine) TickInterval() time.Duration {
	if e.TickIntervalMS <= 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(e.TickIntervalMS) * time.Millisecond
}

func (e Engine) ScoreboardInterval() time.Duration {
	if e.ScoreboardIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(e.ScoreboardIntervalMS) * time.Millisecond
}

func (e Engine) ReadyTimeout() time.Duration {
	if e.ReadyTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(e.ReadyTimeoutSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
