package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath = "config.toml"
	DefaultHTTPAddr   = ":8080"
	DefaultPGHost     = "127.0.0.1"
	DefaultPGPort     = 5432
	DefaultPGUser     = "postgres"
	DefaultPGDatabase = "partnergate"
	DefaultPGSSLMode  = "disable"
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Telegram   TelegramConfig   `toml:"telegram"`
	BackOffice BackOfficeConfig `toml:"backoffice"`
	Schedule   ScheduleConfig   `toml:"schedule"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// PublicBaseURL is the externally reachable base used for webhook
	// bindings and tenant menu-button deep links. Webhooks are skipped
	// when empty.
	PublicBaseURL string `toml:"public_base_url" validate:"omitempty,url"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port" validate:"gt=0,lte=65535"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type TelegramConfig struct {
	// RequestTimeoutSeconds bounds every outbound Telegram API call.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds" validate:"gte=0"`
	// ChunkDelayMs is the pause between chunks of a split message.
	ChunkDelayMs int `toml:"chunk_delay_ms" validate:"gte=0"`
}

type BackOfficeConfig struct {
	BaseURL        string `toml:"base_url" validate:"omitempty,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

type ScheduleConfig struct {
	// Location is the IANA time zone schedule times are interpreted in.
	Location string `toml:"location"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Telegram: TelegramConfig{
			RequestTimeoutSeconds: 10,
			ChunkDelayMs:          300,
		},
		BackOffice: BackOfficeConfig{
			BaseURL:        "https://api.regos.uz",
			TimeoutSeconds: 30,
		},
		Schedule: ScheduleConfig{
			Location: "Asia/Tashkent",
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
