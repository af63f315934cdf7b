package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	API    APIConfig         `yaml:"api"`
	Stream StreamConfig      `yaml:"stream"`
	Store  StoreConfig       `yaml:"store"`
	Dev    DevConfig         `yaml:"dev"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Stream.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Dev.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// APIConfig points the client at the daybook server.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	StreamURL string `yaml:"stream_url"`
}

// Validate validates the API configuration.
func (c *APIConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
	); err != nil {
		return err
	}
	for _, u := range []string{c.BaseURL, c.StreamURL} {
		if u == "" {
			continue
		}
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("api: invalid URL %q: %w", u, err)
		}
	}
	return nil
}

// EventsURL returns the push-event stream endpoint. An explicit
// stream_url wins; otherwise the stream lives under the API base.
func (c *APIConfig) EventsURL() string {
	if c.StreamURL != "" {
		return c.StreamURL
	}
	return c.BaseURL + "/events/stream"
}

// StreamConfig tunes the push-event stream client.
type StreamConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
	EchoWindow  time.Duration `yaml:"echo_window"`
}

// Validate validates the stream configuration.
func (c *StreamConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxAttempts, validation.Min(0)),
		validation.Field(&c.EchoWindow, validation.Min(time.Duration(0))),
	)
}

// StoreConfig holds the local key-value store location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// DevConfig holds the built-in development server configuration.
type DevConfig struct {
	Port      int           `yaml:"port"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Address returns the dev server listen address.
func (c *DevConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the dev server configuration.
func (c *DevConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		API: APIConfig{
			BaseURL: "http://localhost:3222",
		},
		Stream: StreamConfig{
			BaseDelay:   time.Second,
			MaxAttempts: 5,
			EchoWindow:  2 * time.Second,
		},
		Store: StoreConfig{
			Path: "./skald.db",
		},
		Dev: DevConfig{
			Port:      3222,
			Heartbeat: 15 * time.Second,
		},
	}
}
