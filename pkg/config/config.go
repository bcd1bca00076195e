// Package config loads and validates chatrelay configuration from YAML with
// environment expansion, merged over built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the complete chatrelay configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Chat     ChatConfig     `yaml:"chat"`
}

// ServerConfig groups HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// AllowedOrigins is the CORS allowlist for browser clients. Requests
	// without an Origin header (same-origin, CLI) are always accepted.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// UpstreamConfig groups agent-execution service settings.
type UpstreamConfig struct {
	// BaseURL of the agent service; the client calls BaseURL/stream and
	// BaseURL/health.
	BaseURL string `yaml:"base_url"`
	// HealthTimeout bounds the connectivity probe in the health handler.
	// Parsed as a Go duration string.
	HealthTimeout string `yaml:"health_timeout"`
}

// ChatConfig groups chat endpoint limits and relay behavior.
type ChatConfig struct {
	// MaxRetries is the restream ceiling per client request.
	MaxRetries int `yaml:"max_retries"`
	// MaxMessages caps the number of prior turns accepted per request.
	MaxMessages int `yaml:"max_messages"`
	// MaxContentLength caps one message's content, in bytes after trimming.
	MaxContentLength int `yaml:"max_content_length"`
	// MaxRequestBytes caps the declared Content-Length of a chat request.
	MaxRequestBytes int64 `yaml:"max_request_bytes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Upstream: UpstreamConfig{
			BaseURL:       "http://localhost:4111/api/agents/network",
			HealthTimeout: "5s",
		},
		Chat: ChatConfig{
			MaxRetries:       3,
			MaxMessages:      100,
			MaxContentLength: 100_000,
			MaxRequestBytes:  1 << 20,
		},
	}
}

// Validate checks invariants that the defaults merge cannot guarantee.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if _, err := c.ParsedHealthTimeout(); err != nil {
		return fmt.Errorf("upstream.health_timeout: %w", err)
	}
	if c.Chat.MaxRetries < 1 {
		return fmt.Errorf("chat.max_retries must be at least 1, got %d", c.Chat.MaxRetries)
	}
	if c.Chat.MaxMessages < 1 {
		return fmt.Errorf("chat.max_messages must be at least 1, got %d", c.Chat.MaxMessages)
	}
	if c.Chat.MaxContentLength < 1 {
		return fmt.Errorf("chat.max_content_length must be at least 1, got %d", c.Chat.MaxContentLength)
	}
	if c.Chat.MaxRequestBytes < 1 {
		return fmt.Errorf("chat.max_request_bytes must be at least 1, got %d", c.Chat.MaxRequestBytes)
	}
	return nil
}

// ParsedHealthTimeout returns the upstream health probe bound as a duration.
func (c *Config) ParsedHealthTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Upstream.HealthTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", c.Upstream.HealthTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}
