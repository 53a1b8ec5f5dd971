package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *FeedConfig) Validate() error {
	if c.API.WSURL == "" {
		return errors.New("api.ws_url is required")
	}
	if !strings.HasPrefix(c.API.WSURL, "ws://") && !strings.HasPrefix(c.API.WSURL, "wss://") {
		return fmt.Errorf("api.ws_url must use ws:// or wss://, got %q", c.API.WSURL)
	}
	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if !strings.HasPrefix(c.API.RestURL, "http://") && !strings.HasPrefix(c.API.RestURL, "https://") {
		return fmt.Errorf("api.rest_url must use http:// or https://, got %q", c.API.RestURL)
	}

	if c.Connection.BackoffMultiplier <= 1 {
		return errors.New("connection.backoff_multiplier must be > 1")
	}
	if c.Connection.ReconnectBaseDelay <= 0 {
		return errors.New("connection.reconnect_base_delay must be > 0")
	}
	if c.Connection.ReconnectMaxDelay < c.Connection.ReconnectBaseDelay {
		return errors.New("connection.reconnect_max_delay must be >= reconnect_base_delay")
	}
	if c.Connection.MaxReconnectAttempts < 1 {
		return errors.New("connection.max_reconnect_attempts must be >= 1")
	}
	if c.Connection.VaultID < 0 {
		return errors.New("connection.vault_id must be >= 0")
	}

	if c.Consumer.PollInterval <= 0 {
		return errors.New("consumer.poll_interval must be > 0")
	}

	if c.Database.Enabled() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.BufferSize < 1 {
		return errors.New("writer.buffer_size must be >= 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
