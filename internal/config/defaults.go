package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout           = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultBackoffMultiplier    = 2.0
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 90 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultConnBufferSize       = 1000
	DefaultChannel              = "prices"
	DefaultPollInterval         = 60 * time.Second
	DefaultCacheTTL             = 5 * time.Minute
	DefaultFetchTimeout         = 10 * time.Second
	DefaultRedisTTL             = 2 * time.Minute
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 1 * time.Second
	DefaultWriterBufferSize     = 10000
	DefaultServerPort           = 8080
)

func (c *FeedConfig) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Connection defaults
	if len(c.Connection.Channels) == 0 {
		c.Connection.Channels = []string{DefaultChannel}
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.BackoffMultiplier == 0 {
		c.Connection.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultConnBufferSize
	}

	// Consumer defaults
	if c.Consumer.Channel == "" {
		c.Consumer.Channel = DefaultChannel
	}
	if c.Consumer.PollInterval == 0 {
		c.Consumer.PollInterval = DefaultPollInterval
	}
	if c.Consumer.CacheTTL == 0 {
		c.Consumer.CacheTTL = DefaultCacheTTL
	}
	if c.Consumer.FetchTimeout == 0 {
		c.Consumer.FetchTimeout = DefaultFetchTimeout
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Redis defaults
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultWriterBufferSize
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}
