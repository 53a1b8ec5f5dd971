package config

import "time"

// FeedConfig is the root configuration for a feed daemon instance.
type FeedConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
	Database   DBConfig         `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Writer     WriterConfig     `yaml:"writer"`
	Server     ServerConfig     `yaml:"server"`
}

// InstanceConfig identifies this daemon.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds dashboard API settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	AuthToken  string        `yaml:"auth_token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ConnectionConfig holds Connection Manager settings.
type ConnectionConfig struct {
	Channels             []string      `yaml:"channels"`
	VaultID              int64         `yaml:"vault_id"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	BackoffMultiplier    float64       `yaml:"backoff_multiplier"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// ConsumerConfig holds Price Consumer settings.
type ConsumerConfig struct {
	Channel      string        `yaml:"channel"`
	PollInterval time.Duration `yaml:"poll_interval"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// DBConfig holds the Postgres connection for price history. An empty host
// disables persistence.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database was configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// RedisConfig holds the latest-price store settings. An empty addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled reports whether Redis was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// WriterConfig holds price history writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// ServerConfig holds the status HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}
