package redis

import "time"

// Config defines the connection to a single Redis server and how handled
// message ids are stored.
type Config struct {
	// Host is the Redis server hostname or IP address. Default: "localhost"
	Host string `yaml:"host" envconfig:"REDIS_HOST"`

	// Port is the Redis server port. Default: 6379
	Port int `yaml:"port" envconfig:"REDIS_PORT"`

	// Address overrides Host and Port with "host:port".
	Address string `yaml:"address" envconfig:"REDIS_ADDRESS"`

	// Username for ACL-based authentication (Redis 6+), may be empty.
	Username string `yaml:"username" envconfig:"REDIS_USERNAME"`

	// Password for authentication, may be empty.
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`

	// DB is the database number to select. Default: 0
	DB int `yaml:"db" envconfig:"REDIS_DB"`

	// PoolSize is the maximum number of socket connections.
	// Default: 10 connections per CPU (set by the redis client)
	PoolSize int `yaml:"pool_size" envconfig:"REDIS_POOL_SIZE"`

	// MaxRetries before giving up on a command. Default: 3
	MaxRetries int `yaml:"max_retries" envconfig:"REDIS_MAX_RETRIES"`

	// DialTimeout for establishing new connections. Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT"`

	// ReadTimeout for socket reads. Default: 3s
	ReadTimeout time.Duration `yaml:"read_timeout" envconfig:"REDIS_READ_TIMEOUT"`

	// WriteTimeout for socket writes. Default: ReadTimeout
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"REDIS_WRITE_TIMEOUT"`

	// KeyPrefix namespaces every key written by this client. Default: "rabbit-dlq:handled:"
	KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`

	// HandledTTL is how long a handled message id is remembered. Default: 24h
	HandledTTL time.Duration `yaml:"handled_ttl" envconfig:"REDIS_HANDLED_TTL"`

	// TLS configuration for encrypted connections.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS/SSL configuration.
type TLSConfig struct {
	// Enabled turns on TLS encryption.
	Enabled bool `yaml:"enabled" envconfig:"REDIS_TLS_ENABLED"`

	// CACertPath is the path to the CA certificate file.
	CACertPath string `yaml:"ca_cert_path" envconfig:"REDIS_TLS_CA_CERT"`

	// ClientCertPath is the path to the client certificate (for mTLS).
	ClientCertPath string `yaml:"client_cert_path" envconfig:"REDIS_TLS_CLIENT_CERT"`

	// ClientKeyPath is the path to the client private key (for mTLS).
	ClientKeyPath string `yaml:"client_key_path" envconfig:"REDIS_TLS_CLIENT_KEY"`

	// InsecureSkipVerify skips certificate verification. Tests only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" envconfig:"REDIS_TLS_INSECURE_SKIP_VERIFY"`

	// ServerName overrides the name used to verify the certificate.
	ServerName string `yaml:"server_name" envconfig:"REDIS_TLS_SERVER_NAME"`
}

// Logger is the subset of the logger package used by the client.
type Logger interface {
	Error(msg string, err error, fields ...map[string]interface{})
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
}

// Default values for configuration
const (
	DefaultHost        = "localhost"
	DefaultPort        = 6379
	DefaultMaxRetries  = 3
	DefaultDialTimeout = 5 * time.Second
	DefaultReadTimeout = 3 * time.Second
	DefaultKeyPrefix   = "rabbit-dlq:handled:"
	DefaultHandledTTL  = 24 * time.Hour
)

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.HandledTTL <= 0 {
		c.HandledTTL = DefaultHandledTTL
	}
	return c
}
