package redis

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/redis/go-redis/v9"
)

// RedisClient remembers which messages were handled so redelivered copies can
// be acknowledged without running the handler again. It satisfies
// delivery.Deduplicator.
type RedisClient struct {
	client redis.UniversalClient
	cfg    Config

	logger   Logger
	observer observability.Observer

	mu        sync.RWMutex
	closeOnce sync.Once
	closeErr  error
}

// NewClient creates a client for a single Redis server. No connection is made
// until the first command; use Ping to check connectivity.
//
// Example:
//
//	client, err := redis.NewClient(redis.Config{Address: "localhost:6379"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	consumer.WithDeduplicator(client)
func NewClient(cfg Config) (*RedisClient, error) {
	cfg = cfg.withDefaults()

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		var err error
		tlsConfig, err = createTLSConfig(cfg.TLS, cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	opts := &redis.Options{
		Addr:         cfg.address(),
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		TLSConfig:    tlsConfig,
	}

	return newWithClient(redis.NewClient(opts), cfg), nil
}

func newWithClient(client redis.UniversalClient, cfg Config) *RedisClient {
	return &RedisClient{client: client, cfg: cfg.withDefaults()}
}

func (c Config) address() string {
	if c.Address != "" {
		return c.Address
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func createTLSConfig(cfg TLSConfig, defaultServerName string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.ServerName != "" {
		tlsConfig.ServerName = cfg.ServerName
	} else if defaultServerName != "" {
		tlsConfig.ServerName = defaultServerName
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Client returns the underlying go-redis client for commands this package
// does not wrap.
func (r *RedisClient) Client() redis.UniversalClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client
}

// Close closes the client. It is safe to call more than once.
func (r *RedisClient) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.client != nil {
			r.closeErr = r.client.Close()
			if r.closeErr != nil && r.logger != nil {
				r.logger.Warn("Failed to close Redis client", r.closeErr, nil)
			}
		}
	})
	return r.closeErr
}

// WithObserver attaches an operation observer and returns the client for chaining.
func (r *RedisClient) WithObserver(observer observability.Observer) *RedisClient {
	r.observer = observer
	return r
}

// WithLogger attaches a logger and returns the client for chaining.
func (r *RedisClient) WithLogger(logger Logger) *RedisClient {
	r.logger = logger
	return r
}
