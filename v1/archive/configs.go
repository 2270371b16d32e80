package archive

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// Supported values for Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config defines where dead letters are archived.
type Config struct {
	// Driver selects the SQL dialect: "postgres" (default) or "mysql".
	Driver string `yaml:"driver" envconfig:"ARCHIVE_DRIVER"`

	// DSN is passed to the driver unchanged when set. Otherwise one is built
	// from Connection.
	DSN string `yaml:"dsn" envconfig:"ARCHIVE_DSN"`

	Connection        Connection        `yaml:"connection"`
	ConnectionDetails ConnectionDetails `yaml:"connection_details"`

	// HealthCheckInterval is how often the pool is pinged. Default: 10s
	HealthCheckInterval time.Duration `yaml:"health_check_interval" envconfig:"ARCHIVE_HEALTH_CHECK_INTERVAL"`
}

// Connection holds the discrete connection parameters.
type Connection struct {
	Host     string `yaml:"host" envconfig:"ARCHIVE_HOST"`
	Port     string `yaml:"port" envconfig:"ARCHIVE_PORT"`
	User     string `yaml:"user" envconfig:"ARCHIVE_USER"`
	Password string `yaml:"password" envconfig:"ARCHIVE_PASSWORD"`
	DbName   string `yaml:"db_name" envconfig:"ARCHIVE_DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" envconfig:"ARCHIVE_SSL_MODE"`
}

// ConnectionDetails configures the connection pool. Zero values select the
// package defaults.
type ConnectionDetails struct {
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"ARCHIVE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"ARCHIVE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"ARCHIVE_CONN_MAX_LIFETIME"`
}

// Logger is the subset of the logger package used by the archive.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

func (c Config) driver() string {
	if c.Driver == "" {
		return DriverPostgres
	}
	return c.Driver
}

func (c Config) dsn() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}

	conn := c.Connection
	switch c.driver() {
	case DriverPostgres:
		sslMode := conn.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			conn.Host, conn.Port, conn.User, conn.Password, conn.DbName, sslMode), nil
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			url.QueryEscape(conn.User), url.QueryEscape(conn.Password),
			net.JoinHostPort(conn.Host, conn.Port), conn.DbName), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Driver)
	}
}

func (c Config) healthCheckInterval() time.Duration {
	if c.HealthCheckInterval <= 0 {
		return 10 * time.Second
	}
	return c.HealthCheckInterval
}
