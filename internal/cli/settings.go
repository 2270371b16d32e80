package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Settings is the environment shared by every command.
type Settings struct {
	AMQPURI        string `mapstructure:"amqp_uri"`
	LogLevel       string `mapstructure:"log_level"`
	ServiceName    string `mapstructure:"service_name"`
	MetricsAddress string `mapstructure:"metrics_address"`
	TracingExport  bool   `mapstructure:"tracing_export"`
	ArchiveDSN     string `mapstructure:"archive_dsn"`
	ArchiveDriver  string `mapstructure:"archive_driver"`
	RedisAddress   string `mapstructure:"redis_address"`
	RedisPassword  string `mapstructure:"redis_password"`
}

var settingKeys = []string{
	"amqp_uri",
	"log_level",
	"service_name",
	"metrics_address",
	"tracing_export",
	"archive_dsn",
	"archive_driver",
	"redis_address",
	"redis_password",
}

// ErrMissingAMQPURI is returned when no broker address is configured.
var ErrMissingAMQPURI = errors.New("AMQP_URI is not set")

// LoadSettings reads settings from the environment, after loading envFile
// when it exists. A missing envFile is only an error when required is set,
// i.e. when the user named the file explicitly.
func LoadSettings(v *viper.Viper, envFile string, required bool) (Settings, error) {
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "rabbitctl")
	v.SetDefault("archive_driver", "postgres")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range settingKeys {
		if err := v.BindEnv(key); err != nil {
			return Settings{}, err
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return Settings{}, fmt.Errorf("read env file %s: %w", envFile, err)
			}
		} else if required {
			return Settings{}, fmt.Errorf("env file %s: %w", envFile, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Validate checks the settings every broker command needs.
func (s Settings) Validate() error {
	if s.AMQPURI == "" {
		return ErrMissingAMQPURI
	}
	return nil
}
