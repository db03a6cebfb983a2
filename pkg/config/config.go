// Package config loads sanicfs settings from a YAML file overlaid with
// `SANICFS_*` environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/types"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "SANICFS"
	appName      = "sanicfs"

	DeviceMemory   = "memory"
	DeviceFile     = "file"
	DeviceS3       = "s3"
	DevicePostgres = "postgres"

	AllocatorScan    = "scan"
	AllocatorIndexed = "indexed"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	Volume    string      `split_words:"true" yaml:"volume"`
	Device    string      `split_words:"true" yaml:"device"`
	Dir       string      `split_words:"true" yaml:"dir"`
	BlockSize types.Byte  `split_words:"true" yaml:"blockSize"`
	Blocks    types.Block `split_words:"true" yaml:"blocks"`
	Allocator string      `split_words:"true" yaml:"allocator"`
	LogLevel  string      `split_words:"true" yaml:"logLevel"`
	LogFormat string      `split_words:"true" yaml:"logFormat"`
	Addr      string      `split_words:"true" yaml:"addr"`
	S3Bucket  string      `split_words:"true" yaml:"s3Bucket"`
	S3Prefix  string      `split_words:"true" yaml:"s3Prefix"`
	S3Region  string      `split_words:"true" yaml:"s3Region"`
}

func Default() Config {
	return Config{
		Volume:    "default",
		Device:    DeviceFile,
		Dir:       ".",
		BlockSize: device.DefaultBlockSize,
		Blocks:    device.DefaultBlocks,
		Allocator: AllocatorIndexed,
		LogLevel:  logrus.InfoLevel.String(),
		LogFormat: LogFormatText,
		Addr:      "127.0.0.1:8080",
		S3Prefix:  "volumes",
	}
}

// Load starts from `Default()`, applies the config file named by
// `SANICFS_CONFIG_FILE` (or `$HOME/.config/sanicfs.yaml`) if it exists, then
// the environment, and validates the result.
func Load() (*Config, error) {
	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating config file: %w", err)
		}
		configFile = filepath.Join(home, ".config", appName+".yaml")
	}

	c := Default()
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf(
			"unmarshaling config file `%s`: %w",
			configFile,
			err,
		)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Geometry() device.Geometry {
	return device.Geometry{BlockSize: c.BlockSize, Blocks: c.Blocks}
}

func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		if c.Volume == "" {
			return "volume", "VOLUME"
		}
		if c.Device == DeviceFile && c.Dir == "" {
			return "dir", "DIR"
		}
		if c.Device == DeviceS3 && c.S3Bucket == "" {
			return "s3Bucket", "S3_BUCKET"
		}
		if c.Addr == "" {
			return "addr", "ADDR"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			y,
			envVarPrefix,
			e,
		)
	}

	switch c.Device {
	case DeviceMemory, DeviceFile, DeviceS3, DevicePostgres:
	default:
		return fmt.Errorf(
			"invalid configuration: device `%s` is not one of "+
				"`memory`, `file`, `s3` or `postgres`",
			c.Device,
		)
	}
	switch c.Allocator {
	case AllocatorScan, AllocatorIndexed:
	default:
		return fmt.Errorf(
			"invalid configuration: allocator `%s` is not `scan` or `indexed`",
			c.Allocator,
		)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf(
			"invalid configuration: log format `%s` is not `text` or `json`",
			c.LogFormat,
		)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ConfigureLogger applies the log level and format to `logger`.
func (c *Config) ConfigureLogger(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	logger.SetLevel(level)
	if c.LogFormat == LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	return nil
}
