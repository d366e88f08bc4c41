// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package config holds the notification daemon configuration: YAML file first,
// then NOTIFYD_* environment variables on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	config_loader "github.com/amratab/xctool/pkg/config/loader"
	"github.com/amratab/xctool/pkg/log"
)

var clog = log.WithComponent("Configuration")

var (
	ErrUnableToParseConfigFile = errors.New("unable to parse configuration file")
	ErrInvalidConfig           = errors.New("invalid configuration")
)

// Config for the notification daemon and its clients.
type Config struct {
	// SocketPath is the Unix socket the daemon listens on and clients dial.
	// Default: /var/run/notifyd.sock
	SocketPath string `yaml:"socket_path" envconfig:"socket_path"`

	// SocketMode is the permission set applied to the socket file.
	// Default: 0666
	SocketMode uint32 `yaml:"socket_mode" envconfig:"socket_mode"`

	// StatusServerEnabled exposes the local HTTP status API.
	// Default: false
	StatusServerEnabled bool `yaml:"status_server_enabled" envconfig:"status_server_enabled"`

	// StatusServerPort is the localhost port for the status API.
	// Default: 18003
	StatusServerPort int `yaml:"status_server_port" envconfig:"status_server_port"`

	// LogLevel is one of trace, debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level" envconfig:"log_level"`

	// LogFormat is text or json.
	// Default: text
	LogFormat string `yaml:"log_format" envconfig:"log_format"`

	// Verbose forces debug logging when non zero, whatever LogLevel says.
	// Default: 0
	Verbose int `yaml:"verbose" envconfig:"verbose"`

	// VerboseDuration is how long a temporary verbose request lasts.
	// Default: 5m
	VerboseDuration time.Duration `yaml:"verbose_duration" envconfig:"verbose_duration"`

	// MaxNameLength bounds accepted notification names.
	// Default: 512
	MaxNameLength int `yaml:"max_name_length" envconfig:"max_name_length"`

	// StateRetention is how many states of names without registrations are kept.
	// Default: 1024
	StateRetention int `yaml:"state_retention" envconfig:"state_retention"`

	// DeliveryTimeout bounds a single delivery write to a consumer.
	// Default: 1s
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" envconfig:"delivery_timeout"`

	// ConfigFilePath is the file the configuration was loaded from, if any.
	ConfigFilePath string `yaml:"-" ignored:"true"`
}

// NewConfig returns a configuration holding the defaults.
func NewConfig() *Config {
	return &Config{
		SocketPath:       defaultSocketPath,
		SocketMode:       defaultSocketMode,
		StatusServerPort: defaultStatusPort,
		LogLevel:         defaultLogLevel,
		LogFormat:        defaultLogFormat,
		VerboseDuration:  defaultVerboseDuration,
		MaxNameLength:    defaultMaxNameLength,
		StateRetention:   defaultStateRetention,
		DeliveryTimeout:  defaultDeliveryTimeout,
	}
}

// LoadConfig reads configFile, or the first default file found, and applies
// environment overrides.
func LoadConfig(configFile string) (*Config, error) {
	var filesToCheck []string
	if configFile != "" {
		filesToCheck = append(filesToCheck, configFile)
	}
	filesToCheck = append(filesToCheck, defaultConfigFiles...)

	cfg := NewConfig()
	if _, err := config_loader.LoadYamlConfig(cfg, filesToCheck...); err != nil {
		return cfg, fmt.Errorf("%w, %s: %s", ErrUnableToParseConfigFile, configFile, err.Error())
	}
	cfg.ConfigFilePath = firstExisting(filesToCheck)

	configOverride(cfg)

	return cfg, NormalizeConfig(cfg)
}

func configOverride(cfg *Config) {
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		clog.WithError(err).Error("unable to interpret environment variables")
	}
}

// NormalizeConfig fills zero values with defaults and rejects unusable settings.
func NormalizeConfig(cfg *Config) error {
	if cfg.SocketPath == "" {
		cfg.SocketPath = defaultSocketPath
	}
	if cfg.SocketMode == 0 {
		cfg.SocketMode = defaultSocketMode
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = defaultMaxNameLength
	}
	if cfg.StateRetention < 0 {
		cfg.StateRetention = 0
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if cfg.VerboseDuration <= 0 {
		cfg.VerboseDuration = defaultVerboseDuration
	}
	if cfg.Verbose > 0 {
		cfg.LogLevel = "debug"
	}

	switch cfg.LogFormat {
	case "", defaultLogFormat:
		cfg.LogFormat = defaultLogFormat
	case "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, cfg.LogFormat)
	}

	if cfg.StatusServerEnabled && (cfg.StatusServerPort <= 0 || cfg.StatusServerPort > 65535) {
		return fmt.Errorf("%w: status_server_port %d out of range", ErrInvalidConfig, cfg.StatusServerPort)
	}
	return nil
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
