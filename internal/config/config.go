// SPDX-License-Identifier: MIT

// Package config provides configuration management for webpanel.
package config

import (
	"fmt"
	"strings"
	"time"
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version  string
	Listen   string
	DataDir  string
	QRDir    string
	UsersDir string

	LogLevel   string
	LogService string

	AllowedOrigins       []string
	APIRequestsPerMinute int

	LoginRatePerSecond  float64
	LoginBurst          int
	GlobalRatePerSecond float64
	GlobalBurst         int

	LogoutTimeout   time.Duration
	ShutdownTimeout time.Duration

	// VirtualIdler selects the in-process idler backend. There is no real
	// Steam client wired in yet, so this defaults to true.
	VirtualIdler bool
}

// FileConfig represents the YAML configuration structure.
type FileConfig struct {
	Version    string `yaml:"version,omitempty"`
	Listen     string `yaml:"listen,omitempty"`
	DataDir    string `yaml:"dataDir,omitempty"`
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	API struct {
		AllowedOrigins    []string `yaml:"allowedOrigins,omitempty"`
		RequestsPerMinute int      `yaml:"requestsPerMinute,omitempty"`
	} `yaml:"api,omitempty"`

	RateLimit struct {
		LoginRatePerSecond  float64 `yaml:"loginRatePerSecond,omitempty"`
		LoginBurst          int     `yaml:"loginBurst,omitempty"`
		GlobalRatePerSecond float64 `yaml:"globalRatePerSecond,omitempty"`
		GlobalBurst         int     `yaml:"globalBurst,omitempty"`
	} `yaml:"rateLimit,omitempty"`

	LogoutTimeout   string `yaml:"logoutTimeout,omitempty"`
	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`

	VirtualIdler *bool `yaml:"virtualIdler,omitempty"`
}

// Validate checks the resolved configuration for obvious mistakes.
func Validate(cfg AppConfig) error {
	var problems []string

	if strings.TrimSpace(cfg.Listen) == "" {
		problems = append(problems, "Listen: must not be empty")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		problems = append(problems, "DataDir: must not be empty")
	}
	if cfg.APIRequestsPerMinute < 1 {
		problems = append(problems, "APIRequestsPerMinute: must be >= 1")
	}
	if cfg.LoginRatePerSecond <= 0 || cfg.LoginBurst < 1 {
		problems = append(problems, "login rate limit: rate must be > 0 and burst >= 1")
	}
	if cfg.GlobalRatePerSecond <= 0 || cfg.GlobalBurst < 1 {
		problems = append(problems, "global rate limit: rate must be > 0 and burst >= 1")
	}
	if cfg.LogoutTimeout <= 0 {
		problems = append(problems, "LogoutTimeout: must be > 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		problems = append(problems, "ShutdownTimeout: must be > 0")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("LogLevel: unknown level %q", cfg.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
