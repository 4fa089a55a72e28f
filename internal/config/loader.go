// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration with precedence: ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a configuration loader. configPath may be empty, in
// which case only defaults and environment variables apply.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load resolves the configuration in strict order: defaults, file, env,
// derived paths, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults(l.version)

	if l.configPath != "" {
		if err := mergeFile(&cfg, l.configPath); err != nil {
			return AppConfig{}, err
		}
	}
	mergeEnv(&cfg)

	// Artifact directories hang off the data dir unless overridden.
	if cfg.QRDir == "" {
		cfg.QRDir = filepath.Join(cfg.DataDir, "qr")
	}
	if cfg.UsersDir == "" {
		cfg.UsersDir = filepath.Join(cfg.DataDir, "users")
	}

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func defaults(version string) AppConfig {
	return AppConfig{
		Version:              version,
		Listen:               ":8080",
		DataDir:              "./data",
		LogLevel:             "info",
		LogService:           "webpanel",
		AllowedOrigins:       []string{"*"},
		APIRequestsPerMinute: 600,
		LoginRatePerSecond:   1,
		LoginBurst:           5,
		GlobalRatePerSecond:  10,
		GlobalBurst:          20,
		LogoutTimeout:        5 * time.Second,
		ShutdownTimeout:      15 * time.Second,
		VirtualIdler:         true,
	}
}

func mergeFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Listen != "" {
		cfg.Listen = fc.Listen
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogService != "" {
		cfg.LogService = fc.LogService
	}
	if len(fc.API.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.API.AllowedOrigins
	}
	if fc.API.RequestsPerMinute > 0 {
		cfg.APIRequestsPerMinute = fc.API.RequestsPerMinute
	}
	if fc.RateLimit.LoginRatePerSecond > 0 {
		cfg.LoginRatePerSecond = fc.RateLimit.LoginRatePerSecond
	}
	if fc.RateLimit.LoginBurst > 0 {
		cfg.LoginBurst = fc.RateLimit.LoginBurst
	}
	if fc.RateLimit.GlobalRatePerSecond > 0 {
		cfg.GlobalRatePerSecond = fc.RateLimit.GlobalRatePerSecond
	}
	if fc.RateLimit.GlobalBurst > 0 {
		cfg.GlobalBurst = fc.RateLimit.GlobalBurst
	}
	if fc.LogoutTimeout != "" {
		d, err := time.ParseDuration(fc.LogoutTimeout)
		if err != nil {
			return fmt.Errorf("parse logoutTimeout: %w", err)
		}
		cfg.LogoutTimeout = d
	}
	if fc.ShutdownTimeout != "" {
		d, err := time.ParseDuration(fc.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("parse shutdownTimeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if fc.VirtualIdler != nil {
		cfg.VirtualIdler = *fc.VirtualIdler
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.Listen = ParseString("WEBPANEL_LISTEN", cfg.Listen)
	cfg.DataDir = ParseString("WEBPANEL_DATA", cfg.DataDir)
	cfg.QRDir = ParseString("WEBPANEL_QR_DIR", cfg.QRDir)
	cfg.UsersDir = ParseString("WEBPANEL_USERS_DIR", cfg.UsersDir)
	cfg.LogLevel = ParseString("WEBPANEL_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("WEBPANEL_LOG_SERVICE", cfg.LogService)

	if v := ParseString("WEBPANEL_ALLOWED_ORIGINS", ""); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		if len(origins) > 0 {
			cfg.AllowedOrigins = origins
		}
	}

	cfg.APIRequestsPerMinute = ParseInt("WEBPANEL_API_REQUESTS_PER_MINUTE", cfg.APIRequestsPerMinute)
	cfg.LoginRatePerSecond = ParseFloat("WEBPANEL_LOGIN_RATE", cfg.LoginRatePerSecond)
	cfg.LoginBurst = ParseInt("WEBPANEL_LOGIN_BURST", cfg.LoginBurst)
	cfg.GlobalRatePerSecond = ParseFloat("WEBPANEL_GLOBAL_RATE", cfg.GlobalRatePerSecond)
	cfg.GlobalBurst = ParseInt("WEBPANEL_GLOBAL_BURST", cfg.GlobalBurst)
	cfg.LogoutTimeout = ParseDuration("WEBPANEL_LOGOUT_TIMEOUT", cfg.LogoutTimeout)
	cfg.ShutdownTimeout = ParseDuration("WEBPANEL_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.VirtualIdler = ParseBool("WEBPANEL_VIRTUAL_IDLER", cfg.VirtualIdler)
}
