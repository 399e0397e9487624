// Package config loads the process-wide Nexus configuration: the EBICS
// subscriber identity, the fetch/submit loop schedules and the HTTP
// façade settings. Configuration is read once at startup from a YAML
// file (with environment variable overrides for container deployment)
// and never reloaded.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the runtime environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// ConfigEnvVar names the environment variable pointing at the main
// configuration file, mirroring LIBEUFIN_NEXUS_CONFIG from the spec.
const ConfigEnvVar = "LIBEUFIN_NEXUS_CONFIG"

// DefaultConfigPath is used when LIBEUFIN_NEXUS_CONFIG is unset.
const DefaultConfigPath = "/etc/libeufin-nexus/nexus.yaml"

// Config holds all service configuration.
type Config struct {
	Environment Environment
	Currency    string `yaml:"currency"`
	Server      ServerConfig
	Database    DatabaseConfig
	Security    SecurityConfig
	Ebics       EbicsConfig  `yaml:"nexus-ebics"`
	Fetch       FetchConfig  `yaml:"nexus-fetch"`
	Submit      SubmitConfig `yaml:"nexus-submit"`
	HTTPD       HTTPDConfig  `yaml:"nexus-httpd"`
}

// ServerConfig holds process-level HTTP server tuning, independent of
// the nexus-httpd bind settings.
type ServerConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// SecurityConfig holds settings for the credential hashing scheme used
// by the bearer-token auth method.
type SecurityConfig struct {
	// AcceptLegacyPasswordHash selects whether the older unsalted
	// "sha256$<base64>" scheme is accepted in addition to the current
	// salted scheme (see SPEC_FULL.md Open Question 2). Defaults to true.
	// No package reads it: the bearer-token check does not call
	// cryptoutil.PwVerify.
	AcceptLegacyPasswordHash bool
}

// EbicsConfig holds the EBICS subscriber identity and bank dialect
// (nexus-ebics section, spec §3).
type EbicsConfig struct {
	HostBaseURL           string `yaml:"host_base_url"`
	HostID                string `yaml:"host_id"`
	UserID                string `yaml:"user_id"`
	PartnerID             string `yaml:"partner_id"`
	SystemID              string `yaml:"system_id"`
	IBAN                  string `yaml:"iban"`
	BIC                   string `yaml:"bic"`
	AccountHolder         string `yaml:"account_holder"`
	BankPublicKeysFile    string `yaml:"bank_public_keys_file"`
	ClientPrivateKeysFile string `yaml:"client_private_keys_file"`
	BankDialect           string `yaml:"bank_dialect"`
}

// FetchConfig holds the fetch loop schedule (nexus-fetch section).
type FetchConfig struct {
	Frequency                time.Duration `yaml:"frequency"`
	IgnoreTransactionsBefore time.Time     `yaml:"ignore_transactions_before"`
}

// SubmitConfig holds the submit loop schedule (nexus-submit section).
type SubmitConfig struct {
	Frequency time.Duration `yaml:"frequency"`
}

// HTTPDConfig holds the Taler-facing HTTP façade bind settings
// (nexus-httpd section).
type HTTPDConfig struct {
	Serve      string `yaml:"serve"` // "tcp" or "unix"
	Port       string `yaml:"port"`
	UnixPath   string `yaml:"unixpath"`
	AuthMethod string `yaml:"auth_method"` // "none" or "bearer-token+<token>"
}

// BearerToken extracts the configured token from an auth_method of the
// form "bearer-token+<token>". Returns ok=false for "none" or malformed
// values.
func (h HTTPDConfig) BearerToken() (token string, ok bool) {
	const prefix = "bearer-token+"
	if !strings.HasPrefix(h.AuthMethod, prefix) {
		return "", false
	}
	token = strings.TrimPrefix(h.AuthMethod, prefix)
	return token, token != ""
}

// Load reads the YAML config file named by LIBEUFIN_NEXUS_CONFIG (or
// DefaultConfigPath) and layers environment variable overrides on top,
// so containerized deployments can avoid baking secrets into the file.
func Load() (*Config, error) {
	path := getEnv(ConfigEnvVar, DefaultConfigPath)

	cfg := &Config{
		Environment: Environment(getEnv("ENV", "production")),
		Currency:    "CHF",
		Server: ServerConfig{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "nexus",
			Name:     "nexus",
			SSLMode:  "require",
			MaxConns: 10,
		},
		Security: SecurityConfig{AcceptLegacyPasswordHash: true},
		HTTPD: HTTPDConfig{
			Serve: "tcp",
			Port:  "8080",
		},
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		strict := yaml.NewDecoder(bytes.NewReader(data))
		strict.KnownFields(true)
		if err := strict.Decode(&Config{}); err != nil && !errors.Is(err, io.EOF) {
			slog.Warn("config file contains unknown keys, ignoring them", "path", path, "error", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Environment != EnvDevelopment && cfg.Environment != EnvProduction && cfg.Environment != EnvTest {
		cfg.Environment = EnvProduction
	}

	return cfg, nil
}

// applyEnvOverrides layers DB_* and NEXUS_* environment variables on
// top of whatever the YAML file set, so operators can inject secrets
// (passwords, tokens) without writing them to disk.
func applyEnvOverrides(cfg *Config) {
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	if v := getInt("DB_MAX_CONNS", 0); v > 0 {
		cfg.Database.MaxConns = int32(v)
	}

	cfg.Ebics.HostBaseURL = getEnv("NEXUS_HOST_BASE_URL", cfg.Ebics.HostBaseURL)
	cfg.Ebics.HostID = getEnv("NEXUS_HOST_ID", cfg.Ebics.HostID)
	cfg.Ebics.UserID = getEnv("NEXUS_USER_ID", cfg.Ebics.UserID)
	cfg.Ebics.PartnerID = getEnv("NEXUS_PARTNER_ID", cfg.Ebics.PartnerID)

	if v := os.Getenv("NEXUS_HTTPD_AUTH_METHOD"); v != "" {
		cfg.HTTPD.AuthMethod = v
	}
	cfg.Security.AcceptLegacyPasswordHash = getBool("NEXUS_ACCEPT_LEGACY_PASSWORD_HASH", cfg.Security.AcceptLegacyPasswordHash)
}

// Validate checks that all required configuration for the selected
// components is present. The currency, the EBICS identity and the
// nexus-httpd settings are checked in every environment; DB_PASSWORD
// is required only in production.
func (c *Config) Validate() error {
	var errs []string

	if c.Currency == "" {
		errs = append(errs, "currency is required")
	}
	if c.Ebics.HostBaseURL == "" {
		errs = append(errs, "nexus-ebics.host_base_url is required")
	}
	if c.Ebics.HostID == "" {
		errs = append(errs, "nexus-ebics.host_id is required")
	}
	if c.Ebics.PartnerID == "" {
		errs = append(errs, "nexus-ebics.partner_id is required")
	}
	if c.Ebics.UserID == "" {
		errs = append(errs, "nexus-ebics.user_id is required")
	}
	if c.Ebics.IBAN == "" {
		errs = append(errs, "nexus-ebics.iban is required")
	}

	switch c.HTTPD.Serve {
	case "tcp", "unix", "":
	default:
		errs = append(errs, fmt.Sprintf("nexus-httpd.serve must be tcp or unix, got %q", c.HTTPD.Serve))
	}
	if c.HTTPD.Serve == "unix" && c.HTTPD.UnixPath == "" {
		errs = append(errs, "nexus-httpd.unixpath is required when serve=unix")
	}
	if c.HTTPD.AuthMethod != "none" && c.HTTPD.AuthMethod != "" {
		if _, ok := c.HTTPD.BearerToken(); !ok {
			errs = append(errs, "nexus-httpd.auth_method must be 'none' or 'bearer-token+<token>'")
		}
	}

	if c.Environment == EnvProduction && c.Database.Password == "" {
		errs = append(errs, "DB_PASSWORD is required in production")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
