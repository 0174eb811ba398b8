// Package config provides the single configuration object for ssocheck.
// It is built once from the process environment, optionally merged with a
// dotenv file, and passed down to every command. Nothing else reads the
// environment directly.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// DefaultEnvFile is loaded when present and no explicit file is given.
const DefaultEnvFile = ".env"

// Config holds all ssocheck configuration.
type Config struct {
	// Deployment
	BaseDomain string `env:"BASE_DOMAIN" envDefault:"localhost"`

	// Credentials used for every login flow
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"password123"`

	// Browser
	Headless       bool          `env:"HEADLESS" envDefault:"true"`
	BrowserTimeout time.Duration `env:"BROWSER_TIMEOUT" envDefault:"30s"`
	LogRequests    bool          `env:"LOG_BROWSER_REQUESTS" envDefault:"false"`

	// Login driver
	LoginMaxAttempts int     `env:"LOGIN_MAX_ATTEMPTS" envDefault:"20"`
	LoginPauseScale  float64 `env:"LOGIN_PAUSE_SCALE" envDefault:"1"`

	// Minimum spacing between check starts when running in parallel
	CheckStartInterval time.Duration `env:"CHECK_START_INTERVAL" envDefault:"2s"`

	// Identity provider
	IdPInternalURL string `env:"IDP_INTERNAL_URL" envDefault:"http://apukone-authentik-server:9000"`
	IdPAppSlug     string `env:"IDP_APP_SLUG" envDefault:"windmill"`

	// Windmill OAuth client file
	OAuthClientID     string `env:"WINDMILL_OIDC_CLIENT_ID"`
	OAuthClientSecret string `env:"WINDMILL_OIDC_CLIENT_SECRET"`
	OAuthConfigPath   string `env:"OAUTH_CONFIG_PATH" envDefault:"/usr/src/app/oauth.json"`
	OAuthProviderName string `env:"OAUTH_PROVIDER_NAME" envDefault:"Authentik"`

	// Debug artifacts. Uploads are enabled when ArtifactBucket is set.
	DebugDir           string `env:"DEBUG_DIR" envDefault:"tests/debug"`
	ArtifactBucket     string `env:"ARTIFACT_BUCKET"`
	AWSEndpointS3      string `env:"AWS_ENDPOINT_URL_S3"`
	AWSRegion          string `env:"AWS_REGION" envDefault:"auto"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load builds a Config from the process environment merged over the dotenv
// file at envFile. Process variables win. An empty envFile means
// DefaultEnvFile, which may be absent; an explicit file must exist.
func Load(envFile string) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}

	fileVars, err := readEnvFile(envFile)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			fileVars = nil
		} else {
			return nil, err
		}
	}

	return LoadFrom(mergeEnv(fileVars, env.ToMap(os.Environ())))
}

// LoadFrom builds a Config from an explicit variable map. Used by Load and tests.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.BaseDomain = strings.TrimSpace(cfg.BaseDomain)
	cfg.IdPInternalURL = strings.TrimRight(strings.TrimSpace(cfg.IdPInternalURL), "/")
	cfg.OAuthClientID = strings.TrimSpace(cfg.OAuthClientID)
	cfg.OAuthClientSecret = strings.TrimSpace(cfg.OAuthClientSecret)
	cfg.ArtifactBucket = strings.TrimSpace(cfg.ArtifactBucket)
	cfg.AWSEndpointS3 = strings.TrimSpace(cfg.AWSEndpointS3)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	vars := make(map[string]string, len(v.AllKeys()))
	for _, key := range v.AllKeys() {
		vars[strings.ToUpper(key)] = v.GetString(key)
	}
	return vars, nil
}

func mergeEnv(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// Validate checks that all configuration needed by every command is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.BaseDomain == "" {
		errs = append(errs, "BASE_DOMAIN must not be empty")
	} else if strings.Contains(c.BaseDomain, "://") || strings.Contains(c.BaseDomain, "/") {
		errs = append(errs, "BASE_DOMAIN must be a bare domain (no scheme or path)")
	}

	if c.AdminEmail == "" {
		errs = append(errs, "ADMIN_EMAIL must not be empty")
	}
	if c.AdminPassword == "" {
		errs = append(errs, "ADMIN_PASSWORD must not be empty")
	}

	if c.BrowserTimeout <= 0 {
		errs = append(errs, "BROWSER_TIMEOUT must be positive")
	}
	if c.LoginMaxAttempts < 1 {
		errs = append(errs, "LOGIN_MAX_ATTEMPTS must be at least 1")
	}
	if c.LoginPauseScale < 0 {
		errs = append(errs, "LOGIN_PAUSE_SCALE must not be negative")
	}
	if c.CheckStartInterval < 0 {
		errs = append(errs, "CHECK_START_INTERVAL must not be negative")
	}

	if u, err := url.Parse(c.IdPInternalURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "IDP_INTERNAL_URL must be an absolute http(s) URL")
	}
	if c.IdPAppSlug == "" {
		errs = append(errs, "IDP_APP_SLUG must not be empty")
	}

	if c.DebugDir == "" {
		errs = append(errs, "DEBUG_DIR must not be empty")
	}
	if c.ArtifactBucket != "" && c.AWSEndpointS3 != "" {
		if u, err := url.Parse(c.AWSEndpointS3); err != nil || u.Host == "" {
			errs = append(errs, "AWS_ENDPOINT_URL_S3 must be an absolute URL")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// RequireOAuthClient checks the settings only the OAuth client file generator needs.
func (c *Config) RequireOAuthClient() error {
	var errs []string
	if c.OAuthClientID == "" {
		errs = append(errs, "WINDMILL_OIDC_CLIENT_ID is required")
	}
	if c.OAuthClientSecret == "" {
		errs = append(errs, "WINDMILL_OIDC_CLIENT_SECRET is required")
	}
	if c.OAuthConfigPath == "" {
		errs = append(errs, "OAUTH_CONFIG_PATH must not be empty")
	}
	if c.OAuthProviderName == "" {
		errs = append(errs, "OAUTH_PROVIDER_NAME must not be empty")
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// UploadsEnabled reports whether debug artifacts are mirrored to object storage.
func (c *Config) UploadsEnabled() bool {
	return c.ArtifactBucket != ""
}

// PauseScale returns d scaled by LOGIN_PAUSE_SCALE.
func (c *Config) PauseScale(d time.Duration) time.Duration {
	return time.Duration(float64(d) * c.LoginPauseScale)
}

// PrintStartupSummary prints a human-readable summary of the configuration.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "ssocheck starting...")
	fmt.Fprintf(w, "  Domain:    %s\n", c.BaseDomain)
	fmt.Fprintf(w, "  Identity:  %s\n", c.AdminEmail)
	fmt.Fprintf(w, "  Browser:   headless=%t timeout=%s\n", c.Headless, c.BrowserTimeout)
	fmt.Fprintf(w, "  Login:     max_attempts=%d pause_scale=%g\n", c.LoginMaxAttempts, c.LoginPauseScale)
	fmt.Fprintf(w, "  Debug dir: %s\n", c.DebugDir)
	if c.UploadsEnabled() {
		fmt.Fprintf(w, "  Uploads:   s3://%s (endpoint: %s)\n", c.ArtifactBucket, c.AWSEndpointS3)
	} else {
		fmt.Fprintln(w, "  Uploads:   disabled")
	}
	fmt.Fprintln(w, "")
}
