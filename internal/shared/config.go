package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	TMDB     TMDBConfig     `toml:"tmdb"`
	Firebase FirebaseConfig `toml:"firebase"`
	Google   GoogleConfig   `toml:"google"`
	SendGrid SendGridConfig `toml:"sendgrid"`
}

// TMDBConfig contains The Movie Database API settings.
//
// APIKeySecret is a Secret Manager resource name
// (projects/<p>/secrets/<s>/versions/<v>) consulted when APIKey is empty.
type TMDBConfig struct {
	APIKey       string  `toml:"api_key"`
	APIKeySecret string  `toml:"api_key_secret"`
	BaseURL      string  `toml:"base_url"`
	ImageBaseURL string  `toml:"image_base_url"`
	RateLimit    float64 `toml:"rate_limit"`
	Timeout      int     `toml:"timeout_seconds"`
}

// FirebaseConfig contains Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string `toml:"project_id"`
	APIKey          string `toml:"api_key"`
	CredentialsFile string `toml:"credentials_file"`
	UsersCollection string `toml:"users_collection"`
	IdentityURL     string `toml:"identity_url"`
	TokenURL        string `toml:"token_url"`
}

// GoogleConfig contains the OAuth client used for federated sign-in.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// SendGridConfig contains receipt e-mail settings. An empty APIKey disables receipts.
type SendGridConfig struct {
	APIKey   string `toml:"api_key"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the local OAuth callback server settings.
type ServerConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	CallbackWindow int    `toml:"callback_window_seconds"`
}

// StorageConfig contains the Cloud Storage bucket used for library exports.
type StorageConfig struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

// Addr returns the host:port the callback server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CallbackTimeout is how long federated sign-in waits for the browser to return.
func (s ServerConfig) CallbackTimeout() time.Duration {
	if s.CallbackWindow <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.CallbackWindow) * time.Second
}

// RequestTimeout returns the configured catalog request timeout.
func (t TMDBConfig) RequestTimeout() time.Duration {
	if t.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.Timeout) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports which required credentials are missing.
func (c *Config) Validate() error {
	switch {
	case c.Credentials.TMDB.APIKey == "" && c.Credentials.TMDB.APIKeySecret == "":
		return fmt.Errorf("%w: tmdb.api_key or tmdb.api_key_secret", ErrMissingCredentials)
	case c.Credentials.Firebase.ProjectID == "":
		return fmt.Errorf("%w: firebase.project_id", ErrMissingCredentials)
	case c.Credentials.Firebase.APIKey == "":
		return fmt.Errorf("%w: firebase.api_key", ErrMissingCredentials)
	}
	return nil
}
