// Package config loads the server configuration.
//
// LOAD ORDER (later wins):
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_FILE, default "config.yaml")
//  3. environment variables, after an optional .env file has been loaded
//     into the environment
//
// A .env never overrides variables that are already set, so a real
// environment always beats the file sitting next to the binary.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort          = 8080
	DefaultDBPath        = "data/dashboard.db"
	DefaultGitHubAPIURL  = "https://api.github.com/"
	DefaultSyncChunkSize = 50
)

// Config is everything cmd/server needs to start.
type Config struct {
	Port        int    `yaml:"port"`
	DBPath      string `yaml:"db_path"`
	// TemplateDir and StaticDir serve files from disk instead of the
	// copies embedded in the binary. Empty means embedded.
	TemplateDir string `yaml:"template_dir"`
	StaticDir   string `yaml:"static_dir"`
	LogLevel    string `yaml:"log_level"`

	// BackendURL is where the dashboard page sends its /api/github/* calls.
	// Empty means this server itself.
	BackendURL string `yaml:"backend_url"`

	JWTSecret   string `yaml:"jwt_secret"`
	SessionKey  string `yaml:"session_key"`
	TokenEncKey string `yaml:"token_enc_key"`

	GitHub GitHubConfig `yaml:"github"`

	SyncChunkSize int `yaml:"sync_chunk_size"`
}

type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
	APIURL       string `yaml:"api_url"`
}

// Default returns a Config with every optional field filled in.
func Default() Config {
	return Config{
		Port:          DefaultPort,
		DBPath:        DefaultDBPath,
		LogLevel:      "info",
		SyncChunkSize: DefaultSyncChunkSize,
		GitHub: GitHubConfig{
			APIURL: DefaultGitHubAPIURL,
		},
	}
}

// Load builds the configuration. A missing YAML file or .env is not an error;
// a malformed one is. The result is validated.
func Load(envFile, yamlFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	if yamlFile == "" {
		yamlFile = os.Getenv("CONFIG_FILE")
	}
	if yamlFile != "" {
		if err := cfg.mergeYAML(yamlFile); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.mergeEnv(os.Getenv); err != nil {
		return Config{}, err
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// mergeEnv overrides fields from the environment. getenv is os.Getenv outside tests.
func (c *Config) mergeEnv(getenv func(string) string) error {
	str := map[string]*string{
		"DB_PATH":              &c.DBPath,
		"TEMPLATE_DIR":         &c.TemplateDir,
		"STATIC_DIR":           &c.StaticDir,
		"LOG_LEVEL":            &c.LogLevel,
		"BACKEND_URL":          &c.BackendURL,
		"JWT_SECRET":           &c.JWTSecret,
		"SESSION_KEY":          &c.SessionKey,
		"TOKEN_ENC_KEY":        &c.TokenEncKey,
		"GITHUB_CLIENT_ID":     &c.GitHub.ClientID,
		"GITHUB_CLIENT_SECRET": &c.GitHub.ClientSecret,
		"GITHUB_CALLBACK_URL":  &c.GitHub.CallbackURL,
		"GITHUB_API_URL":       &c.GitHub.APIURL,
	}
	for key, field := range str {
		if v := getenv(key); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"PORT":            &c.Port,
		"SYNC_CHUNK_SIZE": &c.SyncChunkSize,
	}
	for key, field := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v) // Atoi = ASCII to Integer
		if err != nil {
			return fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
		}
		*field = n
	}
	return nil
}

// Validate fails fast on configuration the server cannot run with. All
// problems are reported at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if len(c.SessionKey) < 32 {
		errs = append(errs, errors.New("SESSION_KEY must be at least 32 characters"))
	}
	if key, err := base64.StdEncoding.DecodeString(c.TokenEncKey); err != nil || len(key) != 32 {
		errs = append(errs, errors.New("TOKEN_ENC_KEY must be 32 bytes, base64 encoded"))
	}
	if c.GitHub.ClientID == "" || c.GitHub.ClientSecret == "" {
		errs = append(errs, errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required"))
	}
	if c.SyncChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("sync chunk size must be positive, got %d", c.SyncChunkSize))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}
