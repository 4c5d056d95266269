package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config represents the application configuration loaded from a TOML file,
// with optional overrides from the process environment and a .env file.
//
// The value is validated once at load time and treated as immutable afterwards.
type Config struct {
	LogLevel string         `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	X        XConfig        `toml:"x"`
	Raindrop RaindropConfig `toml:"raindrop"`
	Sync     SyncConfig     `toml:"sync"`
}

// XConfig contains X API credentials and OAuth2 settings.
type XConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	AccessToken  string   `toml:"access_token"`
	RedirectURI  string   `toml:"redirect_uri" validate:"omitempty,url"`
	Scopes       []string `toml:"scopes"`
	TokenPath    string   `toml:"token_path"`
}

// RaindropConfig contains Raindrop.io API credentials.
type RaindropConfig struct {
	Token string `toml:"token"`
}

// SyncConfig contains sync behavior settings.
type SyncConfig struct {
	CollectionID    int64    `toml:"collection_id"`
	CollectionTitle string   `toml:"collection_title"`
	Tags            []string `toml:"tags"`
	RemoveFromX     bool     `toml:"remove_from_x"`
	LinkMode        string   `toml:"link_mode" validate:"omitempty,oneof=permalink first_external_url both"`
	BothBehavior    string   `toml:"both_behavior" validate:"omitempty,oneof=one_external_plus_note two_raindrops"`
	StatePath       string   `toml:"state_path"`
	DryRun          bool     `toml:"dry_run"`
}

// HasDirectToken reports whether a direct access token is configured,
// bypassing the PKCE login flow.
func (x XConfig) HasDirectToken() bool {
	return x.AccessToken != ""
}

// CanUsePKCE reports whether the PKCE login flow can be used.
func (x XConfig) CanUsePKCE() bool {
	return x.ClientID != ""
}

// DefaultConfigDir returns the configuration directory (~/.config/x2raindrop).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".x2raindrop"
	}
	return filepath.Join(home, ".config", "x2raindrop")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.toml")
}

// DefaultStatePath returns the default sync ledger path.
func DefaultStatePath() string {
	return filepath.Join(DefaultConfigDir(), "state.json")
}

// DefaultTokenPath returns the default X token file path.
func DefaultTokenPath() string {
	return filepath.Join(DefaultConfigDir(), "x_token.json")
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// overlays .env / environment overrides, fills defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	_ = godotenv.Load()

	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.X.ClientID = ""
	config.Raindrop.Token = ""
	config.applyEnv()
	config.applyDefaults()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidArgument, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks structural constraints on the configuration.
//
// Credential presence is checked per command, not here, so that read-only
// commands work with a partially filled config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Sync.CollectionID != 0 && c.Sync.CollectionTitle != "" {
		return fmt.Errorf("%w: collection_id and collection_title are mutually exclusive", ErrInvalidConfig)
	}
	return nil
}

// applyEnv overlays environment variable overrides onto the config.
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.LogLevel, "X2RAINDROP_LOG_LEVEL")
	set(&c.X.ClientID, "X_CLIENT_ID")
	set(&c.X.ClientSecret, "X_CLIENT_SECRET")
	set(&c.X.AccessToken, "X_ACCESS_TOKEN")
	set(&c.X.RedirectURI, "X_REDIRECT_URI")
	set(&c.Raindrop.Token, "RAINDROP_TOKEN")
	if v, ok := os.LookupEnv("SYNC_TAGS"); ok {
		c.Sync.Tags = ParseTags(v)
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.X.RedirectURI == "" {
		c.X.RedirectURI = "http://127.0.0.1:8765/callback"
	}
	if len(c.X.Scopes) == 0 {
		c.X.Scopes = []string{"bookmark.read", "bookmark.write", "tweet.read", "users.read", "offline.access"}
	}
	if c.X.TokenPath == "" {
		c.X.TokenPath = DefaultTokenPath()
	}
	if c.Sync.LinkMode == "" {
		c.Sync.LinkMode = "permalink"
	}
	if c.Sync.BothBehavior == "" {
		c.Sync.BothBehavior = "one_external_plus_note"
	}
	if c.Sync.StatePath == "" {
		c.Sync.StatePath = DefaultStatePath()
	}
}

// ParseTags splits a comma-separated tag list, trimming whitespace and dropping empties.
func ParseTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
