package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scraps/internal/aitransform"
	"github.com/starford/scraps/internal/apperr"
	"github.com/starford/scraps/internal/kv"
	"github.com/starford/scraps/internal/syncer"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Store  StoreConfig       `yaml:"store"`
	Notion NotionConfig      `yaml:"notion"`
	AI     AIConfig          `yaml:"ai"`
	Sync   SyncConfig        `yaml:"sync"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Notion.Validate(); err != nil {
		return err
	}
	if err := c.AI.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// Ready reports configuration-level problems that keep sync from running.
// The error wraps apperr.ErrNotConfigured.
func (c *Config) Ready() error {
	if c.Notion.Token == "" {
		return fmt.Errorf("notion: token is empty: %w", apperr.ErrNotConfigured)
	}
	if c.Notion.DatabaseID == "" {
		return fmt.Errorf("notion: database_id is empty: %w", apperr.ErrNotConfigured)
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai: api_key is empty for provider %q: %w", c.AI.Provider, apperr.ErrNotConfigured)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, sends logs to a size-rotated file instead of stdout.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the local key-value backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(kv.DriverSQLite, kv.DriverFile)),
		validation.Field(&c.Path, validation.Required),
	)
}

// NotionConfig holds the remote database settings.
type NotionConfig struct {
	Token                string        `yaml:"token"`
	DatabaseID           string        `yaml:"database_id"`
	TitleProperty        string        `yaml:"title_property"`
	LastModifiedProperty string        `yaml:"last_modified_property"`
	Retries              int           `yaml:"retries"`
	Timeout              time.Duration `yaml:"timeout"`
}

// Validate validates the Notion configuration. Missing credentials are
// reported by Config.Ready instead.
func (c *NotionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TitleProperty, validation.Required),
		validation.Field(&c.Retries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AIConfig configures the optional transform before push.
type AIConfig struct {
	Enabled   bool                 `yaml:"enabled"`
	Provider  string               `yaml:"provider"`
	Model     string               `yaml:"model"`
	APIKey    string               `yaml:"api_key"`
	Endpoint  string               `yaml:"endpoint"`
	MaxTokens int                  `yaml:"max_tokens"`
	Timeout   time.Duration        `yaml:"timeout"`
	OnFailure syncer.FailurePolicy `yaml:"on_failure"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	if c.OnFailure == "" {
		c.OnFailure = syncer.FailSkip
	}
	kinds := make([]any, 0, len(aitransform.Kinds))
	for _, k := range aitransform.Kinds {
		kinds = append(kinds, string(k))
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.When(c.Enabled, validation.Required), validation.In(kinds...)),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.OnFailure, validation.In(syncer.FailSkip, syncer.FailOriginal)),
	)
}

// ProviderConfig returns the provider settings.
func (c *AIConfig) ProviderConfig() aitransform.Config {
	return aitransform.Config{
		Provider:  aitransform.Kind(c.Provider),
		Model:     c.Model,
		APIKey:    c.APIKey,
		Endpoint:  c.Endpoint,
		MaxTokens: c.MaxTokens,
		Timeout:   c.Timeout,
	}
}

// SyncConfig controls when passes run.
type SyncConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	OnChange        bool          `yaml:"on_change"`
	Debounce        time.Duration `yaml:"debounce"`
	PushConcurrency int           `yaml:"push_concurrency"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.When(c.Interval != 0, validation.Min(10*time.Second))),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.PushConcurrency, validation.Min(1), validation.Max(16)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: kv.DriverSQLite,
			Path:   "./scraps.db",
		},
		Notion: NotionConfig{
			TitleProperty:        "Name",
			LastModifiedProperty: "Last Modified",
			Retries:              3,
			Timeout:              30 * time.Second,
		},
		AI: AIConfig{
			Provider:  string(aitransform.KindOpenAI),
			OnFailure: syncer.FailSkip,
		},
		Sync: SyncConfig{
			Enabled:         true,
			Interval:        5 * time.Minute,
			OnChange:        true,
			Debounce:        2 * time.Second,
			PushConcurrency: 1,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
