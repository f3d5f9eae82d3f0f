package internal

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Library  LibraryConfig     `yaml:"library"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Sidecars SidecarsConfig    `yaml:"sidecars"`
	Resolver ResolverConfig    `yaml:"resolver"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Sidecars.Validate(); err != nil {
		return err
	}
	if err := c.Resolver.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
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

// LibraryConfig holds the library root and the weight-file extensions the
// scanner indexes.
type LibraryConfig struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extensions, validation.Required),
	); err != nil {
		return err
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("library: extension %q must start with a dot", ext)
		}
	}
	return nil
}

// SQLiteConfig holds the history database path.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SidecarsConfig maps sidecar filename suffixes to their kind. Empty means
// the built-in conventional set.
type SidecarsConfig struct {
	Suffixes map[string]string `yaml:"suffixes"`
}

var sidecarKinds = map[string]models.SidecarKind{
	string(models.SidecarPreview):  models.SidecarPreview,
	string(models.SidecarInfo):     models.SidecarInfo,
	string(models.SidecarMetadata): models.SidecarMetadata,
	string(models.SidecarOther):    models.SidecarOther,
}

// Validate validates the sidecar registry configuration.
func (c *SidecarsConfig) Validate() error {
	for suffix, kind := range c.Suffixes {
		if !strings.HasPrefix(suffix, ".") {
			return fmt.Errorf("sidecars: suffix %q must start with a dot", suffix)
		}
		if _, ok := sidecarKinds[kind]; !ok {
			return fmt.Errorf("sidecars: suffix %q has unknown kind %q", suffix, kind)
		}
	}
	return nil
}

// Registry returns the configured suffix → kind mapping, or nil when the
// built-in set should be used.
func (c *SidecarsConfig) Registry() map[string]models.SidecarKind {
	if len(c.Suffixes) == 0 {
		return nil
	}
	out := make(map[string]models.SidecarKind, len(c.Suffixes))
	for suffix, kind := range c.Suffixes {
		out[suffix] = sidecarKinds[kind]
	}
	return out
}

// ResolverConfig holds the similarity thresholds for missing-reference
// resolution.
type ResolverConfig struct {
	MinScore      float64 `yaml:"min_score"`
	AutoAccept    float64 `yaml:"auto_accept"`
	MaxCandidates int     `yaml:"max_candidates"`
}

// Validate validates the resolver configuration.
func (c *ResolverConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MinScore, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.AutoAccept, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxCandidates, validation.Min(1)),
	); err != nil {
		return err
	}
	if c.AutoAccept < c.MinScore {
		return fmt.Errorf("resolver: auto_accept %.2f below min_score %.2f", c.AutoAccept, c.MinScore)
	}
	return nil
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
	// Normalise empty mode to "disabled" for backward compatibility.
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
		Library: LibraryConfig{
			Path:       "./library",
			Extensions: []string{".safetensors", ".pt", ".ckpt"},
		},
		SQLite: SQLiteConfig{
			Path: "./raido.db",
		},
		Resolver: ResolverConfig{
			MinScore:      0.55,
			AutoAccept:    0.9,
			MaxCandidates: 5,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
