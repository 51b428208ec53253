package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeJWT      = "jwt"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Course CourseConfig      `yaml:"course"`
	Canvas CanvasConfig      `yaml:"canvas"`
	Dates  DatesConfig       `yaml:"dates"`
	Index  IndexConfig       `yaml:"index"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Course, &c.Canvas, &c.Dates, &c.Index, &c.Auth} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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

// CourseConfig locates the course on disk and names it remotely.
type CourseConfig struct {
	Root string `yaml:"root"`
	// Name is the remote course id.
	Name string `yaml:"name"`
}

// Validate validates the course configuration.
func (c *CourseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// CanvasConfig holds the LMS API connection settings.
type CanvasConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	PerPage int           `yaml:"per_page"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the API configuration. BaseURL and Token may be empty
// for commands that never reach the remote API; see Require.
func (c *CanvasConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.PerPage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	)
}

// Require reports an error when the settings needed to call the API are
// missing.
func (c *CanvasConfig) Require() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("canvas: base_url is empty"))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("canvas: token is empty"))
	}
	return errors.Join(errs...)
}

// DatesConfig controls how remote timestamps are shown on disk.
type DatesConfig struct {
	// Timezone is an IANA name. Wall times that occur twice in it are
	// written with the zone abbreviation.
	Timezone string `yaml:"timezone"`
}

// Validate validates the dates configuration.
func (c *DatesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.Required, validation.By(func(any) error {
			_, err := time.LoadLocation(c.Timezone)
			return err
		})),
	)
}

// Location loads the configured time zone.
func (c *DatesConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("dates: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IndexConfig holds the local catalog database location.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration of the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "jwt": Bearer HS256 JWT; Token is the signing key and must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeJWT)),
	); err != nil {
		return err
	}
	if c.Mode != AuthModeDisabled && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", c.Mode)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken || c.Mode == AuthModeJWT
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
		Course: CourseConfig{
			Root: ".",
		},
		Canvas: CanvasConfig{
			PerPage: 100,
			Timeout: 30 * time.Second,
		},
		Dates: DatesConfig{
			Timezone: "UTC",
		},
		Index: IndexConfig{
			Path: ".coursesync.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
