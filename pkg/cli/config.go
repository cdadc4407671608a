package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".omnicall"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"

	// EnvAPIKey and EnvBaseURL form the fallback context.
	EnvAPIKey  = "OMNICALL_API_KEY"
	EnvBaseURL = "OMNICALL_BASE_URL"
	EnvModel   = "OMNICALL_MODEL"

	// EnvContextName is the name reported for the environment context.
	EnvContextName = "env"
)

// ErrNoContext is returned when neither a context nor the environment
// provides credentials.
var ErrNoContext = errors.New("no current context set")

// Config is the on-disk configuration of a CLI app.
type Config struct {
	// AppName is the application name
	AppName string `yaml:"-"`

	// CurrentContext is the name of the active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts maps context names to endpoints and credentials
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context is one realtime endpoint with its credentials.
type Context struct {
	Name string `yaml:"name"`

	// APIKey is sent as a bearer token
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL is the realtime WebSocket URL (optional, uses default if empty)
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is appended to the URL as the model query parameter
	Model string `yaml:"model,omitempty"`

	// Voice overrides the session voice
	Voice string `yaml:"voice,omitempty"`

	// MaxReconnects bounds consecutive reconnect attempts (0 = unlimited)
	MaxReconnects int `yaml:"max_reconnects,omitempty"`

	// Extra stores free-form settings
	Extra map[string]string `yaml:"extra,omitempty"`
}

// LoadConfig loads or creates the configuration of appName.
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from customPath, or from the
// default location when it is empty.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration to disk. The file holds API keys and is
// created owner-readable only.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string { return c.configPath }

// AddContext adds or replaces a context
func (c *Config) AddContext(name string, ctx *Context) error {
	if name == "" {
		return errors.New("context name is required")
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context, or the current one when name is
// empty. With neither configured it falls back to the environment
// variables OMNICALL_API_KEY, OMNICALL_BASE_URL and OMNICALL_MODEL.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name != "" {
		return c.GetContext(name)
	}
	if c.CurrentContext != "" {
		return c.GetContext(c.CurrentContext)
	}
	if ctx := EnvContext(); ctx != nil {
		return ctx, nil
	}
	return nil, ErrNoContext
}

// ListContexts returns all context names, sorted
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// EnvContext builds a context from the environment. It returns nil when
// OMNICALL_API_KEY is unset.
func EnvContext() *Context {
	key := os.Getenv(EnvAPIKey)
	if key == "" {
		return nil
	}
	return &Context{
		Name:    EnvContextName,
		APIKey:  key,
		BaseURL: os.Getenv(EnvBaseURL),
		Model:   os.Getenv(EnvModel),
	}
}

// GetExtra returns an extra value for the context
func (ctx *Context) GetExtra(key string) string {
	if ctx.Extra == nil {
		return ""
	}
	return ctx.Extra[key]
}

// SetExtra sets an extra value for the context
func (ctx *Context) SetExtra(key, value string) {
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
