package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"authgate/pkg/oauth"
)

// DefaultAuthority is used when the configuration does not name an
// authorization server.
const DefaultAuthority = "https://login.microsoftonline.com/common/v2.0"

// DefaultRequestTimeout bounds one IPC call, sized to accommodate a user
// completing an interactive login.
const DefaultRequestTimeout = 5 * time.Minute

// ClientConfig identifies the OAuth public client authgate acts as.
// Immutable after the broker is initialized; owned exclusively by the broker.
type ClientConfig struct {
	// ClientID is the public client identifier registered at the authority.
	ClientID string `yaml:"clientId" json:"clientId"`

	// Authority is the base URL of the authorization server. Defaults to
	// DefaultAuthority when empty.
	Authority string `yaml:"authority" json:"authority"`

	// RedirectURI is the loopback URI the authorization server redirects to.
	RedirectURI string `yaml:"redirectUri" json:"redirectUri"`

	// PostLogoutRedirectURI defaults to RedirectURI when empty.
	PostLogoutRedirectURI string `yaml:"postLogoutRedirectUri" json:"postLogoutRedirectUri"`

	// DefaultScopes are requested when a caller does not name any.
	DefaultScopes []string `yaml:"scopes" json:"scopes"`
}

// Normalize applies the documented defaults in place.
func (c *ClientConfig) Normalize() {
	if c.Authority == "" {
		c.Authority = DefaultAuthority
	}
	if c.PostLogoutRedirectURI == "" {
		c.PostLogoutRedirectURI = c.RedirectURI
	}
}

// Validate reports a configuration error when required identity fields are
// missing. Call after Normalize.
func (c *ClientConfig) Validate() error {
	if c.ClientID == "" {
		return oauth.NewError(oauth.KindConfiguration, "", "clientId is required")
	}
	if c.Authority == "" {
		return oauth.NewError(oauth.KindConfiguration, "", "authority is required")
	}
	if c.RedirectURI == "" {
		return oauth.NewError(oauth.KindConfiguration, "", "redirectUri is required")
	}
	return nil
}

// IPCConfig configures the request/response channel exposed to the caller
// process.
type IPCConfig struct {
	// Socket is the unix socket path the channel listens on.
	Socket string `yaml:"socket"`

	// RequestTimeout bounds one call, after which the channel fails it with
	// a transport-level timeout distinct from application errors.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// UnmarshalYAML accepts the timeout in time.ParseDuration form ("30s", "5m").
func (c *IPCConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Socket         string `yaml:"socket"`
		RequestTimeout string `yaml:"requestTimeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Socket = raw.Socket
	if raw.RequestTimeout != "" {
		d, err := time.ParseDuration(raw.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid requestTimeout %q: %w", raw.RequestTimeout, err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// Config is the on-disk configuration of the authgate process.
type Config struct {
	Auth     ClientConfig `yaml:"auth"`
	IPC      IPCConfig    `yaml:"ipc"`
	LogLevel string       `yaml:"logLevel"`
}

// Load reads and parses the YAML configuration file, applying defaults.
// Validation of the auth section happens at broker init, not here, so a
// config file without an auth section can still serve a caller that
// initializes over IPC.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.IPC.Socket == "" {
		c.IPC.Socket = DefaultSocketPath()
	}
	if c.IPC.RequestTimeout == 0 {
		c.IPC.RequestTimeout = DefaultRequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// DefaultSocketPath returns the per-user socket location. The runtime
// directory keeps the socket off shared tmp when available.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "authgate", "authgate.sock")
	}
	return filepath.Join(os.TempDir(), "authgate", "authgate.sock")
}
