package pollevbot

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"
	"gopkg.in/yaml.v3"

	"github.com/pollevbot/pollevbot/policy"
	"github.com/pollevbot/pollevbot/service/approval"
	"github.com/pollevbot/pollevbot/service/pipeline"
	"github.com/pollevbot/pollevbot/service/session/pollev"
	"github.com/pollevbot/pollevbot/service/validator"
	"github.com/pollevbot/pollevbot/service/watcher"
)

// Config is a serialisable representation of the bot configuration. It can
// be populated from YAML, JSON or environment variables; the zero value is
// useful - all nested fields inherit their package defaults.
type Config struct {
	Session   pollev.Config    `json:"session" yaml:"session"`
	Watcher   watcher.Config   `json:"watcher" yaml:"watcher"`
	Pipeline  pipeline.Config  `json:"pipeline" yaml:"pipeline"`
	Approval  approval.Config  `json:"approval" yaml:"approval"`
	Validator validator.Config `json:"validator" yaml:"validator"`

	// SecretURL optionally points at an encrypted basic credential; when set
	// it supplies the session username and password instead of the config.
	SecretURL string `json:"secretURL,omitempty" yaml:"secretURL,omitempty"`
	SecretKey string `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`

	// ResponseLogURL enables the JSON-lines response log when non-empty.
	ResponseLogURL string `json:"responseLogURL,omitempty" yaml:"responseLogURL,omitempty"`

	Policy *policy.Policy `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Session: pollev.Config{
			LoginMode: pollev.LoginModePollev,
		},
		Watcher:  watcher.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Approval: approval.DefaultConfig(),
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Session.Host == "" {
		return fmt.Errorf("session.host is required")
	}
	if c.Session.Username == "" {
		return fmt.Errorf("session.username is required")
	}
	if c.Session.Password == "" && c.SecretURL == "" {
		return fmt.Errorf("session password is required; set it directly or via secretURL")
	}
	if c.Pipeline.MaxOption > 0 && c.Pipeline.MinOption >= c.Pipeline.MaxOption {
		return fmt.Errorf("pipeline.minOption %d must be below pipeline.maxOption %d",
			c.Pipeline.MinOption, c.Pipeline.MaxOption)
	}
	return nil
}

// EnsureCredentials resolves the session credentials from the encrypted
// secret resource when one is configured and no password is present.
func (c *Config) EnsureCredentials(ctx context.Context) error {
	if c.SecretURL == "" || c.Session.Password != "" {
		return nil
	}
	resource := scy.NewResource(&cred.Basic{}, c.SecretURL, c.SecretKey)
	secret, err := scy.New().Load(ctx, resource)
	if err != nil {
		return fmt.Errorf("failed to load credentials from %s: %w", c.SecretURL, err)
	}
	basic, ok := secret.Target.(*cred.Basic)
	if !ok {
		return fmt.Errorf("secret at %s is not a basic credential", c.SecretURL)
	}
	if basic.Username != "" {
		c.Session.Username = basic.Username
	}
	c.Session.Password = basic.Password
	return nil
}

// LoadConfig reads a YAML configuration from URL (a plain file path or any
// scheme the storage layer understands) and resolves its credentials.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	if err := config.EnsureCredentials(ctx); err != nil {
		return nil, err
	}
	return config, nil
}
