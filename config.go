package tdclient

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

const (
	defaultReceiveTimeout = 2 * time.Second
	defaultSendTimeout    = 5 * time.Second
	defaultUpdatesBuffer  = 10
	defaultStateBuffer    = 10
	defaultAuthBuffer     = 20
)

// Config holds the worker's tunables.
type Config struct {
	// ReceiveTimeout bounds each engine receive and therefore how long Stop
	// takes to be observed. ENV: TDCLIENT_RECEIVE_TIMEOUT
	ReceiveTimeout time.Duration `env:"TDCLIENT_RECEIVE_TIMEOUT,default=2s" yaml:"receive_timeout"`
	// SendTimeout bounds every channel hand-off. ENV: TDCLIENT_SEND_TIMEOUT
	SendTimeout time.Duration `env:"TDCLIENT_SEND_TIMEOUT,default=5s" yaml:"send_timeout"`
	// UpdatesBuffer is the update channel capacity of sessions created through
	// Worker.NewSession. ENV: TDCLIENT_UPDATES_BUFFER
	UpdatesBuffer int `env:"TDCLIENT_UPDATES_BUFFER,default=10" yaml:"updates_buffer"`
	// StateBuffer is the capacity of each session's state channel.
	// ENV: TDCLIENT_STATE_BUFFER
	StateBuffer int `env:"TDCLIENT_STATE_BUFFER,default=10" yaml:"state_buffer"`
	// AuthBuffer is the capacity of the channel feeding the auth pump.
	// ENV: TDCLIENT_AUTH_BUFFER
	AuthBuffer int `env:"TDCLIENT_AUTH_BUFFER,default=20" yaml:"auth_buffer"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ReceiveTimeout: defaultReceiveTimeout,
		SendTimeout:    defaultSendTimeout,
		UpdatesBuffer:  defaultUpdatesBuffer,
		StateBuffer:    defaultStateBuffer,
		AuthBuffer:     defaultAuthBuffer,
	}
}

// withDefaults fills zero or negative fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = d.ReceiveTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.UpdatesBuffer <= 0 {
		c.UpdatesBuffer = d.UpdatesBuffer
	}
	if c.StateBuffer <= 0 {
		c.StateBuffer = d.StateBuffer
	}
	if c.AuthBuffer <= 0 {
		c.AuthBuffer = d.AuthBuffer
	}
	return c
}

// ConfigFromEnv decodes Config from the environment. A value that does not
// parse is an error.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config from env: %w", err)
	}
	return cfg.withDefaults(), nil
}

// LoadConfig decodes Config from the environment and, when path is not empty,
// overlays the YAML file at path. Values present in the file win.
func LoadConfig(path string) (Config, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}
