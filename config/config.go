// Copyright 2026 The Ecovisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the ecovisord daemon configuration.
//
// Values are taken, lowest priority first, from built in defaults, the
// YAML configuration file, ECOVISOR_* environment variables and finally
// explicit overrides (normally command line flags).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix     = "ECOVISOR"
	EnvConfigPath = "ECOVISOR_CONFIG"

	DefaultConfigPath    = "/etc/ecovisor/ecovisord.yaml"
	DefaultListen        = "127.0.0.1:8321"
	DefaultName          = "ecovisord"
	DefaultMaxConns      = 64
	DefaultLogLevel      = "info"
	DefaultLogMaxSize    = 100 // MB
	DefaultLogMaxBackups = 3
	DefaultLogMaxAge     = 7 // days
)

var (
	ErrNoEcosystem = errors.New("no ecosystem file configured")
	ErrBadLogLevel = errors.New("invalid log level")
	ErrBadHash     = errors.New("invalid password hash")
	ErrBadKeyHash  = errors.New("invalid API key hash")
	ErrBadOrigin   = errors.New("invalid CORS origin")
	ErrBadMaxConns = errors.New("max_conns must be positive")
	ErrNoListen    = errors.New("no listen address")
)

type Config struct {
	Listen    string        `mapstructure:"listen" yaml:"listen"`
	Name      string        `mapstructure:"name" yaml:"name"`
	Ecosystem []string      `mapstructure:"ecosystem" yaml:"ecosystem"`
	Enable    bool          `mapstructure:"enable" yaml:"enable"`
	MaxConns  int           `mapstructure:"max_conns" yaml:"max_conns"`
	Auth      AuthConfig    `mapstructure:"auth" yaml:"auth"`
	CORS      CORSConfig    `mapstructure:"cors" yaml:"cors"`
	Log       LogConfig     `mapstructure:"log" yaml:"log"`
	State     StateConfig   `mapstructure:"state" yaml:"state"`
	Monitor   MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
}

// AuthConfig enables HTTP basic authentication when User is set, and
// API key authentication when APIKeyHash is.  Secrets are only ever
// stored as bcrypt hashes.
type AuthConfig struct {
	User         string `mapstructure:"user" yaml:"user"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
	APIKeyHash   string `mapstructure:"api_key_hash" yaml:"api_key_hash"`
}

func (a AuthConfig) Enabled() bool {
	return a.User != "" || a.APIKeyHash != ""
}

// CORSConfig lists the browser origins allowed to call the API.  "*"
// allows any.
type CORSConfig struct {
	Origins []string `mapstructure:"origins" yaml:"origins"`
}

// LogConfig describes the daemon's own log.  An empty File logs to stderr
// only.  Sizes are in megabytes and ages in days.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
}

// StateConfig locates the process table database.  An empty Path disables
// persistence.
type StateConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LoadEnvFiles loads dotenv files into the process environment, so that
// ECOVISOR_* settings and the environment inherited by apps can live in
// a .env file.  Variables already set are left alone.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if e := godotenv.Load(paths...); e != nil {
		return fmt.Errorf("failed to load env file: %w", e)
	}
	return nil
}

// Load reads the configuration file at path.  An empty path falls back to
// $ECOVISOR_CONFIG and then DefaultConfigPath.  A missing file is not an
// error; the defaults and environment still apply.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with a final layer of explicit values, keyed
// the same way as the file ("log.level", "ecosystem", ...).
func LoadWithOverrides(path string, overrides map[string]interface{}) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		if path = os.Getenv(EnvConfigPath); path == "" {
			path = DefaultConfigPath
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if e := v.ReadInConfig(); e != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(e, &notFound) {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", e)
			}
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if e := v.Unmarshal(&cfg); e != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", e)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("name", DefaultName)
	v.SetDefault("ecosystem", []string{})
	v.SetDefault("enable", true)
	v.SetDefault("max_conns", DefaultMaxConns)

	v.SetDefault("auth.user", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("cors.origins", []string{})

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)

	v.SetDefault("state.path", "")
	v.SetDefault("monitor.enabled", true)
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (c *Config) Validate() error {
	if len(c.Ecosystem) == 0 {
		return ErrNoEcosystem
	}
	if c.Listen == "" {
		return ErrNoListen
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("%w: %q", ErrBadLogLevel, c.Log.Level)
	}
	if c.Auth.User != "" {
		if _, e := bcrypt.Cost([]byte(c.Auth.PasswordHash)); e != nil {
			return fmt.Errorf("%w: %v", ErrBadHash, e)
		}
	}
	if c.Auth.APIKeyHash != "" {
		if _, e := bcrypt.Cost([]byte(c.Auth.APIKeyHash)); e != nil {
			return fmt.Errorf("%w: %v", ErrBadKeyHash, e)
		}
	}
	for _, o := range c.CORS.Origins {
		if o == "" || (o != "*" && !strings.Contains(o, "://")) {
			return fmt.Errorf("%w: %q", ErrBadOrigin, o)
		}
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("%w: %d", ErrBadMaxConns, c.MaxConns)
	}
	return nil
}

// String is a one line summary that never includes the password hash.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Name: %s, Listen: %s, Ecosystem: [%s], Log: %s, Auth: %t, State: %q}",
		c.Name, c.Listen, strings.Join(c.Ecosystem, ", "), c.Log.Level,
		c.Auth.Enabled(), c.State.Path)
}

// ToYAML renders the effective configuration in the file format Load
// accepts.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
