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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecovisord.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultName, cfg.Name)
	assert.Empty(t, cfg.Ecosystem)
	assert.True(t, cfg.Enable)
	assert.Equal(t, DefaultMaxConns, cfg.MaxConns)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogMaxSize, cfg.Log.MaxSize)
	assert.Equal(t, DefaultLogMaxBackups, cfg.Log.MaxBackups)
	assert.Equal(t, DefaultLogMaxAge, cfg.Log.MaxAge)
	assert.Empty(t, cfg.Log.File)
	assert.Empty(t, cfg.State.Path)
	assert.True(t, cfg.Monitor.Enabled)
	assert.False(t, cfg.Auth.Enabled())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen: 0.0.0.0:9000
name: edge
ecosystem:
  - /srv/api/ecosystem.config.js
  - /srv/web/ecosystem.yaml
enable: false
max_conns: 8
log:
  level: debug
  file: /var/log/ecovisord.log
state:
  path: /var/lib/ecovisor/state.db
monitor:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "edge", cfg.Name)
	assert.Equal(t, []string{"/srv/api/ecosystem.config.js", "/srv/web/ecosystem.yaml"}, cfg.Ecosystem)
	assert.False(t, cfg.Enable)
	assert.Equal(t, 8, cfg.MaxConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/ecovisord.log", cfg.Log.File)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultLogMaxSize, cfg.Log.MaxSize)
	assert.Equal(t, "/var/lib/ecovisor/state.db", cfg.State.Path)
	assert.False(t, cfg.Monitor.Enabled)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeConfig(t, "name: from-env-path\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env-path", cfg.Name)
}

func TestLoadBadFile(t *testing.T) {
	path := writeConfig(t, "listen: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestPriority(t *testing.T) {
	path := writeConfig(t, `
listen: 127.0.0.1:1000
name: file
log:
  level: warn
`)
	t.Setenv("ECOVISOR_NAME", "env")
	t.Setenv("ECOVISOR_LOG_LEVEL", "error")
	t.Setenv("ECOVISOR_ECOSYSTEM", "a.js,b.json")

	cfg, err := LoadWithOverrides(path, map[string]interface{}{
		"log.level": "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:1000", cfg.Listen, "file beats default")
	assert.Equal(t, "env", cfg.Name, "env beats file")
	assert.Equal(t, "debug", cfg.Log.Level, "override beats env")
	assert.Equal(t, []string{"a.js", "b.json"}, cfg.Ecosystem)
}

func TestValidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	valid := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		cfg.Ecosystem = []string{"ecosystem.config.js"}
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("no ecosystem", func(t *testing.T) {
		cfg := valid()
		cfg.Ecosystem = nil
		assert.ErrorIs(t, cfg.Validate(), ErrNoEcosystem)
	})

	t.Run("no listen", func(t *testing.T) {
		cfg := valid()
		cfg.Listen = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoListen)
	})

	t.Run("log level", func(t *testing.T) {
		cfg := valid()
		cfg.Log.Level = "verbose"
		assert.ErrorIs(t, cfg.Validate(), ErrBadLogLevel)
		cfg.Log.Level = "WARN"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("auth", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.User = "admin"
		cfg.Auth.PasswordHash = "secret"
		assert.ErrorIs(t, cfg.Validate(), ErrBadHash)
		cfg.Auth.PasswordHash = string(hash)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("api key", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.APIKeyHash = "k-123"
		assert.ErrorIs(t, cfg.Validate(), ErrBadKeyHash)
		cfg.Auth.APIKeyHash = string(hash)
		assert.NoError(t, cfg.Validate())
		assert.True(t, cfg.Auth.Enabled())
	})

	t.Run("cors", func(t *testing.T) {
		cfg := valid()
		cfg.CORS.Origins = []string{"dash.example"}
		assert.ErrorIs(t, cfg.Validate(), ErrBadOrigin)
		cfg.CORS.Origins = []string{""}
		assert.ErrorIs(t, cfg.Validate(), ErrBadOrigin)
		cfg.CORS.Origins = []string{"https://dash.example", "*"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("max conns", func(t *testing.T) {
		cfg := valid()
		cfg.MaxConns = 0
		assert.ErrorIs(t, cfg.Validate(), ErrBadMaxConns)
	})
}

func TestToYAML(t *testing.T) {
	cfg, err := LoadWithOverrides(filepath.Join(t.TempDir(), "none.yaml"), map[string]interface{}{
		"ecosystem":  []string{"one.js", "two.yaml"},
		"name":       "yaml",
		"auth.user":  "admin",
		"state.path": "state.db",
	})
	require.NoError(t, err)

	out, err := cfg.ToYAML()
	require.NoError(t, err)

	again, err := Load(writeConfig(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestString(t *testing.T) {
	cfg := &Config{
		Name:      "n",
		Listen:    "l",
		Ecosystem: []string{"a.js"},
		Auth:      AuthConfig{User: "u", PasswordHash: "$2a$10$secret"},
	}
	s := cfg.String()
	assert.Contains(t, s, "a.js")
	assert.Contains(t, s, "Auth: true")
	assert.NotContains(t, s, "secret")
}

func TestLoadCORSAndKey(t *testing.T) {
	path := writeConfig(t, `
ecosystem: [ecosystem.config.js]
auth:
  api_key_hash: "$2a$04$abcdefghijklmnopqrstuu5yQ0/7yTnP1RRqfF3ZFl0Pb7tQhZ2Ra"
cors:
  origins:
    - https://dash.example
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://dash.example"}, cfg.CORS.Origins)
	assert.True(t, cfg.Auth.Enabled())
	assert.Empty(t, cfg.Auth.User)
}

func TestLoadEnvFiles(t *testing.T) {
	const key = "ECOVISOR_NAME"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s already set", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-dotenv\n"), 0o600))

	require.NoError(t, LoadEnvFiles())
	require.NoError(t, LoadEnvFiles(path))
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Name)

	assert.Error(t, LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env")))
}
