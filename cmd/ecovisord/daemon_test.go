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

//go:build !windows

package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecovisor/ecovisor/config"
	"github.com/ecovisor/ecovisor/rest"
	"github.com/ecovisor/ecovisor/store"
)

const testEcosystem = `module.exports = {
  apps: [
    {
      name: 'sleeper',
      script: '/bin/sleep',
      args: ['30'],
      instances: 2,
      exec_mode: 'cluster',
    },
  ],
};
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	eco := filepath.Join(dir, "ecosystem.config.js")
	require.NoError(t, os.WriteFile(eco, []byte(testEcosystem), 0o644))

	cfg, err := config.LoadWithOverrides(filepath.Join(dir, "none.yaml"), map[string]interface{}{
		"listen":     "127.0.0.1:0",
		"ecosystem":  []string{eco},
		"state.path": filepath.Join(dir, "state.db"),
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestDaemon(t *testing.T) {
	cfg := testConfig(t)
	d := newDaemon(cfg, zap.NewNop())
	require.NoError(t, d.Start())
	stopped := false
	defer func() {
		if !stopped {
			d.Stop()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := rest.NewClient(nil, "http://"+d.Addr())

	names, err := c.Services(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sleeper:0", "sleeper:1"}, names)

	require.Eventually(t, func() bool {
		info, err := c.GetService(ctx, "sleeper:1")
		return err == nil && info.Running && info.Pid > 0
	}, 5*time.Second, 20*time.Millisecond)

	// The process table follows the manager.
	require.Eventually(t, func() bool {
		st, err := store.Open(cfg.State.Path)
		if err != nil {
			return false
		}
		defer st.Close()
		rec, err := st.Get(ctx, "sleeper:1")
		return err == nil && rec.PID > 0 && rec.Status == "running"
	}, 10*time.Second, 100*time.Millisecond)

	d.Stop()
	stopped = true

	st, err := store.Open(cfg.State.Path)
	require.NoError(t, err)
	defer st.Close()
	recs, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDaemonAPIKeyAndCORS(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enable = false
	hash, err := bcrypt.GenerateFromPassword([]byte("k-123"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.Auth.APIKeyHash = string(hash)
	cfg.CORS.Origins = []string{"https://dash.example"}
	require.NoError(t, cfg.Validate())

	d := newDaemon(cfg, zap.NewNop())
	require.NoError(t, d.Start())
	defer d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := rest.NewClient(nil, "http://"+d.Addr())
	_, err = c.Services(ctx)
	require.Error(t, err)

	c.SetAPIKey("k-123")
	names, err := c.Services(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 2)

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, "http://"+d.Addr()+"/services", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dash.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "https://dash.example", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestDaemonBadEcosystem(t *testing.T) {
	cfg := testConfig(t)
	bad := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"apps": [{"script": "x"}]}`), 0o644))
	cfg.Ecosystem = append(cfg.Ecosystem, bad)

	d := newDaemon(cfg, zap.NewNop())
	assert.Error(t, d.Start())
}

func TestCommands(t *testing.T) {
	assert.Equal(t, "ecovisord", rootCmd.Use)
	assert.Equal(t, "version", versionCmd.Use)
	assert.Equal(t, "config", configCmd.Use)
	for flag := range flagKeys {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("env-file"))
}
