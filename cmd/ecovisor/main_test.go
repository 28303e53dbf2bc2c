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
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecovisor/ecovisor"
	"github.com/ecovisor/ecovisor/ecosystem"
	"github.com/ecovisor/ecovisor/rest"
)

const ipfsEcosystem = `module.exports = {
  apps: [{
    name: "ipfs-api",
    script: "./ipfs-api",
    exec_mode: "fork",
    instances: 1,
    autorestart: true,
    watch: false,
    max_memory_restart: "1G",
    env: {
      NODE_ENV: "production",
      PORT: 8085
    }
  }]
};
`

// run executes the command line and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	format, toFmt, output, auth, apiKey = "json", "yaml", "", "", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	e := rootCmd.Execute()
	return out.String(), e
}

func writeEcosystem(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecosystem.config.js")
	require.NoError(t, os.WriteFile(path, []byte(ipfsEcosystem), 0o644))
	return path
}

func TestValidate(t *testing.T) {
	path := writeEcosystem(t)
	out, err := run(t, "validate", path)
	require.NoError(t, err)
	assert.Equal(t, path+": 1 apps ok\n", out)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"apps":[{"name":"x","exec_mode":"thread","script":"x"}]}`), 0o644))
	_, err = run(t, "validate", bad)
	assert.ErrorIs(t, err, ecosystem.ErrBadExecMode)
}

func TestConvert(t *testing.T) {
	path := writeEcosystem(t)
	orig, err := ecosystem.Load(path)
	require.NoError(t, err)

	for _, f := range []ecosystem.Format{ecosystem.FormatJS, ecosystem.FormatJSON, ecosystem.FormatYAML} {
		t.Run(f.String(), func(t *testing.T) {
			out, err := run(t, "convert", path, "--to", f.String())
			require.NoError(t, err)
			file, err := ecosystem.Parse([]byte(out), f)
			require.NoError(t, err)
			assert.True(t, orig.Equal(file), out)
		})
	}

	t.Run("to file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "out.yaml")
		out, err := run(t, "convert", path, "-o", dest)
		require.NoError(t, err)
		assert.Empty(t, out)
		b, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Contains(t, string(b), "max_memory_restart: 1G")
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := run(t, "convert", path, "--to", "toml")
		assert.ErrorIs(t, err, ecosystem.ErrBadFormat)
	})
}

func testServer(t *testing.T) (*ecovisor.Manager, string) {
	t.Helper()
	m := ecovisor.NewManager("clitest")
	m.SetLogWriter(io.Discard)
	app := ecosystem.NewApp("web", "/bin/sleep")
	app.Args = []string{"30"}
	app.Instances = 2
	_, err := m.AddApp(app, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	srv := httptest.NewServer(rest.NewHandler(m))
	t.Cleanup(srv.Close)
	return m, srv.URL
}

func TestClientCommands(t *testing.T) {
	m, url := testServer(t)

	out, err := run(t, "-a", url, "services")
	require.NoError(t, err)
	assert.Equal(t, "web:0\nweb:1\n", out)

	_, err = run(t, "-a", url, "enable", "web:1")
	require.NoError(t, err)
	assert.True(t, m.FindServices("web:1")[0].Enabled())

	out, err = run(t, "-a", url, "status")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "web:1 "), out)
	assert.True(t, strings.HasPrefix(lines[1], "web:0 "), out)
	assert.Contains(t, lines[1], "disabled")

	out, err = run(t, "-a", url, "info", "web:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Name:      web:0\n")
	assert.Contains(t, out, "App:       web\n")

	_, err = run(t, "-a", url, "disable", "web:1")
	require.NoError(t, err)
	assert.False(t, m.FindServices("web:1")[0].Enabled())

	out, err = run(t, "-a", url, "log")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = run(t, "-a", url, "apps")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "web "), out)
	assert.Contains(t, out, "/bin/sleep")
	assert.Contains(t, out, "autorestart")

	out, err = run(t, "-a", url, "apps", "web", "--format", "yaml")
	require.NoError(t, err)
	file, err := ecosystem.Parse([]byte(out), ecosystem.FormatYAML)
	require.NoError(t, err)
	require.Len(t, file.Apps, 1)
	assert.Equal(t, 2, file.Apps[0].Instances)

	_, err = run(t, "-a", url, "info", "nope:0")
	var re *rest.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 404, re.Code)
}

func TestAuthFlag(t *testing.T) {
	_, url := testServer(t)
	_, err := run(t, "-a", url, "-u", "nocolon", "services")
	assert.ErrorIs(t, err, errBadAuth)
}

func TestAPIKeyFlag(t *testing.T) {
	m, _ := testServer(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("k-123"), bcrypt.MinCost)
	require.NoError(t, err)
	h := rest.NewHandler(m)
	h.SetAPIKey(string(hash))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	_, err = run(t, "-a", srv.URL, "services")
	require.Error(t, err)

	out, err := run(t, "-a", srv.URL, "-k", "k-123", "services")
	require.NoError(t, err)
	assert.Contains(t, out, "web:0")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ecovisor dev ("), out)
}

func TestStatusOrder(t *testing.T) {
	m, url := testServer(t)
	require.NoError(t, m.FindServices("web:0")[0].Enable())
	deadline := time.Now().Add(5 * time.Second)
	for !m.FindServices("web:0")[0].Running() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	out, err := run(t, "-a", url, "status", "web:1", "web:0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "web:0 "), out)
	assert.Contains(t, out, "running")
}
