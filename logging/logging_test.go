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

package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecovisor/ecovisor/config"
)

func decodeLines(t *testing.T, b []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		m := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(config.LogConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("service started", zap.String("service", "ipfs-api:0"), zap.Int("pid", 42))
	require.NoError(t, l.Sync())

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "service started", lines[0]["msg"])
	assert.Equal(t, "ipfs-api:0", lines[0]["service"])
	assert.Equal(t, float64(42), lines[0]["pid"])
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecovisord.log")
	var buf bytes.Buffer
	l, err := newLogger(config.LogConfig{
		Level:      "debug",
		File:       path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}, &buf)
	require.NoError(t, err)

	l.Debug("to both")
	require.NoError(t, l.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, b)
	require.Len(t, lines, 1)
	assert.Equal(t, "to both", lines[0]["msg"])
	assert.Contains(t, buf.String(), "to both")
}

func TestBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.ErrorIs(t, err, config.ErrBadLogLevel)
}

func TestStdLog(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(config.LogConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	StdLog(l, "manager").Printf("hello %s", "there")
	require.NoError(t, l.Sync())

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 1)
	assert.Equal(t, "hello there", lines[0]["msg"])
	assert.Equal(t, "manager", lines[0]["logger"])
}
