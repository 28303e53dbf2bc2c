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

package ecosystem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Env holds the environment variables injected into an app at launch.
// Values are always strings; numbers and booleans written in an ecosystem
// file (PORT: 8085) are kept in their literal text form.
type Env map[string]string

// Keys returns the variable names in lexical order.
func (env Env) Keys() []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environ renders the variables as KEY=value pairs, sorted by key.
func (env Env) Environ() []string {
	rv := make([]string, 0, len(env))
	for _, k := range env.Keys() {
		rv = append(rv, k+"="+env[k])
	}
	return rv
}

func (env Env) Validate() error {
	for k := range env {
		if k == "" || strings.ContainsAny(k, "=\x00") {
			return fmt.Errorf("%w: %q", ErrBadEnv, k)
		}
	}
	return nil
}

// ReadEnvFile parses a dotenv file.  A relative path resolves against dir.
func ReadEnvFile(path, dir string) (Env, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	m, e := godotenv.Read(path)
	if e != nil {
		return nil, fmt.Errorf("%w: env_file: %w", ErrBadEnv, e)
	}
	env := Env(m)
	if e := env.Validate(); e != nil {
		return nil, fmt.Errorf("%s: %w", path, e)
	}
	return env, nil
}

// LaunchEnv is the environment an app starts with: the variables of its
// env_file, if any, overridden by those written in env.  The file is read
// on every call so edits take effect at the next start.
func (a *App) LaunchEnv(dir string) (Env, error) {
	if a.EnvFile == "" {
		return a.Env, nil
	}
	env, e := ReadEnvFile(a.EnvFile, dir)
	if e != nil {
		return nil, fmt.Errorf("%s: %w", a.Name, e)
	}
	for k, v := range a.Env {
		env[k] = v
	}
	return env, nil
}

func (env *Env) UnmarshalJSON(b []byte) error {
	raw := map[string]json.RawMessage{}
	if e := json.Unmarshal(b, &raw); e != nil {
		return e
	}
	m := make(Env, len(raw))
	for k, v := range raw {
		s, e := scalarText(v)
		if e != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadEnv, k, e)
		}
		m[k] = s
	}
	*env = m
	return nil
}

func (env *Env) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: env must be a mapping", ErrBadEnv, n.Line)
	}
	m := make(Env, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: line %d: %s is not a scalar",
				ErrBadEnv, v.Line, k.Value)
		}
		if v.ShortTag() == "!!null" {
			m[k.Value] = ""
		} else {
			m[k.Value] = v.Value
		}
	}
	*env = m
	return nil
}

// scalarText converts a JSON scalar into its string form.  Strings are
// unquoted, numbers and booleans keep their literal text, null is empty.
func scalarText(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return "", nil
	}
	switch b[0] {
	case '"':
		var s string
		if e := json.Unmarshal(b, &s); e != nil {
			return "", e
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("not a scalar: %s", b)
	}
	if string(b) == "null" {
		return "", nil
	}
	return string(b), nil
}
