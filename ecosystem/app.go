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
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInstanceVar   = "NODE_APP_INSTANCE"
	DefaultKillTimeout   = 1600 * time.Millisecond
	DefaultMaxRestarts   = 10
	DefaultRestartWindow = time.Minute
)

// App is a Process Launch Descriptor.  The first eight fields are the
// core schema every ecosystem file carries; the rest are optional and are
// left out of encoded output when unset.
type App struct {
	Name             string   `json:"name" yaml:"name"`
	Script           string   `json:"script" yaml:"script"`
	ExecMode         ExecMode `json:"exec_mode" yaml:"exec_mode"`
	Instances        int      `json:"instances" yaml:"instances"`
	Autorestart      bool     `json:"autorestart" yaml:"autorestart"`
	Watch            bool     `json:"watch" yaml:"watch"`
	MaxMemoryRestart Size     `json:"max_memory_restart,omitempty" yaml:"max_memory_restart,omitempty"`
	Env              Env      `json:"env,omitempty" yaml:"env,omitempty"`

	EnvFile       string   `json:"env_file,omitempty" yaml:"env_file,omitempty"`
	Cwd           string   `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	Args          []string `json:"args,omitempty" yaml:"args,omitempty"`
	InstanceVar   string   `json:"instance_var,omitempty" yaml:"instance_var,omitempty"`
	KillTimeout   int      `json:"kill_timeout,omitempty" yaml:"kill_timeout,omitempty"`
	MaxRestarts   int      `json:"max_restarts,omitempty" yaml:"max_restarts,omitempty"`
	RestartWindow int      `json:"restart_window,omitempty" yaml:"restart_window,omitempty"`
	IgnoreWatch   []string `json:"ignore_watch,omitempty" yaml:"ignore_watch,omitempty"`
	OutFile       string   `json:"out_file,omitempty" yaml:"out_file,omitempty"`
	ErrorFile     string   `json:"error_file,omitempty" yaml:"error_file,omitempty"`
}

// appDefaults is what an absent field decodes to.  PM2 restarts apps
// unless told otherwise, so autorestart defaults to true.
var appDefaults = App{
	ExecMode:    ExecFork,
	Instances:   1,
	Autorestart: true,
}

// NewApp returns an App with the defaults applied.
func NewApp(name, script string) App {
	a := appDefaults
	a.Name = name
	a.Script = script
	return a
}

type plainApp App

func (a *App) UnmarshalJSON(b []byte) error {
	p := plainApp(appDefaults)
	if e := json.Unmarshal(b, &p); e != nil {
		return e
	}
	*a = App(p)
	return nil
}

func (a *App) UnmarshalYAML(n *yaml.Node) error {
	p := plainApp(appDefaults)
	if e := n.Decode(&p); e != nil {
		return e
	}
	*a = App(p)
	return nil
}

// Validate checks the descriptor for values the supervisor cannot act on.
func (a *App) Validate() error {
	if a.Name == "" {
		return ErrNoName
	}
	if strings.ContainsAny(a.Name, ": \t\r\n/") {
		return fmt.Errorf("%w: %q", ErrBadName, a.Name)
	}
	if a.Script == "" {
		return fmt.Errorf("%s: %w", a.Name, ErrNoScript)
	}
	if !a.ExecMode.Valid() {
		return fmt.Errorf("%s: %w: %q", a.Name, ErrBadExecMode, string(a.ExecMode))
	}
	if a.Instances < 0 && a.ExecMode != ExecCluster {
		return fmt.Errorf("%s: %w: %d (negative counts need cluster mode)",
			a.Name, ErrBadInstances, a.Instances)
	}
	if _, e := a.MaxMemoryRestart.Bytes(); e != nil {
		return fmt.Errorf("%s: %w", a.Name, e)
	}
	if e := a.Env.Validate(); e != nil {
		return fmt.Errorf("%s: %w", a.Name, e)
	}
	if strings.ContainsRune(a.EnvFile, 0) {
		return fmt.Errorf("%s: %w: env_file %q", a.Name, ErrBadEnv, a.EnvFile)
	}
	if a.KillTimeout < 0 || a.MaxRestarts < 0 || a.RestartWindow < 0 {
		return fmt.Errorf("%s: negative timing value", a.Name)
	}
	for _, pat := range a.IgnoreWatch {
		if _, e := filepath.Match(pat, ""); e != nil {
			return fmt.Errorf("%s: ignore_watch %q: %w", a.Name, pat, e)
		}
	}
	return nil
}

// Count resolves the number of instances to run on a machine with ncpu
// processors.  Zero means "one per CPU" in cluster mode, and a negative
// count leaves that many CPUs free.  Fork mode treats zero as one.
func (a *App) Count(ncpu int) int {
	switch {
	case a.Instances > 0:
		return a.Instances
	case a.ExecMode != ExecCluster:
		return 1
	case ncpu+a.Instances < 1:
		return 1
	}
	return ncpu + a.Instances
}

// Dir returns the working directory, with a relative cwd resolved against
// base (normally the directory the ecosystem file lives in).
func (a *App) Dir(base string) string {
	switch {
	case a.Cwd == "":
		return base
	case filepath.IsAbs(a.Cwd):
		return a.Cwd
	}
	return filepath.Join(base, a.Cwd)
}

// Command returns the path of the executable, resolved against the
// working directory when relative.
func (a *App) Command(base string) string {
	if filepath.IsAbs(a.Script) {
		return a.Script
	}
	return filepath.Join(a.Dir(base), a.Script)
}

func (a *App) InstanceVariable() string {
	if a.InstanceVar == "" {
		return DefaultInstanceVar
	}
	return a.InstanceVar
}

func (a *App) KillTimeoutDuration() time.Duration {
	if a.KillTimeout == 0 {
		return DefaultKillTimeout
	}
	return time.Duration(a.KillTimeout) * time.Millisecond
}

// RestartLimit returns how many starts are allowed within what period
// before the supervisor refuses to restart the app.
func (a *App) RestartLimit() (int, time.Duration) {
	n, d := a.MaxRestarts, time.Duration(a.RestartWindow)*time.Millisecond
	if n == 0 {
		n = DefaultMaxRestarts
	}
	if d == 0 {
		d = DefaultRestartWindow
	}
	return n, d
}

// MemoryLimit is MaxMemoryRestart in bytes, or zero when unset or invalid.
func (a *App) MemoryLimit() int64 {
	n, _ := a.MaxMemoryRestart.Bytes()
	return n
}

// Equal reports whether two descriptors describe the same launch.  A nil
// and an empty Env (or slice) are considered equal.
func (a App) Equal(o App) bool {
	if len(a.Env) == 0 && len(o.Env) == 0 {
		a.Env, o.Env = nil, nil
	}
	if len(a.Args) == 0 && len(o.Args) == 0 {
		a.Args, o.Args = nil, nil
	}
	if len(a.IgnoreWatch) == 0 && len(o.IgnoreWatch) == 0 {
		a.IgnoreWatch, o.IgnoreWatch = nil, nil
	}
	return reflect.DeepEqual(a, o)
}
