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
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Env values that look like small integers are written unquoted, the way
// they are usually written by hand (PORT: 8085).  Leading zeros and
// anything JavaScript would round are kept as strings.
var jsIntRE = regexp.MustCompile(`^(0|-?[1-9][0-9]{0,14})$`)

var jsIdentRE = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

type jsWriter struct {
	w   *bufio.Writer
	err error
}

func (jw *jsWriter) printf(indent int, format string, v ...interface{}) {
	if jw.err != nil {
		return
	}
	if _, e := jw.w.WriteString(strings.Repeat("  ", indent)); e != nil {
		jw.err = e
		return
	}
	if _, e := fmt.Fprintf(jw.w, format, v...); e != nil {
		jw.err = e
	}
}

func (jw *jsWriter) field(indent int, key, value string) {
	jw.printf(indent, "%s: %s,\n", jsKey(key), value)
}

func (jw *jsWriter) list(indent int, key string, vals []string) {
	if len(vals) == 0 {
		return
	}
	quoted := make([]string, 0, len(vals))
	for _, v := range vals {
		quoted = append(quoted, jsQuote(v))
	}
	jw.field(indent, key, "["+strings.Join(quoted, ", ")+"]")
}

func (jw *jsWriter) optString(indent int, key, val string) {
	if val != "" {
		jw.field(indent, key, jsQuote(val))
	}
}

func (jw *jsWriter) optInt(indent int, key string, val int) {
	if val != 0 {
		jw.field(indent, key, strconv.Itoa(val))
	}
}

func (jw *jsWriter) app(a *App) {
	jw.printf(2, "{\n")
	jw.field(3, "name", jsQuote(a.Name))
	jw.field(3, "script", jsQuote(a.Script))
	mode := a.ExecMode
	if mode == "" {
		mode = ExecFork
	}
	jw.field(3, "exec_mode", jsQuote(string(mode)))
	jw.field(3, "instances", strconv.Itoa(a.Instances))
	jw.field(3, "autorestart", strconv.FormatBool(a.Autorestart))
	jw.field(3, "watch", strconv.FormatBool(a.Watch))
	jw.optString(3, "max_memory_restart", string(a.MaxMemoryRestart))
	if len(a.Env) > 0 {
		jw.printf(3, "env: {\n")
		for _, k := range a.Env.Keys() {
			v := a.Env[k]
			if jsIntRE.MatchString(v) {
				jw.field(4, k, v)
			} else {
				jw.field(4, k, jsQuote(v))
			}
		}
		jw.printf(3, "},\n")
	}
	jw.optString(3, "env_file", a.EnvFile)
	jw.optString(3, "cwd", a.Cwd)
	jw.list(3, "args", a.Args)
	jw.optString(3, "instance_var", a.InstanceVar)
	jw.optInt(3, "kill_timeout", a.KillTimeout)
	jw.optInt(3, "max_restarts", a.MaxRestarts)
	jw.optInt(3, "restart_window", a.RestartWindow)
	jw.list(3, "ignore_watch", a.IgnoreWatch)
	jw.optString(3, "out_file", a.OutFile)
	jw.optString(3, "error_file", a.ErrorFile)
	jw.printf(2, "},\n")
}

// encodeJS writes the file as a CommonJS module, in the layout PM2's own
// generated ecosystem files use.
func encodeJS(w io.Writer, file *File) error {
	jw := &jsWriter{w: bufio.NewWriter(w)}
	jw.printf(0, "module.exports = {\n")
	jw.printf(1, "apps: [\n")
	for i := range file.Apps {
		jw.app(&file.Apps[i])
	}
	jw.printf(1, "],\n")
	jw.printf(0, "};\n")
	if jw.err != nil {
		return jw.err
	}
	return jw.w.Flush()
}

func jsKey(k string) string {
	if jsIdentRE.MatchString(k) {
		return k
	}
	return jsQuote(k)
}

func jsQuote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}
