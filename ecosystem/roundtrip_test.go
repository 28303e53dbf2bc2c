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
	"testing"

	"pgregory.net/rapid"
)

func drawApp(rt *rapid.T, i int) App {
	a := NewApp(
		rapid.StringMatching(`[a-z][a-z0-9_-]{0,15}`).Draw(rt, "name")+
			string(rune('a'+i)),
		rapid.StringMatching(`(\./)?[a-z][a-z0-9/._-]{0,20}`).Draw(rt, "script"))
	a.ExecMode = rapid.SampledFrom([]ExecMode{ExecFork, ExecCluster}).Draw(rt, "mode")
	if a.ExecMode == ExecCluster {
		a.Instances = rapid.IntRange(-4, 16).Draw(rt, "instances")
	} else {
		a.Instances = rapid.IntRange(1, 16).Draw(rt, "instances")
	}
	a.Autorestart = rapid.Bool().Draw(rt, "autorestart")
	a.Watch = rapid.Bool().Draw(rt, "watch")
	a.MaxMemoryRestart = rapid.SampledFrom(
		[]Size{"", "1G", "512M", "200K", "1048576"}).Draw(rt, "mem")
	a.Env = rapid.MapOf(
		rapid.StringMatching(`[A-Z_][A-Z0-9_-]{0,10}`),
		rapid.StringMatching(`[ -~]{0,16}`)).Draw(rt, "env")
	a.Args = rapid.SliceOfN(rapid.StringMatching(`[ -~]{0,10}`), 0, 3).Draw(rt, "args")
	a.KillTimeout = rapid.IntRange(0, 10000).Draw(rt, "kill_timeout")
	a.OutFile = rapid.SampledFrom([]string{"", "out.log", "/var/log/a.log"}).Draw(rt, "out")
	a.EnvFile = rapid.SampledFrom([]string{"", ".env", "/etc/ipfs/api.env"}).Draw(rt, "env_file")
	return a
}

// Every format must reproduce an equivalent descriptor when what it wrote
// is read back.
func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 3).Draw(rt, "apps")
		file := &File{}
		for i := 0; i < n; i++ {
			file.Apps = append(file.Apps, drawApp(rt, i))
		}
		if e := file.Validate(); e != nil {
			rt.Fatalf("generated invalid file: %v", e)
		}
		for _, f := range []Format{FormatJS, FormatJSON, FormatYAML} {
			b, e := Marshal(file, f)
			if e != nil {
				rt.Fatalf("%v: marshal: %v", f, e)
			}
			back, e := Parse(b, f)
			if e != nil {
				rt.Fatalf("%v: parse: %v\n%s", f, e, b)
			}
			if !back.Equal(file) {
				rt.Fatalf("%v: round trip mismatch\nwant %+v\ngot  %+v\n%s",
					f, file.Apps, back.Apps, b)
			}
		}
	})
}
