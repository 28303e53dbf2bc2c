//go:build !windows

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

// These tests run testdata/app.sh, and so need a POSIX shell.

package ecovisor

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ecovisor/ecovisor/ecosystem"
)

func testApp(name string, args ...string) ecosystem.App {
	app := ecosystem.NewApp(name, "testdata/app.sh")
	app.Args = args
	app.KillTimeout = 200
	return app
}

func logText(s *Service) string {
	recs, _ := s.GetLog(0)
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, r.Text)
	}
	return strings.Join(lines, "\n")
}

func TestProcessStartStop(t *testing.T) {
	Convey("Test start/stop of a new process", t,
		WithManager(t, "TestProcessStartStop", func(m *Manager) {
			s1 := NewProcess("ProcessStartStop:S1", exec.Command(
				"testdata/app.sh", "sleep", "3600"))
			So(s1, ShouldNotBeNil)

			m.AddService(s1)
			So(s1.Enabled(), ShouldBeFalse)
			So(s1.Running(), ShouldBeFalse)
			So(s1.Enable(), ShouldBeNil)
			So(s1.Enabled(), ShouldBeTrue)
			So(s1.Running(), ShouldBeTrue)

			pid, e := s1.GetProperty(PropProcessPid)
			So(e, ShouldBeNil)
			So(pid, ShouldBeGreaterThan, 0)

			time.Sleep(time.Millisecond * 10)
			So(s1.Check(), ShouldBeNil)

			So(s1.Disable(), ShouldBeNil)
			So(s1.Enabled(), ShouldBeFalse)
			So(s1.Running(), ShouldBeFalse)
			pid, _ = s1.GetProperty(PropProcessPid)
			So(pid, ShouldEqual, 0)
		}))
}

func TestProcessFail(t *testing.T) {
	Convey("Test a failing process", t,
		WithManager(t, "TestProcessFail", func(m *Manager) {
			s1 := NewProcess("ProcessFail:S1", exec.Command(
				"testdata/app.sh", "fail"))
			So(s1, ShouldNotBeNil)
			m.AddService(s1)
			m.StopMonitoring()
			So(s1.Enable(), ShouldBeNil)
			So(s1.Enabled(), ShouldBeTrue)
			time.Sleep(time.Millisecond * 200)
			e := s1.Check()
			So(errors.Is(e, ErrExited), ShouldBeTrue)
			So(s1.Enabled(), ShouldBeTrue)
			So(s1.Failed(), ShouldBeTrue)
			So(s1.Running(), ShouldBeFalse)
			So(logText(s1), ShouldContainSubstring, "stderr> failing on purpose")
		}))
}

func TestProcessKillTimeout(t *testing.T) {
	Convey("A process ignoring SIGTERM is killed", t,
		WithManager(t, "TestKillTimeout", func(m *Manager) {
			s1 := NewProcess("KillTimeout:S1", exec.Command(
				"/bin/sh", "-c", "trap '' TERM; while :; do sleep 1; done"))
			So(s1.SetProperty(PropProcessStopTime, 100*time.Millisecond), ShouldBeNil)
			m.AddService(s1)
			So(s1.Enable(), ShouldBeNil)
			time.Sleep(50 * time.Millisecond)
			start := time.Now()
			So(s1.Disable(), ShouldBeNil)
			So(time.Since(start), ShouldBeLessThan, 5*time.Second)
			So(s1.Running(), ShouldBeFalse)
		}))
}

func TestApps(t *testing.T) {
	Convey("Given a manager", t,
		WithManager(t, "TestApps", func(m *Manager) {
			wd, _ := os.Getwd()

			Convey("An app gets one service per instance", func() {
				app := testApp("sleeper", "sleep", "3600")
				app.Instances = 3
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				So(len(svcs), ShouldEqual, 3)
				for i, s := range svcs {
					So(s.Name(), ShouldEqual, "sleeper:"+string(rune('0'+i)))
					So(s.App(), ShouldEqual, "sleeper")
					So(s.Instance(), ShouldEqual, i)
					So(s.Enabled(), ShouldBeFalse)
				}
				So(len(m.FindServices("sleeper")), ShouldEqual, 3)

				apps := m.Apps()
				So(len(apps), ShouldEqual, 1)
				So(apps[0].Equal(app), ShouldBeTrue)
				got, e := m.App("sleeper")
				So(e, ShouldBeNil)
				So(got.Instances, ShouldEqual, 3)

				v, e := svcs[1].GetProperty(PropApp)
				So(e, ShouldBeNil)
				So(v.(ecosystem.App).Name, ShouldEqual, "sleeper")

				_, e = m.AddApp(app, wd)
				So(errors.Is(e, ErrAppExists), ShouldBeTrue)

				Convey("Each instance runs and restarts with a new run id", func() {
					for _, s := range svcs {
						So(s.Enable(), ShouldBeNil)
						So(s.Running(), ShouldBeTrue)
					}
					id1, _ := svcs[0].GetProperty(PropProcessRunID)
					So(id1, ShouldNotBeEmpty)
					So(m.RestartApp("sleeper"), ShouldBeNil)
					id2, _ := svcs[0].GetProperty(PropProcessRunID)
					So(id2, ShouldNotEqual, id1)
					So(svcs[2].Running(), ShouldBeTrue)
				})

				Convey("Removing the app stops and drops its services", func() {
					So(svcs[0].Enable(), ShouldBeNil)
					So(m.RemoveApp("sleeper"), ShouldBeNil)
					So(svcs[0].Running(), ShouldBeFalse)
					all, _, _ := m.Services()
					So(len(all), ShouldEqual, 0)
					So(errors.Is(m.RemoveApp("sleeper"), ErrNoSuchApp), ShouldBeTrue)
					_, e := m.App("sleeper")
					So(errors.Is(e, ErrNoSuchApp), ShouldBeTrue)
				})
			})

			Convey("Invalid apps are refused", func() {
				_, e := m.AddApp(ecosystem.NewApp("bad:name", "x"), wd)
				So(errors.Is(e, ecosystem.ErrBadName), ShouldBeTrue)
			})

			Convey("The environment carries the descriptor", func() {
				app := testApp("envy", "env")
				app.Env = ecosystem.Env{"NODE_ENV": "production", "PORT": "8085"}
				app.Instances = 2
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				So(svcs[1].Enable(), ShouldBeNil)
				So(eventually(func() bool {
					return strings.Contains(logText(svcs[1]), AppEnvVar+"=envy")
				}), ShouldBeTrue)
				text := logText(svcs[1])
				So(text, ShouldContainSubstring, "stdout> NODE_ENV=production")
				So(text, ShouldContainSubstring, "stdout> PORT=8085")
				So(text, ShouldContainSubstring, "stdout> NODE_APP_INSTANCE=1")
			})

			Convey("env_file is read at launch under env", func() {
				app := testApp("dotenv", "env")
				app.EnvFile = "testdata/app.env"
				app.Env = ecosystem.Env{"PORT": "8085"}
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				So(svcs[0].Enable(), ShouldBeNil)
				So(eventually(func() bool {
					return strings.Contains(logText(svcs[0]), "stdout> DB_USER=baki")
				}), ShouldBeTrue)
				text := logText(svcs[0])
				So(text, ShouldContainSubstring, "stdout> PORT=8085")
				So(text, ShouldNotContainSubstring, "PORT=9000")
			})

			Convey("A missing env_file fails the start", func() {
				app := testApp("nodotenv", "env")
				app.EnvFile = "testdata/missing.env"
				app.Autorestart = false
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				So(svcs[0].Enable(), ShouldBeNil)
				So(svcs[0].Running(), ShouldBeFalse)
				So(svcs[0].Failed(), ShouldBeTrue)
				So(errors.Is(svcs[0].Err(), ecosystem.ErrBadEnv), ShouldBeTrue)
			})

			Convey("cwd is relative to the ecosystem directory", func() {
				app := testApp("where", "pwd")
				app.Script = filepath.Join(wd, "testdata", "app.sh")
				app.Cwd = "testdata"
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				So(svcs[0].Enable(), ShouldBeNil)
				want := "stdout> " + filepath.Join(wd, "testdata")
				So(eventually(func() bool {
					return strings.Contains(logText(svcs[0]), want)
				}), ShouldBeTrue)
			})

			Convey("out_file and error_file receive output", func() {
				dir := t.TempDir()
				app := testApp("noisy", "noisy")
				app.Script = filepath.Join(wd, "testdata", "app.sh")
				app.Cwd = dir
				app.OutFile = "out.log"
				app.ErrorFile = "err.log"
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				So(svcs[0].Enable(), ShouldBeNil)
				read := func(name string) string {
					b, _ := os.ReadFile(filepath.Join(dir, name))
					return string(b)
				}
				So(eventually(func() bool {
					return read("err.log") != "" && read("out.log") != ""
				}), ShouldBeTrue)
				So(read("out.log"), ShouldEqual, "to stdout\n")
				So(read("err.log"), ShouldEqual, "to stderr\n")
			})

			Convey("An exiting app is restarted", func() {
				app := testApp("flaky", "sleep", "0")
				app.MaxRestarts = 100
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				m.StartMonitoring()
				So(svcs[0].Enable(), ShouldBeNil)
				So(eventually(func() bool { return svcs[0].Restarts() >= 2 }), ShouldBeTrue)
			})

			Convey("An app over its memory ceiling is restarted", func() {
				app := testApp("hungry", "sleep", "3600")
				app.MaxMemoryRestart = "1K"
				app.Autorestart = false
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				So(svcs[0].Enable(), ShouldBeNil)
				m.StartMonitoring()
				So(eventually(func() bool { return svcs[0].Restarts() >= 1 }), ShouldBeTrue)
				So(logText(svcs[0]), ShouldContainSubstring, ErrMemoryLimit.Error())

				m.StopMonitoring()
				e = svcs[0].Check()
				So(errors.Is(e, ErrMemoryLimit), ShouldBeTrue)
				So(e.Error(), ShouldContainSubstring, "over 1K")
			})

			Convey("Watched apps restart on change", func() {
				dir := t.TempDir()
				app := testApp("watched", "sleep", "3600")
				app.Script = filepath.Join(wd, "testdata", "app.sh")
				app.Cwd = dir
				app.Watch = true
				app.IgnoreWatch = []string{"*.tmp"}
				svcs, e := m.AddApp(app, wd)
				So(e, ShouldBeNil)
				So(svcs[0].Enable(), ShouldBeNil)
				id1, _ := svcs[0].GetProperty(PropProcessRunID)

				os.WriteFile(filepath.Join(dir, "ignored.tmp"), []byte("x"), 0644)
				time.Sleep(time.Second)
				id2, _ := svcs[0].GetProperty(PropProcessRunID)
				So(id2, ShouldEqual, id1)

				os.WriteFile(filepath.Join(dir, "index.js"), []byte("x"), 0644)
				So(eventually(func() bool {
					id, _ := svcs[0].GetProperty(PropProcessRunID)
					return id != id1
				}), ShouldBeTrue)
			})
		}))
}
