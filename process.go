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

package ecovisor

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ecovisor/ecovisor/ecosystem"
)

const (
	PropProcessPid       PropertyName = "_ProcPid"       // int, 0 if not running
	PropProcessRunID     PropertyName = "_ProcRunID"     // string, new per start
	PropProcessStartTime PropertyName = "_ProcStartTime" // time.Time
	PropProcessStopTime  PropertyName = "_ProcStopTime"  // time.Duration
	PropProcessMemLimit  PropertyName = "_ProcMemLimit"  // int64 bytes, 0 = none
	PropProcessRSS       PropertyName = "_ProcRSS"       // int64 bytes, sampled
)

// AppEnvVar is set in the environment of every app process to the app name.
const AppEnvVar = "ECOVISOR_APP"

// Rotation settings for out_file and error_file.
const (
	logFileMaxSize    = 10 // megabytes
	logFileMaxBackups = 5
	logFileMaxAge     = 28 // days
)

// Process represents an actual operating system level process.  This
// implements the Provider interface.  Each Start launches a fresh copy of
// the command, in a process group of its own.
type Process struct {
	name     string
	desc     string
	app      *ecosystem.App
	instance int
	path     string
	args     []string
	dir      string
	env      []string
	logger   *log.Logger // Log for messages, stdout, and stderr.
	notify   func()
	reason   error // Why we failed
	failed   bool  // True if we are in failure state
	stopped  bool  // True if we were stopped
	stopTime time.Duration
	memLimit int64
	cmd      *exec.Cmd
	runID    string
	started  time.Time
	outFile  io.WriteCloser
	errFile  io.WriteCloser

	lock   sync.Mutex
	waiter sync.WaitGroup
}

// lineWriter hands complete lines to emit.  A trailing partial line is
// held until more output arrives or Flush is called.
type lineWriter struct {
	buf  []byte
	emit func(string)
	mx   sync.Mutex
}

const maxLineLength = 64 * 1024

func (w *lineWriter) Write(b []byte) (int, error) {
	w.mx.Lock()
	defer w.mx.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(strings.TrimSuffix(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLineLength {
		w.emit(string(w.buf))
		w.buf = nil
	}
	return len(b), nil
}

func (w *lineWriter) Flush() {
	w.mx.Lock()
	if len(w.buf) > 0 {
		w.emit(string(w.buf))
		w.buf = nil
	}
	w.mx.Unlock()
}

func (p *Process) output(prefix string, file io.Writer) *lineWriter {
	return &lineWriter{emit: func(line string) {
		p.logger.Print(prefix, line)
		if file != nil {
			io.WriteString(file, line+"\n")
		}
	}}
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) Description() string {
	return p.desc
}

// environ is the environment of the child.  Later entries win over
// earlier ones with the same key.
func (p *Process) environ() ([]string, error) {
	if p.app == nil {
		return p.env, nil
	}
	vars, e := p.app.LaunchEnv(p.dir)
	if e != nil {
		return nil, e
	}
	env := os.Environ()
	env = append(env, vars.Environ()...)
	env = append(env, p.app.InstanceVariable()+"="+strconv.Itoa(p.instance))
	env = append(env, AppEnvVar+"="+p.app.Name)
	if p.dir != "" {
		env = append(env, "PWD="+p.dir)
	}
	return env, nil
}

func (p *Process) command(env []string, stdout, stderr io.Writer) *exec.Cmd {
	cmd := exec.Command(p.path, p.args...)
	cmd.Dir = p.dir
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Grandchildren holding our pipes open must not wedge Wait.
	cmd.WaitDelay = time.Second
	setProcAttr(cmd)
	return cmd
}

func (p *Process) doWait(cmd *exec.Cmd, outputs ...*lineWriter) {
	e := cmd.Wait()
	for _, w := range outputs {
		w.Flush()
	}
	var notify func()
	p.lock.Lock()
	if !p.stopped {
		if e != nil {
			e = fmt.Errorf("%w: %v", ErrExited, e)
		} else {
			e = ErrExited
		}
		p.failed = true
		p.reason = e
		p.logger.Printf("Failed: %v", e)
		notify = p.notify
	}
	p.lock.Unlock()
	p.waiter.Done()
	if notify != nil {
		notify()
	}
}

func (p *Process) Start() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.stopped = false
	p.failed = false
	p.reason = nil

	env, e := p.environ()
	if e != nil {
		p.failed = true
		p.reason = e
		return e
	}
	stdout := p.output("stdout> ", p.outFile)
	stderr := p.output("stderr> ", p.errFile)
	cmd := p.command(env, stdout, stderr)
	if e := cmd.Start(); e != nil {
		p.failed = true
		p.reason = e
		return e
	}
	p.cmd = cmd
	p.runID = uuid.NewString()
	p.started = time.Now()
	p.logger.Printf("Started pid %d (run %s)", cmd.Process.Pid, p.runID)
	p.waiter.Add(1)

	go p.doWait(cmd, stdout, stderr)

	return nil
}

func (p *Process) signal(sig syscall.Signal) {
	if e := signalGroup(p.cmd.Process, sig); e != nil {
		p.logger.Printf("Failed sending %v: %v", sig, e)
	}
}

// Stop sends SIGTERM, and SIGKILL if the process has not gone after the
// stop time.  It returns once the process has been reaped.
func (p *Process) Stop() {
	p.lock.Lock()
	p.stopped = true
	if p.cmd != nil {
		var timer *time.Timer
		p.signal(syscall.SIGTERM)
		if p.stopTime > 0 {
			timer = time.AfterFunc(p.stopTime, func() {
				p.lock.Lock()
				if p.cmd != nil {
					p.logger.Printf("Graceful shutdown timed out")
					p.signal(syscall.SIGKILL)
				}
				p.lock.Unlock()
			})
		}
		p.lock.Unlock()
		p.waiter.Wait()
		p.lock.Lock()
		if timer != nil {
			timer.Stop()
		}
	}
	p.cmd = nil
	p.lock.Unlock()
}

// Check reports an unexpected exit, and enforces the memory ceiling.
func (p *Process) Check() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.failed {
		return p.reason
	}
	if p.memLimit <= 0 || p.cmd == nil {
		return nil
	}
	rss, e := processRSS(p.cmd.Process.Pid)
	if e != nil {
		// Sampling is best effort; the exit will be reported by doWait.
		return nil
	}
	if rss > p.memLimit {
		p.failed = true
		p.reason = fmt.Errorf("%w: rss %s over %s", ErrMemoryLimit,
			ecosystem.FormatSize(rss), ecosystem.FormatSize(p.memLimit))
		p.logger.Printf("Failed: %v", p.reason)
		return p.reason
	}
	return nil
}

func (p *Process) SetProperty(n PropertyName, v interface{}) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch n {
	case PropLogger:
		if v, ok := v.(*log.Logger); ok {
			p.logger = v
			return nil
		}
		return ErrBadPropType
	case PropNotify:
		if v, ok := v.(func()); ok {
			p.notify = v
			return nil
		}
		return ErrBadPropType
	case PropProcessStopTime:
		if v, ok := v.(time.Duration); ok {
			p.stopTime = v
			return nil
		}
		return ErrBadPropType
	case PropProcessMemLimit:
		if v, ok := v.(int64); ok {
			if v < 0 {
				return ErrBadPropValue
			}
			p.memLimit = v
			return nil
		}
		return ErrBadPropType
	case PropRestart, PropRateLimit, PropRatePeriod, PropName, PropDescription:
		// Handled by the service.
		return nil
	case PropProcessPid, PropProcessRunID, PropProcessStartTime, PropProcessRSS:
		return ErrPropReadOnly
	}
	return ErrBadPropName
}

func (p *Process) Property(n PropertyName) (interface{}, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch n {
	case PropLogger:
		return p.logger, nil
	case PropProcessStopTime:
		return p.stopTime, nil
	case PropProcessMemLimit:
		return p.memLimit, nil
	case PropProcessPid:
		if p.cmd == nil || p.failed {
			return 0, nil
		}
		return p.cmd.Process.Pid, nil
	case PropProcessRunID:
		return p.runID, nil
	case PropProcessStartTime:
		return p.started, nil
	case PropProcessRSS:
		if p.cmd == nil || p.failed {
			return int64(0), nil
		}
		return processRSS(p.cmd.Process.Pid)
	case PropApp:
		if p.app == nil {
			return nil, ErrBadPropName
		}
		return *p.app, nil
	}
	return nil, ErrBadPropName
}

// logFile opens a rotating log file.  With several instances each gets
// its own file, suffixed with the instance index as PM2 does.
func logFile(name, dir string, index, count int) io.WriteCloser {
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	if count > 1 {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(index) + ext
	}
	return &lumberjack.Logger{
		Filename:   name,
		MaxSize:    logFileMaxSize,
		MaxBackups: logFileMaxBackups,
		MaxAge:     logFileMaxAge,
	}
}

// resolveScript returns the program to run.  A bare name that does not
// exist in the working directory is left for exec to find in $PATH.
func resolveScript(app *ecosystem.App, base string) string {
	path := app.Command(base)
	if strings.ContainsRune(app.Script, filepath.Separator) ||
		strings.ContainsRune(app.Script, '/') {
		return path
	}
	if _, e := os.Stat(path); e == nil {
		return path
	}
	return app.Script
}

// NewAppProcess creates the service for instance index (of count) of an
// app.  Relative paths in the descriptor resolve against base, normally
// the directory of the ecosystem file.
func NewAppProcess(app ecosystem.App, base string, index, count int) *Service {
	p := &Process{app: &app, instance: index}
	p.name = app.Name + ":" + strconv.Itoa(index)
	p.path = resolveScript(&app, base)
	p.args = append([]string{}, app.Args...)
	p.dir = app.Dir(base)
	p.desc = app.Name + " " + string(app.ExecMode) + " instance " + strconv.Itoa(index)
	p.logger = log.New(os.Stderr, "", log.LstdFlags)
	p.stopTime = app.KillTimeoutDuration()
	p.memLimit = app.MemoryLimit()
	if app.OutFile != "" {
		p.outFile = logFile(app.OutFile, p.dir, index, count)
	}
	if app.ErrorFile != "" {
		p.errFile = logFile(app.ErrorFile, p.dir, index, count)
	}

	s := NewService(p)
	s.app = app.Name
	s.instance = index
	s.SetProperty(PropRestart, app.Autorestart)
	n, d := app.RestartLimit()
	s.SetProperty(PropRateLimit, n)
	s.SetProperty(PropRatePeriod, d)
	return s
}

// NewProcess creates a service from a command template.  The command
// itself is never started; each Start runs a copy of it.
func NewProcess(name string, cmd *exec.Cmd) *Service {
	p := &Process{}
	p.logger = log.New(os.Stderr, "", log.LstdFlags)
	p.stopTime = time.Second * 10
	p.path = cmd.Path
	if len(cmd.Args) > 1 {
		p.args = append([]string{}, cmd.Args[1:]...)
	}
	p.dir = cmd.Dir
	p.env = cmd.Env
	p.name = name
	p.desc = name + " process: " + cmd.Path
	return NewService(p)
}

// closeFiles releases the rotating log files.  The service must be
// stopped.
func (p *Process) closeFiles() {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, f := range []io.WriteCloser{p.outFile, p.errFile} {
		if f != nil {
			f.Close()
		}
	}
}
