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
	"io"
	"log"
	"strings"
	"sync"
)

// MultiLogger fans log lines out to several destinations.  It has a
// log.Logger of its own whose output is split into lines, each delivered
// whole to every registered writer.  Destinations are plain io.Writers: the
// ring of a Log, a rotating file, or the writer behind another log.Logger.
type MultiLogger struct {
	log     *log.Logger
	writers []io.Writer
	lock    sync.Mutex
}

// Write implements io.Writer.  It is expected that input is delivered a
// line (or several whole lines) at a time, which is what log.Logger does.
func (l *MultiLogger) Write(b []byte) (int, error) {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	l.lock.Lock()
	for _, line := range lines {
		buf := []byte(line + "\n")
		for _, w := range l.writers {
			// A failing destination must not starve the others.
			w.Write(buf)
		}
	}
	l.lock.Unlock()
	return len(b), nil
}

// AddWriter adds a destination.  A writer can only be added once.
func (l *MultiLogger) AddWriter(w io.Writer) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, x := range l.writers {
		if x == w {
			return
		}
	}
	l.writers = append(l.writers, w)
}

// DelWriter removes a destination added with AddWriter.
func (l *MultiLogger) DelWriter(w io.Writer) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i, x := range l.writers {
		if x == w {
			l.writers = append(l.writers[:i], l.writers[i+1:]...)
			return
		}
	}
}

// AddLogger adds a log.Logger as a destination.  The logger keeps its own
// prefix and flags.
func (l *MultiLogger) AddLogger(logger *log.Logger) {
	l.AddWriter(loggerWriter{logger})
}

func (l *MultiLogger) DelLogger(logger *log.Logger) {
	l.DelWriter(loggerWriter{logger})
}

// Logger returns the logger that feeds this MultiLogger.
func (l *MultiLogger) Logger() *log.Logger {
	return l.log
}

type loggerWriter struct {
	l *log.Logger
}

func (w loggerWriter) Write(b []byte) (int, error) {
	w.l.Print(string(b))
	return len(b), nil
}

func NewMultiLogger() *MultiLogger {
	m := &MultiLogger{}
	m.log = log.New(m, "", 0)
	return m
}
