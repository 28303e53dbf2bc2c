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

// Package logging builds the daemon's structured logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ecovisor/ecovisor/config"
)

// New returns a JSON logger writing to stderr and, when cfg.File is set,
// to a rotated log file as well.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LogConfig, console io.Writer) (*zap.Logger, error) {
	level, e := zapcore.ParseLevel(cfg.Level)
	if e != nil {
		return nil, fmt.Errorf("%w: %q", config.ErrBadLogLevel, cfg.Level)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(console)), level),
	}
	if cfg.File != "" {
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(FileWriter(cfg)), level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// FileWriter is the rotating writer used for cfg.File.
func FileWriter(cfg config.LogConfig) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	}
}

// StdLog adapts l for code that logs through a *log.Logger, such as the
// supervisor's MultiLogger and net/http's ErrorLog.
func StdLog(l *zap.Logger, name string) *log.Logger {
	return zap.NewStdLog(l.Named(name))
}
