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

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/ecovisor/ecovisor"
	"github.com/ecovisor/ecovisor/config"
	"github.com/ecovisor/ecovisor/ecosystem"
	"github.com/ecovisor/ecovisor/logging"
	"github.com/ecovisor/ecovisor/rest"
	"github.com/ecovisor/ecovisor/store"
)

const snapshotInterval = 5 * time.Second

// daemon ties the manager to its HTTP front end and process table.
type daemon struct {
	cfg    *config.Config
	logger *zap.Logger
	m      *ecovisor.Manager
	st     store.Store
	srv    *http.Server
	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDaemon(cfg *config.Config, logger *zap.Logger) *daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &daemon{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// loadApps reads every configured ecosystem file.  All files are parsed
// before any app is added, so a typo in one file starts nothing.
func (d *daemon) loadApps() ([]*ecosystem.File, error) {
	var files []*ecosystem.File
	for _, path := range d.cfg.Ecosystem {
		f, e := ecosystem.Load(path)
		if e != nil {
			return nil, e
		}
		files = append(files, f)
	}
	return files, nil
}

func (d *daemon) openStore() error {
	if d.cfg.State.Path == "" {
		return nil
	}
	st, e := store.Open(d.cfg.State.Path)
	if e != nil {
		return e
	}
	stale, e := store.Stale(d.ctx, st)
	if e != nil {
		st.Close()
		return e
	}
	d.st = st
	for _, rec := range stale {
		d.logger.Warn("process from a previous run is still alive",
			zap.String("service", rec.Service),
			zap.Int("pid", rec.PID),
			zap.String("run_id", rec.RunID))
	}
	return nil
}

// Start brings everything up.  On error whatever was started is torn
// down again.
func (d *daemon) Start() error {
	files, e := d.loadApps()
	if e != nil {
		return e
	}
	if e := d.openStore(); e != nil {
		return fmt.Errorf("state: %w", e)
	}

	d.m = ecovisor.NewManager(d.cfg.Name)
	d.m.SetLogger(logging.StdLog(d.logger, "manager"))
	for _, f := range files {
		svcs, e := d.m.AddFile(f)
		if e != nil {
			d.Stop()
			return e
		}
		d.logger.Info("loaded ecosystem file",
			zap.String("dir", f.Dir),
			zap.Int("apps", len(f.Apps)),
			zap.Int("services", len(svcs)))
	}
	if d.cfg.Monitor.Enabled {
		d.m.StartMonitoring()
	}
	if d.cfg.Enable {
		svcs, _, _ := d.m.Services()
		for _, s := range svcs {
			if e := s.Enable(); e != nil {
				d.logger.Error("enable failed", zap.String("service", s.Name()), zap.Error(e))
			}
		}
	}

	ln, e := net.Listen("tcp", d.cfg.Listen)
	if e != nil {
		d.Stop()
		return e
	}
	d.ln = netutil.LimitListener(ln, d.cfg.MaxConns)

	h := rest.NewHandler(d.m)
	h.SetLogger(d.logger.Named("http"))
	h.SetAuth(d.cfg.Auth.User, d.cfg.Auth.PasswordHash)
	h.SetAPIKey(d.cfg.Auth.APIKeyHash)
	h.SetCORS(d.cfg.CORS.Origins)
	d.srv = &http.Server{
		Handler:           h,
		ErrorLog:          logging.StdLog(d.logger, "http"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if e := d.srv.Serve(d.ln); e != nil && !errors.Is(e, http.ErrServerClosed) {
			d.logger.Error("http server failed", zap.Error(e))
		}
	}()

	if d.st != nil {
		d.wg.Add(1)
		go d.snapshots()
	}

	d.logger.Info("ecovisord started",
		zap.String("name", d.cfg.Name),
		zap.String("listen", d.ln.Addr().String()),
		zap.Bool("auth", d.cfg.Auth.Enabled()),
		zap.Strings("cors", d.cfg.CORS.Origins))
	return nil
}

// Addr is the address the HTTP server is listening on.
func (d *daemon) Addr() string {
	return d.ln.Addr().String()
}

func (d *daemon) snapshot() {
	svcs, _, _ := d.m.Services()
	if e := store.Snapshot(d.ctx, d.st, svcs); e != nil && d.ctx.Err() == nil {
		d.logger.Warn("snapshot failed", zap.Error(e))
	}
}

// snapshots records the process table every time the manager serial
// moves.
func (d *daemon) snapshots() {
	defer d.wg.Done()
	serial := int64(0)
	for d.ctx.Err() == nil {
		if next := d.m.WatchSerial(serial, snapshotInterval); next != serial {
			serial = next
			d.snapshot()
		}
	}
}

// Stop shuts the HTTP server down and then stops every service.  The
// final snapshot is taken once the services are gone, so a clean stop
// leaves no stale records behind.
func (d *daemon) Stop() {
	if d.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if e := d.srv.Shutdown(ctx); e != nil {
			d.logger.Warn("http shutdown", zap.Error(e))
		}
		cancel()
	}
	d.cancel()
	if d.m != nil {
		// Shutdown bumps the serial, which also releases snapshots().
		d.m.Shutdown()
	}
	d.wg.Wait()
	if d.st != nil {
		if d.m != nil {
			svcs, _, _ := d.m.Services()
			if e := store.Snapshot(context.Background(), d.st, svcs); e != nil {
				d.logger.Warn("final snapshot failed", zap.Error(e))
			}
		}
		d.st.Close()
	}
	d.logger.Info("ecovisord stopped")
}
