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
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ecovisor/ecovisor/ecosystem"
)

type Manager struct {
	services   map[*Service]bool
	apps       map[string]*appEntry
	name       string
	logger     *log.Logger
	log        *Log
	mlog       *MultiLogger
	cleanup    bool
	monitoring bool
	serial     int64
	listSerial int64
	listStamp  time.Time
	createTime time.Time
	updateTime time.Time
	mx         sync.Mutex
	cvs        map[*sync.Cond]bool
}

// appEntry is an app added from an ecosystem descriptor, with the
// services running its instances.
type appEntry struct {
	app      ecosystem.App
	dir      string
	services []*Service
	watcher  *watcher
}

type ManagerInfo struct {
	Name       string
	Serial     int64
	UpdateTime time.Time
	CreateTime time.Time
}

func (m *Manager) lock() {
	m.mx.Lock()
}

func (m *Manager) unlock() {
	m.mx.Unlock()
}

func (m *Manager) wakeUp() {
	// NB: If the lock is not held here, then there is a risk
	// that the woken goroutines won't get see the updated
	// serial number!!
	for cv := range m.cvs {
		cv.Broadcast()
	}
}

// bumpSerial increments the serial and notifies watchers.  It returns
// the new serial number, so that it can be stored in services.
// Call with lock held.
func (m *Manager) bumpSerial() int64 {
	m.updateTime = time.Now()
	m.serial++
	rv := m.serial
	m.wakeUp()
	return rv
}

// listChanged records a change to the set of services.  Call with lock
// held.
func (m *Manager) listChanged() {
	m.listSerial = m.bumpSerial()
	m.listStamp = time.Now()
}

// watchSerial monitors for a change in a specific serial number.  It returns
// the new serial number when it changes.  If the serial number has not
// changed in the given duration then the old value is returned.  A poll
// can be done by supplying 0 for the expiration.
func (m *Manager) watchSerial(old int64, src *int64, expire time.Duration) int64 {
	expired := false
	cv := sync.NewCond(&m.mx)
	var timer *time.Timer
	var rv int64

	// Schedule timeout
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			m.lock()
			expired = true
			cv.Broadcast()
			m.unlock()
		})
	} else {
		expired = true
	}

	m.lock()
	m.cvs[cv] = true
	for {
		rv = *src
		if rv != old || expired {
			break
		}
		cv.Wait()
	}
	delete(m.cvs, cv)
	m.unlock()
	if timer != nil {
		timer.Stop()
	}
	return rv
}

// WatchSerial monitors for a change in the global serial number.
func (m *Manager) WatchSerial(old int64, expire time.Duration) int64 {
	return m.watchSerial(old, &m.serial, expire)
}

// WatchServices monitors for a change in the list of services.
func (m *Manager) WatchServices(old int64, expire time.Duration) int64 {
	return m.watchSerial(old, &m.listSerial, expire)
}

// Serial returns the global serial number.  This is incremented
// anytime a service has a state change.
func (m *Manager) Serial() int64 {
	m.lock()
	rv := m.serial
	m.unlock()
	return rv
}

// Name returns the name the manager was allocated with.  This makes it
// possible to distinguish between separate manager instances.
func (m *Manager) Name() string {
	return m.name
}

// GetInfo returns top-level information about the Manager.  This is done
// in a manner that ensures that the info is consistent.
func (m *Manager) GetInfo() *ManagerInfo {
	m.lock()
	i := &ManagerInfo{
		Name:       m.name,
		Serial:     m.serial,
		CreateTime: m.createTime,
		UpdateTime: m.updateTime,
	}
	m.unlock()
	return i
}

// AddService adds a service, registering it, to the manager.
func (m *Manager) AddService(s *Service) {
	m.lock()
	s.setManager(m)
	m.listChanged()
	m.unlock()
}

// DeleteService deletes a service from the manager.  The service must be
// disabled first.
func (m *Manager) DeleteService(s *Service) error {
	m.lock()
	defer m.unlock()
	if s.enabled {
		return ErrIsEnabled
	}
	s.delManager()
	m.listChanged()
	return nil
}

// AddApp registers the instances of an app, one service per instance.
// The services are added disabled.  Relative paths in the descriptor are
// resolved against dir.
func (m *Manager) AddApp(app ecosystem.App, dir string) ([]*Service, error) {
	if e := app.Validate(); e != nil {
		return nil, e
	}
	m.lock()
	if _, ok := m.apps[app.Name]; ok {
		m.unlock()
		return nil, fmt.Errorf("%w: %s", ErrAppExists, app.Name)
	}
	n := app.Count(runtime.NumCPU())
	ent := &appEntry{app: app, dir: dir}
	for i := 0; i < n; i++ {
		s := NewAppProcess(app, dir, i, n)
		s.setManager(m)
		ent.services = append(ent.services, s)
	}
	m.apps[app.Name] = ent
	m.listChanged()
	m.unlock()

	m.logf("Added app %s: %d %s instance(s)", app.Name, n, app.ExecMode)
	if app.Watch {
		w, e := newWatcher(m, app.Name, app.Dir(dir), app.IgnoreWatch)
		if e != nil {
			m.logf("Cannot watch %s: %v", app.Name, e)
		} else {
			m.lock()
			ent.watcher = w
			m.unlock()
		}
	}
	return append([]*Service{}, ent.services...), nil
}

// AddFile adds every app of an ecosystem file.  It stops at the first
// app that cannot be added.
func (m *Manager) AddFile(file *ecosystem.File) ([]*Service, error) {
	var rv []*Service
	for _, app := range file.Apps {
		svcs, e := m.AddApp(app, file.Dir)
		if e != nil {
			return rv, e
		}
		rv = append(rv, svcs...)
	}
	return rv, nil
}

// RemoveApp stops all instances of an app and removes them.
func (m *Manager) RemoveApp(name string) error {
	m.lock()
	ent, ok := m.apps[name]
	if !ok {
		m.unlock()
		return fmt.Errorf("%w: %s", ErrNoSuchApp, name)
	}
	delete(m.apps, name)
	w := ent.watcher
	for _, s := range ent.services {
		m.dropService(s, "Removed app")
	}
	m.listChanged()
	m.unlock()

	if w != nil {
		w.Close()
	}
	m.logf("Removed app %s", name)
	return nil
}

// dropService stops and removes a service.  Call with lock held.
func (m *Manager) dropService(s *Service, detail string) {
	s.enabled = false
	s.stop(detail)
	s.delManager()
	if p, ok := s.prov.(*Process); ok {
		p.closeFiles()
	}
}

// Apps returns the descriptors of the added apps, ordered by name.
func (m *Manager) Apps() []ecosystem.App {
	m.lock()
	rv := make([]ecosystem.App, 0, len(m.apps))
	for _, ent := range m.apps {
		rv = append(rv, ent.app)
	}
	m.unlock()
	sort.Slice(rv, func(i, j int) bool { return rv[i].Name < rv[j].Name })
	return rv
}

// App returns the descriptor of the named app.
func (m *Manager) App(name string) (ecosystem.App, error) {
	m.lock()
	defer m.unlock()
	if ent, ok := m.apps[name]; ok {
		return ent.app, nil
	}
	return ecosystem.App{}, fmt.Errorf("%w: %s", ErrNoSuchApp, name)
}

// AppServices returns the services of the named app, in instance order.
func (m *Manager) AppServices(name string) ([]*Service, error) {
	m.lock()
	defer m.unlock()
	if ent, ok := m.apps[name]; ok {
		return append([]*Service{}, ent.services...), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchApp, name)
}

// RestartApp restarts every enabled instance of the named app.  Every
// instance is attempted; the first refusal by the rate limit is returned.
func (m *Manager) RestartApp(name string) error {
	m.lock()
	defer m.unlock()
	ent, ok := m.apps[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchApp, name)
	}
	var err error
	for _, s := range ent.services {
		if e := s.restartLocked("Restarted app"); e != nil && err == nil {
			err = fmt.Errorf("%s: %w", s.Name(), e)
		}
	}
	return err
}

func sortServices(svcs []*Service) {
	sort.Slice(svcs, func(i, j int) bool {
		a, b := svcs[i], svcs[j]
		if a.app != b.app {
			return a.app < b.app
		}
		if a.instance != b.instance {
			return a.instance < b.instance
		}
		return a.name < b.name
	})
}

// Services returns all of our services, ordered by app and instance, and
// the serial number and time of the last change to the list.
func (m *Manager) Services() ([]*Service, int64, time.Time) {
	m.lock()
	rv := make([]*Service, 0, len(m.services))
	for s := range m.services {
		rv = append(rv, s)
	}
	ts := m.listStamp
	sn := m.listSerial
	m.unlock()
	sortServices(rv)
	return rv, sn, ts
}

// FindServices finds the list of services whose name matches.  That is,
// they find all of our services, where the service.Matches() would
// return true for the string match.
func (m *Manager) FindServices(match string) []*Service {
	rv := []*Service{}
	m.lock()
	for s := range m.services {
		if s.Matches(match) {
			rv = append(rv, s)
		}
	}
	m.unlock()
	sortServices(rv)
	return rv
}

// SetLogger is used to establish a logger.  It overrides the default, so it
// shouldn't be used unless you want to control all logging.
func (m *Manager) SetLogger(l *log.Logger) {
	if m.logger != nil {
		m.mlog.DelLogger(m.logger)
	}
	m.logger = l
	m.mlog.AddLogger(l)
}

// SetLogWriter is SetLogger for a plain writer.
func (m *Manager) SetLogWriter(w io.Writer) {
	m.SetLogger(log.New(w, "", log.LstdFlags))
}

func (m *Manager) monitor() {
	finish := false
	for !finish {
		m.lock()
		if m.monitoring {
			for s := range m.services {
				if s.enabled {
					if e := s.checkService(); e != nil {
						s.selfHeal()
					}
				}
			}
		}
		if m.cleanup {
			m.monitoring = false
			finish = true
		}
		m.unlock()

		// a "prime" number of milliseconds, to ensure a more
		// or less even distribution of clock events
		time.Sleep(time.Millisecond * 587)
	}
}

// notify is called asynchronously by services, when they detect a failure.
// It MUST NOT be called by the service as part of a synchronous call to
// the check routine.  We do add a check to prevent infinite recursion, but
// again, the caller should be careful not to do this.
func (m *Manager) notify(s *Service) {
	if s.checking || !m.monitoring {
		return
	}
	if s.enabled {
		if e := s.checkService(); e != nil {
			s.selfHeal()
		}
	}
}

func (m *Manager) logf(format string, v ...interface{}) {
	m.mlog.Logger().Printf(format, v...)
}

func (m *Manager) StopMonitoring() {
	m.lock()
	m.monitoring = false
	m.unlock()
	m.logf("*** Ecovisor stopping monitoring: %s ***", m.name)
}

func (m *Manager) StartMonitoring() {
	m.logf("*** Ecovisor starting monitoring: %s ***", m.name)
	m.lock()
	m.monitoring = true
	m.unlock()
}

// Shutdown stops all services, and stops monitoring too.  Finally, it removes
// them all from the manager.  Think of this as effectively tearing down the
// entire thing; the manager cannot be used afterwards.
func (m *Manager) Shutdown() {
	m.lock()
	m.monitoring = false
	m.cleanup = true
	var watchers []*watcher
	for name, ent := range m.apps {
		if ent.watcher != nil {
			watchers = append(watchers, ent.watcher)
		}
		delete(m.apps, name)
	}
	for s := range m.services {
		m.dropService(s, "Shutting down")
	}
	m.listChanged()
	m.unlock()
	for _, w := range watchers {
		w.Close()
	}
	m.logf("*** Ecovisor shut down: %s ***", m.name)
}

func (m *Manager) GetLog(lastid int64) ([]LogRecord, int64) {
	return m.log.GetRecords(lastid)
}

func (m *Manager) WatchLog(old int64, expire time.Duration) int64 {
	return m.log.Watch(old, expire)
}

func NewManager(name string) *Manager {
	if name == "" {
		name = "ecovisor"
	}
	// We set the origin serial number to the current timestamp in nsec.
	// The assumption here is that we won't have changes to serial number
	// occur at frequency > 1GHz.  Hence, it should be safe for us to use
	// these as unique values, and this may help clients that cache force
	// an invalidation if the server for some reason restarts.
	m := &Manager{name: name, serial: time.Now().UnixNano()}
	m.services = make(map[*Service]bool)
	m.apps = make(map[string]*appEntry)
	m.cvs = make(map[*sync.Cond]bool)
	m.createTime = time.Now()
	m.updateTime = m.createTime
	m.listSerial = m.serial
	m.mlog = NewMultiLogger()
	m.log = NewLog()
	m.mlog.AddWriter(m.log)
	m.SetLogger(log.New(os.Stderr, "", log.LstdFlags))
	go m.monitor()
	return m
}
