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
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Service describes a generic supervised entity, normally one instance of
// an app.  Applications are expected to use the Service structure to
// interact with all managed services.
//
// Implementors can provide custom services (which may be any kind of entity)
// by implementing the Provider interface.
//
// Service methods are not thread safe, until the service is added to a
// Manager.  Once the service is added to a Manager, the Manager's lock
// will protect concurrent accesses.
//
// Services go through a number of possible states as illustrated in the
// following state diagram.  Note that these states are logical, as there is
// no formal state machine in the code.
//
//	                +------------+
//	                |            |
//	      +--------->  Disabled  <-------+
//	      |         |            |       |
//	      |         +----+-------+       |
//	      |              |               |
//	+-----+----+    +----V-------+       |
//	|          |    |            |       |
//	|  Failed  +---->  Starting  |       |
//	|          |    |            |       |
//	+-----A----+    +----+-------+       |
//	      |              |               |
//	      |          +---V---+           |
//	      |          |       |           |
//	      +----------+  Run  +-----------+
//	                 |       |
//	                 +-------+
//
// A failed service goes back to Starting on its own when autorestart is
// set, or always when it failed by exceeding its memory ceiling.
type Service struct {
	prov       Provider
	mgr        *Manager
	name       string
	desc       string
	app        string
	instance   int
	enabled    bool
	running    bool
	stopping   bool
	failed     bool
	restart    bool
	checking   bool
	err        error
	logger     *log.Logger
	stamp      time.Time
	reason     string
	starts     int
	restarts   int
	rateLog    bool
	rateLimit  int
	ratePeriod time.Duration
	startTimes []time.Time
	notify     func()
	serial     int64
	slog       *Log
	mlog       *MultiLogger
}

// Service states, as reported by State.
const (
	StateDisabled = "disabled"
	StateFailed   = "failed"
	StateRunning  = "running"
	StateStandby  = "standby"
)

// The service name.  Instances of an app are named <app>:<index>.  When
// matching, a check of just <app> matches every instance, whereas the
// full <app>:<index> only matches the one.
func (s *Service) Name() string {
	return s.name
}

// Description returns a descriptive name for the service.  If possible,
// user interfaces should try to allocate at least 32 characters of horizontal
// space when displaying descriptions.
func (s *Service) Description() string {
	return s.desc
}

// App returns the name of the app this service is an instance of.  It is
// empty for services not created from an ecosystem descriptor.
func (s *Service) App() string {
	return s.app
}

// Instance returns the instance index within the app.
func (s *Service) Instance() int {
	return s.instance
}

// Status returns the most recent status message, and the time when the
// status was recorded.
func (s *Service) Status() (string, time.Time) {
	if m := s.mgr; m != nil {
		m.lock()
		defer m.unlock()
	}
	return s.reason, s.stamp
}

// State summarizes the service as one of the State constants.
func (s *Service) State() string {
	if m := s.mgr; m != nil {
		m.lock()
		defer m.unlock()
	}
	switch {
	case !s.enabled:
		return StateDisabled
	case s.failed:
		return StateFailed
	case s.running && !s.stopping:
		return StateRunning
	}
	return StateStandby
}

// Err returns the error that put the service into failed state, if any.
func (s *Service) Err() error {
	if m := s.mgr; m != nil {
		m.lock()
		defer m.unlock()
	}
	return s.err
}

// Restarts returns how many times the service was restarted automatically
// since it was last enabled.
func (s *Service) Restarts() int {
	if m := s.mgr; m != nil {
		m.lock()
		defer m.unlock()
	}
	return s.restarts
}

// Serial returns the manager serial number recorded at the last state
// change of this service.  It is suitable for use as an etag.
func (s *Service) Serial() int64 {
	if m := s.mgr; m != nil {
		m.lock()
		defer m.unlock()
	}
	return s.serial
}

// Enabled checks if a service is enabled.
func (s *Service) Enabled() bool {
	if m := s.mgr; m == nil {
		return false
	} else {
		m.lock()
		rv := s.enabled
		m.unlock()
		return rv
	}
}

// Running checks if a service is running.  This will be false if the
// service has failed for any reason.
func (s *Service) Running() bool {
	if m := s.mgr; m == nil {
		return false
	} else {
		m.lock()
		rv := s.running && !s.stopping
		m.unlock()
		return rv
	}
}

// Failed returns true if the service is in a failure state.
func (s *Service) Failed() bool {
	if m := s.mgr; m == nil {
		return false
	} else {
		m.lock()
		rv := s.failed
		m.unlock()
		return rv
	}
}

// Enable enables the service, starting it.
func (s *Service) Enable() error {
	if s.mgr == nil {
		return ErrNoManager
	}
	s.mgr.lock()
	defer s.mgr.unlock()

	if s.enabled {
		return nil
	}

	s.setStatus("Waiting to start")
	s.logf("Enabling service %s", s.Name())
	s.enabled = true
	s.starts = 0
	s.restarts = 0
	s.start("Enabled service")
	return nil
}

// Disable disables the service, stopping it.  It also clears the error
// state.  A disabled service is never restarted automatically.
func (s *Service) Disable() error {
	if s.mgr == nil {
		return ErrNoManager
	}
	s.mgr.lock()
	defer s.mgr.unlock()

	if !s.enabled {
		return nil
	}

	s.logf("Disabling service %s", s.Name())
	s.enabled = false
	s.failed = false
	s.err = nil
	s.stop("Disabled service")
	s.setStatus("Disabled service")
	return nil
}

// Restart restarts a service.  It also clears any failure condition
// that may have occurred.  Manual restarts count against the restart rate
// limit; when the limit refuses the start, the service is left failed and
// ErrRateLimited is returned.
func (s *Service) Restart() error {
	if s.mgr == nil {
		return ErrNoManager
	}

	s.mgr.lock()
	defer s.mgr.unlock()

	return s.restartLocked("Restarted service")
}

func (s *Service) restartLocked(detail string) error {
	if !s.enabled {
		return nil
	}

	s.logf("Restarting service %s", s.Name())
	s.enabled = false
	s.stop(detail)

	s.setStatus(detail)
	s.failed = false
	s.err = nil
	s.enabled = true
	if e := s.start(detail); errors.Is(e, ErrRateLimited) {
		return e
	}
	return nil
}

// Clear clears any error condition in the service, without actually
// enabling it.  It will attempt to start the service if it isn't
// already running, and is enabled.
func (s *Service) Clear() {
	if s.mgr == nil {
		return
	}
	s.mgr.lock()
	defer s.mgr.unlock()

	if s.failed {
		s.setStatus("Cleared fault")
		s.logf("Clearing fault on %s", s.Name())
	}
	s.starts = 0
	s.failed = false
	s.err = nil
	s.start("Cleared fault")
}

// Check checks if a service is running, and performs any appropriate health
// checks.  It returns nil if the service is running and healthy, or an
// error otherwise.  If the provider check fails, the service is stopped and
// put into failed state.
func (s *Service) Check() error {
	if s.mgr == nil {
		return ErrNoManager
	}
	s.mgr.lock()
	defer s.mgr.unlock()
	return s.checkService()
}

// serviceMatches matches if the first (check) name matches the second.
// This is true if either the variant of s1 is empty, or the two variants
// are the same.
func serviceMatches(s1, s2 string) bool {
	a1 := strings.SplitN(s1, ":", 2)
	a2 := strings.SplitN(s2, ":", 2)

	if a1[0] != a2[0] {
		return false
	}
	if len(a1) == 1 {
		return true
	}
	if len(a2) == 1 {
		return false
	}
	return a1[1] == a2[1]
}

// Matches returns true if the service name matches the check.  If our
// name is "web:1", then this returns true for a check of "web" or "web:1",
// but not for "web:2", nor "api:1".
func (s *Service) Matches(check string) bool {
	return serviceMatches(check, s.Name())
}

// SetProperty sets a property on the service.
func (s *Service) SetProperty(n PropertyName, v interface{}) error {
	if m := s.mgr; m != nil {
		m.lock()
		defer m.unlock()
	}
	if e := s.setProp(n, v); e != nil {
		s.logf("Failed to set property %s: %v", n, e)
		return e
	}
	return nil
}

func (s *Service) setProp(n PropertyName, v interface{}) error {
	if s.mgr != nil {
		switch n {
		case PropName, PropDescription:
			// These properties cannot be altered once the
			// service is added to a manager.
			return ErrPropReadOnly
		}
	}
	switch n {
	case PropLogger:
		if v, ok := v.(*log.Logger); ok {
			if s.enabled {
				// Cannot change logger while service enabled.
				return ErrPropReadOnly
			}
			if s.logger != nil {
				s.mlog.DelLogger(s.logger)
			}
			s.logger = v
			s.mlog.AddLogger(s.logger)
			// The provider keeps logging into our fan-out.
			return nil
		}
		return ErrBadPropType
	case PropRestart:
		if v, ok := v.(bool); ok {
			s.restart = v
		} else {
			return ErrBadPropType
		}
	case PropRateLimit:
		if v, ok := v.(int); ok {
			s.starts = 0
			if v > 0 {
				s.startTimes = make([]time.Time, v)
			} else {
				s.startTimes = nil
			}
			s.rateLimit = v
		} else {
			return ErrBadPropType
		}
	case PropRatePeriod:
		if v, ok := v.(time.Duration); ok {
			s.starts = 0
			s.ratePeriod = v
		} else {
			return ErrBadPropType
		}
	case PropName:
		if v, ok := v.(string); ok {
			s.name = v
		} else {
			return ErrBadPropType
		}
	case PropDescription:
		if v, ok := v.(string); ok {
			s.desc = v
		} else {
			return ErrBadPropType
		}
	case PropNotify:
		if v, ok := v.(func()); ok {
			s.notify = v
			// We don't want to pass this one down, as we've
			// registered ourselves there.
			return nil
		}
		return ErrBadPropType
	case PropApp, PropInstance:
		return ErrPropReadOnly
	default:
		return s.prov.SetProperty(n, v)
	}

	// Pass the new property to the provider.  The provider doesn't get a
	// a chance to veto properties we've already dealt with though.
	s.prov.SetProperty(n, v)
	return nil
}

func (s *Service) GetProperty(n PropertyName) (interface{}, error) {
	if m := s.mgr; m != nil {
		m.lock()
		defer m.unlock()
	}

	switch n {
	case PropLogger:
		return s.logger, nil
	case PropRestart:
		return s.restart, nil
	case PropRateLimit:
		return s.rateLimit, nil
	case PropRatePeriod:
		return s.ratePeriod, nil
	case PropName:
		return s.name, nil
	case PropDescription:
		return s.desc, nil
	case PropNotify:
		return s.notify, nil
	case PropInstance:
		return s.instance, nil
	}
	return s.prov.Property(n)
}

// GetLog returns the service's recent log records, and an id suitable for
// use as an etag.  If last is the current id, nil records are returned.
func (s *Service) GetLog(last int64) ([]LogRecord, int64) {
	return s.slog.GetRecords(last)
}

// WatchLog waits for the service log to change from last, up to expire.
func (s *Service) WatchLog(last int64, expire time.Duration) int64 {
	return s.slog.Watch(last, expire)
}

// setManager is called by the framework when the service is added to
// the manager.  Call with the manager lock held.
func (s *Service) setManager(mgr *Manager) {
	if s.mgr != nil {
		// This is a serious programmer mistake
		panic("Already added to a manager")
	}
	s.mlog.AddWriter(mgr.mlog)
	s.mgr = mgr
	s.setStatus("Added service")
	s.logf("Added service %s to %s: %s", s.Name(), mgr.Name(),
		s.Description())
	mgr.services[s] = true
}

func (s *Service) delManager() {
	if s.mgr == nil {
		return
	}
	delete(s.mgr.services, s)
	s.mlog.DelWriter(s.mgr.mlog)
	s.setStatus("Removed service")
	s.mgr = nil
}

func (s *Service) setStatus(reason string) {
	s.reason = reason
	s.stamp = time.Now()
	if s.mgr != nil {
		s.serial = s.mgr.bumpSerial()
	}
}

func (s *Service) logf(fmt string, v ...interface{}) {
	s.mlog.Logger().Printf(fmt, v...)
}

// start starts the provider if the service is enabled and not already
// running.  A start refused by the rate limit fails the service with
// ErrRateLimited, keeping any earlier fault wrapped inside it.
func (s *Service) start(detail string) error {
	if s.running || s.stopping || !s.enabled {
		return nil
	}
	if e := s.tooQuickly(); e != nil {
		switch {
		case errors.Is(s.err, ErrRateLimited):
		case s.err != nil:
			s.err = fmt.Errorf("%w: %w", e, s.err)
		default:
			s.err = e
		}
		s.failed = true
		return e
	}
	if s.rateLimit > 0 {
		s.startTimes[s.starts%s.rateLimit] = time.Now()
	}
	s.starts++
	if e := s.prov.Start(); e != nil {
		s.logf("Failed to start %s: %v", s.Name(), e)
		s.err = e
		s.failed = true
		s.setStatus("Failed to start: " + e.Error())
		return e
	}
	s.logf("Started %s: %s", s.Name(), detail)
	s.running = true
	s.failed = false
	s.err = nil
	s.setStatus("Started: " + detail)
	return nil
}

func (s *Service) stop(detail string) {
	if !s.running || s.stopping {
		return
	}
	s.stopping = true
	s.prov.Stop()
	s.logf("Stopped %s: %s", s.Name(), detail)
	s.running = false
	s.stopping = false
	s.setStatus("Stopped: " + detail)
}

func (s *Service) checkService() error {
	if s.failed {
		return s.err
	}
	if !s.running {
		return ErrNotRunning
	}
	s.checking = true
	defer func() { s.checking = false }()
	if e := s.prov.Check(); e != nil {
		s.logf("Service %s faulted: %v", s.Name(), e)
		s.failed = true
		s.stop("Faulted: " + e.Error())
		s.err = e
		return e
	}
	return nil
}

// A service is restarting too quickly if it restarts more than a specified
// number of times in an interval.  Once we hit that threshold, we wait for
// a full interval count before we will restart.  Effectively, this means
// that if we hit the threshold, we actually won't restart for *another*
// interval, reducing our rate to 1/2 the configured rate.
func (s *Service) tooQuickly() error {
	if s.rateLimit == 0 {
		return nil
	}
	if s.starts < s.rateLimit {
		return nil
	}

	// If we've restarted more than n times in the last period,
	// then rate limit us.
	idx := (s.starts - 1) % s.rateLimit
	end := s.startTimes[idx]
	if time.Now().Before(end.Add(s.ratePeriod)) {
		if !s.rateLog {
			s.logf("Service %s restarting too quickly", s.Name())
			s.setStatus("Restarting too quickly")
		}
		s.rateLog = true
		return ErrRateLimited
	}

	if !s.rateLog {
		return nil
	}

	// Check to see if cool down from prior rate limit is expired.
	idx = (s.starts - 2 + s.rateLimit) % s.rateLimit
	end = s.startTimes[idx]
	if time.Now().Before(end.Add(s.ratePeriod)) {
		return ErrRateLimited
	}

	s.rateLog = false
	return nil
}

// selfHeal restarts a failed service when policy allows.  Running out of
// memory always earns a restart; any other failure only with autorestart.
func (s *Service) selfHeal() {
	if !s.failed || !s.enabled {
		return
	}
	if !s.restart && !errors.Is(s.err, ErrMemoryLimit) {
		return
	}
	s.logf("Attempting self-healing")
	if s.start("Self-healing attempt") == nil {
		s.restarts++
	}
}

func (s *Service) doNotify() {
	go func() {
		var cb func()
		if m := s.mgr; m != nil {
			m.lock()
			m.notify(s)
			cb = s.notify
			m.unlock()
		} else {
			cb = s.notify
		}
		if cb != nil {
			go cb()
		}
	}()
}

// NewService allocates a service instance from a Provider.  The intention
// is that Providers use this in their own constructors to present only a
// Service interface to applications.
func NewService(p Provider) *Service {
	s := &Service{prov: p}
	s.ratePeriod = time.Minute
	s.rateLimit = 10
	s.startTimes = make([]time.Time, s.rateLimit)

	s.name = p.Name()
	s.desc = p.Description()
	s.mlog = NewMultiLogger()
	s.mlog.Logger().SetPrefix("[" + s.Name() + "] ")
	p.SetProperty(PropLogger, s.mlog.Logger())
	s.slog = NewLog()
	s.mlog.AddWriter(s.slog)
	p.SetProperty(PropNotify, s.doNotify)
	return s
}
