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

package rest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecovisor/ecovisor"
	"github.com/ecovisor/ecovisor/ecosystem"
)

// Handler wraps a Manager, adding http.Handler functionality.
type Handler struct {
	m       *ecovisor.Manager
	r       *mux.Router
	top     http.Handler
	user    string
	hash    []byte
	keyHash []byte
	origins []string
	logger  *zap.Logger
}

// SetAuth requires HTTP basic authentication as user, with the password
// checked against a bcrypt hash.  An empty user turns authentication off.
func (h *Handler) SetAuth(user string, hash string) {
	h.user = user
	h.hash = []byte(hash)
}

// SetAPIKey also admits requests whose APIKeyHeader matches the bcrypt
// hash.  Setting a key requires authentication even with no user.
func (h *Handler) SetAPIKey(hash string) {
	h.keyHash = []byte(hash)
}

// SetCORS lets browser pages from origins call the API.  "*" admits any
// origin; none turns CORS off.
func (h *Handler) SetCORS(origins []string) {
	h.origins = append([]string{}, origins...)
}

func (h *Handler) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	h.logger = l
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

func errorFor(e error) *Error {
	switch {
	case errors.Is(e, ecovisor.ErrNoSuchApp):
		return &Error{http.StatusNotFound, e.Error()}
	case errors.Is(e, ecovisor.ErrRateLimited):
		return &Error{http.StatusTooManyRequests, e.Error()}
	}
	return &Error{http.StatusBadRequest, e.Error()}
}

// pollRequest extracts the long poll parameters, if any.
func pollRequest(r *http.Request) (int64, time.Duration, bool) {
	old, ok := parseEtag(r.Header.Get(PollEtagHeader))
	if !ok {
		return 0, 0, false
	}
	secs, e := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if e != nil || secs <= 0 {
		return 0, 0, false
	}
	if secs > MaxPollTime {
		secs = MaxPollTime
	}
	return old, time.Duration(secs) * time.Second, true
}

// conditional does the etag handling for a resource whose version is
// reported by serial.  A long poll waits in watch first.  It returns false
// if the client's copy is current, in which case 304 has been written, or
// if the client went away while waiting.
func (h *Handler) conditional(w http.ResponseWriter, r *http.Request,
	serial func() int64, watch func(int64, time.Duration) int64) bool {

	if old, wait, ok := pollRequest(r); ok {
		done := make(chan struct{})
		go func() {
			watch(old, wait)
			close(done)
		}()
		select {
		case <-done:
		case <-r.Context().Done():
			return false
		}
	}
	etag := formatEtag(serial())
	w.Header().Set("Etag", etag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return false
	}
	return true
}

func (h *Handler) getManager(w http.ResponseWriter, r *http.Request) {
	if !h.conditional(w, r, h.m.Serial, h.m.WatchSerial) {
		return
	}
	mi := h.m.GetInfo()
	h.writeJson(w, &ManagerInfo{
		Name:       mi.Name,
		Serial:     mi.Serial,
		CreateTime: mi.CreateTime,
		UpdateTime: mi.UpdateTime,
	})
}

func (h *Handler) listSerial() int64 {
	_, sn, _ := h.m.Services()
	return sn
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	if !h.conditional(w, r, h.listSerial, h.m.WatchServices) {
		return
	}
	svcs, _, _ := h.m.Services()
	l := make([]string, 0, len(svcs))
	for _, svc := range svcs {
		l = append(l, svc.Name())
	}

	h.writeJson(w, l)
}

func (h *Handler) findService(name string) (*ecovisor.Service, *Error) {
	for _, svc := range h.m.FindServices(name) {
		if svc.Name() == name {
			return svc, nil
		}
	}
	return nil, &Error{http.StatusNotFound, "Service not found"}
}

// watchService waits on the manager serial until the service itself
// changes, since the manager has no per-service condition.
func (h *Handler) watchService(svc *ecovisor.Service) func(int64, time.Duration) int64 {
	return func(old int64, expire time.Duration) int64 {
		deadline := time.Now().Add(expire)
		global := h.m.Serial()
		for svc.Serial() == old {
			left := time.Until(deadline)
			if left <= 0 {
				break
			}
			global = h.m.WatchSerial(global, left)
		}
		return svc.Serial()
	}
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["service"]
	svc, e := h.findService(name)
	if e != nil {
		h.writeError(w, e)
		return
	}
	if !h.conditional(w, r, svc.Serial, h.watchService(svc)) {
		return
	}
	h.writeJson(w, NewServiceInfo(svc))
}

func (h *Handler) serviceAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	svc, e := h.findService(vars["service"])
	if e != nil {
		h.writeError(w, e)
		return
	}
	var err error
	switch vars["action"] {
	case "enable":
		err = svc.Enable()
	case "disable":
		err = svc.Disable()
	case "restart":
		err = svc.Restart()
	case "clear":
		svc.Clear()
	}
	if err != nil {
		h.writeError(w, errorFor(err))
		return
	}
	h.writeJson(w, ok)
}

func (h *Handler) getServiceLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["service"]
	svc, e := h.findService(name)
	if e != nil {
		h.writeError(w, e)
		return
	}
	serial := func() int64 { return svc.WatchLog(0, 0) }
	if !h.conditional(w, r, serial, svc.WatchLog) {
		return
	}
	recs, _ := svc.GetLog(0)
	h.writeJson(w, recs)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	serial := func() int64 { return h.m.WatchLog(0, 0) }
	if !h.conditional(w, r, serial, h.m.WatchLog) {
		return
	}
	recs, _ := h.m.GetLog(0)
	h.writeJson(w, recs)
}

func (h *Handler) listApps(w http.ResponseWriter, r *http.Request) {
	if !h.conditional(w, r, h.listSerial, h.m.WatchServices) {
		return
	}
	apps := h.m.Apps()
	l := make([]*AppInfo, 0, len(apps))
	for _, app := range apps {
		info := &AppInfo{
			Name:        app.Name,
			Script:      app.Script,
			ExecMode:    string(app.ExecMode),
			Instances:   app.Instances,
			Autorestart: app.Autorestart,
			Watch:       app.Watch,
			Services:    []string{},
		}
		svcs, _ := h.m.AppServices(app.Name)
		for _, svc := range svcs {
			info.Services = append(info.Services, svc.Name())
		}
		l = append(l, info)
	}
	h.writeJson(w, l)
}

var formatTypes = map[ecosystem.Format]string{
	ecosystem.FormatJS:   mimeJS,
	ecosystem.FormatJSON: mimeJson,
	ecosystem.FormatYAML: mimeYaml,
}

// getApp returns the app as a one app ecosystem file, in the format named
// by the format query parameter (JSON when absent).
func (h *Handler) getApp(w http.ResponseWriter, r *http.Request) {
	f := ecosystem.FormatJSON
	if name := r.URL.Query().Get("format"); name != "" {
		var e error
		if f, e = ecosystem.ParseFormat(name); e != nil {
			h.writeError(w, &Error{http.StatusBadRequest, e.Error()})
			return
		}
	}
	app, e := h.m.App(mux.Vars(r)["app"])
	if e != nil {
		h.writeError(w, errorFor(e))
		return
	}
	b, e := ecosystem.Marshal(&ecosystem.File{Apps: []ecosystem.App{app}}, f)
	if e != nil {
		h.internalError(w, e)
		return
	}
	w.Header().Set("Content-Type", formatTypes[f])
	w.Write(b)
}

func (h *Handler) restartApp(w http.ResponseWriter, r *http.Request) {
	if e := h.m.RestartApp(mux.Vars(r)["app"]); e != nil {
		h.writeError(w, errorFor(e))
		return
	}
	h.writeJson(w, ok)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.user == "" && len(h.keyHash) == 0 {
		return true
	}
	if key := r.Header.Get(APIKeyHeader); key != "" && len(h.keyHash) != 0 {
		return bcrypt.CompareHashAndPassword(h.keyHash, []byte(key)) == nil
	}
	user, pass, found := r.BasicAuth()
	return found && h.user != "" &&
		subtle.ConstantTimeCompare([]byte(user), []byte(h.user)) == 1 &&
		bcrypt.CompareHashAndPassword(h.hash, []byte(pass)) == nil
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="ecovisor"`)
		h.writeError(w, &Error{http.StatusUnauthorized, "Authentication required"})
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.code = code
	sw.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.code),
			zap.Duration("elapsed", time.Since(start)))
	})
}

var corsHeaders = strings.Join([]string{"Authorization", "Content-Type",
	"If-None-Match", APIKeyHeader, PollEtagHeader, PollTimeHeader}, ", ")

func (h *Handler) allowOrigin(origin string) string {
	for _, o := range h.origins {
		switch {
		case o == "*":
			return "*"
		case strings.EqualFold(o, origin):
			return origin
		}
	}
	return ""
}

// cors answers preflight requests itself, ahead of routing and
// authentication, since browsers send them without credentials.
func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allow := ""
		if origin != "" {
			allow = h.allowOrigin(origin)
		}
		if allow == "" {
			next.ServeHTTP(w, r)
			return
		}
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", allow)
		if allow != "*" {
			hdr.Add("Vary", "Origin")
		}
		hdr.Set("Access-Control-Expose-Headers", "Etag")
		if r.Method == http.MethodOptions &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			hdr.Set("Access-Control-Allow-Headers", corsHeaders)
			hdr.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.top.ServeHTTP(w, req)
}

func NewHandler(m *ecovisor.Manager) *Handler {
	r := mux.NewRouter()
	h := &Handler{m: m, r: r, logger: zap.NewNop()}
	h.top = h.cors(r)
	r.Use(h.logRequests, h.authenticate)
	r.HandleFunc("/", h.getManager).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/services", h.listServices).Methods("GET")
	r.HandleFunc("/services/{service}", h.getService).Methods("GET")
	r.HandleFunc("/services/{service}/log", h.getServiceLog).Methods("GET")
	r.HandleFunc("/services/{service}/{action:enable|disable|restart|clear}",
		h.serviceAction).Methods("POST")
	r.HandleFunc("/apps", h.listApps).Methods("GET")
	r.HandleFunc("/apps/{app}", h.getApp).Methods("GET")
	r.HandleFunc("/apps/{app}/restart", h.restartApp).Methods("POST")
	return h
}
