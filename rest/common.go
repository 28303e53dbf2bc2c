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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ecovisor/ecovisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"
	mimeYaml = "application/yaml; charset=UTF-8"
	mimeJS   = "text/javascript; charset=UTF-8"

	// PollEtagHeader and PollTimeHeader turn a conditional GET into a
	// long poll: the server holds the request for up to PollTimeHeader
	// seconds waiting for the resource to move past PollEtagHeader.
	PollEtagHeader = "X-Ecovisor-Poll-Etag"
	PollTimeHeader = "X-Ecovisor-Poll-Time"

	// APIKeyHeader carries an API key in place of basic authentication.
	APIKeyHeader = "X-Api-Key"

	// MaxPollTime caps the wait a client may ask for, in seconds.
	MaxPollTime = 300
)

var ok struct{}

// LogRecord is one line of a service or manager log.
type LogRecord = ecovisor.LogRecord

type ManagerInfo struct {
	Name       string    `json:"name"`
	Serial     int64     `json:"serial,string"`
	CreateTime time.Time `json:"created"`
	UpdateTime time.Time `json:"updated"`
	etag       string
}

type ServiceInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	App         string    `json:"app,omitempty"`
	Instance    int       `json:"instance"`
	State       string    `json:"state"`
	Enabled     bool      `json:"enabled"`
	Running     bool      `json:"running"`
	Failed      bool      `json:"failed"`
	Pid         int       `json:"pid"`
	Restarts    int       `json:"restarts"`
	RunID       string    `json:"run_id,omitempty"`
	Status      string    `json:"status"`
	TimeStamp   time.Time `json:"tstamp"`
	etag        string
}

// NewServiceInfo captures the externally visible state of a service.
func NewServiceInfo(svc *ecovisor.Service) *ServiceInfo {
	info := &ServiceInfo{
		Name:        svc.Name(),
		Description: svc.Description(),
		App:         svc.App(),
		Instance:    svc.Instance(),
		State:       svc.State(),
		Enabled:     svc.Enabled(),
		Running:     svc.Running(),
		Failed:      svc.Failed(),
		Restarts:    svc.Restarts(),
	}
	if v, e := svc.GetProperty(ecovisor.PropProcessPid); e == nil {
		info.Pid, _ = v.(int)
	}
	if v, e := svc.GetProperty(ecovisor.PropProcessRunID); e == nil {
		info.RunID, _ = v.(string)
	}
	info.Status, info.TimeStamp = svc.Status()
	return info
}

// AppInfo summarizes an app loaded from an ecosystem file.  Services lists
// the instance names in index order.
type AppInfo struct {
	Name        string   `json:"name"`
	Script      string   `json:"script"`
	ExecMode    string   `json:"exec_mode"`
	Instances   int      `json:"instances"`
	Autorestart bool     `json:"autorestart"`
	Watch       bool     `json:"watch"`
	Services    []string `json:"services"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func formatEtag(n int64) string {
	return `"` + strconv.FormatInt(n, 10) + `"`
}

func parseEtag(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "W/")
	n, e := strconv.ParseInt(strings.Trim(s, `"`), 10, 64)
	return n, e == nil
}
