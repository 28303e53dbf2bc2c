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
	"fmt"
)

// ExecMode selects the process topology.  In fork mode instances are
// plain children of the supervisor.  Cluster mode is the same, except that
// the instance count may be expressed relative to the number of CPUs.
type ExecMode string

const (
	ExecFork    ExecMode = "fork"
	ExecCluster ExecMode = "cluster"
)

func (m ExecMode) Valid() bool {
	switch m {
	case ExecFork, ExecCluster:
		return true
	}
	return false
}

func (m ExecMode) String() string {
	return string(m)
}

func (m ExecMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadExecMode, string(m))
	}
	return []byte(m), nil
}

// UnmarshalText accepts the PM2 spellings, including the "_mode" suffixed
// forms that older ecosystem files carry.
func (m *ExecMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "fork", "fork_mode":
		*m = ExecFork
	case "cluster", "cluster_mode":
		*m = ExecCluster
	default:
		return fmt.Errorf("%w: %q", ErrBadExecMode, string(b))
	}
	return nil
}
