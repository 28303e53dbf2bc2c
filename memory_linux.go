//go:build linux

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
	"os"
	"strconv"
	"strings"
)

// processRSS returns the resident set size of pid in bytes.  The second
// field of /proc/<pid>/statm is the RSS in pages.
func processRSS(pid int) (int64, error) {
	b, e := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if e != nil {
		return 0, e
	}
	fields := strings.Fields(string(b))
	if len(fields) < 2 {
		return 0, fmt.Errorf("short statm for pid %d", pid)
	}
	pages, e := strconv.ParseInt(fields[1], 10, 64)
	if e != nil {
		return 0, e
	}
	return pages * int64(os.Getpagesize()), nil
}
