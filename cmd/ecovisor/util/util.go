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

// Package util holds formatting helpers shared by the ecovisor command
// line and its terminal UI.
package util

import (
	"fmt"
	"sort"
	"time"

	"github.com/ecovisor/ecovisor/rest"
)

// Status returns the state of the service, as a word.
func Status(s *rest.ServiceInfo) string {
	if s.State != "" {
		return s.State
	}
	if !s.Enabled {
		return "disabled"
	}
	if s.Failed {
		return "failed"
	}
	if s.Running {
		return "running"
	}
	return "standby"
}

func FormatDuration(d time.Duration) string {

	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

// Since is the time elapsed since t, truncated to whole seconds.
func Since(t time.Time) time.Duration {
	d := time.Since(t)
	return d - d%time.Second
}

// SortServices puts failed services first, then the enabled ones, and
// orders each group by app and instance.
func SortServices(items []*rest.ServiceInfo) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Failed != b.Failed {
			return a.Failed
		}
		if a.Enabled != b.Enabled {
			return a.Enabled
		}
		if a.App != b.App {
			return a.App < b.App
		}
		if a.Instance != b.Instance {
			return a.Instance < b.Instance
		}
		return a.Name < b.Name
	})
}

// Counts tallies services by state.
type Counts struct {
	Total    int
	Failed   int
	Running  int
	Standby  int
	Disabled int
}

func Count(items []*rest.ServiceInfo) Counts {
	c := Counts{Total: len(items)}
	for _, info := range items {
		switch {
		case !info.Enabled:
			c.Disabled++
		case info.Failed:
			c.Failed++
		case !info.Running:
			c.Standby++
		default:
			c.Running++
		}
	}
	return c
}
