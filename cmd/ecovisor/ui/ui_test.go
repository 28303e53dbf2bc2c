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

package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecovisor/ecovisor"
	"github.com/ecovisor/ecovisor/cmd/ecovisor/util"
	"github.com/ecovisor/ecovisor/rest"
)

func TestKeyMarkup(t *testing.T) {
	assert.Equal(t, "[%AQ%N] Quit [%AH%N] Help",
		keyMarkup([]string{"[Q] Quit", "[H] Help"}))
	assert.Equal(t, "100%% [%AX%N]", keyMarkup([]string{"100%", "[X]"}))
	assert.Equal(t, "", keyMarkup(nil))
}

func TestServiceHealth(t *testing.T) {
	assert.Equal(t, healthIdle, serviceHealth(&rest.ServiceInfo{}))
	assert.Equal(t, healthFault, serviceHealth(&rest.ServiceInfo{Enabled: true, Failed: true}))
	assert.Equal(t, healthWarn, serviceHealth(&rest.ServiceInfo{Enabled: true}))
	assert.Equal(t, healthGood, serviceHealth(&rest.ServiceInfo{Enabled: true, Running: true}))

	assert.Equal(t, StyleNormal, serviceStyle(&rest.ServiceInfo{}))
	assert.Equal(t, rowStyles[healthFault], serviceStyle(&rest.ServiceInfo{Enabled: true, Failed: true}))
	assert.NotEqual(t, barStyles[healthGood], barStyles[healthFault])
}

func TestSummaryHealth(t *testing.T) {
	assert.Equal(t, healthIdle, summaryHealth(util.Counts{}))
	assert.Equal(t, healthIdle, summaryHealth(util.Counts{Total: 2, Disabled: 2}))
	assert.Equal(t, healthGood, summaryHealth(util.Counts{Total: 1, Running: 1}))
	assert.Equal(t, healthWarn, summaryHealth(util.Counts{Total: 2, Running: 1, Standby: 1}))
	assert.Equal(t, healthFault, summaryHealth(util.Counts{Total: 3, Running: 1, Standby: 1, Failed: 1}))
}

func TestServiceNote(t *testing.T) {
	assert.Equal(t, "", serviceNote(&rest.ServiceInfo{Enabled: true, Running: true}))
	assert.Contains(t, serviceNote(&rest.ServiceInfo{}), "press E")

	limited := &rest.ServiceInfo{Enabled: true, Failed: true,
		Status: ecovisor.ErrRateLimited.Error()}
	assert.Contains(t, serviceNote(limited), "restart window")

	hungry := &rest.ServiceInfo{Enabled: true, Failed: true,
		Status: "Stopped: Faulted: " + ecovisor.ErrMemoryLimit.Error() + ": rss 2M over 1M"}
	assert.Contains(t, serviceNote(hungry), "max_memory_restart")

	other := &rest.ServiceInfo{Enabled: true, Failed: true, Status: "Stopped: Faulted: exit status 1"}
	assert.Equal(t, "Faulted, press C to clear", serviceNote(other))
}

func TestTitleLabels(t *testing.T) {
	assert.Equal(t, "%AEcovisor%N", daemonLabel(""))
	assert.Equal(t, "%AEcovisor%N web01", daemonLabel("web01"))
	assert.Equal(t, "%AEcovisor%N 100%%", daemonLabel("100%"))

	assert.Equal(t, "0 apps, 0 services", fleetLabel(0, 0))
	assert.Equal(t, "1 app, 4 services", fleetLabel(1, 4))
	assert.Equal(t, "3 apps, 1 service", fleetLabel(3, 1))
}

func TestServiceKeys(t *testing.T) {
	assert.Equal(t, []string{"[E] Enable"}, serviceKeys(nil, &rest.ServiceInfo{}))
	assert.Equal(t, []string{"[D] Disable", "[C] Clear", "[R] Restart"},
		serviceKeys(nil, &rest.ServiceInfo{Enabled: true, Failed: true}))
	assert.Equal(t, []string{"[H] Help", "[D] Disable", "[R] Restart"},
		serviceKeys([]string{"[H] Help"}, &rest.ServiceInfo{Enabled: true}))
}

func TestServiceLine(t *testing.T) {
	info := &rest.ServiceInfo{
		Name:      "ipfs-api:0",
		Enabled:   true,
		Running:   true,
		Pid:       4242,
		Restarts:  3,
		Status:    "started",
		TimeStamp: time.Now(),
	}
	line := serviceLine(info)
	assert.True(t, strings.HasPrefix(line, "ipfs-api:0           running       4242   3"), line)
	assert.True(t, strings.HasSuffix(line, "   started"), line)

	info.Pid = 0
	info.Enabled = false
	assert.Contains(t, serviceLine(info), "disabled         -")
}

func TestInfoLines(t *testing.T) {
	info := &rest.ServiceInfo{
		Name:     "ipfs-api:1",
		App:      "ipfs-api",
		Instance: 1,
		Enabled:  true,
		Failed:   true,
		RunID:    "abc",
	}
	lines := infoLines(info)
	assert.Len(t, lines, 10)
	assert.Equal(t, "        Name: ipfs-api:1", lines[0])
	assert.Equal(t, "    Instance: 1", lines[3])
	assert.Equal(t, "      Status: failed", lines[4])
	assert.Equal(t, "         Pid: -", lines[5])
	assert.Equal(t, "      Run ID: abc", lines[7])
}

func TestLogLines(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 8000000, time.Local)
	lines := logLines([]rest.LogRecord{{Time: ts, Text: "hello"}})
	assert.Equal(t, []string{"Mar  4 05:06:07.008 hello"}, lines)
	assert.Empty(t, logLines(nil))
}

func TestFieldText(t *testing.T) {
	assert.Equal(t, "bob_            ", fieldText([]rune("bob"), true))
	assert.Equal(t, "bob             ", fieldText([]rune("bob"), false))
	assert.Equal(t, "***             ", fieldText(maskRunes([]rune("abc")), false))

	long := fieldText([]rune("abcdefghijklmnopqrstuvwxyz"), true)
	assert.Equal(t, "<mnopqrstuvwxyz_", long)
}
