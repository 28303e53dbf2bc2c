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
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/ecovisor/ecovisor"
	"github.com/ecovisor/ecovisor/cmd/ecovisor/util"
	"github.com/ecovisor/ecovisor/rest"
)

// health grades a service, or a whole table of them, for display.
type health int

const (
	healthIdle health = iota
	healthGood
	healthWarn
	healthFault
)

var (
	rowStyles = [...]tcell.Style{
		healthIdle:  tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorBlack),
		healthGood:  tcell.StyleDefault.Foreground(tcell.ColorGreen).Background(tcell.ColorBlack),
		healthWarn:  tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorBlack),
		healthFault: tcell.StyleDefault.Foreground(tcell.ColorMaroon).Background(tcell.ColorBlack),
	}
	barStyles = [...]tcell.Style{
		healthIdle:  tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver),
		healthGood:  tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorGreen).Bold(true),
		healthWarn:  tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow),
		healthFault: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorMaroon).Bold(true),
	}

	// StyleNormal is the body text of every panel.
	StyleNormal = rowStyles[healthIdle]

	barAccent = tcell.StyleDefault.Foreground(tcell.ColorBlue).Background(tcell.ColorSilver)
	barKey    = barAccent.Bold(true)
)

func serviceHealth(info *rest.ServiceInfo) health {
	switch {
	case !info.Enabled:
		return healthIdle
	case info.Failed:
		return healthFault
	case !info.Running:
		return healthWarn
	}
	return healthGood
}

// serviceStyle picks the color of a service row.
func serviceStyle(info *rest.ServiceInfo) tcell.Style {
	return rowStyles[serviceHealth(info)]
}

// summaryHealth grades a table by its worst service.
func summaryHealth(c util.Counts) health {
	switch {
	case c.Failed > 0:
		return healthFault
	case c.Standby > 0:
		return healthWarn
	case c.Running > 0:
		return healthGood
	}
	return healthIdle
}

// serviceNote tells the operator why a service is down and what will
// bring it back.
func serviceNote(info *rest.ServiceInfo) string {
	switch {
	case !info.Enabled:
		return "Disabled, press E to enable"
	case !info.Failed:
		return ""
	case strings.Contains(info.Status, ecovisor.ErrRateLimited.Error()):
		return "Restarting too quickly, press C to clear the restart window"
	case strings.Contains(info.Status, ecovisor.ErrMemoryLimit.Error()):
		return "Over max_memory_restart, waiting for restart"
	}
	return "Faulted, press C to clear"
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func escapeMarkup(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// daemonLabel is the left side of the title bar.
func daemonLabel(name string) string {
	if name == "" {
		return "%AEcovisor%N"
	}
	return "%AEcovisor%N " + escapeMarkup(name)
}

// fleetLabel is the right side of the title bar.
func fleetLabel(apps, services int) string {
	return plural(apps, "app") + ", " + plural(services, "service")
}

// newBar makes a three part text bar where %N selects the plain style and
// %A the accent.
func newBar(plain, accent tcell.Style) *views.SimpleStyledTextBar {
	b := views.NewSimpleStyledTextBar()
	b.SetStyle(plain)
	for _, reg := range []func(rune, tcell.Style){
		b.RegisterLeftStyle, b.RegisterCenterStyle, b.RegisterRightStyle,
	} {
		reg('N', plain)
		reg('A', accent)
	}
	return b
}

// TitleBar names the daemon, the screen being shown and the size of the
// fleet.
type TitleBar struct {
	*views.SimpleStyledTextBar
}

func NewTitleBar() *TitleBar {
	return &TitleBar{newBar(barStyles[healthIdle], barAccent)}
}

func (tb *TitleBar) SetScreen(title string) {
	tb.SetCenter(escapeMarkup(title))
}

func (tb *TitleBar) SetFleet(daemon string, apps, services int) {
	tb.SetLeft(daemonLabel(daemon))
	tb.SetRight(fleetLabel(apps, services))
}

// StatusBar is colored by the health of what the screen shows.
type StatusBar struct {
	*views.SimpleStyledTextBar
}

func NewStatusBar() *StatusBar {
	return &StatusBar{newBar(barStyles[healthIdle], barAccent)}
}

func (sb *StatusBar) Set(h health, text string) {
	style := barStyles[h]
	sb.SetStyle(style)
	sb.RegisterLeftStyle('N', style)
	sb.SetLeft(escapeMarkup(text))
}

// KeyBar shows the available keys.  Text in square brackets is drawn in
// the accent style.
type KeyBar struct {
	*views.SimpleStyledTextBar
}

func NewKeyBar() *KeyBar {
	return &KeyBar{newBar(barStyles[healthIdle], barKey)}
}

// keyMarkup converts "[Q] Quit" words into the styled text markup.
func keyMarkup(words []string) string {
	var b strings.Builder
	for i, w := range words {
		if i != 0 && len(w) != 0 {
			b.WriteByte(' ')
		}
		esc := false
		for _, r := range w {
			switch {
			case r == '%':
				b.WriteString("%%")
			case !esc && r == '[':
				b.WriteString("[%A")
				esc = true
			case esc && r == ']':
				b.WriteString("%N]")
				esc = false
			default:
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func (k *KeyBar) SetKeys(words []string) {
	k.SetLeft(keyMarkup(words))
}
