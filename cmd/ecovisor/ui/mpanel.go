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

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/ecovisor/ecovisor/cmd/ecovisor/util"
	"github.com/ecovisor/ecovisor/rest"
)

// serviceKeys lists the actions available for a service.
func serviceKeys(words []string, info *rest.ServiceInfo) []string {
	if !info.Enabled {
		return append(words, "[E] Enable")
	}
	words = append(words, "[D] Disable")
	if info.Failed {
		words = append(words, "[C] Clear")
	}
	return append(words, "[R] Restart")
}

// MainPanel implements a Widget as a Panel, but provides the data
// model and handling for the content area, using data loaded from an
// ecovisord REST API service.
type MainPanel struct {
	content  *views.CellView
	selected *rest.ServiceInfo
	width    int
	height   int
	curx     int
	cury     int
	lines    []string
	styles   []tcell.Style
	items    []*rest.ServiceInfo

	Panel
}

// mainModel provides the model for a CellArea.
type mainModel struct {
	m *MainPanel
}

func NewMainPanel(app *App, server string) *MainPanel {
	m := &MainPanel{}

	m.Panel.Init(app)
	m.content = views.NewCellView()
	m.SetContent(m.content)

	m.content.SetModel(&mainModel{m})
	m.content.SetStyle(StyleNormal)

	m.SetTitle(server)
	m.SetKeys([]string{"[Q] Quit"})

	return m
}

func (m *MainPanel) Draw() {
	m.update()
	m.Panel.Draw()
}

func (m *MainPanel) HandleEvent(ev tcell.Event) bool {
	sel := m.selected
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			m.unselect()
			return true
		case tcell.KeyF1:
			m.App().ShowHelp()
			return true
		case tcell.KeyEnter:
			if sel != nil {
				m.App().ShowInfo(sel.Name)
				return true
			}
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				m.App().Quit()
				return true
			case 'H', 'h':
				m.App().ShowHelp()
				return true
			case 'I', 'i':
				if sel != nil {
					m.App().ShowInfo(sel.Name)
					return true
				}
			case 'L', 'l':
				if sel != nil {
					m.App().ShowLog(sel.Name)
				} else {
					m.App().ShowLog("")
				}
				return true
			case 'E', 'e':
				if sel != nil && !sel.Enabled {
					m.App().EnableService(sel.Name)
					return true
				}
			case 'D', 'd':
				if sel != nil && sel.Enabled {
					m.App().DisableService(sel.Name)
					return true
				}
			case 'C', 'c':
				if sel != nil && sel.Failed {
					m.App().ClearService(sel.Name)
					return true
				}
			case 'R', 'r':
				if sel != nil {
					m.App().RestartService(sel.Name)
					return true
				}
			case 'A', 'a':
				if sel != nil && sel.App != "" {
					m.App().RestartApp(sel.App)
					return true
				}
			}
		}
	}
	return m.Panel.HandleEvent(ev)
}

// Model items
func (model *mainModel) GetCell(x, y int) (rune, tcell.Style, []rune, int) {
	var ch rune
	var style tcell.Style

	m := model.m

	if y < 0 || y >= len(m.lines) {
		return ch, StyleNormal, nil, 1
	}

	if x >= 0 && x < len(m.lines[y]) {
		ch = rune(m.lines[y][x])
	} else {
		ch = ' '
	}
	style = m.styles[y]
	if m.items[y] == m.selected {
		style = style.Reverse(true)
	}
	return ch, style, nil, 1
}

func (model *mainModel) GetBounds() (int, int) {
	// This assumes that all content is displayable runes of width 1.
	m := model.m
	y := len(m.lines)
	x := 0
	for _, l := range m.lines {
		if x < len(l) {
			x = len(l)
		}
	}
	return x, y
}

func (model *mainModel) GetCursor() (int, int, bool, bool) {
	m := model.m
	return m.curx, m.cury, true, false
}

func (model *mainModel) MoveCursor(offx, offy int) {

	m := model.m
	m.curx += offx
	m.cury += offy
	m.updateCursor(true)
}

func (model *mainModel) SetCursor(x, y int) {
	m := model.m
	m.curx = x
	m.cury = y
	m.updateCursor(true)
}

func (m *MainPanel) unselect() {
	m.cury = 0
	m.curx = 0
	m.updateCursor(false)
}

func (m *MainPanel) updateCursor(selected bool) {
	if m.curx > m.width-1 {
		m.curx = m.width - 1
	}
	if m.cury > m.height-1 {
		m.cury = m.height - 1
	}
	if m.curx < 0 {
		m.curx = 0
	}
	if m.cury < 0 {
		m.cury = 0
	}
	if selected && m.height > 0 {
		if m.selected == nil {
			m.curx = 0
			m.cury = 0
		}
		m.selected = m.items[m.cury]
	} else {
		m.selected = nil
	}
}

// serviceLine formats one row of the service table.
func serviceLine(info *rest.ServiceInfo) string {
	pid := "-"
	if info.Pid > 0 {
		pid = fmt.Sprint(info.Pid)
	}
	return fmt.Sprintf("%-20s %-9s %8s %3d %9s   %s",
		info.Name, util.Status(info), pid, info.Restarts,
		util.FormatDuration(util.Since(info.TimeStamp)), info.Status)
}

// update is called to update content, e.g. in response to Draw() or
// as part of another update.  It is called with the AppLock held.
func (m *MainPanel) update() {

	items, err := m.App().GetItems()
	m.items = items

	// preserve selected item
	if sel := m.selected; sel != nil {
		m.selected = nil
		for cury, item := range m.items {
			if item.Name == sel.Name {
				m.selected = item
				m.cury = cury
			}
		}
	}
	if err != nil {
		if needsAuth(err) {
			m.App().ShowAuth()
			return
		}
		m.SetStatus(healthFault, fmt.Sprintf("Cannot load items: %v", err))
		m.lines = []string{}
		m.styles = []tcell.Style{}
		return
	}

	lines := make([]string, 0, len(items))
	styles := make([]tcell.Style, 0, len(items))

	m.height = 0
	m.width = 0

	for _, info := range items {
		line := serviceLine(info)
		if len(line) > m.width {
			m.width = len(line)
		}
		m.height++

		lines = append(lines, line)
		styles = append(styles, serviceStyle(info))
	}

	m.lines = lines
	m.styles = styles

	c := util.Count(items)
	m.SetStatus(summaryHealth(c), fmt.Sprintf(
		"%6d Services %6d Faulted %6d Running %6d Standby %6d Disabled",
		c.Total, c.Failed, c.Running, c.Standby, c.Disabled))

	words := []string{"[Q] Quit", "[H] Help"}

	if item := m.selected; item != nil {
		words = append(words, "[I] Info", "[L] Log")
		words = serviceKeys(words, item)
		if item.App != "" {
			words = append(words, "[A] Restart app")
		}
	} else {
		words = append(words, "[L] Log")
	}
	m.SetKeys(words)
}
