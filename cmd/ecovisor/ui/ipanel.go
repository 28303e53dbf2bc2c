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
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/ecovisor/ecovisor/cmd/ecovisor/util"
	"github.com/ecovisor/ecovisor/rest"
)

type InfoPanel struct {
	text *views.TextArea
	info *rest.ServiceInfo
	name string // service name
	err  error  // last error retrieving state

	Panel
}

func NewInfoPanel(app *App) *InfoPanel {
	p := &InfoPanel{}
	p.Panel.Init(app)

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)
	p.SetKeys([]string{"[ESC] Main", "[H] Help"})

	return p
}

func (p *InfoPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *InfoPanel) HandleEvent(ev tcell.Event) bool {
	info := p.info
	app := p.App()
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			app.ShowMain()
			return true
		case tcell.KeyF1:
			app.ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				app.ShowMain()
				return true
			case 'H', 'h':
				app.ShowHelp()
				return true
			case 'L', 'l':
				if info != nil {
					app.ShowLog(info.Name)
					return true
				}
			case 'R', 'r':
				if info != nil {
					app.RestartService(info.Name)
					return true
				}
			case 'E', 'e':
				if info != nil && !info.Enabled {
					app.EnableService(info.Name)
					return true
				}
			case 'D', 'd':
				if info != nil && info.Enabled {
					app.DisableService(info.Name)
					return true
				}
			case 'C', 'c':
				if info != nil && info.Failed {
					app.ClearService(info.Name)
					return true
				}
			}
		}
	}
	return p.Panel.HandleEvent(ev)
}

func (p *InfoPanel) SetName(name string) {
	p.name = name
	p.info = nil
	p.err = nil
}

// infoLines is the body of the detail view.
func infoLines(s *rest.ServiceInfo) []string {
	pid := "-"
	if s.Pid > 0 {
		pid = fmt.Sprint(s.Pid)
	}
	return []string{
		fmt.Sprintf("%13s %s", "Name:", s.Name),
		fmt.Sprintf("%13s %s", "Description:", s.Description),
		fmt.Sprintf("%13s %s", "App:", s.App),
		fmt.Sprintf("%13s %d", "Instance:", s.Instance),
		fmt.Sprintf("%13s %s", "Status:", util.Status(s)),
		fmt.Sprintf("%13s %s", "Pid:", pid),
		fmt.Sprintf("%13s %d", "Restarts:", s.Restarts),
		fmt.Sprintf("%13s %s", "Run ID:", s.RunID),
		fmt.Sprintf("%13s %s", "Since:", s.TimeStamp.Format(time.RFC1123)),
		fmt.Sprintf("%13s %s", "Detail:", s.Status),
	}
}

// update must be called with AppLock held.
func (p *InfoPanel) update() {

	s, e := p.App().GetItem(p.name)

	if p.info == s && p.err == e {
		return
	}
	p.info = s
	p.err = e
	words := []string{"[ESC] Main", "[H] Help"}

	p.SetTitle("Details for " + p.name)

	if s == nil {
		if p.err != nil {
			p.SetStatus(healthFault, fmt.Sprintf("No data: %v", p.err))
		} else {
			p.SetStatus(healthIdle, "Loading...")
		}
		p.text.SetLines(nil)
		p.SetKeys(words)
		return
	}

	p.ShowService(s)

	p.text.SetLines(infoLines(s))

	words = append(words, "[L] Log")
	p.SetKeys(serviceKeys(words, s))
}
