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

	"github.com/ecovisor/ecovisor/rest"
)

type LogPanel struct {
	text *views.TextArea
	info *rest.ServiceInfo
	name string // service name, empty for the consolidated log

	Panel
}

func NewLogPanel(app *App) *LogPanel {
	p := &LogPanel{}

	p.Panel.Init(app)

	// We don't change the keybar, so set it once
	p.SetKeys([]string{"[Q] Quit", "[H] Help"})

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)

	return p
}

func (p *LogPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *LogPanel) HandleEvent(ev tcell.Event) bool {
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
			case 'I', 'i':
				if info != nil {
					app.ShowInfo(info.Name)
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

func (p *LogPanel) SetName(name string) {
	p.SetTitle("Loading")
	p.text.SetLines(nil)
	p.name = name
}

func logLines(recs []rest.LogRecord) []string {
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, r.Time.Format(time.StampMilli)+" "+r.Text)
	}
	return lines
}

// update must be called with AppLock held.
func (p *LogPanel) update() {

	var svcinfo *rest.ServiceInfo
	var e1 error
	if p.name != "" {
		svcinfo, e1 = p.App().GetItem(p.name)
	}
	loginfo, e2 := p.App().GetLog(p.name)
	p.info = svcinfo

	words := []string{"[ESC] Main", "[H] Help"}

	if p.name == "" {
		p.SetTitle("Consolidated Log")
	} else {
		p.SetTitle("Log for " + p.name)
	}

	if (svcinfo == nil && p.name != "") || loginfo == nil {
		e := e2
		if e == nil {
			e = e1
		}
		if e != nil {
			p.SetStatus(healthFault, fmt.Sprintf("No data: %v", e))
		} else {
			p.SetStatus(healthIdle, "Loading ...")
		}
		p.text.SetLines([]string{""})
		p.SetKeys(words)
		return
	}

	if svcinfo != nil {
		p.ShowService(svcinfo)
	} else {
		p.SetStatus(healthIdle, "")
	}

	p.text.SetLines(logLines(loginfo.Records))

	if svcinfo != nil {
		words = append(words, "[I] Info")
		words = serviceKeys(words, svcinfo)
	}
	p.SetKeys(words)
}
