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
	"github.com/gdamore/tcell/v2/views"

	"github.com/ecovisor/ecovisor/rest"
)

// Panel is one screen of the dashboard.  The daemon and fleet size sit
// above the status bar; the keys on offer sit below the content.
type Panel struct {
	tb  *TitleBar
	sb  *StatusBar
	kb  *KeyBar
	app *App

	views.Panel
}

func (p *Panel) Init(app *App) {
	p.app = app
	p.tb = NewTitleBar()
	p.sb = NewStatusBar()
	p.kb = NewKeyBar()

	p.Panel.SetTitle(p.tb)
	p.Panel.SetMenu(p.sb)
	p.Panel.SetStatus(p.kb)
}

func (p *Panel) SetTitle(title string) {
	p.tb.SetScreen(title)
}

func (p *Panel) SetKeys(words []string) {
	p.kb.SetKeys(words)
}

func (p *Panel) SetStatus(h health, text string) {
	p.sb.Set(h, text)
}

// ShowService grades the status bar by a single service.
func (p *Panel) ShowService(info *rest.ServiceInfo) {
	p.sb.Set(serviceHealth(info), serviceNote(info))
}

func (p *Panel) Draw() {
	p.tb.SetFleet(p.app.Fleet())
	p.Panel.Draw()
}

func (p *Panel) App() *App {
	return p.app
}
