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
	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
)

const (
	fieldWidth = 16
	maxField   = 256
)

var (
	StyleField      = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorBlack)
	StyleFieldFocus = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
)

// AuthPanel prompts for credentials after the server answers 401.
type AuthPanel struct {
	layout     *views.BoxLayout
	ufield     *views.Text
	pfield     *views.Text
	passactive bool
	username   []rune
	password   []rune

	Panel
}

func NewAuthPanel(app *App, server string) *AuthPanel {
	p := &AuthPanel{}
	p.Panel.Init(app)

	p.username = make([]rune, 0, 128)
	p.password = make([]rune, 0, 128)

	prompts := views.NewBoxLayout(views.Vertical)
	fields := views.NewBoxLayout(views.Vertical)
	p.layout = views.NewBoxLayout(views.Horizontal)

	uprompt := views.NewText()
	pprompt := views.NewText()
	uprompt.SetText("Username: ")
	pprompt.SetText("Password: ")
	uprompt.SetStyle(StyleField)
	pprompt.SetStyle(StyleField)

	p.ufield = views.NewText()
	p.pfield = views.NewText()

	for _, b := range []*views.BoxLayout{prompts, fields, p.layout} {
		b.SetStyle(StyleField)
	}

	prompts.AddWidget(views.NewSpacer(), 1.0)
	prompts.AddWidget(uprompt, 0.0)
	prompts.AddWidget(pprompt, 0.0)
	prompts.AddWidget(views.NewSpacer(), 1.0)

	fields.AddWidget(views.NewSpacer(), 1.0)
	fields.AddWidget(p.ufield, 0.0)
	fields.AddWidget(p.pfield, 0.0)
	fields.AddWidget(views.NewSpacer(), 1.0)

	p.layout.AddWidget(views.NewSpacer(), 1.0)
	p.layout.AddWidget(prompts, 0.0)
	p.layout.AddWidget(fields, 0.0)
	p.layout.AddWidget(views.NewSpacer(), 1.0)

	p.SetTitle(server)
	p.SetKeys([]string{"[ESC] Quit", "[TAB] Next"})
	p.SetContent(p.layout)
	p.update()

	return p
}

func (p *AuthPanel) ResetFields() {
	p.passactive = false
	p.username = p.username[:0]
	p.password = p.password[:0]
}

func (p *AuthPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

// active returns the field being edited.
func (p *AuthPanel) active() *[]rune {
	if p.passactive {
		return &p.password
	}
	return &p.username
}

func (p *AuthPanel) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		field := p.active()
		switch ev.Key() {
		case tcell.KeyEsc:
			p.App().Quit()
		case tcell.KeyTab, tcell.KeyEnter:
			if p.passactive {
				p.App().SetUserPassword(string(p.username), string(p.password))
				p.App().ShowMain()
			} else {
				p.passactive = true
			}
		case tcell.KeyBacktab:
			p.passactive = false
		case tcell.KeyCtrlU, tcell.KeyCtrlW:
			*field = (*field)[:0]
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			if n := len(*field); n > 0 {
				*field = (*field)[:n-1]
			}
		case tcell.KeyRune:
			if len(*field) < maxField {
				*field = append(*field, ev.Rune())
			}
		default:
			return false
		}
		return true
	}
	return p.Panel.HandleEvent(ev)
}

// fieldText renders a field of fieldWidth cells, scrolled to show the end.
func fieldText(text []rune, cursor bool) string {
	r := append([]rune{}, text...)
	if cursor {
		r = append(r, '_')
	}
	if len(r) > fieldWidth {
		r = r[len(r)-fieldWidth:]
		r[0] = '<'
	}
	for len(r) < fieldWidth {
		r = append(r, ' ')
	}
	return string(r)
}

func maskRunes(text []rune) []rune {
	m := make([]rune, len(text))
	for i := range m {
		m[i] = '*'
	}
	return m
}

// update must be called with AppLock held.
func (p *AuthPanel) update() {
	p.SetStatus(healthFault, "Authentication Required")

	p.ufield.SetText(fieldText(p.username, !p.passactive))
	p.pfield.SetText(fieldText(maskRunes(p.password), p.passactive))

	if p.passactive {
		p.pfield.SetStyle(StyleFieldFocus)
		p.ufield.SetStyle(StyleField)
	} else {
		p.ufield.SetStyle(StyleFieldFocus)
		p.pfield.SetStyle(StyleField)
	}
}
