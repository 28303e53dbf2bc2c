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

// Package ui is the live terminal dashboard of the ecovisor client.
package ui

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/ecovisor/ecovisor/cmd/ecovisor/util"
	"github.com/ecovisor/ecovisor/rest"
)

// actionTimeout bounds the requests made in response to a key press.
const actionTimeout = 5 * time.Second

var errNoService = errors.New("Service not found")

type App struct {
	app       *views.Application
	view      views.View
	panel     views.Widget
	info      *InfoPanel
	help      *HelpPanel
	log       *LogPanel
	main      *MainPanel
	auth      *AuthPanel
	client    *rest.Client
	logger    *log.Logger
	err       error
	items     []*rest.ServiceInfo
	daemon    string
	napps     int
	logName   string
	logInfo   *rest.LogInfo
	logErr    error
	logCancel context.CancelFunc
	ctx       context.Context
	cancel    context.CancelFunc

	views.WidgetWatchers
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) ShowInfo(name string) {
	a.info.SetName(name)
	a.show(a.info)
}

func (a *App) ShowLog(name string) {
	if a.logCancel != nil {
		a.logCancel()
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.logInfo = nil
	a.logErr = nil
	a.logName = name
	a.logCancel = cancel
	a.log.SetName(name)
	go a.refreshLog(ctx, name)

	a.show(a.log)
}

func (a *App) ShowMain() {
	a.show(a.main)
}

func (a *App) ShowAuth() {
	a.auth.ResetFields()
	a.show(a.auth)
}

// SetUserPassword retries with new credentials.
func (a *App) SetUserPassword(user, pass string) {
	a.client.SetAuth(user, pass)
	a.err = nil
	a.items = nil
}

// action runs one request against the server, reporting failure in the
// log since there is nowhere else to show it.
func (a *App) action(what, name string, fn func(context.Context, string) error) {
	ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
	defer cancel()
	if e := fn(ctx, name); e != nil {
		a.Logf("%s %s failed: %v", what, name, e)
	}
}

func (a *App) DisableService(name string) {
	a.action("Disable", name, a.client.DisableService)
}

func (a *App) EnableService(name string) {
	a.action("Enable", name, a.client.EnableService)
}

func (a *App) ClearService(name string) {
	a.action("Clear", name, a.client.ClearService)
}

func (a *App) RestartService(name string) {
	a.action("Restart", name, a.client.RestartService)
}

func (a *App) RestartApp(name string) {
	a.action("Restart app", name, a.client.RestartApp)
}

func (a *App) Quit() {
	/* This just posts the quit event. */
	a.app.Quit()
}

func (a *App) SetLogger(logger *log.Logger) {
	a.logger = logger
	if logger != nil {
		logger.Printf("Start logger")
	}
}

func (a *App) Logf(fmt string, v ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(fmt, v...)
	}
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		// Intercept a few control keys up front, for global handling.
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}

	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) GetClient() *rest.Client {
	return a.client
}

func (a *App) GetAppName() string {
	return "Ecovisor"
}

func NewApp(client *rest.Client, url string) *App {

	app := &App{}
	app.app = &views.Application{}
	app.client = client
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.info = NewInfoPanel(app)
	app.help = NewHelpPanel(app)
	app.log = NewLogPanel(app)
	app.main = NewMainPanel(app, url)
	app.auth = NewAuthPanel(app, url)
	app.panel = app.main

	return app
}

func (a *App) getItems(ctx context.Context) ([]*rest.ServiceInfo, error) {
	names, e := a.client.Services(ctx)
	if e != nil {
		return nil, e
	}
	items := make([]*rest.ServiceInfo, 0, len(names))
	for _, n := range names {
		item, e := a.client.GetService(ctx, n)
		if e == nil {
			items = append(items, item)
		}
	}
	util.SortServices(items)
	return items, nil
}

// getFleet fetches the daemon name and the number of apps it launched.
// Failures leave them blank; getItems reports the error.
func (a *App) getFleet(ctx context.Context) (string, int) {
	daemon := ""
	if mi, e := a.client.Manager(ctx); e == nil {
		daemon = mi.Name
	}
	apps, _ := a.client.Apps(ctx)
	return daemon, len(apps)
}

// Fleet returns what the title bar shows: the daemon name, the number of
// apps and the number of services.
func (a *App) Fleet() (string, int, int) {
	return a.daemon, a.napps, len(a.items)
}

// refresh keeps the app items current
func (a *App) refresh() {
	client := a.client
	etag := ""
	for a.ctx.Err() == nil {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		items, e := a.getItems(ctx)
		daemon, napps := a.getFleet(ctx)
		cancel()

		a.app.PostFunc(func() {
			a.items = items
			a.err = e
			a.daemon = daemon
			a.napps = napps
			a.app.Update()
		})
		if e != nil {
			etag = ""
			time.Sleep(2 * time.Second)
			continue
		}
		ctx, cancel = context.WithTimeout(a.ctx, time.Hour)
		etag, e = client.Watch(ctx, etag)
		cancel()
		if e != nil {
			time.Sleep(2 * time.Second)
		}
	}
}

func (a *App) refreshLog(ctx context.Context, name string) {
	info, e := a.client.GetLog(ctx, name)

	for {
		a.app.PostFunc(func() {
			if a.logName == name {
				a.logInfo = info
				a.logErr = e
				a.app.Update()
			}
		})
		if ctx.Err() != nil {
			return
		}
		if e != nil {
			time.Sleep(2 * time.Second)
			info, e = a.client.GetLog(ctx, name)
			continue
		}
		info, e = a.client.WatchLog(ctx, name, info)
	}
}

func (a *App) GetItems() ([]*rest.ServiceInfo, error) {
	return a.items, a.err
}

func (a *App) GetItem(name string) (*rest.ServiceInfo, error) {
	if a.err != nil {
		return nil, a.err
	}
	for _, i := range a.items {
		if i.Name == name {
			return i, nil
		}
	}
	return nil, errNoService
}

func (a *App) GetLog(name string) (*rest.LogInfo, error) {
	if a.logName == name {
		return a.logInfo, a.logErr
	}
	return nil, nil
}

// needsAuth reports whether e is the server refusing our credentials.
func needsAuth(e error) bool {
	var re *rest.Error
	return errors.As(e, &re) && re.Code == http.StatusUnauthorized
}

func (a *App) Run() error {
	a.Logf("Starting up user interface")
	a.app.SetRootWidget(a)
	a.ShowMain()
	go a.refresh()
	go func() {
		// Give us periodic updates
		for a.ctx.Err() == nil {
			a.app.Update()
			time.Sleep(time.Second)
		}
	}()
	a.Logf("Starting app loop")
	e := a.app.Run()
	a.cancel()
	return e
}
