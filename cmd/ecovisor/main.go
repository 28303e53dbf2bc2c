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

// Command ecovisor is the client of ecovisord.  It uses subcommands; with
// none it starts the live terminal dashboard.
//
// The flags are
//
//	-a <address>	- server address, default http://127.0.0.1:8321
//	-u <user:pass>	- user name & password for basic auth
//	-k <key>	- API key, default $ECOVISOR_API_KEY
//
// Subcommands are
//
//	services             - list all services
//	status [<svc> ...]   - show status for the named services (or all)
//	info <svc>           - show more detailed service info
//	enable  <svc>        - enable the named service
//	disable <svc>        - disable the named service
//	restart <svc>        - restart the named service
//	clear <svc>          - clear the named service
//	log [<svc>]          - print the log for a service, or the whole supervisor
//	apps [<app>]         - list apps, or print one as an ecosystem file
//	validate <file>      - check an ecosystem file locally
//	convert <file>       - rewrite an ecosystem file in another format
//	top                  - live terminal dashboard
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecovisor/ecovisor/cmd/ecovisor/ui"
	"github.com/ecovisor/ecovisor/cmd/ecovisor/util"
	"github.com/ecovisor/ecovisor/config"
	"github.com/ecovisor/ecovisor/ecosystem"
	"github.com/ecovisor/ecovisor/logging"
	"github.com/ecovisor/ecovisor/rest"
)

var Version = "dev"

const (
	requestTimeout = 30 * time.Second
	apiKeyEnv      = "ECOVISOR_API_KEY"
)

var (
	addr    = "http://127.0.0.1:8321"
	auth    string
	apiKey  string
	format  string
	toFmt   string
	output  string
	logFile string
)

var errBadAuth = errors.New("bad user:pass supplied")

var rootCmd = &cobra.Command{
	Use:          "ecovisor",
	Short:        "Client for the ecovisord supervisor",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runTop,
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live terminal dashboard",
	Args:  cobra.NoArgs,
	RunE:  runTop,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ecovisor %s (%s %s/%s)\n",
			Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List all services",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *rest.Client, w io.Writer, args []string) error {
		names, e := c.Services(ctx)
		if e != nil {
			return e
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(w, name)
		}
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status [service...]",
	Short: "Show status for the named services (or all)",
	RunE:  withClient(showStatus),
}

var infoCmd = &cobra.Command{
	Use:   "info <service>",
	Short: "Show detailed service information",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *rest.Client, w io.Writer, args []string) error {
		s, e := c.GetService(ctx, args[0])
		if e != nil {
			return e
		}
		printInfo(w, s)
		return nil
	}),
}

var logCmd = &cobra.Command{
	Use:   "log [service]",
	Short: "Print the log of a service, or of the whole supervisor",
	Args:  cobra.MaximumNArgs(1),
	RunE: withClient(func(ctx context.Context, c *rest.Client, w io.Writer, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		info, e := c.GetLog(ctx, name)
		if e != nil {
			return e
		}
		for _, r := range info.Records {
			fmt.Fprintf(w, "%s %s\n", r.Time.Format(time.StampMilli), r.Text)
		}
		return nil
	}),
}

var appsCmd = &cobra.Command{
	Use:   "apps [app]",
	Short: "List apps, or print one app as an ecosystem file",
	Args:  cobra.MaximumNArgs(1),
	RunE: withClient(func(ctx context.Context, c *rest.Client, w io.Writer, args []string) error {
		if len(args) == 0 {
			apps, e := c.Apps(ctx)
			if e != nil {
				return e
			}
			printApps(w, apps)
			return nil
		}
		f, e := ecosystem.ParseFormat(format)
		if e != nil {
			return e
		}
		b, e := c.GetApp(ctx, args[0], f)
		if e != nil {
			return e
		}
		_, e = w.Write(b)
		return e
	}),
}

var restartAppCmd = &cobra.Command{
	Use:   "restart-app <app>",
	Short: "Restart every instance of an app",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *rest.Client, w io.Writer, args []string) error {
		return c.RestartApp(ctx, args[0])
	}),
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check ecosystem files without contacting the server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			file, e := ecosystem.Load(path)
			if e != nil {
				return e
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d apps ok\n", path, len(file.Apps))
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Rewrite an ecosystem file in another format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return convert(args[0], toFmt, output, cmd.OutOrStdout())
	},
}

// serviceAction builds the command for a single service operation.
func serviceAction(use, short string, fn func(*rest.Client, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <service>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, c *rest.Client, w io.Writer, args []string) error {
			return fn(c, ctx, args[0])
		}),
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&addr, "address", "a", addr, "ecovisord address")
	flags.StringVarP(&auth, "user", "u", "", "user:pass authentication")
	flags.StringVarP(&apiKey, "api-key", "k", os.Getenv(apiKeyEnv), "API key authentication")

	appsCmd.Flags().StringVar(&format, "format", "json", "app output format (js, json, yaml)")
	convertCmd.Flags().StringVar(&toFmt, "to", "yaml", "output format (js, json, yaml)")
	convertCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	for _, c := range []*cobra.Command{rootCmd, topCmd} {
		c.Flags().StringVar(&logFile, "log", "", "write dashboard diagnostics to this file")
	}

	rootCmd.AddCommand(versionCmd, servicesCmd, statusCmd, infoCmd, logCmd,
		appsCmd, restartAppCmd, validateCmd, convertCmd, topCmd,
		serviceAction("enable", "Enable a service", (*rest.Client).EnableService),
		serviceAction("disable", "Disable a service", (*rest.Client).DisableService),
		serviceAction("restart", "Restart a service", (*rest.Client).RestartService),
		serviceAction("clear", "Clear the fault on a service", (*rest.Client).ClearService),
	)
}

func newClient() (*rest.Client, error) {
	client := rest.NewClient(nil, addr)
	if auth != "" {
		user, pass, ok := strings.Cut(auth, ":")
		if !ok {
			return nil, errBadAuth
		}
		client.SetAuth(user, pass)
	}
	if apiKey != "" {
		client.SetAPIKey(apiKey)
	}
	return client, nil
}

type clientFunc func(ctx context.Context, c *rest.Client, w io.Writer, args []string) error

func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, e := newClient()
		if e != nil {
			return e
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return fn(ctx, client, cmd.OutOrStdout(), args)
	}
}

func showStatus(ctx context.Context, c *rest.Client, w io.Writer, names []string) error {
	var e error
	if len(names) == 0 {
		if names, e = c.Services(ctx); e != nil {
			return e
		}
	}
	infos := make([]*rest.ServiceInfo, 0, len(names))
	for _, n := range names {
		info, e := c.GetService(ctx, n)
		if e != nil {
			return fmt.Errorf("%s: %w", n, e)
		}
		infos = append(infos, info)
	}
	util.SortServices(infos)
	for _, s := range infos {
		fmt.Fprintf(w, "%-20s %-9s %9s %s\n", s.Name, util.Status(s),
			util.FormatDuration(util.Since(s.TimeStamp)), s.Status)
	}
	return nil
}

func printInfo(w io.Writer, s *rest.ServiceInfo) {
	fmt.Fprintf(w, "Name:      %s\n", s.Name)
	fmt.Fprintf(w, "Desc:      %s\n", s.Description)
	fmt.Fprintf(w, "App:       %s\n", s.App)
	fmt.Fprintf(w, "Instance:  %d\n", s.Instance)
	fmt.Fprintf(w, "Status:    %s\n", util.Status(s))
	if s.Pid > 0 {
		fmt.Fprintf(w, "Pid:       %d\n", s.Pid)
	}
	fmt.Fprintf(w, "Restarts:  %d\n", s.Restarts)
	if s.RunID != "" {
		fmt.Fprintf(w, "Run ID:    %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Since:     %s\n", util.FormatDuration(util.Since(s.TimeStamp)))
	fmt.Fprintf(w, "Detail:    %s\n", s.Status)
}

func printApps(w io.Writer, apps []*rest.AppInfo) {
	for _, a := range apps {
		flags := []string{}
		if a.Autorestart {
			flags = append(flags, "autorestart")
		}
		if a.Watch {
			flags = append(flags, "watch")
		}
		fmt.Fprintf(w, "%-20s %-7s %3d  %-30s %s\n", a.Name, a.ExecMode,
			a.Instances, a.Script, strings.Join(flags, ","))
	}
}

// convert loads path (validating it) and writes it in the named format,
// to the output file if one is given.
func convert(path, to, out string, w io.Writer) error {
	f, e := ecosystem.ParseFormat(to)
	if e != nil {
		return e
	}
	file, e := ecosystem.Load(path)
	if e != nil {
		return e
	}
	b, e := ecosystem.Marshal(file, f)
	if e != nil {
		return e
	}
	if out == "" {
		_, e = w.Write(b)
		return e
	}
	return os.WriteFile(out, b, 0o644)
}

func runTop(cmd *cobra.Command, args []string) error {
	client, e := newClient()
	if e != nil {
		return e
	}
	app := ui.NewApp(client, addr)
	if logFile != "" {
		lw := logging.FileWriter(config.LogConfig{File: logFile, MaxSize: config.DefaultLogMaxSize})
		defer lw.Close()
		app.SetLogger(log.New(lw, "", log.LstdFlags))
	}
	return app.Run()
}

func main() {
	if e := rootCmd.Execute(); e != nil {
		os.Exit(1)
	}
}
