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

// Command ecovisord supervises the apps described by one or more
// ecosystem files, and serves the REST API used by the ecovisor client.
//
// Settings come from a YAML configuration file (-c), ECOVISOR_*
// environment variables and the flags below, in increasing priority.
// Dotenv files named with --env-file are loaded into the environment
// first, so they can carry ECOVISOR_* settings too.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecovisor/ecovisor/config"
	"github.com/ecovisor/ecovisor/logging"
)

var Version = "dev"

var (
	configFile string
	listen     string
	name       string
	ecosystems []string
	enable     bool
	logLevel   string
	statePath  string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "ecovisord",
	Short: "Supervise the apps of PM2 style ecosystem files",
	Long: `ecovisord starts the apps described by ecosystem files (JS, JSON or
YAML), restarts them on failure, on memory overrun or on file change, and
serves a REST API for the ecovisor client.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ecovisord %s (%s %s/%s)\n",
			Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, e := loadConfig(cmd)
		if e != nil {
			return e
		}
		b, e := cfg.ToYAML()
		if e != nil {
			return e
		}
		_, e = cmd.OutOrStdout().Write(b)
		return e
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file path (default "+config.DefaultConfigPath+")")
	flags.StringVarP(&listen, "listen", "a", config.DefaultListen, "listen address")
	flags.StringVarP(&name, "name", "n", config.DefaultName, "supervisor name")
	flags.StringSliceVarP(&ecosystems, "file", "f", nil, "ecosystem file (repeatable)")
	flags.BoolVarP(&enable, "enable", "e", true, "enable all services at startup")
	flags.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&statePath, "state", "", "process table database")
	flags.StringSliceVar(&envFiles, "env-file", nil, "dotenv file to load into the environment (repeatable)")

	rootCmd.AddCommand(versionCmd, configCmd)
}

// flagKeys maps flags to configuration keys.
var flagKeys = map[string]string{
	"listen":    "listen",
	"name":      "name",
	"file":      "ecosystem",
	"enable":    "enable",
	"log-level": "log.level",
	"state":     "state.path",
}

// loadConfig loads the configuration, with any flags given explicitly on
// the command line taking priority.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if e := config.LoadEnvFiles(envFiles...); e != nil {
		return nil, e
	}
	overrides := map[string]interface{}{}
	values := map[string]interface{}{
		"listen":    listen,
		"name":      name,
		"file":      ecosystems,
		"enable":    enable,
		"log-level": logLevel,
		"state":     statePath,
	}
	for flag, key := range flagKeys {
		if cmd.Flags().Changed(flag) {
			overrides[key] = values[flag]
		}
	}
	return config.LoadWithOverrides(configFile, overrides)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, e := loadConfig(cmd)
	if e != nil {
		return fmt.Errorf("failed to load config: %w", e)
	}
	if e := cfg.Validate(); e != nil {
		return fmt.Errorf("invalid config: %w", e)
	}
	logger, e := logging.New(cfg.Log)
	if e != nil {
		return e
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.Stringer("config", cfg))

	d := newDaemon(cfg, logger)
	if e := d.Start(); e != nil {
		return e
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigs
	logger.Info("received signal", zap.String("signal", sig.String()))
	d.Stop()
	return nil
}

func main() {
	if e := rootCmd.Execute(); e != nil {
		os.Exit(1)
	}
}
