// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/astro-chat/astro-router/internal/catalog"
	"github.com/astro-chat/astro-router/internal/config"
	"github.com/astro-chat/astro-router/internal/detect"
	"github.com/astro-chat/astro-router/internal/guard"
	"github.com/astro-chat/astro-router/internal/logging"
	"github.com/astro-chat/astro-router/internal/offline"
	"github.com/astro-chat/astro-router/internal/router"
	"github.com/astro-chat/astro-router/internal/storage"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationSkipConfig marks commands that run without loading the config.
const annotationSkipConfig = "astro.skip-config"

// =============================================================================
// APP
// =============================================================================

// App holds the state shared by all commands of one invocation.
type App struct {
	cfgPath  string
	jsonOut  bool
	logLevel string

	prober detect.Prober

	cfg    *config.Config
	logger zerolog.Logger
	store  storage.Store
	router *router.Router
}

// Option configures an App.
type Option func(*App)

// WithProber replaces the system hardware prober.
func WithProber(p detect.Prober) Option {
	return func(a *App) { a.prober = p }
}

// NewApp creates an App.
func NewApp(opts ...Option) *App {
	a := &App{
		prober: detect.SystemProber{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the command line and returns the exit code.
func Run(args []string, stdout, stderr io.Writer, opts ...Option) int {
	app := NewApp(opts...)
	root := app.Command()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteC()
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		if cmd == nil {
			cmd = root
		}
		if app.jsonOut {
			DisplayError(stdout, cmd.CommandPath(), err, true)
		} else {
			DisplayError(stderr, cmd.CommandPath(), err, false)
		}
		return GetExitCode(err)
	}
	return ExitSuccess
}

// Execute runs the CLI against the process arguments and standard streams.
func Execute() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Command builds the root command and its subcommands.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "astro",
		Short: "Hardware-aware model router for the Astro chat client",
		Long: TitleStyle.Render("astro") + `
Picks the provider and model for each chat message from the machine's
hardware tier, the prompt and the catalog of reachable providers.

` + DimStyle.Render("Use 'astro [command] --help' for more information."),
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.preRun,
	}
	root.SetVersionTemplate("astro {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "config file (default ~/.astro/config.toml)")
	pf.BoolVar(&a.jsonOut, "json", false, "print JSON instead of text")
	pf.StringVar(&a.logLevel, "log-level", "", "override log.level (trace, debug, info, warn, error)")

	root.AddCommand(
		a.newProbeCommand(),
		a.newTierCommand(),
		a.newRouteCommand(),
		a.newSessionStartCommand(),
		a.newLockCommand(),
		a.newUnlockCommand(),
		a.newModeCommand(),
		a.newModelsCommand(),
		a.newStatusCommand(),
		a.newServeCommand(),
		a.newConfigCommand(),
		a.newVersionCommand(),
	)
	return root
}

// preRun loads the configuration and sets up logging and local-only mode.
func (a *App) preRun(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationSkipConfig] == "true" {
		return nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return NewValidationError("log level", cfg.Log.Level, err.Error())
	}

	offline.SetOfflineMode(cfg.LocalOnly())
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *App) loadConfig() (*config.Config, error) {
	if a.cfgPath != "" {
		cfg, err := config.LoadFromPath(a.cfgPath)
		if err != nil {
			return nil, &ConfigError{Path: a.cfgPath, Err: err}
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		path, _ := config.ActivePath()
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// configPath is the file config commands read and write.
func (a *App) configPath() (string, error) {
	if a.cfgPath != "" {
		return a.cfgPath, nil
	}
	return config.ActivePath()
}

// =============================================================================
// LAZY RESOURCES
// =============================================================================

// Store opens the configured state store on first use.
func (a *App) Store() (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	path, err := a.cfg.StoragePath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	st, err := storage.Open(a.cfg.Storage.Driver, path)
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// Router builds the router on first use.
func (a *App) Router(ctx context.Context) (*router.Router, error) {
	if a.router != nil {
		return a.router, nil
	}
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	rt := router.New(st, a.catalogSource(a.cfg),
		router.WithLogger(a.logger),
		router.WithPreferences(a.cfg.Routing.LocalPreference, a.cfg.Routing.CloudPreference),
	)
	if err := a.seedAccess(ctx, st, rt); err != nil {
		return nil, err
	}
	a.router = rt
	return rt, nil
}

func (a *App) catalogSource(cfg *config.Config) catalog.Source {
	return catalog.FromConfig(cfg, guard.KeepAllowed)
}

// seedAccess applies routing.mode when no routing state has been saved yet.
func (a *App) seedAccess(ctx context.Context, st storage.Store, rt *router.Router) error {
	if !strings.EqualFold(a.cfg.Routing.Mode, storage.AccessCloud.String()) || a.cfg.LocalOnly() {
		return nil
	}
	_, err := st.Get(ctx, storage.NamespaceRouting, storage.KeySelection)
	if !errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	out, err := rt.SwitchAccess(ctx, storage.AccessCloud)
	if err != nil {
		return err
	}
	a.logger.Info().Str("outcome", out.String()).Msg("initial access mode set from config")
	return nil
}

// Close releases the store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	a.router = nil
	return err
}

// =============================================================================
// OUTPUT
// =============================================================================

// emit prints data as a JSON envelope in --json mode and calls text otherwise.
func (a *App) emit(cmd *cobra.Command, data interface{}, text func(w io.Writer)) error {
	if a.jsonOut {
		return NewJSONResponse(cmd.CommandPath(), data).Write(cmd.OutOrStdout())
	}
	text(cmd.OutOrStdout())
	return nil
}

// usageArgs tags cobra argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}
