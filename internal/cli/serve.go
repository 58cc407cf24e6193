// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/astro-chat/astro-router/internal/config"
	"github.com/astro-chat/astro-router/internal/guard"
	"github.com/astro-chat/astro-router/internal/offline"
	"github.com/astro-chat/astro-router/internal/router"
	"github.com/astro-chat/astro-router/internal/server"
)

func (a *App) newServeCommand() *cobra.Command {
	var (
		listen  string
		noWatch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the routing API to the chat client",
		Long: `Serve the routing triggers over loopback HTTP. Changes to
~/.astro/config.toml are picked up without a restart.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, listen, !noWatch)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default server.listen)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config on change")
	return cmd
}

func (a *App) serve(ctx context.Context, listen string, watch bool) error {
	rt, err := a.Router(ctx)
	if err != nil {
		return err
	}

	if a.cfg.Hardware.ProbeOnStart {
		st, err := a.Store()
		if err != nil {
			return err
		}
		prober := configuredProber{base: a.prober, hw: a.cfg.Hardware}
		if profile, tier, err := router.ProbeAndCache(ctx, st, prober); err != nil {
			a.logger.Warn().Err(err).Msg("hardware probe failed, keeping cached profile")
		} else {
			a.logger.Info().Str("tier", tier.String()).Str("profile", profile.String()).Msg("hardware probed")
		}
	}

	if listen == "" {
		listen = a.cfg.Server.Listen
	}
	if err := offline.ValidateURLForOfflineMode("http://" + listen); err != nil {
		return NewValidationError("listen", listen, err.Error())
	}

	if watch {
		if err := a.watchConfig(ctx, rt); err != nil {
			a.logger.Warn().Err(err).Msg("config watcher disabled")
		}
	}

	logger := a.logger
	srv := server.New(rt, guard.NewRateGuard(a.cfg.Guard.OpenRouterRPMLimit), server.Options{
		Listen:         listen,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		RateLimit:      a.cfg.Server.RateLimit,
		RateBurst:      a.cfg.Server.RateBurst,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		Logger:         &logger,
	})
	return srv.Run(ctx)
}

// watchConfig swaps the router's catalog when the config file changes.
// Server, storage and log settings still need a restart.
func (a *App) watchConfig(ctx context.Context, rt *router.Router) error {
	w, err := a.configWatcher(func(cfg *config.Config) {
		offline.SetOfflineMode(cfg.LocalOnly())
		rt.SetSource(a.catalogSource(cfg))
		a.logger.Info().
			Int("providers", len(cfg.Providers)).
			Bool("local_only", cfg.LocalOnly()).
			Msg("configuration reloaded")
	})
	if err != nil {
		return err
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("config watcher stopped")
		}
	}()
	return nil
}

// configWatcher watches the file given with --config, or the default config
// directory when none was given.
func (a *App) configWatcher(onChange func(*config.Config)) (*config.Watcher, error) {
	if a.cfgPath != "" {
		path := a.cfgPath
		return config.NewFileWatcher(path, func() (*config.Config, error) {
			return config.LoadFromPath(path)
		}, onChange)
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return config.NewWatcher(dir, config.Load, onChange)
}
