// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/astro-chat/astro-router/internal/config"
)

// ConfigValue is one key of the config get and keys commands.
type ConfigValue struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

func (a *App) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit ~/.astro/config.toml",
	}
	cmd.AddCommand(
		a.newConfigShowCommand(),
		a.newConfigPathCommand(),
		a.newConfigInitCommand(),
		a.newConfigGetCommand(),
		a.newConfigSetCommand(),
		a.newConfigKeysCommand(),
	)
	return cmd
}

func (a *App) newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with API keys redacted",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			safe := a.cfg.Redacted()
			if a.jsonOut {
				return a.emit(cmd, safe, nil)
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(safe)
		},
	}
}

func (a *App) newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.configPath()
			if err != nil {
				return &ConfigError{Err: err}
			}
			_, statErr := os.Stat(path)
			data := map[string]interface{}{"path": path, "exists": statErr == nil}
			return a.emit(cmd, data, func(w io.Writer) { fmt.Fprintln(w, path) })
		},
	}
}

func (a *App) newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the default configuration",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.cfgPath
			if path == "" {
				p, err := config.ConfigPathTOML()
				if err != nil {
					return &ConfigError{Err: err}
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &ConfigError{Path: path, Err: errors.New("already exists (use --force to overwrite)")}
			}
			if err := saveConfig(config.Default(), path); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			data := map[string]string{"path": path}
			return a.emit(cmd, data, func(w io.Writer) {
				fmt.Fprintf(w, "%s Wrote %s\n", RenderStatus("ok"), path)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func (a *App) newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Print one configuration value",
		Example: `  astro config get routing.mode`,
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Redacted().Get(args[0])
			if err != nil {
				return NewValidationErrorWithExample("key", args[0], err.Error(), "astro config keys")
			}
			return a.emit(cmd, ConfigValue{Key: args[0], Value: v}, func(w io.Writer) {
				fmt.Fprintln(w, formatValue(v))
			})
		},
	}
}

func (a *App) newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value in the config file",
		Long: `Change one value in the config file. Environment overrides are not
written back. Lists are comma-separated.`,
		Example: `  astro config set deployment.mode local-only
  astro config set routing.cloud_preference Anthropic,OpenAI`,
		Args:        usageArgs(cobra.ExactArgs(2)),
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configPath()
			if err != nil {
				return &ConfigError{Err: err}
			}
			cfg, err := readConfigFile(path)
			if err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return NewValidationErrorWithExample("key", args[0], err.Error(), "astro config keys")
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := saveConfig(cfg, path); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			v, _ := cfg.Get(args[0])
			return a.emit(cmd, ConfigValue{Key: args[0], Value: v}, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s = %s\n", RenderStatus("ok"), args[0], formatValue(v))
			})
		},
	}
}

func (a *App) newConfigKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the keys accepted by get and set",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			var values []ConfigValue
			for _, key := range config.GetAllKeys() {
				v, err := a.cfg.Get(key)
				if err != nil {
					return err
				}
				values = append(values, ConfigValue{Key: key, Value: v})
			}
			return a.emit(cmd, values, func(w io.Writer) {
				for _, kv := range values {
					fmt.Fprintf(w, "%s %s\n", LabelStyle.Width(28).Render(kv.Key), formatValue(kv.Value))
				}
			})
		},
	}
}

// readConfigFile reads path without environment overrides. A missing file
// yields the defaults.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	var err error
	if isJSONPath(path) {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	return cfg, err
}

func saveConfig(cfg *config.Config, path string) error {
	if isJSONPath(path) {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

func isJSONPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".json")
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case *bool:
		if val == nil {
			return DimStyle.Render("(probe)")
		}
		return fmt.Sprint(*val)
	default:
		return fmt.Sprint(val)
	}
}
