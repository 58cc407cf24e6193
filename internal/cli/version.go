// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := VersionInfo{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			return a.emit(cmd, info, func(w io.Writer) {
				fmt.Fprintf(w, "astro %s\n", info.Version)
				fmt.Fprintf(w, "  %s%s\n", RenderLabel("Commit"), info.GitCommit)
				fmt.Fprintf(w, "  %s%s\n", RenderLabel("Built"), info.BuildDate)
				fmt.Fprintf(w, "  %s%s %s\n", RenderLabel("Go"), info.GoVersion, info.Platform)
			})
		},
	}
}
