// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/astro-chat/astro-router/internal/config"
	"github.com/astro-chat/astro-router/internal/detect"
	"github.com/astro-chat/astro-router/internal/router"
	"github.com/astro-chat/astro-router/internal/storage"
)

const mib = 1 << 20

// HardwareReport is the output of the probe and tier commands.
type HardwareReport struct {
	Profile        *detect.HardwareProfile `json:"profile,omitempty"`
	Tier           detect.Tier             `json:"tier"`
	Recommendation detect.Recommendation   `json:"recommendation"`
	Cached         bool                    `json:"cached"`
}

// =============================================================================
// PROBE
// =============================================================================

func (a *App) newProbeCommand() *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the hardware and cache the profile",
		Long: `Probe total memory, logical cores and GPU acceleration, apply any
[hardware] overrides from the config and cache the profile for routing.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			prober := configuredProber{base: a.prober, hw: a.cfg.Hardware}

			var (
				profile detect.HardwareProfile
				tier    detect.Tier
				err     error
			)
			if noCache {
				profile, err = prober.Probe(ctx)
				tier = detect.ClassifyTier(profile)
			} else {
				st, serr := a.Store()
				if serr != nil {
					return serr
				}
				profile, tier, err = router.ProbeAndCache(ctx, st, prober)
			}
			if err != nil {
				return err
			}
			a.logger.Info().Str("tier", tier.String()).Str("profile", profile.String()).Msg("hardware probed")

			report := HardwareReport{
				Profile:        &profile,
				Tier:           tier,
				Recommendation: detect.Recommend(tier),
				Cached:         !noCache,
			}
			return a.emit(cmd, report, func(w io.Writer) { printHardwareReport(w, report) })
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "print the profile without caching it")
	return cmd
}

// configuredProber applies [hardware] overrides on top of a probe.
type configuredProber struct {
	base detect.Prober
	hw   config.HardwareConfig
}

func (p configuredProber) Probe(ctx context.Context) (detect.HardwareProfile, error) {
	profile, err := p.base.Probe(ctx)
	if err != nil {
		return detect.HardwareProfile{}, err
	}
	return applyHardwareOverrides(profile, p.hw), nil
}

func applyHardwareOverrides(p detect.HardwareProfile, hw config.HardwareConfig) detect.HardwareProfile {
	overridden := false
	if hw.MemoryMB > 0 {
		p.MemoryMB = hw.MemoryMB
		overridden = true
	}
	if hw.LogicalCores > 0 {
		p.LogicalCores = hw.LogicalCores
		overridden = true
	}
	if hw.GPUAcceleration != nil {
		p.GPUAcceleration = *hw.GPUAcceleration
		overridden = true
	}
	if overridden {
		p.Source = "config"
	}
	return p
}

// =============================================================================
// TIER
// =============================================================================

func (a *App) newTierCommand() *cobra.Command {
	var (
		memoryMB int
		cores    int
		gpu      bool
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Show the hardware tier and its recommended models",
		Long: `Show the tier of the cached hardware profile. With --memory-mb, --cores
or --gpu the tier of that hypothetical machine is shown instead.`,
		Example: `  astro tier
  astro tier --memory-mb 65536 --cores 16 --gpu
  astro tier --all`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all {
				recs := make([]detect.Recommendation, 0, len(detect.AllTiers()))
				for _, t := range detect.AllTiers() {
					recs = append(recs, detect.Recommend(t))
				}
				return a.emit(cmd, recs, func(w io.Writer) { printTierTable(w, recs) })
			}

			flags := cmd.Flags()
			var profile detect.HardwareProfile
			cached := false
			if flags.Changed("memory-mb") || flags.Changed("cores") || flags.Changed("gpu") {
				if memoryMB < 0 || cores < 0 {
					return NewValidationError("hardware", fmt.Sprintf("%d MB, %d cores", memoryMB, cores), "must not be negative")
				}
				profile = detect.HardwareProfile{MemoryMB: memoryMB, LogicalCores: cores, GPUAcceleration: gpu, Source: "manual"}
			} else {
				st, err := a.Store()
				if err != nil {
					return err
				}
				profile, err = storage.LoadHardware(cmd.Context(), st)
				if errors.Is(err, storage.ErrNotFound) {
					return &NotFoundError{Resource: "hardware profile", Hint: "run 'astro probe' first"}
				}
				if err != nil {
					return err
				}
				cached = true
			}

			tier := detect.ClassifyTier(profile)
			report := HardwareReport{
				Profile:        &profile,
				Tier:           tier,
				Recommendation: detect.Recommend(tier),
				Cached:         cached,
			}
			return a.emit(cmd, report, func(w io.Writer) { printHardwareReport(w, report) })
		},
	}
	f := cmd.Flags()
	f.IntVar(&memoryMB, "memory-mb", 0, "total memory in megabytes")
	f.IntVar(&cores, "cores", 0, "logical CPU cores")
	f.BoolVar(&gpu, "gpu", false, "GPU acceleration available")
	f.BoolVar(&all, "all", false, "list every tier")
	return cmd
}

// =============================================================================
// RENDERING
// =============================================================================

func printHardwareReport(w io.Writer, r HardwareReport) {
	fmt.Fprintln(w, TitleStyle.Render("Hardware"))
	if p := r.Profile; p != nil {
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("Memory"), humanize.IBytes(uint64(p.Normalized().MemoryMB)*mib))
		fmt.Fprintf(w, "  %s%d\n", RenderLabel("Cores"), p.LogicalCores)
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("GPU"), gpuSummary(*p))
		source := p.Source
		if source == "" {
			source = "unknown"
		}
		if !p.ProbedAt.IsZero() {
			source += ", " + humanize.Time(p.ProbedAt)
		}
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("Source"), DimStyle.Render(source))
	}
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Tier"), RenderTier(r.Tier))

	rec := r.Recommendation
	fmt.Fprintln(w, SectionStyle.Render("Recommended models"))
	fmt.Fprintf(w, "  %s%s %s\n", RenderLabel("Primary"), HighlightStyle.Render(rec.Model), DimStyle.Render("("+rec.ModelSize+")"))
	fmt.Fprintf(w, "  %s%s\n", RenderLabel(""), DimStyle.Render(rec.ModelPower))
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Secondary"), rec.SecondaryModel)
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Vision"), rec.VisionModel)
	if r.Cached {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SuccessStyle.Render("Profile cached for routing."))
	}
}

func printTierTable(w io.Writer, recs []detect.Recommendation) {
	fmt.Fprintln(w, TitleStyle.Render("Tiers"))
	for _, rec := range recs {
		est := "unknown"
		if mb := detect.EstimateModelMemoryMB(rec.Model); mb > 0 {
			est = "~" + humanize.IBytes(uint64(mb)*mib)
		}
		fmt.Fprintf(w, "  %s%s\n", RenderLabel(rec.Tier.String()), HighlightStyle.Render(rec.Model))
		fmt.Fprintf(w, "  %s%s download, %s resident\n", RenderLabel(""), rec.ModelSize, est)
		fmt.Fprintf(w, "  %s%s\n", RenderLabel(""), DimStyle.Render("then "+rec.SecondaryModel))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf(
		"god-mode: >= %s RAM, %d+ cores and a GPU; pro: >= %s RAM and %d+ cores; starter: >= %s RAM.",
		humanize.Comma(detect.GodModeMinMemoryMB)+" MB", detect.GodModeMinCores,
		humanize.Comma(detect.ProMinMemoryMB)+" MB", detect.ProMinCores,
		humanize.Comma(detect.StarterMinMemoryMB)+" MB")))
}

func gpuSummary(p detect.HardwareProfile) string {
	if !p.GPUAcceleration {
		return DimStyle.Render("none")
	}
	switch {
	case p.GPUName != "" && p.GPUType != "":
		return fmt.Sprintf("%s (%s)", p.GPUName, p.GPUType)
	case p.GPUName != "":
		return p.GPUName
	default:
		return "available"
	}
}
