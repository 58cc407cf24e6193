// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astro-chat/astro-router/internal/catalog"
	"github.com/astro-chat/astro-router/internal/detect"
	"github.com/astro-chat/astro-router/internal/guard"
	"github.com/astro-chat/astro-router/internal/offline"
	"github.com/astro-chat/astro-router/internal/router"
	"github.com/astro-chat/astro-router/internal/storage"
	"github.com/astro-chat/astro-router/internal/util"
)

// maxListedCandidates bounds the candidate list printed in text mode.
const maxListedCandidates = 6

// RouteReport is the output of the route command.
type RouteReport struct {
	Outcome router.Outcome `json:"outcome"`
	// Admitted is set when --admit ran the OpenRouter guardrails.
	Admitted *bool `json:"admitted,omitempty"`
}

// =============================================================================
// TRIGGERS
// =============================================================================

func (a *App) newRouteCommand() *cobra.Command {
	var (
		images    int
		userAgent string
		admit     bool
		apiKey    string
	)
	cmd := &cobra.Command{
		Use:   "route [text...]",
		Short: "Route one outgoing message",
		Long: `Run the before-send trigger for a message and print the provider and
model it should go to. Use "-" to read the message from stdin.`,
		Example: `  astro route "refactor this function"
  astro route --images 1 "what is in this screenshot?"
  echo "hello" | astro route -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if images < 0 {
				return NewValidationError("images", fmt.Sprint(images), "must not be negative")
			}
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}

			rt, err := a.Router(cmd.Context())
			if err != nil {
				return err
			}
			out := rt.BeforeSend(cmd.Context(), router.MessageInput{
				Text:             text,
				ImageAttachments: images,
				UserAgent:        userAgent,
			})
			report := RouteReport{Outcome: out}

			if admit && out.Decision != nil {
				key := apiKey
				if key == "" {
					if p, ok := a.cfg.Provider(out.Decision.Provider); ok {
						key = p.APIKey
					}
				}
				g := guard.NewRateGuard(a.cfg.Guard.OpenRouterRPMLimit)
				if err := g.Admit(out.Decision.Provider, out.Decision.Model, key); err != nil {
					return fmt.Errorf("%s: %w", out.Decision, err)
				}
				admitted := true
				report.Admitted = &admitted
			}
			return a.emit(cmd, report, func(w io.Writer) {
				printOutcome(w, out)
				if report.Admitted != nil {
					fmt.Fprintf(w, "  %s%s\n", RenderLabel("Guardrails"), SuccessStyle.Render("admitted"))
				}
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&images, "images", 0, "number of attached images")
	f.StringVar(&userAgent, "user-agent", "", "client user agent (mobile agents get the mobile list)")
	f.BoolVar(&admit, "admit", false, "also run the OpenRouter allowlist and rate guard")
	f.StringVar(&apiKey, "api-key", "", "API key for --admit (default: the provider's configured key)")
	return cmd
}

func (a *App) newSessionStartCommand() *cobra.Command {
	var userAgent string
	cmd := &cobra.Command{
		Use:   "session-start",
		Short: "Run the session-start trigger",
		Long: `Resume the saved selection or pick one for the cached hardware tier.
Nothing changes when the selection is locked or no profile is cached.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.Router(cmd.Context())
			if err != nil {
				return err
			}
			out := rt.SessionStart(cmd.Context(), router.SessionInput{UserAgent: userAgent})
			return a.emit(cmd, out, func(w io.Writer) { printOutcome(w, out) })
		},
	}
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "client user agent")
	return cmd
}

// =============================================================================
// USER ACTIONS
// =============================================================================

func (a *App) newLockCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "lock <provider> <model>",
		Short:   "Lock routing to a provider and model",
		Example: `  astro lock OpenAI gpt-4o`,
		Args:    usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.Router(cmd.Context())
			if err != nil {
				return err
			}
			state, err := rt.Pin(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.emit(cmd, state, func(w io.Writer) {
				fmt.Fprintf(w, "%s Locked to %s/%s\n", RenderStatus("ok"), state.Provider, state.Model)
				printState(w, state)
			})
		},
	}
}

func (a *App) newUnlockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Return to automatic routing",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.Router(cmd.Context())
			if err != nil {
				return err
			}
			state, err := rt.Unpin(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd, state, func(w io.Writer) {
				fmt.Fprintf(w, "%s Automatic routing enabled\n", RenderStatus("ok"))
				printState(w, state)
			})
		},
	}
}

func (a *App) newModeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mode <local|cloud>",
		Short: "Switch between local and cloud providers",
		Long: `Switch the access mode. Cloud locks the selection to the preferred cloud
provider; local returns to automatic routing.`,
		Args:      usageArgs(cobra.ExactArgs(1)),
		ValidArgs: []string{"local", "cloud"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := storage.ParseAccessMode(args[0])
			if err != nil || args[0] == "" {
				return NewValidationErrorWithExample("mode", args[0], "must be local or cloud", "astro mode cloud")
			}
			rt, err := a.Router(cmd.Context())
			if err != nil {
				return err
			}
			out, err := rt.SwitchAccess(cmd.Context(), mode)
			if err != nil {
				return err
			}
			return a.emit(cmd, out, func(w io.Writer) { printOutcome(w, out) })
		},
	}
}

// =============================================================================
// INSPECTION
// =============================================================================

func (a *App) newModelsCommand() *cobra.Command {
	var (
		localOnly bool
		cloudOnly bool
		provider  string
	)
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models every configured provider serves",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if localOnly && cloudOnly {
				return NewValidationError("flags", "--local --cloud", "choose at most one")
			}
			rt, err := a.Router(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := rt.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			snap = filterSnapshot(snap, func(p catalog.Provider) bool {
				switch {
				case provider != "" && !strings.EqualFold(p.Name, provider):
					return false
				case localOnly:
					return p.Local
				case cloudOnly:
					return !p.Local
				}
				return true
			})
			if provider != "" && len(snap.Providers) == 0 {
				return &NotFoundError{Resource: "provider", ID: provider}
			}
			var hints []string
			if st, err := a.Store(); err == nil {
				if tier, err := storage.LoadTier(cmd.Context(), st); err == nil {
					rec := detect.Recommend(tier)
					hints = append(append(append(hints, rec.ModelHints...), rec.SecondaryHints...), rec.VisionHints...)
				}
			}
			return a.emit(cmd, snap, func(w io.Writer) { printCatalog(w, snap, hints) })
		},
	}
	f := cmd.Flags()
	f.BoolVar(&localOnly, "local", false, "only local providers")
	f.BoolVar(&cloudOnly, "cloud", false, "only cloud providers")
	f.StringVar(&provider, "provider", "", "only this provider")
	return cmd
}

// StatusReport is the output of the status command.
type StatusReport struct {
	router.Status
	ConfigPath  string `json:"config_path"`
	StoreDriver string `json:"store_driver"`
	StorePath   string `json:"store_path,omitempty"`
}

func (a *App) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved selection, tier and catalog summary",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.Router(cmd.Context())
			if err != nil {
				return err
			}
			st, err := rt.Status(cmd.Context())
			if err != nil {
				return err
			}
			report := StatusReport{Status: st, StoreDriver: a.cfg.Storage.Driver}
			report.ConfigPath, _ = a.configPath()
			if a.cfg.Storage.Driver != storage.DriverMemory {
				report.StorePath, _ = a.cfg.StoragePath()
			}
			return a.emit(cmd, report, func(w io.Writer) { printStatus(w, report) })
		},
	}
}

func filterSnapshot(snap catalog.Snapshot, keep func(catalog.Provider) bool) catalog.Snapshot {
	out := catalog.Snapshot{Providers: []catalog.Provider{}, Entries: []catalog.Entry{}}
	for _, p := range snap.Providers {
		if keep(p) {
			out.Providers = append(out.Providers, p)
		}
	}
	for _, e := range snap.Entries {
		if _, ok := out.Provider(e.Provider); ok {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// =============================================================================
// RENDERING
// =============================================================================

func printOutcome(w io.Writer, out router.Outcome) {
	if out.Decision != nil {
		fmt.Fprintf(w, "%s %s %s\n", RenderStatus("ok"), HighlightStyle.Render(out.Decision.String()), DimStyle.Render("("+string(out.Reason)+")"))
	} else {
		fmt.Fprintf(w, "%s %s\n", RenderStatus("no-op"), string(out.Reason))
	}
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Access"), out.Access)
	if sel := out.Selection; sel != nil {
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("Tier"), RenderTier(sel.Tier))
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("List"), sel.Kind)
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("Candidates"), summarizeList(sel.Candidates, maxListedCandidates))
	}
}

func printState(w io.Writer, state storage.RoutingState) {
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Selection"), state.Mode)
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Access"), state.Access)
	if state.HasSelection() {
		fmt.Fprintf(w, "  %s%s/%s\n", RenderLabel("Active"), state.Provider, state.Model)
	}
}

// printCatalog lists every provider's models. Models matching hints, the
// cached tier's recommendations, are starred.
func printCatalog(w io.Writer, snap catalog.Snapshot, hints []string) {
	if len(snap.Providers) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No providers available."))
		return
	}
	width := GetTerminalWidth() - 6
	for _, p := range snap.Providers {
		partition := "cloud"
		if p.Local {
			partition = "local"
		}
		models := snap.Models(p.Name)
		fmt.Fprintf(w, "%s %s\n", SectionStyle.Render(p.Name), DimStyle.Render(fmt.Sprintf("(%s, %d models)", partition, len(models))))
		for _, m := range models {
			name := util.TruncateWidth(m, width)
			if detect.MatchesHints(m, hints) {
				fmt.Fprintf(w, "  %s %s\n", HighlightStyle.Render("*"), HighlightStyle.Render(name))
				continue
			}
			fmt.Fprintf(w, "    %s\n", name)
		}
	}
}

func printStatus(w io.Writer, r StatusReport) {
	title := TitleStyle.Render("Router status")
	if ind := offline.StatusIndicator(); ind != "" {
		title += " " + WarningStyle.Render(ind)
	}
	fmt.Fprintln(w, title)
	printState(w, r.State)
	if r.Tier != nil {
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("Tier"), RenderTier(*r.Tier))
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("Hardware"), r.Profile.String())
	} else {
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("Tier"), DimStyle.Render("no profile cached (run 'astro probe')"))
	}
	local := "off"
	if r.LocalOnly {
		local = WarningStyle.Render("on")
	}
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Local-only"), local)

	fmt.Fprintln(w, SectionStyle.Render("Catalog"))
	if r.CatalogError != "" {
		fmt.Fprintf(w, "  %s %s\n", RenderStatus("error"), r.CatalogError)
	} else {
		names := make([]string, 0, len(r.Providers))
		for _, p := range r.Providers {
			names = append(names, p.Name)
		}
		fmt.Fprintf(w, "  %s%s\n", RenderLabel("Providers"), strings.Join(names, ", "))
		fmt.Fprintf(w, "  %s%d\n", RenderLabel("Models"), r.Models)
	}

	fmt.Fprintln(w, SectionStyle.Render("Files"))
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Config"), r.ConfigPath)
	store := r.StoreDriver
	if r.StorePath != "" {
		store += " " + r.StorePath
	}
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Store"), store)
	fmt.Fprintf(w, "  %s%s\n", RenderLabel("Session"), DimStyle.Render(r.SessionID))
}

func summarizeList(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s %s", strings.Join(items[:limit], ", "), DimStyle.Render(fmt.Sprintf("and %d more", len(items)-limit)))
}
