package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/studiowebux/keyclash/internal/apps"
	"github.com/studiowebux/keyclash/internal/config"
	"github.com/studiowebux/keyclash/internal/conflict"
	"github.com/studiowebux/keyclash/internal/eventbus"
	"github.com/studiowebux/keyclash/internal/extract"
	"github.com/studiowebux/keyclash/internal/filter"
	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/logging"
	"github.com/studiowebux/keyclash/internal/pipeline"
	"github.com/studiowebux/keyclash/internal/remap"
	"github.com/studiowebux/keyclash/internal/safego"
	"github.com/studiowebux/keyclash/internal/types"
	"github.com/studiowebux/keyclash/internal/version"
)

// Version is set at build time
var Version = "0.1.0"

type rootOptions struct {
	home   string
	format string
	filter string
	query  string
}

func (o *rootOptions) output(cmd *cobra.Command) Output {
	return Output{Format: o.format, Filter: o.filter, Query: o.query, W: cmd.OutOrStdout()}
}

// withApp opens the services, runs fn and closes them. A close failure is
// reported when fn succeeded.
func (o *rootOptions) withApp(fn func(a *App) error) (err error) {
	a, err := Open(o.home)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if o.filter, err = a.Queries.Expand(o.filter); err != nil {
		return err
	}
	if o.query, err = a.Queries.Expand(o.query); err != nil {
		return err
	}
	return fn(a)
}

// NewRootCommand builds the keyclash command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "keyclash",
		Short: "Find and fix keyboard shortcut conflicts",
		Long: `keyclash detects keyboard shortcuts that collide across applications and
with the system, suggests free alternatives and manages per-application
remapping rules.

Examples:
  keyclash conflicts slack.json chrome.yaml     # Detect conflicts
  keyclash suggest ⌘K --owner Slack -s all.json  # Free alternatives for ⌘K
  keyclash remap add ⌘K ⌥⌘K --owner Slack       # Remap inside Slack
  keyclash usage summary --window week          # Usage statistics
  keyclash serve --addr :7878                   # Stream events over websocket`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.home, "home", "", "Configuration directory (default ~/.keyclash or $KEYCLASH_HOME)")
	root.PersistentFlags().StringVarP(&opts.format, "output", "o", "text", "Output format (text/json/yaml)")
	root.PersistentFlags().StringVar(&opts.filter, "filter", "", "JMESPath filter applied to structured output (@<id> for a saved query)")
	root.PersistentFlags().StringVarP(&opts.query, "query", "q", "", "JMESPath query applied to structured output (@<id> for a saved query)")

	root.AddCommand(
		newConflictsCommand(opts),
		newResolveCommand(opts),
		newResolutionsCommand(opts),
		newSuggestCommand(opts),
		newRemapCommand(opts),
		newUsageCommand(opts),
		newCacheCommand(opts),
		newAppsCommand(opts),
		newReplayCommand(opts),
		newServeCommand(opts),
		newSettingsCommand(opts),
		newQueriesCommand(opts),
		newValidateCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newConflictsCommand(opts *rootOptions) *cobra.Command {
	var (
		minSeverity string
		typeNames   []string
		owners      []string
		all         bool
		cached      bool
		explain     bool
	)

	cmd := &cobra.Command{
		Use:   "conflicts [shortcut files...]",
		Short: "Detect shortcut conflicts",
		Long: `Detect conflicts between the shortcuts in the given .json, .jsonc or .yaml
files (and the cache with --cached). Built-in system shortcuts are added
unless the input already lists "System" entries. Resolved conflicts are
hidden unless --all is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := filter.Criteria{Owners: owners}
			if minSeverity != "" {
				s, err := types.ParseSeverity(minSeverity)
				if err != nil {
					return err
				}
				criteria.MinSeverity = s
			}
			for _, t := range typeNames {
				criteria.Types = append(criteria.Types, types.ConflictType(t))
			}

			return opts.withApp(func(a *App) error {
				shortcuts, err := loadShortcutFiles(args)
				if err != nil {
					return err
				}
				if cached {
					shortcuts = append(shortcuts, a.CachedShortcuts()...)
				}
				if len(shortcuts) == 0 {
					return fmt.Errorf("no shortcuts given (pass files or --cached)")
				}
				shortcuts = withSystemShortcuts(shortcuts)

				conflicts := a.Detector.DetectAll(shortcuts)
				if !all {
					open := conflicts[:0]
					for _, c := range conflicts {
						if !a.Resolver.IsResolved(c.ID) {
							open = append(open, c)
						}
					}
					conflicts = open
				}
				conflicts = filter.FilterConflicts(conflicts, criteria)

				out := opts.output(cmd)
				if explain {
					existing := keybinds.NewIndex(shortcuts).Combinations()
					analyses := make([]conflict.Analysis, 0, len(conflicts))
					for _, c := range conflicts {
						s, _ := findShortcut(shortcuts, c.ShortcutID)
						analyses = append(analyses, a.Analyzer.Analyze(c, s, existing))
					}
					return out.Print(analyses, func(w io.Writer) {
						for _, an := range analyses {
							fmt.Fprintf(w, "%s %s\n", severityStyle(an.Severity).Render(an.Severity.String()), an.Conflict.ID)
							fmt.Fprintf(w, "  %s\n", an.Explanation)
							for _, r := range an.Remediation {
								fmt.Fprintf(w, "  - %s\n", r)
							}
						}
					})
				}

				return out.Print(conflicts, func(w io.Writer) {
					printConflicts(w, conflicts, a.Resolver.IsResolved)
					summary := conflict.Summarize(conflicts)
					if summary.Total > 0 {
						fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("high %d, medium %d, low %d",
							summary.BySeverity[types.SeverityHigh],
							summary.BySeverity[types.SeverityMedium],
							summary.BySeverity[types.SeverityLow])))
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&minSeverity, "severity", "", "Minimum severity (low/medium/high)")
	cmd.Flags().StringSliceVar(&typeNames, "type", nil, "Conflict types to show (system/application/global)")
	cmd.Flags().StringSliceVar(&owners, "owner", nil, "Only conflicts involving these owners")
	cmd.Flags().BoolVar(&all, "all", false, "Include resolved conflicts")
	cmd.Flags().BoolVar(&cached, "cached", false, "Include cached shortcuts")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show explanations and remediation")
	return cmd
}

func newResolveCommand(opts *rootOptions) *cobra.Command {
	var (
		files    []string
		strategy string
		details  string
		to       string
	)

	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Record how a conflict was handled",
		Long: `Record a resolution for a conflict found in the given shortcut files.
With --strategy remap and --to, a remapping rule is added for the
conflicting shortcut's owner as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := conflict.ParseStrategy(strategy)
			if err != nil {
				return err
			}

			return opts.withApp(func(a *App) error {
				shortcuts, err := loadShortcutFiles(files)
				if err != nil {
					return err
				}
				shortcuts = withSystemShortcuts(append(shortcuts, a.CachedShortcuts()...))

				var target *types.ConflictInfo
				for _, c := range a.Detector.DetectAll(shortcuts) {
					if c.ID == args[0] {
						target = &c
						break
					}
				}
				if target == nil {
					return fmt.Errorf("conflict %q not found", args[0])
				}

				if s == conflict.StrategyRemap && to != "" {
					sc, ok := findShortcut(shortcuts, target.ShortcutID)
					if !ok {
						return fmt.Errorf("shortcut %q not found", target.ShortcutID)
					}
					rule, err := a.Remaps.Add(sc.KeyCombination, to, sc.Owner)
					if err != nil {
						return err
					}
					if details == "" {
						details = fmt.Sprintf("%s -> %s", rule.FromKey, rule.ToKey)
					}
					if err := a.Remaps.Flush(); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("Warning: "+err.Error()))
					}
				}

				res, err := a.Resolver.Resolve(*target, s, details)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("Warning: "+err.Error()))
				}
				return opts.output(cmd).Print(res, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s (%s)\n", successStyle.Render("Resolved"), res.ConflictID, res.Strategy)
				})
			})
		},
	}

	cmd.Flags().StringSliceVarP(&files, "shortcuts", "s", nil, "Shortcut files the conflict was detected in")
	cmd.Flags().StringVar(&strategy, "strategy", string(conflict.StrategyIgnore), "disable/ignore/manual/remap")
	cmd.Flags().StringVar(&details, "details", "", "Free-form note")
	cmd.Flags().StringVar(&to, "to", "", "Replacement combination for --strategy remap")
	return cmd
}

func newResolutionsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolutions",
		Short: "List or clear recorded resolutions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded resolutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				records := a.Resolver.Records()
				return opts.output(cmd).Print(records, func(w io.Writer) {
					if len(records) == 0 {
						fmt.Fprintln(w, mutedStyle.Render("No resolutions"))
						return
					}
					for _, r := range records {
						fmt.Fprintf(w, "%-10s %s %s\n", r.Strategy, r.ConflictID,
							mutedStyle.Render(r.Timestamp.Format("2006-01-02 15:04")))
					}
					stats := a.Resolver.Stats()
					fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d recorded, %d resolved", stats.Total, stats.Resolved)))
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [conflict-id]",
		Short: "Forget one or every resolution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				if len(args) == 1 {
					return a.Resolver.Clear(args[0])
				}
				return a.Resolver.ClearAll()
			})
		},
	})
	return cmd
}

func newSuggestCommand(opts *rootOptions) *cobra.Command {
	var (
		owner  string
		files  []string
		cached bool
	)

	cmd := &cobra.Command{
		Use:   "suggest <combination>",
		Short: "Suggest free alternatives for a combination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			combo, err := keybinds.Parse(args[0])
			if err != nil {
				return err
			}

			return opts.withApp(func(a *App) error {
				shortcuts, err := loadShortcutFiles(files)
				if err != nil {
					return err
				}
				if cached {
					shortcuts = append(shortcuts, a.CachedShortcuts()...)
				}
				existing := keybinds.NewIndex(shortcuts).Combinations()

				s := types.ShortcutInfo{KeyCombination: combo.String(), Owner: owner}
				suggestions := a.Analyzer.SuggestAlternatives(s, existing)
				if suggestions == nil {
					suggestions = []string{}
				}
				return opts.output(cmd).Print(suggestions, func(w io.Writer) {
					if len(suggestions) == 0 {
						fmt.Fprintln(w, warningStyle.Render("No free alternative found"))
						return
					}
					for _, sug := range suggestions {
						fmt.Fprintln(w, comboStyle.Render(sug))
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Application the shortcut belongs to")
	cmd.Flags().StringSliceVarP(&files, "shortcuts", "s", nil, "Shortcut files whose combinations are taken")
	cmd.Flags().BoolVar(&cached, "cached", false, "Treat cached shortcuts as taken")
	return cmd
}

func newRemapCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remap",
		Short: "Manage per-application remapping rules",
	}

	var owner string
	addCmd := &cobra.Command{
		Use:   "add <from> <to>",
		Short: "Add or replace a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				rule, err := a.Remaps.Add(args[0], args[1], owner)
				if err != nil {
					return err
				}
				if err := a.Remaps.Flush(); err != nil {
					return err
				}
				return opts.output(cmd).Print(rule, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s -> %s in %s\n", successStyle.Render("Added"),
						comboStyle.Render(rule.FromKey), comboStyle.Render(rule.ToKey), rule.Owner)
				})
			})
		},
	}
	addCmd.Flags().StringVar(&owner, "owner", "", "Application the rule applies to")
	_ = addCmd.MarkFlagRequired("owner")

	var removeOwner string
	removeCmd := &cobra.Command{
		Use:   "remove <from>",
		Short: "Remove a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				if !a.Remaps.Remove(args[0], removeOwner) {
					return fmt.Errorf("no rule for %s in %s", args[0], removeOwner)
				}
				return a.Remaps.Flush()
			})
		},
	}
	removeCmd.Flags().StringVar(&removeOwner, "owner", "", "Application the rule applies to")
	_ = removeCmd.MarkFlagRequired("owner")

	var listOwner string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				rules := a.Remaps.Engine().Rules()
				if listOwner != "" {
					rules = a.Remaps.Engine().RulesFor(listOwner)
				}
				if rules == nil {
					rules = []types.RemappingRule{}
				}
				return opts.output(cmd).Print(rules, func(w io.Writer) { printRules(w, rules) })
			})
		},
	}
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Only rules of this application")

	var (
		clearOwner string
		yes        bool
	)
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the rules of one application, or all rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearOwner == "" && !yes && !confirm(cmd.InOrStdin(), "Remove every remapping rule?") {
				return fmt.Errorf("cancelled (use --yes to skip confirmation)")
			}
			return opts.withApp(func(a *App) error {
				var n int
				if clearOwner != "" {
					n = a.Remaps.ClearOwner(clearOwner)
				} else {
					n = a.Remaps.ClearAll()
				}
				if err := a.Remaps.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d rule(s)\n", n)
				return nil
			})
		},
	}
	clearCmd.Flags().StringVar(&clearOwner, "owner", "", "Only rules of this application")
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	var (
		exportFormat    string
		exportFile      string
		exportClipboard bool
	)
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export rules as JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := remap.ParseFormat(exportFormat)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *App) error {
				data, err := remap.EncodeDocument(a.Remaps.Export(), format)
				if err != nil {
					return err
				}
				switch {
				case exportClipboard:
					if err := clipboard.WriteAll(string(data)); err != nil {
						return fmt.Errorf("failed to write clipboard: %w", err)
					}
					fmt.Fprintln(cmd.ErrOrStderr(), "Rules copied to clipboard")
				case exportFile != "":
					if err := os.WriteFile(exportFile, data, 0644); err != nil {
						return fmt.Errorf("failed to write %s: %w", exportFile, err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Rules exported to %s\n", exportFile)
				default:
					fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n"))
				}
				return nil
			})
		},
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Document format (json/yaml)")
	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "Write to file instead of stdout")
	exportCmd.Flags().BoolVar(&exportClipboard, "clipboard", false, "Copy to the clipboard")

	var (
		importMode      string
		importClipboard bool
		importYes       bool
	)
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import rules; invalid rules are skipped and reported",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := remap.ParseImportMode(importMode)
			if err != nil {
				return err
			}

			var data []byte
			if importClipboard {
				text, err := clipboard.ReadAll()
				if err != nil {
					return fmt.Errorf("failed to read clipboard: %w", err)
				}
				data = []byte(text)
			} else {
				path := ""
				if len(args) == 1 {
					path = args[0]
				}
				if data, err = readInput(path); err != nil {
					return err
				}
			}

			doc, err := remap.DecodeDocument(data)
			if err != nil {
				return err
			}
			if mode == remap.ImportReplace && !importYes && !confirm(cmd.InOrStdin(), "Replace every existing rule?") {
				return fmt.Errorf("cancelled (use --yes to skip confirmation)")
			}

			return opts.withApp(func(a *App) error {
				result := a.Remaps.Import(doc, mode)
				if err := a.Remaps.Flush(); err != nil {
					return err
				}
				return opts.output(cmd).Print(result, func(w io.Writer) {
					fmt.Fprintf(w, "%s %d rule(s)\n", successStyle.Render("Imported"), result.Imported)
					for _, r := range result.Rejected {
						fmt.Fprintf(w, "%s %s -> %s in %s: %s\n", warningStyle.Render("Skipped"),
							r.Rule.FromKey, r.Rule.ToKey, r.Rule.Owner, r.Reason)
					}
				})
			})
		},
	}
	importCmd.Flags().StringVar(&importMode, "mode", string(remap.ImportMerge), "merge or replace")
	importCmd.Flags().BoolVar(&importClipboard, "clipboard", false, "Read the document from the clipboard")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "Do not ask for confirmation")

	cmd.AddCommand(addCmd, removeCmd, listCmd, clearCmd, exportCmd, importCmd)
	return cmd
}

func newUsageCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Shortcut usage statistics",
	}

	var window string
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize usage over a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := types.ParseUsageWindow(window)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *App) error {
				summary, err := a.Usage.Summarize(w)
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(summary, func(out io.Writer) { printSummary(out, summary) })
			})
		},
	}
	summaryCmd.Flags().StringVarP(&window, "window", "w", string(types.WindowWeek), "today/week/month/all")

	var days int
	trendCmd := &cobra.Command{
		Use:   "trend",
		Short: "Daily usage for the last days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			return opts.withApp(func(a *App) error {
				now := time.Now()
				points, err := a.Usage.Trend(now.AddDate(0, 0, -(days - 1)), now)
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(points, func(w io.Writer) { printTrend(w, points) })
			})
		},
	}
	trendCmd.Flags().IntVarP(&days, "days", "d", 14, "Number of days")

	var olderThan int
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete usage records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				if olderThan > 0 {
					n, err := a.Usage.ClearOlderThan(time.Now().AddDate(0, 0, -olderThan))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s)\n", n)
					return nil
				}
				return a.Usage.Clear()
			})
		},
	}
	clearCmd.Flags().IntVar(&olderThan, "older-than-days", 0, "Only records older than this many days")

	cmd.AddCommand(summaryCmd, trendCmd, clearCmd)
	return cmd
}

func newCacheCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the shortcut cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				counts := a.ShortcutCounts()
				return opts.output(cmd).Print(counts, func(w io.Writer) {
					if len(counts) == 0 {
						fmt.Fprintln(w, mutedStyle.Render("Cache is empty"))
						return
					}
					owners := make([]string, 0, len(counts))
					for o := range counts {
						owners = append(owners, o)
					}
					sort.Strings(owners)
					for _, o := range owners {
						fmt.Fprintf(w, "%-40s %d\n", o, counts[o])
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [owner]",
		Short: "Invalidate one application or the whole cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				if len(args) == 1 {
					return a.Cache.Invalidate(args[0])
				}
				return a.Cache.InvalidateAll()
			})
		},
	})

	var (
		dir     string
		refresh bool
	)
	extractCmd := &cobra.Command{
		Use:   "extract [app ids...]",
		Short: "Extract shortcuts from exported files into the cache",
		Long: `Load per-application shortcut files (<app id>.json/.jsonc/.yaml) from --dir
into the cache. Without ids every file in the directory is used. Fresh
cache entries are kept unless --refresh is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ex := extract.DirExtractor{Dir: dir}
			ids := args
			if len(ids) == 0 {
				var err error
				if ids, err = ex.AppIDs(); err != nil {
					return err
				}
			}

			return opts.withApp(func(a *App) error {
				runner := extract.NewRunner(ex, a.Cache, a.Settings)
				var results []extract.Result
				if refresh {
					for _, id := range ids {
						results = append(results, runner.Refresh(cmd.Context(), id))
					}
				} else {
					results = runner.ExtractAll(cmd.Context(), ids)
				}

				return opts.output(cmd).Print(results, func(w io.Writer) {
					for _, r := range results {
						status := successStyle.Render("extracted")
						switch {
						case r.Cached:
							status = mutedStyle.Render("cached")
						case r.Err != nil:
							status = errorStyle.Render("failed")
						case len(r.Shortcuts) == 0:
							status = warningStyle.Render("empty")
						}
						fmt.Fprintf(w, "%-40s %-10s %d\n", r.AppID, status, len(r.Shortcuts))
					}
				})
			})
		},
	}
	extractCmd.Flags().StringVar(&dir, "dir", ".", "Directory holding exported shortcut files")
	extractCmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore fresh cache entries")
	cmd.AddCommand(extractCmd)

	return cmd
}

func newAppsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Background applications worth checking for conflicts",
	}

	var (
		candidatesFile string
		search         string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List background applications among running candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := apps.LoadCandidates(candidatesFile)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *App) error {
				marked, err := apps.LoadMarks(a.Store)
				if err != nil {
					logging.WarningLog.Printf("ignoring marked apps: %v", err)
				}
				a.Apps.Recompute(candidates, a.ShortcutCounts(), marked)
				list := a.Apps.Search(search)
				return opts.output(cmd).Print(list, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, mutedStyle.Render("No background applications"))
						return
					}
					for _, app := range list {
						mark := ""
						if app.IsUserMarked {
							mark = successStyle.Render(" *")
						}
						fmt.Fprintf(w, "%-24s %-40s %d%s\n", app.Name, mutedStyle.Render(app.ID), app.ShortcutCount, mark)
					}
				})
			})
		},
	}
	listCmd.Flags().StringVar(&candidatesFile, "candidates", "", "File listing running applications (id, name, activationClass)")
	listCmd.Flags().StringVar(&search, "search", "", "Fuzzy filter on application names")
	_ = listCmd.MarkFlagRequired("candidates")

	markCmd := &cobra.Command{
		Use:   "mark <app id>",
		Short: "Mark an application as background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				a.Apps.Mark(args[0])
				return apps.SaveMarks(a.Store, a.Apps)
			})
		},
	}
	unmarkCmd := &cobra.Command{
		Use:   "unmark <app id>",
		Short: "Remove the background mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				a.Apps.Unmark(args[0])
				return apps.SaveMarks(a.Store, a.Apps)
			})
		},
	}

	cmd.AddCommand(listCmd, markCmd, unmarkCmd)
	return cmd
}

// ReplayReport summarizes a replayed event stream
type ReplayReport struct {
	Stats        pipeline.Stats           `json:"stats"`
	Replacements []ReplayReplacement      `json:"replacements"`
	Gestures     []string                 `json:"gestures"`
	Conflicts    []eventbus.ConflictFound `json:"conflicts"`
}

// ReplayReplacement is one swallowed event and what to inject instead
type ReplayReplacement struct {
	At string `json:"at"`
	To string `json:"to"`
}

func newReplayCommand(opts *rootOptions) *cobra.Command {
	var (
		appID string
		files []string
	)

	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Feed a recorded key event stream through the ingestion pipeline",
		Long: `Replay a JSON-lines recording of key transitions, one event per line:
  {"keyCode": 55, "modifiers": 8, "down": true, "ms": 0}
  {"combo": "⌘K", "down": true, "ms": 420}
Remapping rules of --app are applied, gestures and real-time conflicts are
reported and usage is recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			start := time.Now()
			events, err := pipeline.ReadEvents(f, start)
			if err != nil {
				return err
			}

			return opts.withApp(func(a *App) error {
				shortcuts, err := loadShortcutFiles(files)
				if err != nil {
					return err
				}
				shortcuts = withSystemShortcuts(append(shortcuts, a.CachedShortcuts()...))

				sub := a.Bus.SubscribeBuffered(len(events)+1, eventbus.TopicGestureDetected, eventbus.TopicConflictFound)
				defer a.Bus.Unsubscribe(sub)

				p := pipeline.New(pipeline.Options{
					Settings: a.Settings,
					Engine:   a.Remaps.Engine(),
					Detector: a.Detector,
					Recorder: a.Usage,
					Bus:      a.Bus,
				})
				p.SetActiveApp(appID)
				p.SetKnownShortcuts(shortcuts)

				report := ReplayReport{
					Replacements: []ReplayReplacement{},
					Gestures:     []string{},
					Conflicts:    []eventbus.ConflictFound{},
				}
				for _, ev := range events {
					d := p.Handle(ev)
					if d.Replacement != nil {
						report.Replacements = append(report.Replacements, ReplayReplacement{
							At: ev.Timestamp.Sub(start).String(),
							To: d.Replacement.String(),
						})
					}
				}

				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				if err := p.Close(ctx); err != nil {
					return err
				}
				report.Stats = p.Stats()

			drain:
				for {
					select {
					case ev := <-sub.C():
						switch payload := ev.Payload.(type) {
						case eventbus.GestureDetected:
							report.Gestures = append(report.Gestures, payload.Modifier)
						case eventbus.ConflictFound:
							report.Conflicts = append(report.Conflicts, payload)
						}
					default:
						break drain
					}
				}

				return opts.output(cmd).Print(report, func(w io.Writer) {
					fmt.Fprintf(w, "%d event(s), %d remapped, %d gesture(s), %d conflict(s)\n",
						report.Stats.Handled, report.Stats.Remapped, len(report.Gestures), len(report.Conflicts))
					for _, r := range report.Replacements {
						fmt.Fprintf(w, "  %s inject %s\n", mutedStyle.Render(r.At), comboStyle.Render(r.To))
					}
					for _, c := range report.Conflicts {
						fmt.Fprintf(w, "  %s %s used in %s\n", warningStyle.Render("conflict"), comboStyle.Render(c.Combination), c.Owner)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&appID, "app", "", "Active application while replaying")
	cmd.Flags().StringSliceVarP(&files, "shortcuts", "s", nil, "Known shortcut files for real-time conflict checks")
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		addr string
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream core events to websocket clients",
		Long: `Serve bus events as JSON frames on ws://<addr>/events (filter with
?topic=conflict.found). Settings are reloaded when the settings file changes.
With --dir, exported shortcut files are extracted into the cache at start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				safego.Go("settings-watch", func() {
					if err := a.Settings.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logging.WarningLog.Printf("settings watch stopped: %v", err)
					}
				})

				if dir != "" {
					ex := extract.DirExtractor{Dir: dir}
					runner := extract.NewRunner(ex, a.Cache, a.Settings)
					safego.Go("initial-extract", func() {
						ids, err := ex.AppIDs()
						if err != nil {
							logging.WarningLog.Printf("failed to list %s: %v", dir, err)
							return
						}
						runner.ExtractAll(ctx, ids)
					})
				}

				mux := http.NewServeMux()
				mux.Handle("/events", eventbus.NewBridge(a.Bus))
				mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write([]byte("ok"))
				})

				server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
				errCh := make(chan error, 1)
				safego.Go("http-server", func() {
					errCh <- server.ListenAndServe()
				})
				fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)
				logging.InfoLog.Printf("serving events on %s", addr)

				select {
				case err := <-errCh:
					if !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7878", "Listen address")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of exported shortcut files to extract at start")
	return cmd
}

func newSettingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the active settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				settings := a.Settings.Current()
				if opts.output(cmd).Structured() {
					return opts.output(cmd).Print(settings, nil)
				}
				data, err := settings.Marshal()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s", mutedStyle.Render("# "+a.Paths.SettingsFile), data)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting and write the settings file. Keys:
  double_press_threshold_seconds, cache_ttl_hours, cache_capacity,
  usage_tracking_enabled, extraction_concurrency, extraction_timeout_seconds`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				settings, err := applySetting(a.Settings.Current(), args[0], args[1])
				if err != nil {
					return err
				}
				return a.Settings.Save(settings)
			})
		},
	})
	return cmd
}

func applySetting(s config.Settings, key, value string) (config.Settings, error) {
	var err error
	switch key {
	case "double_press_threshold_seconds":
		s.DoublePressThresholdSeconds, err = strconv.ParseFloat(value, 64)
	case "cache_ttl_hours":
		s.CacheTTLHours, err = strconv.ParseFloat(value, 64)
	case "cache_capacity":
		s.CacheCapacity, err = strconv.Atoi(value)
	case "usage_tracking_enabled":
		s.UsageTrackingEnabled, err = strconv.ParseBool(value)
	case "extraction_concurrency":
		s.ExtractionConcurrency, err = strconv.Atoi(value)
	case "extraction_timeout_seconds":
		s.ExtractionTimeoutSeconds, err = strconv.ParseFloat(value, 64)
	default:
		return s, fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return s, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return s, nil
}

func newQueriesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Saved --filter and --query expressions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved expressions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				saved, err := a.Queries.List()
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(saved, func(w io.Writer) {
					for _, s := range saved {
						fmt.Fprintf(w, "@%-4d %s\n", s.ID, s.Expression)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save <expression>",
		Short: "Save an expression for reuse as @<id>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				id, created, err := a.Queries.Save(args[0])
				if err != nil {
					return err
				}
				if !created {
					fmt.Fprintf(cmd.OutOrStdout(), "Already saved as @%d\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved as @%d\n", id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(strings.TrimPrefix(args[0], "@"))
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return opts.withApp(func(a *App) error {
				return a.Queries.Delete(id)
			})
		},
	})
	return cmd
}

func newVersionCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version, optionally checking for a newer release",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "keyclash %s\n", Version)
			if !check {
				return nil
			}

			update, err := version.NewChecker().Check(cmd.Context(), Version)
			if err != nil {
				return fmt.Errorf("update check failed: %w", err)
			}
			if update.Available {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is available: %s\n", successStyle.Render("Update:"), update.Latest, update.URL)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Up to date"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <shortcut files...>",
		Short: "Check shortcut files for malformed entries",
		Long: `Report malformed shortcuts (missing id, owner or combination) as errors and
duplicate ids, unknown keys and unmodified keys as warnings. Entries with
errors are skipped by every other command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shortcuts, err := loadShortcutFiles(args)
			if err != nil {
				return err
			}
			result := keybinds.ValidateShortcuts(shortcuts)
			if err := opts.output(cmd).Print(result, func(w io.Writer) {
				fmt.Fprintln(w, result.String())
			}); err != nil {
				return err
			}
			if result.HasErrors() {
				return fmt.Errorf("%d invalid shortcut(s)", len(result.Errors))
			}
			return nil
		},
	}
}
