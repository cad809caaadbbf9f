package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/joshharrison/ganttloom/internal/claude"
	"github.com/joshharrison/ganttloom/internal/config"
	"github.com/joshharrison/ganttloom/internal/cpm"
	"github.com/joshharrison/ganttloom/internal/dates"
	"github.com/joshharrison/ganttloom/internal/logx"
	"github.com/joshharrison/ganttloom/internal/project"
	"github.com/joshharrison/ganttloom/internal/reporter"
	"github.com/joshharrison/ganttloom/internal/server"
	"github.com/joshharrison/ganttloom/internal/store"
	"github.com/joshharrison/ganttloom/internal/ui"
)

var (
	flagConfig   string
	flagJSON     bool
	flagNoColor  bool
	flagFile     string
	flagPath     string
	flagDB       string
	flagMode     string
	flagAnchor   string
	flagToday    string
	flagLogLevel string
)

// errCycle is returned after the cycle diagnostic has been printed so the
// process exits non-zero.
var errCycle = errors.New("dependency cycle")

var (
	cfg config.Config
	log zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ganttloom",
		Short: "Critical path scheduling for dependent work items",
		Long: `Ganttloom reads work items and their typed dependencies from a project
document or SQLite database, runs a critical path forward and backward pass,
and reports scheduled dates, float, the critical path and warnings.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "Project document (.json, .yaml)")
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", "", "gjson path selecting the project inside the document")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database (used instead of --file)")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "", "Schedule mode: full or cascade")
	rootCmd.PersistentFlags().StringVar(&flagAnchor, "anchor", "", "Anchor work item id for cascade mode")
	rootCmd.PersistentFlags().StringVar(&flagToday, "today", "", "Reference date YYYY-MM-DD (default: document or system date)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(criticalCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(inferDepsCmd())
	rootCmd.AddCommand(initDBCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errCycle) {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.Red("error:"), err)
		}
		os.Exit(1)
	}
}

// setup loads the config file and lets explicitly set flags override it.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(flagConfig, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	override("file", &cfg.Schedule.File, flagFile)
	override("path", &cfg.Schedule.Path, flagPath)
	override("db", &cfg.Schedule.DB, flagDB)
	override("mode", &cfg.Schedule.Mode, flagMode)
	override("log-level", &cfg.Log.Level, flagLogLevel)
	if flags.Changed("today") {
		var d dates.Date
		if err := d.UnmarshalText([]byte(flagToday)); err != nil {
			return fmt.Errorf("--today: %w", err)
		}
		cfg.Schedule.Today = &d
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if flagNoColor {
		ui.SetColor(false)
	}
	log = logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Debug().Str("config", flagConfig).Str("file", cfg.Schedule.File).Str("db", cfg.Schedule.DB).Msg("configured")
	return nil
}

// loadProject reads the project from the database when one is configured,
// otherwise from the project document.
func loadProject(ctx context.Context) (*project.Project, error) {
	if cfg.Schedule.DB != "" {
		st, err := store.Open(ctx, cfg.Schedule.DB)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		p, err := st.LoadProject(ctx)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.Schedule.DB, err)
		}
		log.Debug().Str("db", cfg.Schedule.DB).Int("items", len(p.WorkItems)).Int("deps", len(p.Dependencies)).Msg("loaded project")
		return p, nil
	}

	p, err := project.Load(cfg.Schedule.File, project.Options{Path: cfg.Schedule.Path})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", cfg.Schedule.File).Int("items", len(p.WorkItems)).Int("deps", len(p.Dependencies)).Msg("loaded project")
	return p, nil
}

// today resolves the reference date: config or flag first, then the
// document's own date, then the system date.
func today(p *project.Project) dates.Date {
	if cfg.Schedule.Today != nil {
		return *cfg.Schedule.Today
	}
	return p.TodayOr(dates.Today())
}

// buildSchedule is shared logic for the schedule, critical and viz commands.
func buildSchedule(ctx context.Context) (*reporter.Reporter, error) {
	p, err := loadProject(ctx)
	if err != nil {
		return nil, err
	}
	params := p.Params(cpm.Mode(cfg.Schedule.Mode), flagAnchor, today(p))
	result, err := cpm.Schedule(params)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	log.Debug().
		Str("mode", string(params.Mode)).
		Str("today", params.Today.String()).
		Int("scheduled", len(result.ScheduledItems)).
		Int("warnings", len(result.Warnings)).
		Bool("cycle", result.HasCycle()).
		Msg("scheduled")
	return reporter.New(params, result), nil
}

func scheduleCmd() *cobra.Command {
	var (
		flagWatch     bool
		flagSummarise bool
		flagModel     string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Compute and print the schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagWatch && cfg.Schedule.DB != "" {
				return fmt.Errorf("--watch needs a project file, not --db")
			}
			if flagModel != "" {
				cfg.Claude.Model = flagModel
			}

			if err := printSchedule(cmd.Context(), flagSummarise); err != nil && !flagWatch {
				return err
			}
			if !flagWatch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(os.Stderr, "👀 %s %s\n", ui.Dim("watching"), cfg.Schedule.File)
			return project.Watch(ctx, cfg.Schedule.File, func() {
				fmt.Println()
				if err := printSchedule(ctx, false); err != nil && !errors.Is(err, errCycle) {
					log.Error().Err(err).Msg("reschedule failed")
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "Recompute whenever the project file changes")
	cmd.Flags().BoolVar(&flagSummarise, "summarise", false, "Ask Claude for a narrative summary of the schedule")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model for --summarise")

	return cmd
}

func printSchedule(ctx context.Context, summarise bool) error {
	rpt, err := buildSchedule(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		data, err := rpt.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		rpt.PrintSchedule(os.Stdout)
	}
	if rpt.Result.HasCycle() {
		return errCycle
	}

	if summarise {
		return printSummary(ctx, rpt)
	}
	return nil
}

func printSummary(ctx context.Context, rpt *reporter.Reporter) error {
	client, err := claude.NewClient("", cfg.Claude.Model)
	if err != nil {
		return err
	}

	// The report goes to Claude without escape codes.
	colored := ui.ColorEnabled()
	ui.SetColor(false)
	var plain bytes.Buffer
	rpt.PrintSchedule(&plain)
	ui.SetColor(colored)

	fmt.Fprintf(os.Stderr, "\n🔍 %s\n", ui.Dim("Asking Claude for a summary..."))
	summary, err := client.SummariseSchedule(ctx, plain.String())
	if err != nil {
		return fmt.Errorf("summarise: %w", err)
	}
	fmt.Printf("\n💡 %s\n%s\n", ui.BoldWhite("Summary:"), summary)
	return nil
}

func criticalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "critical",
		Short: "Print the critical path and project finish date",
		RunE: func(cmd *cobra.Command, args []string) error {
			rpt, err := buildSchedule(cmd.Context())
			if err != nil {
				return err
			}

			if flagJSON {
				out := struct {
					CriticalPath  []string    `json:"criticalPath"`
					ProjectFinish *dates.Date `json:"projectFinish,omitempty"`
					CycleNodes    []string    `json:"cycleNodes,omitempty"`
				}{
					CriticalPath: rpt.Result.CriticalPath,
					CycleNodes:   rpt.Result.CycleNodes,
				}
				if finish, ok := rpt.Result.ProjectFinish(); ok {
					out.ProjectFinish = &finish
				}
				if err := outputJSON(out); err != nil {
					return err
				}
				if rpt.Result.HasCycle() {
					return errCycle
				}
				return nil
			}

			if rpt.PrintCycle(os.Stdout) {
				return errCycle
			}
			rpt.PrintCritical(os.Stdout)
			if finish, ok := rpt.Result.ProjectFinish(); ok {
				fmt.Printf("Finish:    %s\n", ui.Bold(finish))
			}
			return nil
		},
	}
}

func vizCmd() *cobra.Command {
	var (
		flagFormat string
		flagOutput string
	)

	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Render the scheduled dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			rpt, err := buildSchedule(cmd.Context())
			if err != nil {
				return err
			}

			out := os.Stdout
			if flagOutput != "" {
				f, err := os.Create(flagOutput)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			switch flagFormat {
			case "dot":
				if rpt.PrintCycle(os.Stderr) {
					return errCycle
				}
				rpt.PrintDOT(out)
			case "ascii", "":
				rpt.PrintGraph(out)
				if rpt.Result.HasCycle() {
					return errCycle
				}
			default:
				return fmt.Errorf("unknown format %q (use ascii or dot)", flagFormat)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "ascii", "Output format: ascii or dot")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func serveCmd() *cobra.Command {
	var (
		flagAddr  string
		flagRate  float64
		flagBurst int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scheduler over HTTP",
		Long: `Starts an HTTP server:

  POST /api/schedule       schedule the JSON ScheduleParams in the body
  GET  /api/schedule/last  the most recent result
  GET  /healthz            liveness`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = flagAddr
			}
			if cmd.Flags().Changed("rate") {
				cfg.Server.RatePerSec = flagRate
			}
			if cmd.Flags().Changed("burst") {
				cfg.Server.Burst = flagBurst
			}

			todayFn := dates.Today
			if t := cfg.Schedule.Today; t != nil {
				todayFn = func() dates.Date { return *t }
			}

			srv := server.New(server.Options{
				RatePerSec: cfg.Server.RatePerSec,
				Burst:      cfg.Server.Burst,
				Logger:     log,
				Today:      todayFn,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.ListenAndServe(ctx, cfg.Server.Addr, func(a net.Addr) {
				log.Info().Str("addr", a.String()).Float64("rate_per_sec", cfg.Server.RatePerSec).Msg("listening")
			})
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default from config)")
	cmd.Flags().Float64Var(&flagRate, "rate", 0, "Requests per second (0 disables limiting)")
	cmd.Flags().IntVar(&flagBurst, "burst", 0, "Rate limiter burst")

	return cmd
}

func inferDepsCmd() *cobra.Command {
	var (
		flagApply    bool
		flagModel    string
		flagOutput   string
		flagFromFile string
	)

	cmd := &cobra.Command{
		Use:   "infer-deps",
		Short: "Use Claude to infer dependencies from work item titles",
		Long: `Sends work item titles to Claude and infers typed dependency edges.
By default runs in dry-run mode. Use --apply to write the edges to the
database (with --db) or back to the project file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(ctx)
			if err != nil {
				return err
			}
			if len(p.WorkItems) == 0 {
				return fmt.Errorf("no work items found")
			}

			var result *claude.InferDepsResult
			if flagFromFile != "" {
				data, err := os.ReadFile(flagFromFile)
				if err != nil {
					return fmt.Errorf("read from-file: %w", err)
				}
				if result, err = claude.ParseInferDeps(data); err != nil {
					return fmt.Errorf("parse from-file: %w", err)
				}
				fmt.Printf("📂 Loaded %s edges from %s\n", ui.Bold(len(result.Edges)), ui.Dim(flagFromFile))
			} else {
				summaries := make([]claude.ItemSummary, len(p.WorkItems))
				for i, wi := range p.WorkItems {
					summaries[i] = claude.ItemSummary{ID: wi.ID, Title: wi.Title, Status: wi.Status, DurationDays: wi.DurationDays}
				}
				fmt.Printf("🔍 Sending %s work items to Claude for dependency inference...\n", ui.Bold(len(summaries)))

				model := cfg.Claude.Model
				if flagModel != "" {
					model = flagModel
				}
				client, err := claude.NewClient("", model)
				if err != nil {
					return err
				}
				if result, err = client.InferDeps(ctx, summaries); err != nil {
					return fmt.Errorf("infer deps: %w", err)
				}
			}

			accepted, skipped := claude.FilterEdges(result.Edges, p.WorkItems, p.Dependencies)
			for _, s := range skipped {
				fmt.Printf("  %s %s\n", ui.Yellow("⏭️  SKIP:"), s.Reason)
			}

			if flagJSON {
				out := claude.InferDepsResult{Edges: accepted, Summary: result.Summary}
				if flagOutput != "" {
					data, err := json.MarshalIndent(out, "", "  ")
					if err != nil {
						return err
					}
					if err := os.WriteFile(flagOutput, data, 0644); err != nil {
						return err
					}
					fmt.Printf("Wrote %d edges to %s\n", len(accepted), flagOutput)
					return nil
				}
				return outputJSON(out)
			}

			fmt.Printf("\n🔗 Inferred %s dependencies (%d from Claude, %d after validation):\n\n",
				ui.Bold(len(accepted)), len(result.Edges), len(accepted))
			for _, e := range accepted {
				fmt.Printf("  %s %s → %s %s  %s\n", ui.Cyan("→"),
					ui.BoldMagenta(e.PredecessorID), ui.BoldMagenta(e.SuccessorID),
					ui.Dim(string(e.Dependency().DependencyType)), ui.Dim(e.Reason))
			}
			if result.Summary != "" {
				fmt.Printf("\n💡 %s %s\n", ui.BoldWhite("Summary:"), result.Summary)
			}

			if !flagApply {
				fmt.Printf("\n🎯 %s\n", ui.Yellow("Dry run. Use --apply to write these dependencies."))
				return nil
			}
			return applyEdges(ctx, p, accepted)
		},
	}

	cmd.Flags().BoolVar(&flagApply, "apply", false, "Write inferred deps (default: dry-run)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model to use (default from config)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Save JSON output to file (use with --json)")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "Load inferred deps from a JSON file instead of calling Claude")

	return cmd
}

func applyEdges(ctx context.Context, p *project.Project, edges []claude.Edge) error {
	fmt.Printf("\n📝 Applying %s dependencies...\n", ui.Bold(len(edges)))

	if cfg.Schedule.DB == "" {
		for _, e := range edges {
			p.AddDependency(e.Dependency())
		}
		if err := p.Save(cfg.Schedule.File, project.Options{Path: cfg.Schedule.Path}); err != nil {
			return fmt.Errorf("save %s: %w", cfg.Schedule.File, err)
		}
		fmt.Printf("\n🏁 Wrote %s dependencies to %s.\n", ui.BoldGreen(len(edges)), cfg.Schedule.File)
		return nil
	}

	st, err := store.Open(ctx, cfg.Schedule.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	applied := 0
	for _, e := range edges {
		added, err := st.AddDependency(ctx, e.Dependency(), e.Reason)
		if err != nil {
			fmt.Printf("  %s %s → %s: %v\n", ui.Red("❌ ERROR:"), e.PredecessorID, e.SuccessorID, err)
			continue
		}
		if added {
			applied++
			fmt.Printf("  %s %s → %s\n", ui.Green("✅ OK:"), ui.BoldMagenta(e.PredecessorID), ui.BoldMagenta(e.SuccessorID))
		}
	}
	fmt.Printf("\n🏁 Applied %s/%d dependencies.\n", ui.BoldGreen(applied), len(edges))
	return nil
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the SQLite database and import the project file into it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Schedule.DB == "" {
				return fmt.Errorf("--db is required")
			}
			ctx := cmd.Context()

			p, err := project.Load(cfg.Schedule.File, project.Options{Path: cfg.Schedule.Path})
			if err != nil {
				return err
			}

			st, err := store.Open(ctx, cfg.Schedule.DB)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Import(ctx, p); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			log.Info().Str("db", cfg.Schedule.DB).Int("items", len(p.WorkItems)).Int("deps", len(p.Dependencies)).Msg("imported project")
			fmt.Printf("🗄️  Imported %s work items and %s dependencies into %s\n",
				ui.Bold(len(p.WorkItems)), ui.Bold(len(p.Dependencies)), cfg.Schedule.DB)
			return nil
		},
	}
}

// --- Output helpers ---

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
