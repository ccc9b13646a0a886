// Command deltareview runs one review pass over a local git checkout and
// prints the fused plan. It is a thin demonstration driver, not a CLI
// product: no subcommands, no launcher/daemon management, no interactive
// UI. Those are explicitly out of scope for this pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/wharflab/deltareview/internal/config"
	"github.com/wharflab/deltareview/internal/diffcollector"
	"github.com/wharflab/deltareview/internal/pipeline"
	"github.com/wharflab/deltareview/internal/reporter"
	"github.com/wharflab/deltareview/internal/rules"
	"github.com/wharflab/deltareview/internal/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "deltareview:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("deltareview", flag.ContinueOnError)

	root := fs.String("root", ".", "project root (must be a git checkout)")
	mode := fs.String("mode", "auto", "diff mode: auto, working, staged, pr, commit")
	base := fs.String("base", "", "base branch for pr/auto mode (default: origin main/master)")
	from := fs.String("from", "", "commit-mode start ref")
	to := fs.String("to", "", "commit-mode end ref")
	sessionID := fs.String("session", "", "session id (default: a freshly generated id)")
	sessionsDir := fs.String("sessions-dir", ".deltareview/sessions", "directory for persisted session files")
	conflictsDir := fs.String("conflicts-dir", ".deltareview/conflicts", "directory for recorded conflicts")
	plannerCmd := fs.String("planner-command", "", "ACP planner subprocess command line (empty disables planning)")
	format := fs.String("format", "text", "output format: text, json")
	output := fs.String("output", "stdout", "output destination: stdout, stderr, or a file path")
	color := fs.String("color", "auto", "text format color: auto, always, never")
	configFile := fs.String("config", "", "explicit config file path (default: discovered)")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	showVersion := fs.Bool("version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Println(version.Version())
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(*logLevel)}))

	cfg, err := loadConfig(*configFile, *root)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *mode != "" {
		cfg.Diff.Mode = *mode
	}
	if *base != "" {
		cfg.Diff.BaseBranch = *base
	}

	orch, err := pipeline.New(cfg, pipeline.Options{
		ProjectRoot:    *root,
		SessionsDir:    *sessionsDir,
		ConflictsDir:   *conflictsDir,
		PlannerCommand: splitCommand(*plannerCmd),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	id := *sessionID
	if id == "" {
		id = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := orch.Run(ctx, id, diffcollector.Request{
		Mode:       diffcollector.Mode(cfg.Diff.Mode),
		BaseBranch: cfg.Diff.BaseBranch,
		CommitFrom: *from,
		CommitTo:   *to,
	})
	if err != nil {
		return fmt.Errorf("running review: %w", err)
	}

	return printResult(result, reporter.Options{
		Format:     reporter.Format(*format),
		ShowSource: true,
	}, *output, *color, cfg, len(splitCommand(*plannerCmd)) > 0)
}

func loadConfig(configFile, root string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	return config.Load(root)
}

func printResult(result *pipeline.Result, opts reporter.Options, output, color string, cfg *config.Config, plannerConfigured bool) error {
	fOpts, err := reporter.ParseFormat(string(opts.Format))
	if err != nil {
		return err
	}
	opts.Format = fOpts

	w, closeFn, err := reporter.GetWriter(output)
	if err != nil {
		return err
	}
	defer closeFn()
	opts.Writer = w

	switch color {
	case "always":
		c := true
		opts.Color = &c
	case "never":
		c := false
		opts.Color = &c
	case "auto", "":
	default:
		return fmt.Errorf("unknown color mode: %q (valid: auto, always, never)", color)
	}

	rep, err := reporter.New(opts)
	if err != nil {
		return err
	}

	findings := reporter.BuildFindings(result.Session.DiffUnits, result.Plan)
	metadata := reporter.ReportMetadata{
		FilesReviewed: len(result.Session.DiffFiles),
		RulesEnabled:  enabledRuleCount(cfg.Rules.Disabled),
		PlannerUsed:   plannerConfigured,
	}
	return rep.Report(findings, metadata)
}

func enabledRuleCount(disabled []string) int {
	skip := make(map[string]bool, len(disabled))
	for _, code := range disabled {
		skip[code] = true
	}
	registry := rules.NewRegistry()
	rules.RegisterDefaults(registry)
	count := 0
	for _, r := range registry.All() {
		if !skip[r.Metadata().Code] {
			count++
		}
	}
	return count
}

// splitCommand turns a space-separated command line into argv, the same
// convention the teacher used for its external tool invocations: no shell
// quoting support, just strings.Fields.
func splitCommand(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
