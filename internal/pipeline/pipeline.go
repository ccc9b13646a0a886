// Package pipeline wires the review stages end to end: diff collection,
// unit construction, rule scoring, the concurrent planner/scanner fan-out,
// fusion, conflict detection, and session persistence.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wharflab/deltareview/internal/conflict"
	"github.com/wharflab/deltareview/internal/config"
	"github.com/wharflab/deltareview/internal/diffcollector"
	"github.com/wharflab/deltareview/internal/fusion"
	"github.com/wharflab/deltareview/internal/pipelineerrors"
	"github.com/wharflab/deltareview/internal/planner"
	"github.com/wharflab/deltareview/internal/reviewmodel"
	"github.com/wharflab/deltareview/internal/rules"
	"github.com/wharflab/deltareview/internal/scanner"
	"github.com/wharflab/deltareview/internal/session"
	"github.com/wharflab/deltareview/internal/unitbuilder"
)

// Orchestrator owns one instantiation of every pipeline stage and runs
// reviews against a single project root.
type Orchestrator struct {
	cfg         *config.Config
	projectRoot string

	diff      *diffcollector.Collector
	units     *unitbuilder.Builder
	engine    *rules.Engine
	learned   *conflict.LearnedRuleStore
	plan      *planner.Client // nil disables the planner stage
	scan      *scanner.Service
	conflicts *conflict.Tracker
	sessions  *session.Store

	logger *slog.Logger
}

// Options collects the filesystem roots and optional planner command an
// Orchestrator needs beyond cfg itself.
type Options struct {
	ProjectRoot    string
	SessionsDir    string
	ConflictsDir   string
	PlannerCommand []string // empty disables the planner stage
	SymbolResolver unitbuilder.SymbolResolver
	Logger         *slog.Logger
}

// New builds an Orchestrator from cfg and opts, registering the built-in
// rule handlers and scanner drivers and applying cfg's disabled lists.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	learnedPath := cfg.Rules.LearnedRulesPath
	var learned *conflict.LearnedRuleStore
	if learnedPath != "" {
		learned = conflict.NewLearnedRuleStore(learnedPath)
	}

	registry := newFilteredRegistry(cfg.Rules.Disabled)
	engine := rules.NewEngine(registry, learned)

	unitsBuilder := unitbuilder.New(opts.ProjectRoot)
	unitsBuilder.ContextRadius = cfg.Diff.ContextRadius
	unitsBuilder.SymbolResolver = opts.SymbolResolver

	scanRegistry := scanner.NewRegistry(scanner.Config{
		Disabled:    cfg.Scanner.Disabled,
		Timeout:     cfg.Scanner.Timeout(),
		IgnoreGlobs: cfg.Scanner.IgnoreGlobs,
	}, opts.Logger)
	scanRegistry.Register(scanner.NewGitleaksDriver(disabledName("secrets", cfg.Scanner.Disabled)))
	scanRegistry.Register(scanner.NewStaticlintDriver(nil))
	scanCache := scanner.NewCache(cfg.Scanner.CacheTTL(), cfg.Scanner.CacheMaxEntries)
	scanService := scanner.NewService(scanRegistry, scanCache, opts.Logger)

	var plannerClient *planner.Client
	if len(opts.PlannerCommand) > 0 {
		plannerClient = planner.NewClient(opts.PlannerCommand, opts.ProjectRoot, cfg.Scanner.Timeout())
	}

	sessions, err := session.New(opts.SessionsDir, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:         cfg,
		projectRoot: opts.ProjectRoot,
		diff:        diffcollector.New(opts.ProjectRoot),
		units:       unitsBuilder,
		engine:      engine,
		learned:     learned,
		plan:        plannerClient,
		scan:        scanService,
		conflicts:   conflict.NewTracker(opts.ConflictsDir),
		sessions:    sessions,
		logger:      opts.Logger,
	}, nil
}

// disabledName reports whether name appears in disabled, for drivers (like
// gitleaks) that take their disabled flag at construction time rather than
// through the registry's name-based filter.
func disabledName(name string, disabled []string) bool {
	for _, d := range disabled {
		if d == name {
			return true
		}
	}
	return false
}

// newFilteredRegistry registers every built-in rule handler, then drops the
// codes cfg.Rules.Disabled names. rules.Registry has no removal method, so
// filtering happens by selective re-registration into a fresh registry
// rather than mutating the defaults.
func newFilteredRegistry(disabled []string) *rules.Registry {
	skip := make(map[string]bool, len(disabled))
	for _, code := range disabled {
		skip[code] = true
	}

	all := rules.NewRegistry()
	rules.RegisterDefaults(all)

	filtered := rules.NewRegistry()
	for _, r := range all.All() {
		if skip[r.Metadata().Code] {
			continue
		}
		filtered.Register(r)
	}
	return filtered
}

// Result is what Run hands back to a caller: the persisted session plus the
// fused plan that produced it.
type Result struct {
	Session *reviewmodel.Session
	Plan    reviewmodel.Plan
	Hints   []reviewmodel.ReferenceHint
}

// Run executes one full review pass for sessionID, creating the session if
// it doesn't already exist. It never returns an error for a degradable
// failure (unavailable planner, scanner runtime error, persistence
// fallback) — those are logged and the run continues with partial output.
// Only pipelineerrors.InputError/VCSError from diff collection abort.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, req diffcollector.Request) (*Result, error) {
	sess, err := o.sessions.Get(sessionID)
	if err != nil {
		sess = o.sessions.Create(sessionID, o.projectRoot)
	}

	diffResult, err := o.diff.Collect(ctx, req)
	if err != nil {
		// DiffCollector only ever returns InputError/VCSError, both of
		// which abort per pipelineerrors.Classify; there is no diff-stage
		// degrade path.
		return nil, err
	}

	units, parseWarnings := o.units.Build(diffResult.DiffText)
	for _, w := range parseWarnings {
		o.logger.Warn("unit build warning", "session_id", sessionID, "detail", w.SkipReason())
		o.appendEvent(sessionID, reviewmodel.EventThought, "unit_builder", w.SkipReason())
	}

	for i := range units {
		o.engine.Score(&units[i])
	}

	idx := planner.BuildReviewIndex(units, sessionID, sess.Metadata.ProjectRoot)
	files := diffFilePaths(units)

	plannerResp, scanResult := o.fanOut(ctx, sessionID, idx, files, units)

	fused := fusion.Fuse(units, plannerResp)

	hints := o.trackConflicts(units, fused)

	sess.DiffFiles = files
	sess.DiffUnits = units
	sess.StaticScanLinked = toStaticScanLinked(units, scanResult)
	o.sessions.Save(sess)

	return &Result{Session: sess, Plan: fused, Hints: hints}, nil
}

// fanOut runs the planner call and the static scan concurrently. This stage
// is exactly one planner call and one scanner run per session — there is
// nothing to dedupe — so a plain goroutine pair is the right tool rather
// than a key-deduplicated, many-request fan-out runtime built for a
// different problem (see the async-runtime entry in DESIGN.md).
func (o *Orchestrator) fanOut(
	ctx context.Context,
	sessionID string,
	idx planner.ReviewIndex,
	files []string,
	units []reviewmodel.ReviewUnit,
) (reviewmodel.PlannerResponse, scanner.LinkedResult) {
	var wg sync.WaitGroup
	var plannerResp reviewmodel.PlannerResponse
	var scanResult scanner.LinkedResult

	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.plan == nil {
			return
		}
		resp, err := o.plan.Plan(ctx, idx)
		if err != nil {
			_, reason := pipelineerrors.Classify(err)
			o.logger.Warn("planner degraded", "session_id", sessionID, "reason", reason)
			o.appendEvent(sessionID, reviewmodel.EventThought, "planner", reason)
			return
		}
		plannerResp = resp
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scanResult = o.scan.Run(ctx, scanner.Request{
			Files:       files,
			Units:       units,
			ProjectRoot: o.projectRoot,
			SessionID:   sessionID,
			Concurrency: o.cfg.Scanner.Concurrency,
			Callback: func(e scanner.Event) {
				o.appendEvent(sessionID, reviewmodel.WorkflowEventType(e.Type), "scanner", "")
			},
		})
	}()

	wg.Wait()
	return plannerResp, scanResult
}

// trackConflicts runs conflict detection per unit, records anything found,
// analyzes the session's accumulated conflicts for promotable rules, and
// upserts any that clear the bar into the learned-rule store.
func (o *Orchestrator) trackConflicts(units []reviewmodel.ReviewUnit, plan reviewmodel.Plan) []reviewmodel.ReferenceHint {
	now := time.Now()
	byID := make(map[string]*reviewmodel.PlanItem, len(plan.Items))
	for i := range plan.Items {
		byID[plan.Items[i].UnitID] = &plan.Items[i]
	}

	for i := range units {
		item, ok := byID[units[i].UnitID]
		if !ok {
			continue
		}
		if c := conflict.Detect(&units[i], item, now); c != nil {
			if err := o.conflicts.Record(*c); err != nil {
				o.logger.Warn("failed to record conflict", "unit_id", c.UnitID, "error", err)
			}
		}
	}

	applicable, hints := conflict.Analyze(o.conflicts.SessionConflicts())
	if o.learned != nil {
		for _, rule := range applicable {
			if err := o.learned.Upsert(rule, reviewmodel.SourceConflictLearning, now); err != nil {
				o.logger.Warn("failed to promote learned rule", "rule_id", rule.RuleID, "error", err)
			}
		}
	}
	return hints
}

func (o *Orchestrator) appendEvent(sessionID string, t reviewmodel.WorkflowEventType, stage, content string) {
	if err := o.sessions.AppendEvent(sessionID, reviewmodel.WorkflowEvent{
		Type:    t,
		Stage:   stage,
		Content: content,
	}); err != nil {
		o.logger.Warn("failed to append workflow event", "session_id", sessionID, "error", err)
	}
}

func diffFilePaths(units []reviewmodel.ReviewUnit) []string {
	seen := make(map[string]bool, len(units))
	var out []string
	for _, u := range units {
		if !seen[u.FilePath] {
			seen[u.FilePath] = true
			out = append(out, u.FilePath)
		}
	}
	return out
}

// toStaticScanLinked converts the scanner's runtime linkage shape
// (map[unit_id][]issue_index) into the persisted session shape (an ordered
// slice of links), which JSON-round-trips predictably and keeps the
// session file's unit order stable across runs.
func toStaticScanLinked(units []reviewmodel.ReviewUnit, r scanner.LinkedResult) *reviewmodel.StaticScanLinked {
	linked := &reviewmodel.StaticScanLinked{
		MappedCount:   r.MappedCount,
		UnmappedCount: r.UnmappedCount,
	}
	for _, u := range units {
		linked.DiffUnits = append(linked.DiffUnits, u.UnitID)
		if indexes, ok := r.UnitIssues[u.UnitID]; ok {
			linked.UnitIssues = append(linked.UnitIssues, reviewmodel.UnitIssueLink{
				UnitID:  u.UnitID,
				IssueID: indexes,
			})
		}
	}
	return linked
}

