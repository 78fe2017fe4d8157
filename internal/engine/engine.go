// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine drives the main cycle loop: gather state, ask the
// Conductor for a plan, dispatch its actions, record telemetry, and
// repeat until max-cycles, halt, or an unrecoverable crash. Everything
// else in the module is a leaf the engine coordinates; the engine
// itself holds no global mutable state: each cycle's conductor.Context
// is rebuilt by gatherContext, and the only state carried from one cycle
// to the next lives in the Engine's own fields.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/conductor"
	"github.com/civicsentinel/engine/internal/debate"
	"github.com/civicsentinel/engine/internal/dispatcher"
	"github.com/civicsentinel/engine/internal/journal"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/newsintake"
	"github.com/civicsentinel/engine/internal/pipeline"
	"github.com/civicsentinel/engine/internal/proposer"
	"github.com/civicsentinel/engine/internal/prworkflow"
	"github.com/civicsentinel/engine/internal/ratelimit"
	"github.com/civicsentinel/engine/internal/restart"
	"github.com/civicsentinel/engine/internal/telemetry"
	"github.com/civicsentinel/engine/internal/tracker"
	"github.com/civicsentinel/engine/pkg/logging"
	"github.com/civicsentinel/engine/pkg/metrics"
)

// Config governs the loop's pacing and scope; cmd/sentinel fills it from
// config.LoopConfig and config.StorageConfig.
type Config struct {
	MaxCycles              int // 0 means unbounded
	CooldownSeconds         int
	DirectorIntervalCycles  int // run the project director every N productive cycles
	DryRun                  bool
	SkipImprove             bool
	SkipAnalysis            bool
	SkipResearch            bool
	DataDir                 string
}

// Deps bundles every collaborator the engine dispatches work to. Built
// once at startup by cmd/sentinel; the Engine never constructs these
// itself so tests can substitute fakes freely.
type Deps struct {
	Tracker    tracker.Tracker
	Runner     agentrunner.Runner
	Conductor  *conductor.Conductor
	Pipeline   *pipeline.Pipeline
	PRWorkflow *prworkflow.Coordinator
	Debate     *debate.Filter
	News       *newsintake.Intake
	Proposer   *proposer.Proposer
	Telemetry  *telemetry.Writer
	Breaker    *telemetry.CircuitBreaker
	Journal    *journal.Journal
	Restarter  *restart.Sequencer
	Metrics    *metrics.Metrics
	Logger     *logging.Logger

	// NewsGate wraps News.Run in the contractual daily cap.
	NewsGate ratelimit.PeriodicAction
	// ResearchScoutGate wraps the research scout oversight agent.
	ResearchScoutGate ratelimit.PeriodicAction
	// StrategicDirectorGate wraps the strategic director oversight agent.
	StrategicDirectorGate ratelimit.PeriodicAction

	// DirectorAgentPath/EditorialAgentPath are invoked directly by the
	// engine rather than through a PeriodicAction: ProjectDirector is
	// gated on the productive-cycle counter (not wall clock), and
	// EditorialReviewer fires once per completed analysis.
	DirectorAgentPath  string
	EditorialAgentPath string
}

// Engine drives cycles against a fixed Deps and Config.
type Engine struct {
	cfg  Config
	deps Deps
	st   *store

	cycleNumber         int
	productiveCycles    int
	lastDirectorAtCycle int
	lastYieldKind       model.YieldKind
	notesFromLastCycle  string
}

// New builds an Engine ready to Run.
func New(cfg Config, deps Deps) *Engine {
	return &Engine{cfg: cfg, deps: deps, st: newStore(cfg.DataDir)}
}

// Run drives cycles until MaxCycles is reached, a plan halts the loop,
// or a cycle returns an unrecoverable error (EngineCrash: the top-level
// guard here is that boundary, the caller is expected to log and exit
// non-zero).
func (e *Engine) Run(ctx context.Context) error {
	for {
		if e.cfg.MaxCycles > 0 && e.cycleNumber >= e.cfg.MaxCycles {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		e.cycleNumber++
		halt, err := e.runCycle(ctx)
		if err != nil {
			return fmt.Errorf("engine: cycle %d: %w", e.cycleNumber, err)
		}
		if halt {
			return nil
		}
	}
}

func (e *Engine) gatherContext(ctx context.Context) conductor.Context {
	openIssues, err := e.deps.Tracker.ListOpenIssues(ctx, "")
	if err != nil {
		e.deps.Logger.Warn("gather context: list open issues failed", "error", err)
	}
	backlogCount := 0
	for _, iss := range openIssues {
		if state, ok := iss.LifecycleLabel(); ok && state == model.IssueStateBacklog {
			backlogCount++
		}
	}
	return conductor.Context{
		CycleNumber:        e.cycleNumber,
		OpenIssueCount:     len(openIssues),
		BacklogCount:       backlogCount,
		LastYieldKind:      string(e.lastYieldKind),
		NotesFromLastCycle: e.notesFromLastCycle,
	}
}

func (e *Engine) runCycle(ctx context.Context) (halt bool, err error) {
	started := time.Now().UTC()
	if e.deps.Metrics != nil {
		e.deps.Metrics.CyclesTotal.Inc()
	}

	cctx := e.gatherContext(ctx)
	plan, usedFallback, err := e.deps.Conductor.Plan(ctx, cctx)
	if err != nil {
		return false, fmt.Errorf("conductor: %w", err)
	}
	if usedFallback {
		plan = e.richFallbackPlan(ctx)
	}
	if e.deps.Journal != nil {
		actionsJSON := fmt.Sprintf("%v", plan.Actions)
		if jerr := e.deps.Journal.RecordConductorEntry(e.cycleNumber, plan.Reasoning, actionsJSON, usedFallback, started.Format(time.RFC3339)); jerr != nil {
			e.deps.Logger.Warn("journal: record conductor entry failed", "error", jerr)
		}
	}

	var prMerged, analysisPublished bool
	handlers := e.buildHandlers(ctx, plan, &prMerged, &analysisPublished)
	disp := dispatcher.New(handlers, e.cfg.DryRun)
	phases, dispatchErr := disp.Run(ctx, plan)

	rec := &model.CycleTelemetry{
		CycleNumber:        e.cycleNumber,
		StartedAt:          started,
		EndedAt:            time.Now().UTC(),
		Phases:             phases,
		ConductorReasoning: plan.Reasoning,
		ConductorActions:   actionNames(plan.Actions),
		ConductorFallback:  usedFallback,
	}
	rec.MarkProductivity(prMerged, analysisPublished)
	if rec.Productive {
		e.productiveCycles++
		if e.deps.Metrics != nil {
			e.deps.Metrics.ProductiveCyclesTotal.Inc()
		}
	}

	if werr := e.deps.Telemetry.Append(rec); werr != nil {
		e.deps.Logger.Error("telemetry append failed", "cycle", e.cycleNumber, "error", werr)
	}
	if e.deps.Breaker != nil {
		if cerr := e.deps.Breaker.Check(ctx); cerr != nil {
			e.deps.Logger.Error("circuit breaker check failed", "error", cerr)
		}
	}

	e.lastYieldKind = rec.YieldKind
	e.notesFromLastCycle = plan.NotesForNextCycle

	if dispatchErr != nil {
		e.deps.Logger.Error("cycle dispatch error", "cycle", e.cycleNumber, "error", dispatchErr)
	}

	halt = containsHalt(plan.Actions)
	if !halt && !e.cfg.DryRun {
		e.sleepCooldown(ctx, plan)
	}
	return halt, nil
}

func (e *Engine) sleepCooldown(ctx context.Context, plan *model.ConductorPlan) {
	seconds := plan.SuggestedCooldownSeconds
	if seconds <= 0 {
		seconds = e.cfg.CooldownSeconds
	}
	if seconds <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(seconds) * time.Second):
	}
}

func actionNames(actions []model.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

// telemetrySummary renders the last n telemetry records as a compact
// human-readable digest for an oversight agent's context (productive
// count, failure kinds seen). Read failures are swallowed into an empty
// summary rather than blocking the director run.
func (e *Engine) telemetrySummary(n int) string {
	path := e.st.dataDir + "/telemetry.jsonl"
	records, err := telemetry.Tail(path, n)
	if err != nil || len(records) == 0 {
		return "no telemetry available"
	}
	productive := 0
	failures := map[model.ErrorKind]int{}
	for _, rec := range records {
		if rec.Productive {
			productive++
		}
		for _, phase := range rec.Phases {
			if phase.Error != nil {
				failures[phase.Error.Kind]++
			}
		}
	}
	summary := fmt.Sprintf("%d of last %d cycles productive", productive, len(records))
	for kind, count := range failures {
		summary += fmt.Sprintf("; %s x%d", kind, count)
	}
	return summary
}

func containsHalt(actions []model.Action) bool {
	for _, a := range actions {
		if a == model.ActionHalt {
			return true
		}
	}
	return false
}
