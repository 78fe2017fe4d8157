// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/conductor"
	"github.com/civicsentinel/engine/internal/config"
	"github.com/civicsentinel/engine/internal/debate"
	"github.com/civicsentinel/engine/internal/engine"
	"github.com/civicsentinel/engine/internal/journal"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/newsintake"
	"github.com/civicsentinel/engine/internal/oversight"
	"github.com/civicsentinel/engine/internal/pipeline"
	"github.com/civicsentinel/engine/internal/proposer"
	"github.com/civicsentinel/engine/internal/prworkflow"
	"github.com/civicsentinel/engine/internal/ratelimit"
	"github.com/civicsentinel/engine/internal/restart"
	"github.com/civicsentinel/engine/internal/schema"
	"github.com/civicsentinel/engine/internal/telemetry"
	"github.com/civicsentinel/engine/internal/tracker"
	"github.com/civicsentinel/engine/internal/tracker/faketracker"
	"github.com/civicsentinel/engine/internal/tracker/gitlabtracker"
	"github.com/civicsentinel/engine/pkg/logging"
	"github.com/civicsentinel/engine/pkg/metrics"
)

var runFlags struct {
	configPath      string
	maxCycles       int
	cooldown        int
	model           string
	maxPRRounds     int
	directorHours   int
	dryRun          bool
	verbose         bool
	skipImprove     bool
	skipAnalysis    bool
	skipResearch    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine's cycle loop until halted or interrupted",
	RunE:  runEngine,
}

func bindRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&runFlags.configPath, "config", "config.yaml", "path to the engine's YAML config file")
	f.IntVar(&runFlags.maxCycles, "max-cycles", 0, "stop after N cycles (0 means unbounded)")
	f.IntVar(&runFlags.cooldown, "cooldown", 0, "override the config's cooldown, in seconds (0 keeps the config value)")
	f.StringVar(&runFlags.model, "model", "", "override the agents' configured model")
	f.IntVar(&runFlags.maxPRRounds, "max-pr-rounds", 0, "override the config's max coder/reviewer rounds (0 keeps the config value)")
	f.IntVar(&runFlags.directorHours, "director-interval", 0, "override the config's project-director interval, in productive cycles (0 keeps the config value)")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "plan and log every cycle without mutating tracker state")
	f.BoolVar(&runFlags.verbose, "verbose", false, "enable debug-level logging")
	f.BoolVar(&runFlags.skipImprove, "skip-improve", false, "never propose or debate self-improvement issues")
	f.BoolVar(&runFlags.skipAnalysis, "skip-analysis", false, "never fetch news or run the analysis pipeline")
	f.BoolVar(&runFlags.skipResearch, "skip-research", false, "never run the research scout")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runFlags.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(&cfg)

	logger := logging.New(logging.Config{
		Level:   logLevel(cfg.Loop.Verbose),
		LogDir:  cfg.Storage.LogDir,
		Service: "sentinel",
	})
	defer logger.Close()

	creds, err := config.LoadCredentials()
	if err != nil {
		return fmt.Errorf("sentinel: load credentials: %w", err)
	}

	trk, err := newTracker(cfg, creds)
	if err != nil {
		return fmt.Errorf("sentinel: tracker: %w", err)
	}

	runner := agentrunner.NewDefaultRunner()
	validator, err := schema.NewEmbedded()
	if err != nil {
		return fmt.Errorf("sentinel: schema: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o750); err != nil {
		return fmt.Errorf("sentinel: create data dir: %w", err)
	}
	telemetryPath := filepath.Join(cfg.Storage.DataDir, "telemetry.jsonl")

	jrn, err := journal.Open(cfg.Storage.JournalPath)
	if err != nil {
		return fmt.Errorf("sentinel: journal: %w", err)
	}
	defer jrn.Close()

	stateDir := filepath.Join(cfg.Storage.DataDir, "ratelimit")
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return fmt.Errorf("sentinel: create ratelimit state dir: %w", err)
	}
	store := ratelimit.NewFileStore(stateDir)

	newsIntake := newsintake.New(newsintake.Config{AgentPath: cfg.Agents.NewsAgentPath}, trk, runner)
	newsGate := ratelimit.NewDailyCapped("news_intake", 3, store, func(ctx context.Context) error {
		_, err := newsIntake.Run(ctx, time.Now().UTC().Format("2006-01-02"))
		return err
	})

	strategicGate, err := ratelimit.NewCronScheduled("strategic_director", "0 0 * * 0", store, func(ctx context.Context) error {
		backlogCount, err := countBacklogIssues(ctx, trk)
		if err != nil {
			return err
		}
		fn := oversight.NewStrategicDirector(trk, runner, cfg.Agents.StrategicDirectorPath, telemetrySummary(telemetryPath, 30), backlogCount)
		return fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("sentinel: strategic director schedule: %w", err)
	}

	researchGate, err := ratelimit.NewCronScheduled("research_scout", "0 6 * * 1", store, func(ctx context.Context) error {
		fn := oversight.NewResearchScout(trk, runner, cfg.Agents.ResearchScoutPath)
		return fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("sentinel: research scout schedule: %w", err)
	}

	met := metrics.New()

	deps := engine.Deps{
		Tracker: trk,
		Runner:  runner,
		Conductor: conductor.New(conductor.Config{
			PrimaryAgentPath:  cfg.Agents.ConductorPrimaryPath,
			RecoveryAgentPath: cfg.Agents.ConductorRecoveryPath,
		}, runner, validator),
		Pipeline: pipeline.New(pipeline.Config{
			MinistryAgentPath:    cfg.Agents.MinistryPath,
			ParliamentAgentPath:  cfg.Agents.ParliamentPath,
			CriticAgentPath:      cfg.Agents.CriticPath,
			SynthesizerAgentPath: cfg.Agents.SynthesizerPath,
			Logger:               logger,
		}, runner, validator),
		PRWorkflow: prworkflow.New(prworkflow.Config{
			CoderAgentPath:    cfg.Agents.CoderPath,
			ReviewerAgentPath: cfg.Agents.ReviewerPath,
			MaxRounds:         cfg.Loop.MaxPRRounds,
		}, trk, runner),
		Debate: debate.New(debate.Config{
			AdvocateAgentPath: cfg.Agents.AdvocatePath,
			SkepticAgentPath:  cfg.Agents.SkepticPath,
			Threshold:         cfg.Debate.Threshold,
		}, runner, validator),
		News:     newsIntake,
		Proposer: proposer.New(proposer.Config{AgentPath: cfg.Agents.ProposerPath}, trk, runner),
		Telemetry: telemetry.NewWriter(telemetryPath),
		Breaker:   telemetry.NewCircuitBreaker(telemetryPath, trk),
		Journal:   jrn,
		Restarter: restart.New(mustGetwd()),
		Metrics:   met,
		Logger:    logger,

		NewsGate:              newsGate,
		ResearchScoutGate:      researchGate,
		StrategicDirectorGate: strategicGate,

		DirectorAgentPath:  cfg.Agents.DirectorPath,
		EditorialAgentPath: cfg.Agents.EditorialReviewerPath,
	}

	e := engine.New(engine.Config{
		MaxCycles:             runFlags.maxCycles,
		CooldownSeconds:        cfg.Loop.CooldownSeconds,
		DirectorIntervalCycles: cfg.Loop.DirectorIntervalHours,
		DryRun:                 cfg.Loop.DryRun,
		SkipImprove:            cfg.Loop.SkipImprove,
		SkipAnalysis:           cfg.Loop.SkipAnalysis,
		SkipResearch:           cfg.Loop.SkipResearch,
		DataDir:                cfg.Storage.DataDir,
	}, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("sentinel starting", "max_cycles", runFlags.maxCycles, "dry_run", cfg.Loop.DryRun)
	if err := e.Run(ctx); err != nil {
		logger.Error("engine run failed", "error", err)
		return err
	}
	logger.Info("sentinel stopped")
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if runFlags.cooldown > 0 {
		cfg.Loop.CooldownSeconds = runFlags.cooldown
	}
	if runFlags.maxPRRounds > 0 {
		cfg.Loop.MaxPRRounds = runFlags.maxPRRounds
	}
	if runFlags.directorHours > 0 {
		cfg.Loop.DirectorIntervalHours = runFlags.directorHours
	}
	if runFlags.model != "" {
		cfg.Agents.Model = runFlags.model
	}
	if runFlags.dryRun {
		cfg.Loop.DryRun = true
	}
	if runFlags.verbose {
		cfg.Loop.Verbose = true
	}
	if runFlags.skipImprove {
		cfg.Loop.SkipImprove = true
	}
	if runFlags.skipAnalysis {
		cfg.Loop.SkipAnalysis = true
	}
	if runFlags.skipResearch {
		cfg.Loop.SkipResearch = true
	}
}

func logLevel(verbose bool) logging.Level {
	if verbose {
		return logging.LevelDebug
	}
	return logging.LevelInfo
}

func newTracker(cfg config.Config, creds config.Credentials) (tracker.Tracker, error) {
	if cfg.Tracker.Provider != "gitlab" {
		return faketracker.New(), nil
	}
	return gitlabtracker.New(cfg.Tracker.BaseURL, creds.TrackerToken.Value, cfg.Tracker.ProjectID)
}

func telemetrySummary(path string, n int) string {
	records, err := telemetry.Tail(path, n)
	if err != nil || len(records) == 0 {
		return "no telemetry available"
	}
	productive := 0
	for _, rec := range records {
		if rec.Productive {
			productive++
		}
	}
	return fmt.Sprintf("%d of last %d cycles productive", productive, len(records))
}

func countBacklogIssues(ctx context.Context, trk tracker.Tracker) (int, error) {
	open, err := trk.ListOpenIssues(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("sentinel: list open issues: %w", err)
	}
	count := 0
	for _, iss := range open {
		if state, ok := iss.LifecycleLabel(); ok && state == model.IssueStateBacklog {
			count++
		}
	}
	return count, nil
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
