// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config defines the engine's YAML configuration file and its
// environment-sourced credentials; the CLI flag overrides layered on top
// of the file are applied in cmd/sentinel.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine's full runtime configuration, loaded from a YAML
// file on disk and then overridden by CLI flags (see cmd/sentinel).
type Config struct {
	Tracker   TrackerConfig   `yaml:"tracker"`
	Agents    AgentsConfig    `yaml:"agents"`
	Loop      LoopConfig      `yaml:"loop"`
	Debate    DebateConfig    `yaml:"debate"`
	Storage   StorageConfig   `yaml:"storage"`
}

// TrackerConfig points the engine at the project it manages.
type TrackerConfig struct {
	Provider  string `yaml:"provider"` // "gitlab" in production, "fake" in tests
	BaseURL   string `yaml:"base_url"`
	ProjectID string `yaml:"project_id"`
}

// AgentsConfig names the executable paths for every agent subprocess
// role the engine spawns.
type AgentsConfig struct {
	Model                   string `yaml:"model"`
	ConductorPrimaryPath    string `yaml:"conductor_primary_path"`
	ConductorRecoveryPath   string `yaml:"conductor_recovery_path"`
	CoderPath               string `yaml:"coder_path"`
	ReviewerPath            string `yaml:"reviewer_path"`
	AdvocatePath            string `yaml:"advocate_path"`
	SkepticPath             string `yaml:"skeptic_path"`
	MinistryPath            string `yaml:"ministry_path"`
	ParliamentPath          string `yaml:"parliament_path"`
	CriticPath              string `yaml:"critic_path"`
	SynthesizerPath         string `yaml:"synthesizer_path"`
	DirectorPath            string `yaml:"director_path"`
	StrategicDirectorPath   string `yaml:"strategic_director_path"`
	ResearchScoutPath       string `yaml:"research_scout_path"`
	EditorialReviewerPath   string `yaml:"editorial_reviewer_path"`
	NewsAgentPath           string `yaml:"news_agent_path"`
	ProposerPath            string `yaml:"proposer_path"`
	AgentTimeoutSeconds     int    `yaml:"agent_timeout_seconds"`
}

// LoopConfig governs the main cycle loop's pacing and scope.
type LoopConfig struct {
	MaxCycles             int  `yaml:"max_cycles"` // 0 means unbounded
	CooldownSeconds       int  `yaml:"cooldown_seconds"`
	MaxPRRounds           int  `yaml:"max_pr_rounds"`
	DirectorIntervalHours int  `yaml:"director_interval_hours"` // counted in productive cycles between project-director runs, not hours
	DryRun                bool `yaml:"dry_run"`
	Verbose               bool `yaml:"verbose"`
	SkipImprove           bool `yaml:"skip_improve"`
	SkipAnalysis          bool `yaml:"skip_analysis"`
	SkipResearch          bool `yaml:"skip_research"`
}

// DebateConfig parameterizes the advocate/skeptic triage filter.
type DebateConfig struct {
	Threshold int `yaml:"threshold"`
}

// StorageConfig locates the engine's on-disk state.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	LogDir      string `yaml:"log_dir"`
	JournalPath string `yaml:"journal_path"`
}

// Default returns a Config with every documented default applied.
func Default() Config {
	return Config{
		Tracker: TrackerConfig{Provider: "fake"},
		Loop: LoopConfig{
			CooldownSeconds:       900,
			MaxPRRounds:           3,
			DirectorIntervalHours: 24,
		},
		Debate:  DebateConfig{Threshold: 2},
		Storage: StorageConfig{DataDir: "./output/data", LogDir: "./output/logs", JournalPath: "./output/data/journal.db"},
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so any field the file omits keeps its documented default.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}
