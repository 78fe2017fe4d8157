// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/civicsentinel/engine/internal/debate"
	"github.com/civicsentinel/engine/internal/dispatcher"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/newsintake"
	"github.com/civicsentinel/engine/internal/oversight"
	"github.com/civicsentinel/engine/internal/prworkflow"
)

// buildHandlers wires every Action in the closed vocabulary to a
// concrete closure over this cycle's plan and tracker/agent
// collaborators. prMerged and analysisPublished are written by the
// pick_and_execute branches so runCycle can derive the cycle's
// YieldKind once dispatch completes.
func (e *Engine) buildHandlers(ctx context.Context, plan *model.ConductorPlan, prMerged, analysisPublished *bool) map[model.Action]dispatcher.ActionFunc {
	return map[model.Action]dispatcher.ActionFunc{
		model.ActionFetchNews: func(ctx context.Context) error {
			if e.cfg.SkipAnalysis {
				return nil
			}
			return e.runFetchNews(ctx)
		},
		model.ActionPropose: func(ctx context.Context) error {
			if e.cfg.SkipImprove {
				return nil
			}
			_, err := e.deps.Proposer.Run(ctx)
			return err
		},
		model.ActionDebate: func(ctx context.Context) error {
			if e.cfg.SkipImprove {
				return nil
			}
			return e.runDebate(ctx)
		},
		model.ActionPickAndExecute: func(ctx context.Context) error {
			return e.runPickAndExecute(ctx, plan.IssueNumber, prMerged, analysisPublished)
		},
		model.ActionDirector: func(ctx context.Context) error {
			if e.cfg.SkipImprove {
				return nil
			}
			return e.runProjectDirector(ctx)
		},
		model.ActionStrategicDirector: func(ctx context.Context) error {
			if e.cfg.SkipImprove || e.deps.StrategicDirectorGate == nil || !e.deps.StrategicDirectorGate.ShouldRun(time.Now()) {
				return nil
			}
			return e.deps.StrategicDirectorGate.Run(ctx)
		},
		model.ActionResearchScout: func(ctx context.Context) error {
			if e.cfg.SkipResearch || e.deps.ResearchScoutGate == nil || !e.deps.ResearchScoutGate.ShouldRun(time.Now()) {
				return nil
			}
			return e.deps.ResearchScoutGate.Run(ctx)
		},
		model.ActionCooldown: func(ctx context.Context) error {
			return nil // consumed by runCycle.sleepCooldown after dispatch
		},
		model.ActionHalt: func(ctx context.Context) error {
			return nil // Dispatcher.Run never invokes this: it stops at halt directly
		},
		model.ActionFileIssue: func(ctx context.Context) error {
			_, err := e.deps.Tracker.CreateIssue(ctx, plan.FileIssueTitle, plan.FileIssueDescription, nil)
			return err
		},
		model.ActionSkipCycle: func(ctx context.Context) error {
			return nil
		},
	}
}

func (e *Engine) runFetchNews(ctx context.Context) error {
	if e.deps.NewsGate == nil || !e.deps.NewsGate.ShouldRun(time.Now()) {
		return nil
	}
	return e.deps.NewsGate.Run(ctx)
}

// runProjectDirector fires ProjectDirector only when the engine-internal
// productive-cycle counter has reached cfg.DirectorIntervalCycles since
// the last run; its cadence is productive-cycle based, not wall-clock,
// so it cannot be expressed as a ratelimit.PeriodicAction (see DESIGN.md).
func (e *Engine) runProjectDirector(ctx context.Context) error {
	interval := e.cfg.DirectorIntervalCycles
	if interval <= 0 || e.productiveCycles == 0 || e.productiveCycles%interval != 0 || e.productiveCycles == e.lastDirectorAtCycle {
		return nil
	}
	e.lastDirectorAtCycle = e.productiveCycles

	backlogCount := e.gatherContext(ctx).BacklogCount
	summary := e.telemetrySummary(10)
	fn := oversight.NewProjectDirector(e.deps.Tracker, e.deps.Runner, e.deps.DirectorAgentPath, summary, backlogCount)
	return fn(ctx)
}

// runDebate triages every open self-improve:proposed issue. Issues that
// carry human-suggestion bypass the debate: they are advanced straight
// to backlog without any advocate or skeptic agent call.
func (e *Engine) runDebate(ctx context.Context) error {
	open, err := e.deps.Tracker.ListOpenIssues(ctx, "")
	if err != nil {
		return fmt.Errorf("debate: list open issues: %w", err)
	}
	for _, iss := range open {
		state, ok := iss.LifecycleLabel()
		if !ok || state != model.IssueStateProposed {
			continue
		}
		outcome, err := e.deps.Debate.Evaluate(ctx, debate.Proposal{
			Title:             iss.Title,
			Summary:           iss.Body,
			IsHumanSuggestion: iss.HasLabel(model.LabelHumanSuggestion),
		})
		if err != nil {
			return fmt.Errorf("debate: issue #%d: %w", iss.Number, err)
		}
		if !outcome.Bypassed {
			comment := fmt.Sprintf(
				"**Advocate** (strength %d): %s\n\n**Skeptic** (weakness %d): %s\n\n**Verdict:** %s",
				outcome.AdvocateScore, outcome.AdvocateReason,
				outcome.SkepticScore, outcome.SkepticReason,
				passFailLabel(outcome.Passed),
			)
			if err := e.deps.Tracker.PostComment(ctx, iss.Number, comment); err != nil {
				return fmt.Errorf("debate: issue #%d: post comment: %w", iss.Number, err)
			}
		}
		if err := e.advanceDebateOutcome(ctx, iss.Number, outcome); err != nil {
			return err
		}
	}
	return nil
}

func passFailLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "reject"
}

func (e *Engine) advanceDebateOutcome(ctx context.Context, number int, outcome *debate.Outcome) error {
	if outcome.Passed {
		if err := e.deps.Tracker.RemoveLabels(ctx, number, []string{string(model.IssueStateProposed)}); err != nil {
			return fmt.Errorf("debate: issue #%d: %w", number, err)
		}
		return e.deps.Tracker.AddLabels(ctx, number, []string{string(model.IssueStateBacklog)})
	}
	if err := e.deps.Tracker.RemoveLabels(ctx, number, []string{string(model.IssueStateProposed)}); err != nil {
		return fmt.Errorf("debate: issue #%d: %w", number, err)
	}
	if err := e.deps.Tracker.AddLabels(ctx, number, []string{string(model.IssueStateRejected)}); err != nil {
		return fmt.Errorf("debate: issue #%d: %w", number, err)
	}
	return e.deps.Tracker.CloseIssue(ctx, number)
}

// runPickAndExecute dispatches issueNumber to either the analysis
// pipeline (task:analysis) or the PR workflow (task:code-change),
// depending on which label the picked issue carries.
func (e *Engine) runPickAndExecute(ctx context.Context, issueNumber int, prMerged, analysisPublished *bool) error {
	if issueNumber <= 0 {
		return fmt.Errorf("pick_and_execute: no issue_number in plan")
	}
	iss, err := e.deps.Tracker.GetIssue(ctx, issueNumber)
	if err != nil {
		return fmt.Errorf("pick_and_execute: get issue #%d: %w", issueNumber, err)
	}

	switch {
	case iss.HasLabel(model.LabelTaskAnalysis):
		if e.cfg.SkipAnalysis {
			return nil
		}
		return e.executeAnalysis(ctx, iss, analysisPublished)
	case iss.HasLabel(model.LabelTaskCodeChange):
		if e.cfg.SkipImprove {
			return nil
		}
		return e.executePRWorkflow(ctx, iss, prMerged)
	default:
		return fmt.Errorf("pick_and_execute: issue #%d carries neither task:analysis nor task:code-change", issueNumber)
	}
}

// executeAnalysis runs the fixed multi-stage pipeline against the
// Decision carried in iss's body, persists the result, advances the
// issue to done, and fires the (non-blocking) editorial review.
func (e *Engine) executeAnalysis(ctx context.Context, iss *model.Issue, published *bool) error {
	decision, err := newsintake.DecodeDecision(iss.Body)
	if err != nil {
		return fmt.Errorf("execute analysis: issue #%d: %w", iss.Number, err)
	}

	if err := e.deps.Tracker.RemoveLabels(ctx, iss.Number, []string{string(model.IssueStateBacklog)}); err != nil {
		return fmt.Errorf("execute analysis: issue #%d: %w", iss.Number, err)
	}
	if err := e.deps.Tracker.AddLabels(ctx, iss.Number, []string{string(model.IssueStateInProgress)}); err != nil {
		return fmt.Errorf("execute analysis: issue #%d: %w", iss.Number, err)
	}

	result, err := e.deps.Pipeline.Run(ctx, decision)
	if err != nil {
		_ = e.deps.Tracker.RemoveLabels(ctx, iss.Number, []string{string(model.IssueStateInProgress)})
		_ = e.deps.Tracker.AddLabels(ctx, iss.Number, []string{string(model.IssueStateFailed)})
		_ = e.deps.Tracker.PostComment(ctx, iss.Number, fmt.Sprintf("Analysis failed: %v", err))
		return fmt.Errorf("execute analysis: issue #%d: %w", iss.Number, err)
	}
	result.IssueNumber = iss.Number

	if err := e.st.SaveAnalysis(result); err != nil {
		return fmt.Errorf("execute analysis: issue #%d: %w", iss.Number, err)
	}

	if err := e.deps.Tracker.RemoveLabels(ctx, iss.Number, []string{string(model.IssueStateInProgress)}); err != nil {
		return fmt.Errorf("execute analysis: issue #%d: %w", iss.Number, err)
	}
	if err := e.deps.Tracker.AddLabels(ctx, iss.Number, []string{string(model.IssueStateDone)}); err != nil {
		return fmt.Errorf("execute analysis: issue #%d: %w", iss.Number, err)
	}
	*published = true

	if e.deps.EditorialAgentPath != "" {
		fn := oversight.NewEditorialReviewer(e.deps.Tracker, e.deps.Runner, e.deps.EditorialAgentPath, *result)
		if err := fn(ctx); err != nil {
			e.deps.Logger.Warn("editorial reviewer failed", "issue", iss.Number, "error", err)
		}
	}
	return nil
}

// executePRWorkflow drives issue #iss.Number through the coder/reviewer
// loop and advances its label to done (merged) or failed (exhausted
// rounds) based on the terminal Round state.
func (e *Engine) executePRWorkflow(ctx context.Context, iss *model.Issue, merged *bool) error {
	if err := e.deps.Tracker.RemoveLabels(ctx, iss.Number, []string{string(model.IssueStateBacklog)}); err != nil {
		return fmt.Errorf("execute pr workflow: issue #%d: %w", iss.Number, err)
	}
	if err := e.deps.Tracker.AddLabels(ctx, iss.Number, []string{string(model.IssueStateInProgress)}); err != nil {
		return fmt.Errorf("execute pr workflow: issue #%d: %w", iss.Number, err)
	}

	round, runErr := e.deps.PRWorkflow.Run(ctx, iss.Number)

	if err := e.deps.Tracker.RemoveLabels(ctx, iss.Number, []string{string(model.IssueStateInProgress)}); err != nil {
		return fmt.Errorf("execute pr workflow: issue #%d: %w", iss.Number, err)
	}

	if round != nil && round.State == prworkflow.StateMerged {
		*merged = true
		return e.deps.Tracker.AddLabels(ctx, iss.Number, []string{string(model.IssueStateDone)})
	}

	if err := e.deps.Tracker.AddLabels(ctx, iss.Number, []string{string(model.IssueStateFailed)}); err != nil {
		return fmt.Errorf("execute pr workflow: issue #%d: %w", iss.Number, err)
	}
	if runErr != nil {
		_ = e.deps.Tracker.PostComment(ctx, iss.Number, fmt.Sprintf("Code-change workflow failed: %v", runErr))
		return fmt.Errorf("execute pr workflow: issue #%d: %w", iss.Number, runErr)
	}
	return nil
}
