// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package prworkflow

import (
	"context"
	"fmt"
	"time"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/tracker"
)

// Config parameterizes a Coordinator.
type Config struct {
	CoderAgentPath    string
	ReviewerAgentPath string
	MaxRounds         int
	RoundTimeout      time.Duration
}

// Coordinator drives a Round through the coder/reviewer loop, talking to
// a Tracker for issue/PR state and an agentrunner.Runner for the
// subprocess calls.
type Coordinator struct {
	cfg     Config
	tracker tracker.Tracker
	runner  agentrunner.Runner
	sm      *StateMachine
}

// New builds a Coordinator. cfg.MaxRounds <= 0 defaults to 3.
func New(cfg Config, trk tracker.Tracker, runner agentrunner.Runner) *Coordinator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 3
	}
	return &Coordinator{cfg: cfg, tracker: trk, runner: runner, sm: DefaultStateMachine}
}

// coderPayload is marshaled to the coder agent's stdin.
type coderPayload struct {
	IssueNumber    int      `json:"issue_number"`
	RoundNumber    int      `json:"round_number"`
	ReviewComments []string `json:"review_comments,omitempty"`
}

// reviewerPayload is marshaled to the reviewer agent's stdin. ReadOnly
// is always true: the reviewer agent is never handed write tools.
type reviewerPayload struct {
	PRNumber int  `json:"pr_number"`
	ReadOnly bool `json:"read_only"`
}

// Run drives issue #issueNumber through rounds until it reaches Merged
// or Failed, or MaxRounds is exhausted. It returns the terminal Round.
func (c *Coordinator) Run(ctx context.Context, issueNumber int) (*Round, error) {
	round := NewRound(issueNumber)

	for {
		if err := c.sm.Transition(round, StateCoding); err != nil {
			return round, err
		}
		if err := c.runCoder(ctx, round); err != nil {
			c.failRound(round)
			return round, fmt.Errorf("prworkflow: round %d coding: %w", round.RoundNumber, err)
		}

		if err := c.sm.Transition(round, StateAwaitingReview); err != nil {
			return round, err
		}
		if err := c.sm.Transition(round, StateReviewing); err != nil {
			return round, err
		}

		verdict, err := c.runReviewer(ctx, round)
		if err != nil {
			c.failRound(round)
			return round, fmt.Errorf("prworkflow: round %d review: %w", round.RoundNumber, err)
		}
		round.LastVerdict = verdict

		switch verdict {
		case VerdictApprove:
			if err := c.sm.Transition(round, StateApproved); err != nil {
				return round, err
			}
			if err := c.tracker.MergePullRequest(ctx, round.PRNumber); err != nil {
				c.failRound(round)
				return round, fmt.Errorf("prworkflow: merging !%d: %w", round.PRNumber, err)
			}
			if err := c.sm.Transition(round, StateMerged); err != nil {
				return round, err
			}
			return round, nil

		case VerdictChangesRequested:
			if err := c.sm.Transition(round, StateChangesRequested); err != nil {
				return round, err
			}
			if round.RoundNumber >= c.cfg.MaxRounds {
				if err := c.sm.Transition(round, StateFailed); err != nil {
					return round, err
				}
				if round.PRNumber != 0 {
					if err := c.tracker.ClosePullRequest(ctx, round.PRNumber); err != nil {
						return round, fmt.Errorf("prworkflow: close !%d after exhausting %d rounds: %w", round.PRNumber, c.cfg.MaxRounds, err)
					}
				}
				return round, fmt.Errorf("prworkflow: issue #%d exhausted %d rounds without approval", issueNumber, c.cfg.MaxRounds)
			}
			round.RoundNumber++

		default:
			c.failRound(round)
			return round, fmt.Errorf("prworkflow: unrecognized reviewer verdict %q", verdict)
		}
	}
}

func (c *Coordinator) failRound(round *Round) {
	if c.sm.CanTransition(round.State, StateFailed) {
		round.State = StateFailed
	}
}

func (c *Coordinator) runCoder(ctx context.Context, round *Round) error {
	result, err := c.runner.Invoke(ctx, agentrunner.Invocation{
		AgentPath: c.cfg.CoderAgentPath,
		ConfigJSON: coderPayload{
			IssueNumber:    round.IssueNumber,
			RoundNumber:    round.RoundNumber,
			ReviewComments: round.ReviewComments,
		},
		Timeout: c.cfg.RoundTimeout,
	})
	if err != nil {
		return err
	}
	_ = result
	if round.Branch == "" {
		round.Branch = fmt.Sprintf("self-improve/issue-%d", round.IssueNumber)
		if err := c.tracker.CreateBranch(ctx, round.Branch, "main"); err != nil {
			return fmt.Errorf("create branch: %w", err)
		}
		pr, err := c.tracker.OpenPullRequest(ctx, round.Branch,
			fmt.Sprintf("self-improve: issue #%d", round.IssueNumber),
			fmt.Sprintf("Automated change proposed by the coder agent.\n\nCloses #%d", round.IssueNumber))
		if err != nil {
			return fmt.Errorf("open pull request: %w", err)
		}
		round.PRNumber = pr.Number
	}
	return nil
}

func (c *Coordinator) runReviewer(ctx context.Context, round *Round) (Verdict, error) {
	comments, err := c.tracker.ListReviewComments(ctx, round.PRNumber)
	if err != nil {
		return "", fmt.Errorf("list review comments: %w", err)
	}
	round.ReviewComments = comments

	result, err := c.runner.Invoke(ctx, agentrunner.Invocation{
		AgentPath: c.cfg.ReviewerAgentPath,
		ConfigJSON: reviewerPayload{
			PRNumber: round.PRNumber,
			ReadOnly: true,
		},
		Timeout: c.cfg.RoundTimeout,
	})
	if err != nil {
		return "", err
	}

	verdict, ok := ParseVerdict(string(result.Stdout))
	if !ok {
		// Fail closed: an unparseable review is never an approval, but
		// it is also not a hard failure of the round — treat it the
		// same as an explicit CHANGES_REQUESTED so the issue loops back
		// to coding under the round cap instead of being marked failed.
		return VerdictChangesRequested, nil
	}
	return verdict, nil
}
