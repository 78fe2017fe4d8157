// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package faketracker is an in-memory tracker.Tracker for tests, with no
// network calls and deterministic, monotonically increasing numbering.
package faketracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/civicsentinel/engine/internal/model"
)

// Tracker is a fully in-memory implementation of tracker.Tracker.
type Tracker struct {
	mu           sync.Mutex
	nextIssue    int
	nextPR       int
	issues       map[int]*model.Issue
	prs          map[int]*model.PullRequest
	branches     map[string]bool
	comments     map[int][]string
	ciByBranch   map[string][]model.CheckStatus
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		nextIssue:  1,
		nextPR:     1,
		issues:     make(map[int]*model.Issue),
		prs:        make(map[int]*model.PullRequest),
		branches:   make(map[string]bool),
		comments:   make(map[int][]string),
		ciByBranch: make(map[string][]model.CheckStatus),
	}
}

func (t *Tracker) ListOpenIssues(ctx context.Context, label string) ([]model.Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Issue
	for _, iss := range t.issues {
		if iss.State != "open" {
			continue
		}
		if label != "" && !iss.HasLabel(label) {
			continue
		}
		out = append(out, *iss)
	}
	return out, nil
}

func (t *Tracker) GetIssue(ctx context.Context, number int) (*model.Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	iss, ok := t.issues[number]
	if !ok {
		return nil, fmt.Errorf("faketracker: issue #%d: %w", number, model.ErrNotFound)
	}
	cp := *iss
	return &cp, nil
}

func (t *Tracker) CreateIssue(ctx context.Context, title, body string, labels []string) (*model.Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	num := t.nextIssue
	t.nextIssue++
	iss := &model.Issue{
		Number: num,
		Title:  title,
		Body:   body,
		Labels: append([]string(nil), labels...),
		State:  "open",
	}
	t.issues[num] = iss
	cp := *iss
	return &cp, nil
}

func (t *Tracker) AddLabels(ctx context.Context, number int, labels []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	iss, ok := t.issues[number]
	if !ok {
		return fmt.Errorf("faketracker: issue #%d: %w", number, model.ErrNotFound)
	}
	for _, l := range labels {
		if !iss.HasLabel(l) {
			iss.Labels = append(iss.Labels, l)
		}
	}
	return nil
}

func (t *Tracker) RemoveLabels(ctx context.Context, number int, labels []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	iss, ok := t.issues[number]
	if !ok {
		return fmt.Errorf("faketracker: issue #%d: %w", number, model.ErrNotFound)
	}
	remove := make(map[string]bool, len(labels))
	for _, l := range labels {
		remove[l] = true
	}
	var kept []string
	for _, l := range iss.Labels {
		if !remove[l] {
			kept = append(kept, l)
		}
	}
	iss.Labels = kept
	return nil
}

func (t *Tracker) CloseIssue(ctx context.Context, number int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	iss, ok := t.issues[number]
	if !ok {
		return fmt.Errorf("faketracker: issue #%d: %w", number, model.ErrNotFound)
	}
	iss.State = "closed"
	return nil
}

func (t *Tracker) PostComment(ctx context.Context, number int, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.issues[number]; !ok {
		return fmt.Errorf("faketracker: issue #%d: %w", number, model.ErrNotFound)
	}
	t.comments[number] = append(t.comments[number], body)
	return nil
}

func (t *Tracker) CreateBranch(ctx context.Context, name, fromRef string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.branches[name] = true
	return nil
}

func (t *Tracker) OpenPullRequest(ctx context.Context, branch, title, body string) (*model.PullRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.branches[branch] {
		return nil, fmt.Errorf("faketracker: branch %q does not exist", branch)
	}
	num := t.nextPR
	t.nextPR++
	pr := &model.PullRequest{
		Number:      num,
		Branch:      branch,
		State:       model.PRStateOpen,
		CheckStatus: model.CheckStatusPending,
		Body:        body,
	}
	t.prs[num] = pr
	cp := *pr
	return &cp, nil
}

func (t *Tracker) ListPullRequests(ctx context.Context, state model.PRState) ([]model.PullRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.PullRequest
	for _, pr := range t.prs {
		if pr.State == state {
			out = append(out, *pr)
		}
	}
	return out, nil
}

func (t *Tracker) ListReviewComments(ctx context.Context, number int) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pr, ok := t.prs[number]
	if !ok {
		return nil, fmt.Errorf("faketracker: pr !%d: %w", number, model.ErrNotFound)
	}
	return append([]string(nil), pr.ReviewComments...), nil
}

func (t *Tracker) MergePullRequest(ctx context.Context, number int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	pr, ok := t.prs[number]
	if !ok {
		return fmt.Errorf("faketracker: pr !%d: %w", number, model.ErrNotFound)
	}
	pr.State = model.PRStateMerged
	return nil
}

func (t *Tracker) ClosePullRequest(ctx context.Context, number int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	pr, ok := t.prs[number]
	if !ok {
		return fmt.Errorf("faketracker: pr !%d: %w", number, model.ErrNotFound)
	}
	pr.State = model.PRStateClosed
	return nil
}

func (t *Tracker) ListRecentCIRuns(ctx context.Context, branch string, limit int) ([]model.CheckStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	runs := t.ciByBranch[branch]
	if len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	return append([]model.CheckStatus(nil), runs...), nil
}

// PushReviewComment is a test helper letting tests simulate a reviewer
// leaving feedback on a PR before the engine polls for it.
func (t *Tracker) PushReviewComment(number int, comment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pr, ok := t.prs[number]; ok {
		pr.ReviewComments = append(pr.ReviewComments, comment)
	}
}

// PushCIRun is a test helper recording a CI outcome for branch.
func (t *Tracker) PushCIRun(branch string, status model.CheckStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ciByBranch[branch] = append(t.ciByBranch[branch], status)
}
