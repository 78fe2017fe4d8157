// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gitlabtracker implements internal/tracker.Tracker against a
// GitLab project, using issue labels to carry the self-improve lifecycle
// state and merge requests to carry the coder/reviewer PR workflow.
package gitlabtracker

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"

	"github.com/civicsentinel/engine/internal/model"
)

// requestsPerSecond bounds the engine's outbound call rate against the
// GitLab API, independent of whatever per-token rate limit GitLab
// itself enforces: a cycle that fans out many label/comment calls in a
// tight loop should not burst the project's shared quota.
const requestsPerSecond = 5

// Tracker is the production tracker.Tracker backed by a single GitLab
// project.
type Tracker struct {
	client    *gitlab.Client
	projectID string
	limiter   *rate.Limiter
}

// New builds a Tracker for projectID ("group/project" or a numeric ID),
// authenticating with token against baseURL. An empty baseURL targets
// gitlab.com.
func New(baseURL, token, projectID string) (*Tracker, error) {
	var client *gitlab.Client
	var err error
	if baseURL == "" {
		client, err = gitlab.NewClient(token)
	} else {
		apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
	}
	if err != nil {
		return nil, fmt.Errorf("gitlabtracker: creating client: %w", err)
	}
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	return &Tracker{client: client, projectID: projectID, limiter: limiter}, nil
}

// wait blocks until the client-side rate limiter admits the next call,
// or ctx is done.
func (t *Tracker) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gitlabtracker: rate limit: %w", err)
	}
	return nil
}

func (t *Tracker) ListOpenIssues(ctx context.Context, label string) ([]model.Issue, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	opts := &gitlab.ListProjectIssuesOptions{
		State: gitlab.Ptr("opened"),
	}
	if label != "" {
		opts.Labels = (*gitlab.LabelOptions)(&[]string{label})
	}
	glIssues, _, err := t.client.Issues.ListProjectIssues(t.projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlabtracker: list open issues: %w", err)
	}
	issues := make([]model.Issue, 0, len(glIssues))
	for _, gi := range glIssues {
		issues = append(issues, mapIssue(gi))
	}
	return issues, nil
}

func (t *Tracker) GetIssue(ctx context.Context, number int) (*model.Issue, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	gi, _, err := t.client.Issues.GetIssue(t.projectID, number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlabtracker: get issue #%d: %w", number, err)
	}
	issue := mapIssue(gi)
	return &issue, nil
}

func (t *Tracker) CreateIssue(ctx context.Context, title, body string, labels []string) (*model.Issue, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	opts := &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(title),
		Description: gitlab.Ptr(body),
		Labels:      (*gitlab.LabelOptions)(&labels),
	}
	gi, _, err := t.client.Issues.CreateIssue(t.projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlabtracker: create issue: %w", err)
	}
	issue := mapIssue(gi)
	return &issue, nil
}

func (t *Tracker) AddLabels(ctx context.Context, number int, labels []string) error {
	current, err := t.GetIssue(ctx, number)
	if err != nil {
		return err
	}
	merged := mergeLabels(current.Labels, labels)
	opts := &gitlab.UpdateIssueOptions{Labels: (*gitlab.LabelOptions)(&merged)}
	if err := t.wait(ctx); err != nil {
		return err
	}
	if _, _, err := t.client.Issues.UpdateIssue(t.projectID, number, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("gitlabtracker: add labels to #%d: %w", number, err)
	}
	return nil
}

func (t *Tracker) RemoveLabels(ctx context.Context, number int, labels []string) error {
	current, err := t.GetIssue(ctx, number)
	if err != nil {
		return err
	}
	remove := make(map[string]bool, len(labels))
	for _, l := range labels {
		remove[l] = true
	}
	var kept []string
	for _, l := range current.Labels {
		if !remove[l] {
			kept = append(kept, l)
		}
	}
	opts := &gitlab.UpdateIssueOptions{Labels: (*gitlab.LabelOptions)(&kept)}
	if err := t.wait(ctx); err != nil {
		return err
	}
	if _, _, err := t.client.Issues.UpdateIssue(t.projectID, number, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("gitlabtracker: remove labels from #%d: %w", number, err)
	}
	return nil
}

func (t *Tracker) CloseIssue(ctx context.Context, number int) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	opts := &gitlab.UpdateIssueOptions{StateEvent: gitlab.Ptr("close")}
	if _, _, err := t.client.Issues.UpdateIssue(t.projectID, number, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("gitlabtracker: close issue #%d: %w", number, err)
	}
	return nil
}

func (t *Tracker) PostComment(ctx context.Context, number int, body string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	opts := &gitlab.CreateIssueNoteOptions{Body: gitlab.Ptr(body)}
	if _, _, err := t.client.Notes.CreateIssueNote(t.projectID, number, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("gitlabtracker: comment on #%d: %w", number, err)
	}
	return nil
}

func (t *Tracker) CreateBranch(ctx context.Context, name, fromRef string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	opts := &gitlab.CreateBranchOptions{Branch: gitlab.Ptr(name), Ref: gitlab.Ptr(fromRef)}
	if _, _, err := t.client.Branches.CreateBranch(t.projectID, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("gitlabtracker: create branch %q: %w", name, err)
	}
	return nil
}

func (t *Tracker) OpenPullRequest(ctx context.Context, branch, title, body string) (*model.PullRequest, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	opts := &gitlab.CreateMergeRequestOptions{
		SourceBranch: gitlab.Ptr(branch),
		TargetBranch: gitlab.Ptr("main"),
		Title:        gitlab.Ptr(title),
		Description:  gitlab.Ptr(body),
	}
	mr, _, err := t.client.MergeRequests.CreateMergeRequest(t.projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlabtracker: open merge request from %q: %w", branch, err)
	}
	pr := mapMergeRequest(mr)
	return &pr, nil
}

func (t *Tracker) ListPullRequests(ctx context.Context, state model.PRState) ([]model.PullRequest, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	opts := &gitlab.ListProjectMergeRequestsOptions{State: gitlab.Ptr(mrStateParam(state))}
	mrs, _, err := t.client.MergeRequests.ListProjectMergeRequests(t.projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlabtracker: list merge requests: %w", err)
	}
	prs := make([]model.PullRequest, 0, len(mrs))
	for _, mr := range mrs {
		prs = append(prs, mapMergeRequest(mr))
	}
	return prs, nil
}

func (t *Tracker) ListReviewComments(ctx context.Context, number int) ([]string, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	notes, _, err := t.client.Notes.ListMergeRequestNotes(t.projectID, number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlabtracker: list review comments on !%d: %w", number, err)
	}
	comments := make([]string, 0, len(notes))
	for _, n := range notes {
		if n != nil && !n.System {
			comments = append(comments, n.Body)
		}
	}
	return comments, nil
}

func (t *Tracker) MergePullRequest(ctx context.Context, number int) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	opts := &gitlab.AcceptMergeRequestOptions{}
	if _, _, err := t.client.MergeRequests.AcceptMergeRequest(t.projectID, number, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("gitlabtracker: merge !%d: %w", number, err)
	}
	return nil
}

func (t *Tracker) ClosePullRequest(ctx context.Context, number int) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	opts := &gitlab.UpdateMergeRequestOptions{StateEvent: gitlab.Ptr("close")}
	if _, _, err := t.client.MergeRequests.UpdateMergeRequest(t.projectID, number, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("gitlabtracker: close !%d: %w", number, err)
	}
	return nil
}

func (t *Tracker) ListRecentCIRuns(ctx context.Context, branch string, limit int) ([]model.CheckStatus, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	opts := &gitlab.ListProjectPipelinesOptions{
		Ref:         gitlab.Ptr(branch),
		ListOptions: gitlab.ListOptions{PerPage: limit},
	}
	pipelines, _, err := t.client.Pipelines.ListProjectPipelines(t.projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlabtracker: list pipelines for %q: %w", branch, err)
	}
	statuses := make([]model.CheckStatus, 0, len(pipelines))
	for _, p := range pipelines {
		statuses = append(statuses, mapPipelineStatus(p.Status))
	}
	return statuses, nil
}

func mapIssue(gi *gitlab.Issue) model.Issue {
	labels := make([]string, len(gi.Labels))
	copy(labels, gi.Labels)
	issue := model.Issue{
		Number: gi.IID,
		Title:  gi.Title,
		Body:   gi.Description,
		Labels: labels,
		State:  gi.State,
	}
	if gi.CreatedAt != nil {
		issue.CreatedAt = *gi.CreatedAt
	}
	return issue
}

func mapMergeRequest(mr *gitlab.MergeRequest) model.PullRequest {
	return model.PullRequest{
		Number: mr.IID,
		Branch: mr.SourceBranch,
		State:  mapMRState(mr.State),
		Body:   mr.Description,
	}
}

func mapMRState(state string) model.PRState {
	switch state {
	case "merged":
		return model.PRStateMerged
	case "closed":
		return model.PRStateClosed
	default:
		return model.PRStateOpen
	}
}

func mrStateParam(state model.PRState) string {
	switch state {
	case model.PRStateMerged:
		return "merged"
	case model.PRStateClosed:
		return "closed"
	default:
		return "opened"
	}
}

func mapPipelineStatus(status string) model.CheckStatus {
	switch status {
	case "success":
		return model.CheckStatusPass
	case "failed", "canceled":
		return model.CheckStatusFail
	default:
		return model.CheckStatusPending
	}
}

func mergeLabels(existing, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	merged := make([]string, 0, len(existing)+len(add))
	for _, l := range existing {
		if !seen[l] {
			seen[l] = true
			merged = append(merged, l)
		}
	}
	for _, l := range add {
		if !seen[l] {
			seen[l] = true
			merged = append(merged, l)
		}
	}
	return merged
}
