// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tracker defines the engine's view of an external issue
// tracker and pull-request host. The engine is written against this
// interface only; gitlabtracker supplies the production adapter and
// faketracker an in-memory one for tests.
package tracker

import (
	"context"

	"github.com/civicsentinel/engine/internal/model"
)

// Tracker is every operation the engine performs against an external
// issue tracker and pull/merge-request host.
type Tracker interface {
	ListOpenIssues(ctx context.Context, label string) ([]model.Issue, error)
	GetIssue(ctx context.Context, number int) (*model.Issue, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (*model.Issue, error)
	AddLabels(ctx context.Context, number int, labels []string) error
	RemoveLabels(ctx context.Context, number int, labels []string) error
	CloseIssue(ctx context.Context, number int) error
	PostComment(ctx context.Context, number int, body string) error

	CreateBranch(ctx context.Context, name, fromRef string) error
	OpenPullRequest(ctx context.Context, branch, title, body string) (*model.PullRequest, error)
	ListPullRequests(ctx context.Context, state model.PRState) ([]model.PullRequest, error)
	ListReviewComments(ctx context.Context, number int) ([]string, error)
	MergePullRequest(ctx context.Context, number int) error
	ClosePullRequest(ctx context.Context, number int) error
	ListRecentCIRuns(ctx context.Context, branch string, limit int) ([]model.CheckStatus, error)
}
