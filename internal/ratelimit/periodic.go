// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ratelimit bounds how often the engine's periodic actions
// (news intake, research scout, strategic director) run, each against
// its own persisted cadence state.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PeriodicAction is something the engine runs on a schedule, with its
// own persisted notion of "did I already run enough today/this week".
type PeriodicAction interface {
	Name() string
	ShouldRun(now time.Time) bool
	Run(ctx context.Context) error
}

// State is the on-disk cadence record for one PeriodicAction, one JSON
// file per action under the engine's state directory.
type State struct {
	LastRun    time.Time `json:"last_run"`
	RunsToday  int       `json:"runs_today"`
	DayOfToday string    `json:"day_of_today"`
}

// FileStore persists PeriodicAction State as one JSON file per action
// name. Safe for concurrent use.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore roots state files under dir, which must already exist.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads the persisted State for name, returning the zero State if
// no file exists yet.
func (s *FileStore) Load(name string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("ratelimit: read state for %q: %w", name, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("ratelimit: decode state for %q: %w", name, err)
	}
	return st, nil
}

// Save persists st for name, atomically replacing the prior file.
func (s *FileStore) Save(name string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("ratelimit: encode state for %q: %w", name, err)
	}
	tmp := s.path(name) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("ratelimit: write state for %q: %w", name, err)
	}
	return os.Rename(tmp, s.path(name))
}

// DailyCapped runs an underlying action at most maxPerDay times per
// calendar day (UTC). Used for news intake (≤3/day).
type DailyCapped struct {
	name       string
	maxPerDay  int
	store      *FileStore
	underlying func(ctx context.Context) error
}

// NewDailyCapped builds a DailyCapped periodic action.
func NewDailyCapped(name string, maxPerDay int, store *FileStore, fn func(ctx context.Context) error) *DailyCapped {
	return &DailyCapped{name: name, maxPerDay: maxPerDay, store: store, underlying: fn}
}

func (d *DailyCapped) Name() string { return d.name }

func (d *DailyCapped) ShouldRun(now time.Time) bool {
	st, err := d.store.Load(d.name)
	if err != nil {
		return false
	}
	today := now.UTC().Format("2006-01-02")
	if st.DayOfToday != today {
		return true
	}
	return st.RunsToday < d.maxPerDay
}

func (d *DailyCapped) Run(ctx context.Context) error {
	if err := d.underlying(ctx); err != nil {
		return err
	}
	now := time.Now().UTC()
	st, err := d.store.Load(d.name)
	if err != nil {
		return err
	}
	today := now.Format("2006-01-02")
	if st.DayOfToday != today {
		st.DayOfToday = today
		st.RunsToday = 0
	}
	st.RunsToday++
	st.LastRun = now
	return d.store.Save(d.name, st)
}

// CronScheduled runs an underlying action no more often than a cron
// schedule expression permits. Used for research scout (weekly
// default) and for interval-based oversight actions whose cadence is
// configured rather than hard-coded.
type CronScheduled struct {
	name       string
	schedule   cron.Schedule
	store      *FileStore
	underlying func(ctx context.Context) error
}

// NewCronScheduled parses expr (standard five-field cron syntax) and
// builds a CronScheduled periodic action.
func NewCronScheduled(name, expr string, store *FileStore, fn func(ctx context.Context) error) (*CronScheduled, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse schedule %q for %q: %w", expr, name, err)
	}
	return &CronScheduled{name: name, schedule: sched, store: store, underlying: fn}, nil
}

func (c *CronScheduled) Name() string { return c.name }

func (c *CronScheduled) ShouldRun(now time.Time) bool {
	st, err := c.store.Load(c.name)
	if err != nil {
		return false
	}
	if st.LastRun.IsZero() {
		return true
	}
	return !now.Before(c.schedule.Next(st.LastRun))
}

func (c *CronScheduled) Run(ctx context.Context) error {
	if err := c.underlying(ctx); err != nil {
		return err
	}
	st, err := c.store.Load(c.name)
	if err != nil {
		return err
	}
	st.LastRun = time.Now().UTC()
	return c.store.Save(c.name, st)
}

// CountCapped runs an underlying action at most maxCount times total,
// never reset, for caps on cumulative output rather than cadence. No
// caller in this module constructs one; the directors' two-issue cap
// is enforced inside internal/oversight instead.
type CountCapped struct {
	name       string
	maxCount   int
	store      *FileStore
	underlying func(ctx context.Context) error
}

// NewCountCapped builds a CountCapped periodic action.
func NewCountCapped(name string, maxCount int, store *FileStore, fn func(ctx context.Context) error) *CountCapped {
	return &CountCapped{name: name, maxCount: maxCount, store: store, underlying: fn}
}

func (c *CountCapped) Name() string { return c.name }

func (c *CountCapped) ShouldRun(now time.Time) bool {
	st, err := c.store.Load(c.name)
	if err != nil {
		return false
	}
	return st.RunsToday < c.maxCount
}

func (c *CountCapped) Run(ctx context.Context) error {
	if err := c.underlying(ctx); err != nil {
		return err
	}
	st, err := c.store.Load(c.name)
	if err != nil {
		return err
	}
	st.RunsToday++
	st.LastRun = time.Now().UTC()
	return c.store.Save(c.name, st)
}

var (
	_ PeriodicAction = (*DailyCapped)(nil)
	_ PeriodicAction = (*CronScheduled)(nil)
	_ PeriodicAction = (*CountCapped)(nil)
)
