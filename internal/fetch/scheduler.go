// Package fetch drives requirement acquisition: a bounded worker pool
// dispatching pip fetch attempts, with dedup-skip against the wheelhouse
// and halt-on-first-failure semantics.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BadgerOps/wheelgap/internal/manifest"
	"github.com/BadgerOps/wheelgap/internal/pip"
	"github.com/BadgerOps/wheelgap/internal/store"
	"github.com/BadgerOps/wheelgap/internal/wheelhouse"
)

// Status is the outcome of one requirement within a run.
type Status string

const (
	StatusFetched        Status = "fetched"
	StatusAlreadyPresent Status = "already_present"
	StatusFailed         Status = "failed"
)

// Result is the outcome of processing one requirement.
type Result struct {
	Requirement manifest.Requirement
	Status      Status
	Diagnostic  string // combined pip output on failure
	Platform    string // platform tag of the failing attempt
	Kind        pip.FailureKind
	Suggestions []pip.Suggestion
	index       int // original manifest position, for stable reporting
}

// Report summarizes a completed (or halted) acquisition run.
type Report struct {
	Results  []Result
	Fetched  int
	Skipped  int
	Failed   int
	Failure  *Result // first observed failure, nil on success
	Duration time.Duration
}

// Scheduler dispatches requirements to the fetcher with bounded
// parallelism. The first failed attempt halts dispatch of new work;
// in-flight attempts run to completion so no partially written artifacts
// are left behind.
type Scheduler struct {
	wheelhouse *wheelhouse.Store
	fetcher    pip.Fetcher
	records    *store.Store // optional run/artifact persistence; nil disables it
	workers    int
	platforms  []string
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler. workers defaults to 1 when non-positive.
func NewScheduler(wh *wheelhouse.Store, fetcher pip.Fetcher, records *store.Store, workers int, platforms []string, logger *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		wheelhouse: wh,
		fetcher:    fetcher,
		records:    records,
		workers:    workers,
		platforms:  platforms,
		logger:     logger,
	}
}

// Run processes the manifest requirements to completion. The returned
// error is non-nil when any requirement failed; the Report is returned in
// either case. Which of several concurrently failing requirements is
// reported first is not deterministic, but the success/failure verdict is.
func (s *Scheduler) Run(ctx context.Context, reqs []manifest.Requirement) (*Report, error) {
	startTime := time.Now()

	run := s.beginRun(len(reqs))

	// A requirement is scheduled at most once per run, keyed by its
	// normalized manifest line.
	seen := make(map[string]bool, len(reqs))
	var pending []job
	var results []Result

	for i, req := range reqs {
		if seen[req.Raw] {
			continue
		}
		seen[req.Raw] = true

		satisfied, err := s.wheelhouse.Satisfied(req, s.platforms)
		if err != nil {
			s.finishRun(run, nil, err)
			return nil, fmt.Errorf("checking wheelhouse for %s: %w", req, err)
		}
		if satisfied {
			s.logger.Info("already present, skipping", "requirement", req.String())
			results = append(results, Result{Requirement: req, Status: StatusAlreadyPresent, index: i})
			continue
		}
		pending = append(pending, job{req: req, index: i})
	}

	if len(pending) > 0 {
		results = append(results, s.execute(ctx, pending)...)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })

	report := &Report{Results: results}
	for i := range results {
		switch results[i].Status {
		case StatusFetched:
			report.Fetched++
		case StatusAlreadyPresent:
			report.Skipped++
		case StatusFailed:
			report.Failed++
			if report.Failure == nil {
				report.Failure = &results[i]
			}
		}
	}
	report.Duration = time.Since(startTime)

	s.finishRun(run, report, nil)

	if report.Failure != nil {
		return report, fmt.Errorf("failed to fetch %s", report.Failure.Requirement)
	}
	return report, nil
}

type job struct {
	req   manifest.Requirement
	index int
}

// execute fans pending jobs out to the worker pool and collects results.
func (s *Scheduler) execute(ctx context.Context, pending []job) []Result {
	jobsChan := make(chan job)
	resultsChan := make(chan Result, len(pending))

	// halt suppresses new dispatch after the first failure. It is a
	// separate signal from ctx so in-flight pip subprocesses are never
	// killed by another requirement's failure.
	halt := make(chan struct{})
	var haltOnce sync.Once

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobsChan {
				// A job can slip past the dispatcher in the same instant
				// halt closes; drain it instead of executing.
				select {
				case <-halt:
					continue
				default:
				}
				result := s.attempt(ctx, j)
				if result.Status == StatusFailed {
					haltOnce.Do(func() { close(halt) })
				}
				resultsChan <- result
			}
		}()
	}

	go func() {
		defer close(jobsChan)
		for _, j := range pending {
			select {
			case <-halt:
				return
			case <-ctx.Done():
				return
			case jobsChan <- j:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var results []Result
	for result := range resultsChan {
		results = append(results, result)
	}
	return results
}

// attempt runs one acquisition attempt: every configured platform tag is
// fetched in turn, skipping platforms already covered by artifacts another
// requirement's dependencies pulled in.
func (s *Scheduler) attempt(ctx context.Context, j job) Result {
	req := j.req

	for _, platform := range s.platforms {
		satisfied, err := s.wheelhouse.Satisfied(req, []string{platform})
		if err == nil && satisfied {
			s.logger.Debug("platform already covered", "requirement", req.String(), "platform", platform)
			continue
		}

		s.logger.Info("fetching", "requirement", req.String(), "platform", platform)
		outcome := s.fetcher.Fetch(ctx, req, platform)
		if !outcome.OK {
			kind := pip.Classify(outcome.Output)
			result := Result{
				Requirement: req,
				Status:      StatusFailed,
				Diagnostic:  outcome.Output,
				Platform:    platform,
				Kind:        kind,
				Suggestions: pip.Suggest(req, kind),
				index:       j.index,
			}
			s.logger.Error("fetch failed", "requirement", req.String(), "platform", platform, "kind", string(kind))
			s.deadLetter(result)
			return result
		}
		s.logger.Info("fetched", "requirement", req.String(), "platform", platform)
	}

	return Result{Requirement: req, Status: StatusFetched, index: j.index}
}

// beginRun records the start of a run in the store, when one is configured.
func (s *Scheduler) beginRun(requirements int) *store.FetchRun {
	if s.records == nil {
		return nil
	}
	run := &store.FetchRun{
		StartTime:    time.Now(),
		Requirements: requirements,
		Status:       "running",
	}
	if err := s.records.CreateFetchRun(run); err != nil {
		s.logger.Warn("failed to record run start", "error", err)
		return nil
	}
	return run
}

// finishRun finalizes the run record and registers artifacts now present
// in the wheelhouse.
func (s *Scheduler) finishRun(run *store.FetchRun, report *Report, runErr error) {
	if s.records == nil || run == nil {
		return
	}

	run.EndTime = time.Now()
	switch {
	case runErr != nil:
		run.Status = "failed"
		run.ErrorMessage = runErr.Error()
	case report != nil && report.Failure != nil:
		run.Status = "failed"
		run.ErrorMessage = "failed to fetch " + report.Failure.Requirement.String()
	default:
		run.Status = "success"
	}
	if report != nil {
		run.Fetched = report.Fetched
		run.Skipped = report.Skipped
		run.Failed = report.Failed
	}
	if err := s.records.UpdateFetchRun(run); err != nil {
		s.logger.Warn("failed to record run end", "error", err)
	}

	artifacts, err := s.wheelhouse.Scan()
	if err != nil {
		s.logger.Warn("failed to scan wheelhouse for registration", "error", err)
		return
	}
	for _, art := range artifacts {
		rec := &store.ArtifactRecord{
			Filename:    art.Filename,
			Package:     art.NormalizedName(),
			Version:     art.Version,
			PlatformTag: art.PlatformTag,
			Size:        art.Size,
			FetchRunID:  run.ID,
		}
		if err := s.records.UpsertArtifactRecord(rec); err != nil {
			s.logger.Warn("failed to register artifact", "file", art.Filename, "error", err)
		}
	}
}

// deadLetter stores a failed requirement for later inspection via status.
func (s *Scheduler) deadLetter(result Result) {
	if s.records == nil {
		return
	}

	suggestions, err := json.Marshal(suggestionStrings(result.Suggestions))
	if err != nil {
		suggestions = []byte("[]")
	}
	rec := &store.FailedRequirement{
		Specifier:       result.Requirement.String(),
		Platform:        result.Platform,
		Kind:            string(result.Kind),
		Diagnostic:      pip.DiagnosticExcerpt(result.Diagnostic, 20),
		SuggestionsJSON: string(suggestions),
		FailedAt:        time.Now(),
	}
	if err := s.records.AddFailedRequirement(rec); err != nil {
		s.logger.Warn("failed to dead-letter requirement", "requirement", result.Requirement.String(), "error", err)
	}
}

func suggestionStrings(suggestions []pip.Suggestion) []string {
	out := make([]string, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, fmt.Sprintf("%s (%s)", sg.Requirement, sg.Rationale))
	}
	return out
}
