package store

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ============================================================================
// Store Lifecycle Tests
// ============================================================================

func TestNew(t *testing.T) {
	store, err := New(":memory:", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Expected db to be initialized")
	}
	if store.logger == nil {
		t.Error("Expected logger to be initialized")
	}
}

func TestClose(t *testing.T) {
	store, err := New(":memory:", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Verify the connection is closed by trying to use it
	if _, err := store.ListFetchRuns(0); err == nil {
		t.Error("Expected error when using closed store, but got nil")
	}
}

// ============================================================================
// FetchRun Tests
// ============================================================================

func TestCreateFetchRun(t *testing.T) {
	store := newTestStore(t)

	run := &FetchRun{
		StartTime:    time.Now(),
		Requirements: 12,
		Status:       "running",
	}
	if err := store.CreateFetchRun(run); err != nil {
		t.Fatalf("CreateFetchRun() failed: %v", err)
	}
	if run.ID == 0 {
		t.Error("Expected ID to be set after CreateFetchRun")
	}
}

func TestUpdateFetchRun(t *testing.T) {
	store := newTestStore(t)

	run := &FetchRun{
		StartTime:    time.Now(),
		Requirements: 3,
		Status:       "running",
	}
	if err := store.CreateFetchRun(run); err != nil {
		t.Fatalf("CreateFetchRun() failed: %v", err)
	}

	run.EndTime = time.Now()
	run.Fetched = 2
	run.Skipped = 1
	run.Status = "success"
	if err := store.UpdateFetchRun(run); err != nil {
		t.Fatalf("UpdateFetchRun() failed: %v", err)
	}

	runs, err := store.ListFetchRuns(0)
	if err != nil {
		t.Fatalf("ListFetchRuns() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != "success" || runs[0].Fetched != 2 || runs[0].Skipped != 1 {
		t.Errorf("unexpected run after update: %+v", runs[0])
	}
}

func TestUpdateFetchRunNotFound(t *testing.T) {
	store := newTestStore(t)

	run := &FetchRun{ID: 9999, Status: "success"}
	if err := store.UpdateFetchRun(run); err == nil {
		t.Error("Expected error updating nonexistent run, got nil")
	}
}

func TestListFetchRunsOrderAndLimit(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := &FetchRun{
			StartTime: base.Add(time.Duration(i) * time.Minute),
			Status:    "success",
			Fetched:   i,
		}
		if err := store.CreateFetchRun(run); err != nil {
			t.Fatalf("CreateFetchRun() failed: %v", err)
		}
	}

	runs, err := store.ListFetchRuns(2)
	if err != nil {
		t.Fatalf("ListFetchRuns() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Newest first
	if runs[0].Fetched != 2 || runs[1].Fetched != 1 {
		t.Errorf("unexpected ordering: %+v", runs)
	}
}

// ============================================================================
// ArtifactRecord Tests
// ============================================================================

func TestUpsertArtifactRecord(t *testing.T) {
	store := newTestStore(t)

	rec := &ArtifactRecord{
		Filename:    "numpy-1.26.4-cp312-cp312-manylinux2014_x86_64.whl",
		Package:     "numpy",
		Version:     "1.26.4",
		PlatformTag: "manylinux2014_x86_64",
		Size:        17000000,
	}
	if err := store.UpsertArtifactRecord(rec); err != nil {
		t.Fatalf("UpsertArtifactRecord() failed: %v", err)
	}

	// Upserting the same filename does not duplicate it
	rec.Size = 18000000
	if err := store.UpsertArtifactRecord(rec); err != nil {
		t.Fatalf("second UpsertArtifactRecord() failed: %v", err)
	}

	count, err := store.CountArtifactRecords()
	if err != nil {
		t.Fatalf("CountArtifactRecords() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record after upsert, got %d", count)
	}

	records, err := store.ListArtifactRecords("numpy")
	if err != nil {
		t.Fatalf("ListArtifactRecords() failed: %v", err)
	}
	if len(records) != 1 || records[0].Size != 18000000 {
		t.Errorf("unexpected records after upsert: %+v", records)
	}
}

func TestListArtifactRecordsFilter(t *testing.T) {
	store := newTestStore(t)

	for _, rec := range []*ArtifactRecord{
		{Filename: "numpy-1.26.4-cp312-cp312-manylinux2014_x86_64.whl", Package: "numpy", Version: "1.26.4", Size: 100},
		{Filename: "requests-2.32.3-py3-none-any.whl", Package: "requests", Version: "2.32.3", Size: 50},
	} {
		if err := store.UpsertArtifactRecord(rec); err != nil {
			t.Fatalf("UpsertArtifactRecord() failed: %v", err)
		}
	}

	records, err := store.ListArtifactRecords("requests")
	if err != nil {
		t.Fatalf("ListArtifactRecords() failed: %v", err)
	}
	if len(records) != 1 || records[0].Package != "requests" {
		t.Errorf("unexpected filtered records: %+v", records)
	}

	all, err := store.ListArtifactRecords("")
	if err != nil {
		t.Fatalf("ListArtifactRecords(\"\") failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 records, got %d", len(all))
	}

	total, err := store.SumArtifactSize()
	if err != nil {
		t.Fatalf("SumArtifactSize() failed: %v", err)
	}
	if total != 150 {
		t.Errorf("expected total size 150, got %d", total)
	}
}

// ============================================================================
// FailedRequirement Tests
// ============================================================================

func TestFailedRequirementLifecycle(t *testing.T) {
	store := newTestStore(t)

	rec := &FailedRequirement{
		Specifier:       "numpy==1.24.4",
		Platform:        "manylinux2014_x86_64",
		Kind:            "incompatible",
		Diagnostic:      "ERROR: No matching distribution found for numpy==1.24.4",
		SuggestionsJSON: `["numpy==1.24.4 (last known 1.24-series release)","numpy (latest)"]`,
		FailedAt:        time.Now(),
	}
	if err := store.AddFailedRequirement(rec); err != nil {
		t.Fatalf("AddFailedRequirement() failed: %v", err)
	}
	if rec.ID == 0 {
		t.Error("Expected ID to be set after AddFailedRequirement")
	}

	pending, err := store.ListFailedRequirements()
	if err != nil {
		t.Fatalf("ListFailedRequirements() failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Specifier != "numpy==1.24.4" {
		t.Errorf("unexpected pending entries: %+v", pending)
	}

	if err := store.ResolveFailedRequirement(rec.ID); err != nil {
		t.Fatalf("ResolveFailedRequirement() failed: %v", err)
	}

	pending, err = store.ListFailedRequirements()
	if err != nil {
		t.Fatalf("ListFailedRequirements() failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending entries after resolve, got %+v", pending)
	}
}

func TestResolveFailedRequirementNotFound(t *testing.T) {
	store := newTestStore(t)

	if err := store.ResolveFailedRequirement(424242); err == nil {
		t.Error("Expected error resolving nonexistent entry, got nil")
	}
}

// ============================================================================
// Bundle Tests
// ============================================================================

func TestBundleLifecycle(t *testing.T) {
	store := newTestStore(t)

	b := &Bundle{
		Direction: "export",
		Path:      "/mnt/transfer-disk",
		StartTime: time.Now(),
		Status:    "running",
	}
	if err := store.CreateBundle(b); err != nil {
		t.Fatalf("CreateBundle() failed: %v", err)
	}
	if b.ID == 0 {
		t.Error("Expected ID to be set after CreateBundle")
	}

	b.ArchiveCount = 3
	b.TotalSize = 1 << 30
	b.Status = "success"
	b.EndTime = time.Now()
	if err := store.UpdateBundle(b); err != nil {
		t.Fatalf("UpdateBundle() failed: %v", err)
	}

	bundles, err := store.ListBundles(0)
	if err != nil {
		t.Fatalf("ListBundles() failed: %v", err)
	}
	if len(bundles) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(bundles))
	}
	if bundles[0].Status != "success" || bundles[0].ArchiveCount != 3 {
		t.Errorf("unexpected bundle after update: %+v", bundles[0])
	}
}

func TestUpdateBundleNotFound(t *testing.T) {
	store := newTestStore(t)

	b := &Bundle{ID: 31337, Status: "success"}
	if err := store.UpdateBundle(b); err == nil {
		t.Error("Expected error updating nonexistent bundle, got nil")
	}
}
