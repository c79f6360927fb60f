package store

import "time"

// FetchRun records one acquisition run
type FetchRun struct {
	ID           int64
	StartTime    time.Time
	EndTime      time.Time
	Requirements int
	Fetched      int
	Skipped      int
	Failed       int
	Status       string // "running", "success", "failed"
	ErrorMessage string
}

// ArtifactRecord tracks one artifact present in the wheelhouse
type ArtifactRecord struct {
	ID          int64
	Filename    string
	Package     string // normalized package name
	Version     string
	PlatformTag string
	Size        int64
	SHA256      string
	FetchRunID  int64
	RecordedAt  time.Time
}

// FailedRequirement is a dead letter queue entry for a requirement that
// halted a run
type FailedRequirement struct {
	ID              int64
	Specifier       string
	Platform        string
	Kind            string // "incompatible" or "generic"
	Diagnostic      string
	SuggestionsJSON string
	FailedAt        time.Time
	Resolved        bool
}

// Bundle records an export or import of the wheelhouse via transfer media
type Bundle struct {
	ID           int64
	Direction    string // "export" or "import"
	Path         string
	ArchiveCount int
	TotalSize    int64
	Status       string // "running", "completed", "failed"
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
}
