package tasks

import "fmt"

// Update represents a progress event during a page fetch.
//
// Used to send real-time updates to the CLI or UI layer for display.
type Update struct {
	Phase   Phase  // Fetch phase
	Prefix  string // Lineup the fetch belongs to
	Source  string // Source key of the fetch
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Fetch phase enumeration
type Phase int

const (
	FetchStarted Phase = iota
	FetchSucceeded
	FetchFailed
)

func (p Phase) String() string {
	switch p {
	case FetchStarted:
		return "fetch_started"
	case FetchSucceeded:
		return "fetch_succeeded"
	case FetchFailed:
		return "fetch_failed"
	default:
		return ""
	}
}

// sendProgress sends an update through the channel without blocking. Uses
// select with default so progress reporting never stalls a fetch.
func sendProgress(progress chan<- Update, update Update) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchStartedUpdate(prefix, source string, offset, limit int) Update {
	return Update{
		Phase:   FetchStarted,
		Prefix:  prefix,
		Source:  source,
		Message: fmt.Sprintf("Fetching %s (offset %d, limit %d)...", source, offset, limit),
	}
}

func fetchSucceededUpdate(commit PageCommit) Update {
	return Update{
		Phase:   FetchSucceeded,
		Prefix:  commit.Prefix,
		Source:  commit.Source,
		Message: fmt.Sprintf("Fetched %d items (%d null, %d removed)", len(commit.Entries), commit.NullCount, commit.DeletedCount),
		Data:    commit,
	}
}

func fetchFailedUpdate(prefix, source string, err error) Update {
	return Update{
		Phase:   FetchFailed,
		Prefix:  prefix,
		Source:  source,
		Message: fmt.Sprintf("Fetch of %s failed: %v", source, err),
	}
}
