package model

import "time"

// Status is the terminal state of one account's enrichment.
type Status string

const (
	StatusEnriched         Status = "ENRICHED"
	StatusNoResult         Status = "NO_RESULT"
	StatusSkipped          Status = "SKIPPED"
	StatusSanityCheck      Status = "SKIPPED_SANITY_CHECK"
	StatusError            Status = "ERROR"
	StatusAlreadyProcessed Status = "ALREADY_PROCESSED"
)

// AllStatuses lists every status in reporting order.
var AllStatuses = []Status{
	StatusEnriched,
	StatusNoResult,
	StatusSkipped,
	StatusSanityCheck,
	StatusError,
	StatusAlreadyProcessed,
}

// Persisted reports whether outcomes with this status are written to staging.
func (s Status) Persisted() bool {
	return s != StatusAlreadyProcessed && s != ""
}

// Resumable reports whether an account with this status counts as done for
// resume purposes. ERROR accounts are retried on the next run.
func (s Status) Resumable() bool {
	return s.Persisted() && s != StatusError
}

// SyncStatus tracks a staged row's propagation to Salesforce.
type SyncStatus string

const (
	SyncNone    SyncStatus = ""
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncError   SyncStatus = "ERROR"
)

// Outcome is the result of enriching one account.
type Outcome struct {
	AccountID    string     `json:"account_id"`
	AccountName  string     `json:"account_name"`
	Status       Status     `json:"status"`
	Message      string     `json:"message"`
	Place        *Place     `json:"place,omitempty"`
	MatchScore   int        `json:"match_score"`
	MatchedField string     `json:"matched_field,omitempty"`
	RunID        string     `json:"run_id,omitempty"`
	SyncStatus   SyncStatus `json:"sync_status,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// StagedResult is an outcome as read back from the staging store.
type StagedResult struct {
	Outcome
	UpdatedAt time.Time `json:"updated_at"`
}
