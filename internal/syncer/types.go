package syncer

import "time"

// CodeFailure pairs a code with the reason it failed.
type CodeFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunResult summarizes one synchronization pass. Success reflects only
// global preconditions; per-code failures land in Errors with Success
// still true, so callers always see exactly which codes failed and why.
type RunResult struct {
	RunID      string    `json:"run_id"`
	TargetDate string    `json:"target_date"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Processed int `json:"total_processed"`

	Updated  []string      `json:"updated"`
	Inserted []string      `json:"inserted"`
	Errors   []CodeFailure `json:"errors"`
}

// UpdatedCount returns how many codes took the update path.
func (r *RunResult) UpdatedCount() int { return len(r.Updated) }

// InsertedCount returns how many codes took the insert path.
func (r *RunResult) InsertedCount() int { return len(r.Inserted) }

// ErrorCount returns how many codes failed.
func (r *RunResult) ErrorCount() int { return len(r.Errors) }
