package batch

import (
	"strings"
)

// Status for job tracking within a batch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Result holds everything exportable for one completed job.
type Result struct {
	Text           string `json:"text"`
	SubtitleText   string `json:"subtitle_text"`
	SourceURL      string `json:"source_url"`
	ExportBaseName string `json:"export_base_name"`
	Language       string `json:"language,omitempty"`
}

// Job is one unit of work in a batch. ID is the zero-based position, stable
// for the batch's lifetime.
type Job struct {
	ID            int     `json:"id"`
	SourceURL     string  `json:"source_url"`
	Status        Status  `json:"status"`
	Result        *Result `json:"result,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// Batch is the ordered job list plus cursor state. Mutated only by the
// processor loop, under the processor's lock.
type Batch struct {
	Generation string
	Jobs       []Job
	Cursor     int
	Running    bool
	Completed  []Result
}

// Snapshot is the full-state view handed to the presentation layer. Renders
// must be idempotent against it; it is never a diff.
type Snapshot struct {
	Generation     string `json:"generation"`
	Running        bool   `json:"running"`
	Jobs           []Job  `json:"jobs"`
	CompletedCount int    `json:"completed_count"`
	TotalCount     int    `json:"total_count"`
}

// JobUpdate is emitted on every job state transition.
type JobUpdate struct {
	Generation    string `json:"generation"`
	JobID         int    `json:"job_id"`
	Status        Status `json:"status"`
	ResultSummary string `json:"result_summary,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Summary is emitted once when the cursor passes the last job.
type Summary struct {
	Generation     string `json:"generation"`
	CompletedCount int    `json:"completed_count"`
	TotalCount     int    `json:"total_count"`
}

// NormalizeURL strips everything from the first '?' onward. Tracking
// parameters (igsh, utm_*) otherwise leak into export manifests and upset
// the proxy's URL matching.
func NormalizeURL(raw string) string {
	if i := strings.Index(raw, "?"); i >= 0 {
		return raw[:i]
	}
	return raw
}
