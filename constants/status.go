package constants

// JobStatus is the canonical lifecycle state of an extraction job.
type JobStatus string

// Stable values (these exact strings appear in status responses).
const (
	JobStatusQueued     JobStatus = "queued"     // accepted, work list not yet materialized
	JobStatusProcessing JobStatus = "processing" // documents in flight
	JobStatusCompleted  JobStatus = "completed"  // report written, terminal
	JobStatusFailed     JobStatus = "failed"     // unrecoverable fault, terminal
)

// Terminal reports whether a status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
