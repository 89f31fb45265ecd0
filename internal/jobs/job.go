// Package jobs owns the lifecycle of a batch submission: the job
// record, the registry the HTTP facade reads from, and the
// orchestrator that drives a job to a terminal state.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/SoubhikGhosh/neev-cheques-clearing/constants"
)

// Job is one batch submission. All mutation goes through the
// orchestrator; everyone else reads point-in-time Snapshots.
type Job struct {
	mu sync.Mutex

	id             string
	status         constants.JobStatus
	inputFiles     []string
	totalUnits     int
	completedUnits int
	startTime      time.Time
	endTime        time.Time
	outputPath     string
	errMessage     string
	cancel         context.CancelFunc
}

// Snapshot is a non-blocking read of a job's current state.
type Snapshot struct {
	JobID              string              `json:"job_id"`
	Status             constants.JobStatus `json:"status"`
	InputFiles         []string            `json:"input_files"`
	TotalUnits         int                 `json:"total_files"`
	CompletedUnits     int                 `json:"processed_files"`
	ProgressPercentage float64             `json:"progress_percentage"`
	StartTime          time.Time           `json:"start_time"`
	EndTime            *time.Time          `json:"end_time,omitempty"`
	ProcessingSeconds  float64             `json:"processing_time,omitempty"`
	OutputPath         string              `json:"output_file_path,omitempty"`
	Error              string              `json:"error_message,omitempty"`
}

// ID returns the job's immutable identifier.
func (j *Job) ID() string {
	return j.id
}

// Snapshot captures the job's current state under its lock.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Snapshot{
		JobID:          j.id,
		Status:         j.status,
		InputFiles:     j.inputFiles,
		TotalUnits:     j.totalUnits,
		CompletedUnits: j.completedUnits,
		StartTime:      j.startTime,
		OutputPath:     j.outputPath,
		Error:          j.errMessage,
	}
	if j.totalUnits > 0 {
		s.ProgressPercentage = float64(j.completedUnits) / float64(j.totalUnits) * 100
	}
	if !j.endTime.IsZero() {
		end := j.endTime
		s.EndTime = &end
		s.ProcessingSeconds = end.Sub(j.startTime).Seconds()
	}
	return s
}

// Cancel aborts in-flight waits for this job. Safe to call repeatedly
// and after the job has reached a terminal state.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// begin transitions queued -> processing once the work list is known.
func (j *Job) begin(totalUnits int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = constants.JobStatusProcessing
	j.totalUnits = totalUnits
}

// unitDone advances the completion counter by one. Outcomes land from
// many workers; the job lock serializes the increments.
func (j *Job) unitDone() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completedUnits++
}

// complete marks the job terminal with its report location.
func (j *Job) complete(outputPath string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = constants.JobStatusCompleted
	j.outputPath = outputPath
	j.endTime = time.Now().UTC()
}

// fail marks the job terminal with a fault description.
func (j *Job) fail(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = constants.JobStatusFailed
	j.errMessage = message
	j.endTime = time.Now().UTC()
}
