// Package orchestrator implements the Study Orchestrator (spec §4.4): the
// state machine that turns a validated Manifest into a job graph, hands
// jobs to the Job Executor, folds results back in, and evaluates study
// completion against the manifest's coverage thresholds.
package orchestrator

import (
	"time"

	"github.com/aivisrun/study-core/pkg/manifest"
	"github.com/aivisrun/study-core/pkg/surfaces"
)

// StudyStatus is a node in the study state machine (spec §4.4):
// manifest_received -> validating -> queued -> executing -> one of
// complete/failed/cancelled/paused. paused may resume back to executing.
type StudyStatus string

const (
	StatusManifestReceived StudyStatus = "manifest_received"
	StatusValidating       StudyStatus = "validating"
	StatusQueued           StudyStatus = "queued"
	StatusExecuting        StudyStatus = "executing"
	StatusComplete         StudyStatus = "complete"
	StatusFailed           StudyStatus = "failed"
	StatusCancelled        StudyStatus = "cancelled"
	StatusPaused           StudyStatus = "paused"
)

// JobStatus is a node in a single job-graph cell's lifecycle.
type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobFailed   JobStatus = "failed"
)

// Job is one cell of the study's job graph: a (query, surface, location)
// triple plus its execution state (spec §3, §4.4).
type Job struct {
	ID         string
	StudyID    string
	QueryIndex int
	SurfaceID  string
	LocationID string
	Status     JobStatus
	Attempts   int
	Response   *surfaces.Response
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Study is the top-level unit the orchestrator manages: a manifest, its
// derived job graph, and the study's own state (spec §3, §4.4).
type Study struct {
	ID        string
	Manifest  manifest.Manifest
	Status    StudyStatus
	Jobs      []*Job
	CreatedAt time.Time
	UpdatedAt time.Time
	Retention time.Duration
}

// IsRetentionExpired reports whether a study's evidence retention window
// has elapsed as of now (supplements spec.md's evidence-level model with
// the retention policy every study also carries in practice).
func (s *Study) IsRetentionExpired(now time.Time) bool {
	if s.Retention <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > s.Retention
}

// JobByID finds a job within the study's graph, or nil if absent.
func (s *Study) JobByID(jobID string) *Job {
	for _, j := range s.Jobs {
		if j.ID == jobID {
			return j
		}
	}
	return nil
}

// buildJobGraph constructs the |queries| x |surfaces| x |locations| job
// graph for a study (spec §8 invariant 1: job count equals the product of
// the three manifest dimensions).
func buildJobGraph(studyID string, m manifest.Manifest, idFn func() string, now time.Time) []*Job {
	jobs := make([]*Job, 0, m.CellCount())
	for qi := range m.Queries {
		for _, surface := range m.Surfaces {
			for _, loc := range m.Locations {
				jobs = append(jobs, &Job{
					ID:         idFn(),
					StudyID:    studyID,
					QueryIndex: qi,
					SurfaceID:  surface.ID,
					LocationID: loc.ID,
					Status:     JobPending,
					CreatedAt:  now,
					UpdatedAt:  now,
				})
			}
		}
	}
	return jobs
}
