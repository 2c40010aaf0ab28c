package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	coreerrors "github.com/aivisrun/study-core/pkg/errors"
	"github.com/aivisrun/study-core/pkg/executor"
	"github.com/aivisrun/study-core/pkg/manifest"
	"github.com/aivisrun/study-core/pkg/observability"
	"github.com/aivisrun/study-core/pkg/surfaces"
	"github.com/aivisrun/study-core/pkg/validator"
)

// transitions is the allowed-next-state table for the study state machine
// (spec §4.4). paused is the only state that can return to executing.
var transitions = map[StudyStatus][]StudyStatus{
	StatusManifestReceived: {StatusValidating, StatusFailed, StatusCancelled},
	StatusValidating:       {StatusQueued, StatusFailed, StatusCancelled},
	StatusQueued:           {StatusExecuting, StatusCancelled},
	StatusExecuting:        {StatusComplete, StatusFailed, StatusCancelled, StatusPaused},
	StatusPaused:           {StatusExecuting, StatusCancelled},
}

func canTransition(from, to StudyStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Orchestrator is the Study Orchestrator (spec §4.4): it validates
// manifests, builds job graphs, drives studies through their state machine,
// and delegates job-graph and study completion checks to the Validator.
type Orchestrator struct {
	store   Store
	exec    *executor.Executor
	strict  bool
	logger  observability.Logger
	metrics observability.MetricsClient
	idFn    func() string
	nowFn   func() time.Time
}

// Options configures an Orchestrator.
type Options struct {
	Store      Store
	Executor   *executor.Executor
	StrictMode bool
	Logger     observability.Logger
	Metrics    observability.MetricsClient
}

// NewOrchestrator builds an Orchestrator. A nil Store defaults to a fresh
// MemoryStore.
func NewOrchestrator(opts Options) *Orchestrator {
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Orchestrator{
		store:   store,
		exec:    opts.Executor,
		strict:  opts.StrictMode,
		logger:  logger,
		metrics: metrics,
		idFn:    func() string { return uuid.NewString() },
		nowFn:   time.Now,
	}
}

// CreateStudy validates a manifest, constructs its job graph, and persists
// the new study in manifest_received then validating then queued (spec
// §4.4 CreateStudy).
func (o *Orchestrator) CreateStudy(m manifest.Manifest) (*Study, error) {
	now := o.nowFn()
	study := &Study{
		ID:        o.idFn(),
		Manifest:  m,
		Status:    StatusManifestReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.Create(study); err != nil {
		return nil, err
	}

	if err := o.transition(study, StatusValidating); err != nil {
		return nil, err
	}
	if err := manifest.Validate(m); err != nil {
		_ = o.transition(study, StatusFailed)
		return study, fmt.Errorf("manifest validation failed: %w", err)
	}

	study.Jobs = buildJobGraph(study.ID, m, o.idFn, o.nowFn())
	if len(study.Jobs) != m.CellCount() {
		_ = o.transition(study, StatusFailed)
		return study, fmt.Errorf("job graph size %d does not match cell count %d", len(study.Jobs), m.CellCount())
	}

	if err := o.transition(study, StatusQueued); err != nil {
		return nil, err
	}
	return study, o.store.Update(study)
}

// StartStudy transitions a queued study to executing and submits its job
// graph to the Job Executor.
func (o *Orchestrator) StartStudy(ctx context.Context, studyID string) error {
	study, err := o.store.Get(studyID)
	if err != nil {
		return err
	}
	if err := o.transition(study, StatusExecuting); err != nil {
		return err
	}
	if err := o.store.Update(study); err != nil {
		return err
	}

	if o.exec == nil {
		return nil
	}
	jobs := make([]executor.Job, 0, len(study.Jobs))
	for _, j := range study.Jobs {
		if j.Status != JobPending {
			continue
		}
		query := study.Manifest.Queries[j.QueryIndex]
		jobs = append(jobs, executor.Job{
			ID:         j.ID,
			StudyID:    study.ID,
			SurfaceID:  j.SurfaceID,
			Priority:   executor.PriorityNormal,
			MaxRetries: study.Manifest.CompletionCriteria.MaxRetriesPerCell,
			Request:    surfaceRequestFor(query),
		})
	}
	o.exec.SubmitJobs(jobs)
	return nil
}

// PauseStudy transitions an executing study to paused.
func (o *Orchestrator) PauseStudy(studyID string) error {
	study, err := o.store.Get(studyID)
	if err != nil {
		return err
	}
	if err := o.transition(study, StatusPaused); err != nil {
		return err
	}
	return o.store.Update(study)
}

// ResumeStudy transitions a paused study back to executing.
func (o *Orchestrator) ResumeStudy(studyID string) error {
	study, err := o.store.Get(studyID)
	if err != nil {
		return err
	}
	if err := o.transition(study, StatusExecuting); err != nil {
		return err
	}
	return o.store.Update(study)
}

// CancelStudy transitions a study to cancelled from any state that allows
// it and clears any of its jobs still queued in the executor (spec §5, §8
// scenario 5). A job already popped for dispatch stays in flight; its
// result still arrives on the executor's Results channel, but CompleteJob
// and FailJob discard it once the study is no longer executing.
func (o *Orchestrator) CancelStudy(studyID string) error {
	study, err := o.store.Get(studyID)
	if err != nil {
		return err
	}
	if err := o.transition(study, StatusCancelled); err != nil {
		return err
	}
	if err := o.store.Update(study); err != nil {
		return err
	}
	if o.exec != nil {
		removed := o.exec.RemoveJobsForStudy(studyID)
		o.logger.Info("cleared queued jobs for cancelled study", map[string]interface{}{
			"study_id": studyID,
			"removed":  removed,
		})
	}
	return nil
}

// StartJob marks one job-graph cell running (spec §4.4 startJob).
func (o *Orchestrator) StartJob(studyID, jobID string) error {
	study, err := o.store.Get(studyID)
	if err != nil {
		return err
	}
	job := study.JobByID(jobID)
	if job == nil {
		return coreerrors.StudyNotFound(jobID)
	}
	job.Status = JobRunning
	job.Attempts++
	job.UpdatedAt = o.nowFn()
	return o.store.Update(study)
}

// CompleteJob records a job's response, runs the Validator's job-level
// checks against the study's quality gates, and marks the job complete or
// failed accordingly. If every job in the study has reached a terminal
// state, it then evaluates study completion against the manifest's
// coverage threshold (spec §4.4 completeJob, §4.5). completeJob requires
// the study to be executing; a result arriving after the study has left
// that state (paused, cancelled, or already terminal) is discarded as a
// no-op rather than recorded (spec §5, §8 scenario 5).
func (o *Orchestrator) CompleteJob(studyID, jobID string, resp surfaces.Response) error {
	study, err := o.store.Get(studyID)
	if err != nil {
		return err
	}
	if study.Status != StatusExecuting {
		return nil
	}
	job := study.JobByID(jobID)
	if job == nil {
		return coreerrors.StudyNotFound(jobID)
	}

	job.Response = &resp
	report := validator.CheckJob(o.checkInputFor(study, resp), o.strict)
	if report.Status == validator.StatusFailed {
		job.Status = JobFailed
	} else {
		job.Status = JobComplete
	}
	job.UpdatedAt = o.nowFn()

	return o.finishUpdate(study)
}

// FailJob records a job that exhausted its retry budget without success.
// Like CompleteJob, it is a no-op once the study has left the executing
// state (spec §5, §8 scenario 5).
func (o *Orchestrator) FailJob(studyID, jobID string) error {
	study, err := o.store.Get(studyID)
	if err != nil {
		return err
	}
	if study.Status != StatusExecuting {
		return nil
	}
	job := study.JobByID(jobID)
	if job == nil {
		return coreerrors.StudyNotFound(jobID)
	}
	job.Status = JobFailed
	job.UpdatedAt = o.nowFn()

	return o.finishUpdate(study)
}

// GetNextJobs returns up to k of the study's still-pending jobs, in the
// insertion order the job graph was built in (spec §4.4 getNextJobs). It is
// a pure read: it does not mark the jobs running or otherwise mutate state.
func (o *Orchestrator) GetNextJobs(studyID string, k int) ([]*Job, error) {
	study, err := o.store.Get(studyID)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	out := make([]*Job, 0, k)
	for _, j := range study.Jobs {
		if j.Status != JobPending {
			continue
		}
		out = append(out, j)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (o *Orchestrator) checkInputFor(study *Study, resp surfaces.Response) validator.JobCheckInput {
	gates := study.Manifest.QualityGates
	return validator.JobCheckInput{
		Success:           resp.Success,
		ResponseText:      resp.ResponseText,
		MinLength:         gates.MinResponseLength,
		RequiredPatterns:  gates.RequiredPatterns,
		ForbiddenPatterns: gates.ForbiddenPatterns,
		RequireEvidence:   study.Manifest.EvidenceLevel != manifest.EvidenceNone,
	}
}

func (o *Orchestrator) finishUpdate(study *Study) error {
	if err := o.store.Update(study); err != nil {
		return err
	}
	if o.allJobsTerminal(study) {
		return o.evaluateCompletion(study)
	}
	return nil
}

func (o *Orchestrator) allJobsTerminal(study *Study) bool {
	for _, j := range study.Jobs {
		if j.Status != JobComplete && j.Status != JobFailed {
			return false
		}
	}
	return true
}

func (o *Orchestrator) evaluateCompletion(study *Study) error {
	coverage := o.coverageBySurface(study)
	report := validator.EvaluateStudyCompletion(
		coverage,
		study.Manifest.CompletionCriteria.RequiredSurfaces.SurfaceIDs,
		study.Manifest.CompletionCriteria.RequiredSurfaces.CoverageThreshold,
	)

	next := StatusComplete
	if !report.CanComplete {
		next = StatusFailed
		o.logger.Warn("study did not meet coverage threshold", map[string]interface{}{
			"study_id":  study.ID,
			"shortfall": report.Shortfall,
		})
	}
	if err := o.transition(study, next); err != nil {
		return err
	}
	return o.store.Update(study)
}

func (o *Orchestrator) coverageBySurface(study *Study) []validator.SurfaceCoverage {
	totals := make(map[string]int)
	completed := make(map[string]int)
	for _, j := range study.Jobs {
		totals[j.SurfaceID]++
		if j.Status == JobComplete {
			completed[j.SurfaceID]++
		}
	}
	out := make([]validator.SurfaceCoverage, 0, len(totals))
	for surfaceID, total := range totals {
		out = append(out, validator.SurfaceCoverage{
			SurfaceID: surfaceID,
			Completed: completed[surfaceID],
			Total:     total,
		})
	}
	return out
}

// GetStudy returns a study by ID.
func (o *Orchestrator) GetStudy(studyID string) (*Study, error) {
	return o.store.Get(studyID)
}

func (o *Orchestrator) transition(study *Study, to StudyStatus) error {
	if !canTransition(study.Status, to) {
		return coreerrors.InvalidTransition(string(study.Status), string(to), "transition")
	}
	study.Status = to
	study.UpdatedAt = o.nowFn()
	return nil
}

// surfaceRequestFor builds the canonical query request for one manifest
// query cell.
func surfaceRequestFor(q manifest.Query) surfaces.Request {
	return surfaces.Request{QueryText: q.Text}
}
