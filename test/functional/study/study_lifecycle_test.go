package study_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aivisrun/study-core/pkg/executor"
	"github.com/aivisrun/study-core/pkg/manifest"
	"github.com/aivisrun/study-core/pkg/orchestrator"
	"github.com/aivisrun/study-core/pkg/surfaces"
)

// scriptedLeaf answers ExecuteQuery deterministically based on the query
// text, letting a single leaf stand in for an external surface across a
// whole study without any network access.
type scriptedLeaf struct {
	respond func(req surfaces.Request) (surfaces.Response, error)
}

func (l *scriptedLeaf) ExecuteQuery(_ context.Context, req surfaces.Request) (surfaces.Response, error) {
	return l.respond(req)
}

func (l *scriptedLeaf) ExecuteHealthCheck(context.Context) (surfaces.Response, error) {
	return surfaces.Response{Success: true}, nil
}

func newRuntime(surfaceID string, leaf surfaces.Capability) *surfaces.AdapterRuntime {
	return surfaces.NewAdapterRuntime(surfaceID, surfaces.Metadata{SurfaceID: surfaceID}, leaf, nil, nil).WithMaxRetries(1)
}

// runToTerminal pumps executor results into the orchestrator and blocks
// until the study reaches a terminal (non-executing) status or the timeout
// elapses, mirroring cmd/studyrunner's consumeResults loop.
func runToTerminal(exec *executor.Executor, orch *orchestrator.Orchestrator, studyID string, timeout time.Duration) orchestrator.StudyStatus {
	deadline := time.After(timeout)
	for {
		select {
		case result, ok := <-exec.Results():
			if !ok {
				study, _ := orch.GetStudy(studyID)
				return study.Status
			}
			if result.Response.Success {
				_ = orch.CompleteJob(result.StudyID, result.JobID, result.Response)
			} else {
				_ = orch.FailJob(result.StudyID, result.JobID)
			}
			study, err := orch.GetStudy(studyID)
			if err == nil && isTerminal(study.Status) {
				return study.Status
			}
		case <-deadline:
			study, _ := orch.GetStudy(studyID)
			return study.Status
		}
	}
}

func isTerminal(s orchestrator.StudyStatus) bool {
	switch s {
	case orchestrator.StatusComplete, orchestrator.StatusFailed, orchestrator.StatusCancelled:
		return true
	default:
		return false
	}
}

var _ = Describe("Study lifecycle", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		exec   *executor.Executor
		orch   *orchestrator.Orchestrator
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		exec = executor.NewExecutor(executor.Options{WorkerCount: 2, MaxConcurrentJobsPerWorker: 2, EventBufferSize: 64})
	})

	AfterEach(func() {
		exec.Stop()
		cancel()
	})

	It("completes a two-query study across two healthy surfaces", func() {
		exec.RegisterAdapter("openai-api", newRuntime("openai-api", &scriptedLeaf{
			respond: func(req surfaces.Request) (surfaces.Response, error) {
				return surfaces.Response{Success: true, ResponseText: "a full answer about " + req.QueryText}, nil
			},
		}))
		exec.RegisterAdapter("chatgpt-web", newRuntime("chatgpt-web", &scriptedLeaf{
			respond: func(req surfaces.Request) (surfaces.Response, error) {
				return surfaces.Response{Success: true, ResponseText: "a full answer about " + req.QueryText}, nil
			},
		}))
		orch = orchestrator.NewOrchestrator(orchestrator.Options{Executor: exec})
		exec.Start(ctx)

		m := manifest.Manifest{
			Queries:   []manifest.Query{{Text: "best running shoes"}, {Text: "electric car range"}},
			Surfaces:  []manifest.Surface{{ID: "openai-api"}, {ID: "chatgpt-web"}},
			Locations: []manifest.Location{{ID: "us-east"}},
			CompletionCriteria: manifest.CompletionCriteria{
				RequiredSurfaces: manifest.RequiredSurfaces{SurfaceIDs: []string{"openai-api", "chatgpt-web"}, CoverageThreshold: 1.0},
			},
		}

		study, err := orch.CreateStudy(m)
		Expect(err).NotTo(HaveOccurred())
		Expect(study.Jobs).To(HaveLen(4))

		Expect(orch.StartStudy(ctx, study.ID)).To(Succeed())

		final := runToTerminal(exec, orch, study.ID, 5*time.Second)
		Expect(final).To(Equal(orchestrator.StatusComplete))
	})

	It("fails the study when a required surface is consistently content-blocked", func() {
		exec.RegisterAdapter("openai-api", newRuntime("openai-api", &scriptedLeaf{
			respond: func(surfaces.Request) (surfaces.Response, error) {
				return surfaces.Response{}, errContentBlocked
			},
		}))
		orch = orchestrator.NewOrchestrator(orchestrator.Options{Executor: exec})
		exec.Start(ctx)

		m := manifest.Manifest{
			Queries:   []manifest.Query{{Text: "q1"}},
			Surfaces:  []manifest.Surface{{ID: "openai-api"}},
			Locations: []manifest.Location{{ID: "us-east"}},
			CompletionCriteria: manifest.CompletionCriteria{
				RequiredSurfaces: manifest.RequiredSurfaces{SurfaceIDs: []string{"openai-api"}, CoverageThreshold: 1.0},
			},
		}
		study, err := orch.CreateStudy(m)
		Expect(err).NotTo(HaveOccurred())
		Expect(orch.StartStudy(ctx, study.ID)).To(Succeed())

		final := runToTerminal(exec, orch, study.ID, 5*time.Second)
		Expect(final).To(Equal(orchestrator.StatusFailed))
	})

	It("cancels a study mid-flight, clears queued jobs, and discards late results", func() {
		// A manual-reset gate holds every leaf call open until the test has
		// cancelled the study, so the cancel is guaranteed to land while
		// cells are still queued rather than racing the worker pool.
		release := make(chan struct{})
		var callCount int32
		exec.RegisterAdapter("openai-api", newRuntime("openai-api", &scriptedLeaf{
			respond: func(surfaces.Request) (surfaces.Response, error) {
				atomic.AddInt32(&callCount, 1)
				<-release
				return surfaces.Response{Success: true, ResponseText: "ok"}, nil
			},
		}))
		orch = orchestrator.NewOrchestrator(orchestrator.Options{Executor: exec})
		exec.Start(ctx)

		m := manifest.Manifest{
			Queries: []manifest.Query{
				{Text: "q1"}, {Text: "q2"}, {Text: "q3"}, {Text: "q4"}, {Text: "q5"}, {Text: "q6"},
			},
			Surfaces:  []manifest.Surface{{ID: "openai-api"}},
			Locations: []manifest.Location{{ID: "us-east"}},
			CompletionCriteria: manifest.CompletionCriteria{
				RequiredSurfaces: manifest.RequiredSurfaces{SurfaceIDs: []string{"openai-api"}, CoverageThreshold: 1.0},
			},
		}
		study, err := orch.CreateStudy(m)
		Expect(err).NotTo(HaveOccurred())
		Expect(orch.StartStudy(ctx, study.ID)).To(Succeed())

		// The executor's total in-flight capacity is WorkerCount *
		// MaxConcurrentJobsPerWorker = 4, so at most 4 of these 6 cells can
		// be dispatched at once; at least 2 are guaranteed to still be
		// queued when cancel runs.
		Eventually(func() int32 { return atomic.LoadInt32(&callCount) }, time.Second).Should(BeNumerically(">=", 4))

		Expect(orch.CancelStudy(study.ID)).To(Succeed())
		Expect(exec.QueueLength()).To(Equal(0), "cancel must drop the study's still-queued jobs")

		close(release)

		// Drain whatever in-flight results still land and let the
		// orchestrator attempt to fold them in; none should resurrect the
		// cancelled study or flip a job out of its pre-cancel state.
		drainDeadline := time.After(300 * time.Millisecond)
	drain:
		for {
			select {
			case result := <-exec.Results():
				Expect(orch.CompleteJob(result.StudyID, result.JobID, result.Response)).To(Succeed())
				reloaded, _ := orch.GetStudy(study.ID)
				Expect(reloaded.Status).To(Equal(orchestrator.StatusCancelled), "a late result must not resurrect a cancelled study")
			case <-drainDeadline:
				break drain
			}
		}

		reloaded, err := orch.GetStudy(study.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Status).To(Equal(orchestrator.StatusCancelled))
	})
})

var errContentBlocked = &blockedError{}

type blockedError struct{}

func (*blockedError) Error() string { return "content policy violation" }
