// Command studyrunner wires the execution core's components into a single
// process and exposes a minimal health/status endpoint. It is intentionally
// thin: a full gateway (submission API, auth, multi-tenant routing) is a
// collaborator's responsibility, not this binary's (spec §1 Non-goals).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/aivisrun/study-core/pkg/config"
	"github.com/aivisrun/study-core/pkg/executor"
	"github.com/aivisrun/study-core/pkg/observability"
	"github.com/aivisrun/study-core/pkg/orchestrator"
)

func main() {
	logger := observability.NewLogger("studyrunner")
	metrics := observability.NewMetricsClient()

	tracerProvider := observability.NewTracerProvider("studyrunner")
	otel.SetTracerProvider(tracerProvider)
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer provider shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("failed to load configuration", map[string]interface{}{"error": err.Error()})
	}

	exec := executor.NewExecutor(executor.Options{
		WorkerCount:                cfg.Executor.WorkerCount,
		MaxConcurrentJobsPerWorker: cfg.Executor.MaxConcurrentJobsPerWorker,
		JobTimeout:                 cfg.Executor.JobTimeout,
		EventBufferSize:            cfg.Executor.EventBufferSize,
		RetryStrategy: executor.NewExponentialJitterStrategy(
			time.Duration(cfg.Executor.BaseRetryDelayMs)*time.Millisecond,
			time.Duration(cfg.Executor.MaxRetryDelayMs)*time.Millisecond,
		),
		Logger:                     logger.WithPrefix("executor"),
		Metrics:                    metrics,
	})

	orch := orchestrator.NewOrchestrator(orchestrator.Options{
		Executor:   exec,
		StrictMode: cfg.Validator.StrictMode,
		Logger:     logger.WithPrefix("orchestrator"),
		Metrics:    metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.Start(ctx)
	defer exec.Stop()

	go consumeResults(exec, orch, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		stats := exec.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"queueLength":    stats.QueueLength,
			"jobsSubmitted":  stats.JobsSubmitted,
			"jobsCompleted":  stats.JobsCompleted,
			"jobsFailed":     stats.JobsFailed,
		})
	})
	router.GET("/studies/:id", func(c *gin.Context) {
		study, err := orch.GetStudy(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": study.ID, "status": study.Status, "jobCount": len(study.Jobs)})
	})

	srv := &http.Server{Addr: ":8080", Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down", nil)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Orchestrator.CheckpointInterval)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// consumeResults folds executor results back into the orchestrator's job
// graph until the executor's result channel is closed by Stop.
func consumeResults(exec *executor.Executor, orch *orchestrator.Orchestrator, logger observability.Logger) {
	for result := range exec.Results() {
		var err error
		if result.Response.Success {
			err = orch.CompleteJob(result.StudyID, result.JobID, result.Response)
		} else {
			err = orch.FailJob(result.StudyID, result.JobID)
		}
		if err != nil {
			logger.Warn("failed to fold job result into study", map[string]interface{}{
				"study_id": result.StudyID,
				"job_id":   result.JobID,
				"error":    err.Error(),
			})
		}
	}
}
