package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ProducesAValidConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8, cfg.Executor.WorkerCount)
	assert.Equal(t, "memory", cfg.Evidence.Provider)
}

func TestLoad_RejectsZeroWorkerCount(t *testing.T) {
	t.Setenv("STUDYCORE_EXECUTOR_WORKER_COUNT", "0")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_RejectsS3ProviderWithoutBucket(t *testing.T) {
	t.Setenv("STUDYCORE_EVIDENCE_PROVIDER", "s3")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_AcceptsS3ProviderWithBucket(t *testing.T) {
	t.Setenv("STUDYCORE_EVIDENCE_PROVIDER", "s3")
	t.Setenv("STUDYCORE_EVIDENCE_S3_BUCKET", "aivisrun-evidence")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Evidence.Provider)
}
