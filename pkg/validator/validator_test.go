package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckJob_PassesOnGoodResponse(t *testing.T) {
	report := CheckJob(JobCheckInput{
		Success:          true,
		ResponseText:     "The capital of France is Paris, a city with a long history.",
		MinLength:        10,
		RequiredPatterns: []string{"Paris"},
	}, false)

	assert.Equal(t, StatusPassed, report.Status)
}

func TestCheckJob_FailsOnUnsuccessfulJob(t *testing.T) {
	report := CheckJob(JobCheckInput{Success: false}, false)
	assert.Equal(t, StatusFailed, report.Status)
}

func TestCheckJob_FailsOnEmptyContent(t *testing.T) {
	report := CheckJob(JobCheckInput{Success: true, ResponseText: "   "}, false)
	assert.Equal(t, StatusFailed, report.Status)
}

func TestCheckJob_FailsBelowMinLength(t *testing.T) {
	report := CheckJob(JobCheckInput{Success: true, ResponseText: "short", MinLength: 100}, false)
	assert.Equal(t, StatusFailed, report.Status)
}

func TestCheckJob_FailsOnMissingRequiredKeyword(t *testing.T) {
	report := CheckJob(JobCheckInput{
		Success: true, ResponseText: "a response about cats",
		RequiredPatterns: []string{"dogs"},
	}, false)
	assert.Equal(t, StatusFailed, report.Status)
}

func TestCheckJob_FailsOnForbiddenKeyword(t *testing.T) {
	report := CheckJob(JobCheckInput{
		Success: true, ResponseText: "our competitor's product is better",
		ForbiddenPatterns: []string{"competitor"},
	}, false)
	assert.Equal(t, StatusFailed, report.Status)
}

func TestCheckJob_ErrorPatternIsWarningUnlessStrict(t *testing.T) {
	input := JobCheckInput{Success: true, ResponseText: "Sorry, something went wrong while processing your request."}

	lenient := CheckJob(input, false)
	assert.Equal(t, StatusWarning, lenient.Status)

	strict := CheckJob(input, true)
	assert.Equal(t, StatusFailed, strict.Status)
}

func TestCheckJob_FlagsSpecNamedErrorPatterns(t *testing.T) {
	for _, text := range []string{
		"Error 404: page not found",
		"You have hit the rate limit for this API key",
		"500 Internal Server Error",
		"503 Service Unavailable, please retry",
	} {
		report := CheckJob(JobCheckInput{Success: true, ResponseText: text}, true)
		assert.Equal(t, StatusFailed, report.Status, "expected %q to be flagged as an error pattern", text)
	}
}

func TestCheckJob_MissingEvidenceIsWarning(t *testing.T) {
	report := CheckJob(JobCheckInput{
		Success: true, ResponseText: "a perfectly fine response",
		RequireEvidence: true, EvidencePresent: false,
	}, false)
	assert.Equal(t, StatusWarning, report.Status)
}

func TestEvaluateStudyCompletion_AllSurfacesMeetThreshold(t *testing.T) {
	coverage := []SurfaceCoverage{
		{SurfaceID: "openai-api", Completed: 9, Total: 10},
		{SurfaceID: "chatgpt-web", Completed: 10, Total: 10},
	}
	report := EvaluateStudyCompletion(coverage, []string{"openai-api", "chatgpt-web"}, 0.8)
	assert.True(t, report.CanComplete)
	assert.Empty(t, report.Shortfall)
}

func TestEvaluateStudyCompletion_ShortfallWhenBelowThreshold(t *testing.T) {
	coverage := []SurfaceCoverage{
		{SurfaceID: "openai-api", Completed: 5, Total: 10},
	}
	report := EvaluateStudyCompletion(coverage, []string{"openai-api"}, 0.8)
	assert.False(t, report.CanComplete)
	assert.Equal(t, []string{"openai-api"}, report.Shortfall)
}

func TestEvaluateStudyCompletion_MissingSurfaceCountsAsZero(t *testing.T) {
	report := EvaluateStudyCompletion(nil, []string{"search-engine"}, 0.5)
	assert.False(t, report.CanComplete)
	assert.Equal(t, []string{"search-engine"}, report.Shortfall)
}
