// Package validator implements the Validator (spec §4.5): job-level content
// quality checks and the study-level coverage-threshold check that decides
// whether a study may be marked complete.
package validator

import "strings"

// CheckName identifies one job-level check (spec §4.5).
type CheckName string

const (
	CheckResultPresent      CheckName = "result_present"
	CheckContentPresent     CheckName = "content_present"
	CheckMinLength          CheckName = "min_length"
	CheckErrorPattern       CheckName = "error_pattern"
	CheckRequiredKeywords   CheckName = "required_keywords"
	CheckForbiddenKeywords  CheckName = "forbidden_keywords"
	CheckEvidencePresent    CheckName = "evidence_present"
	CheckEvidenceScreenshot CheckName = "evidence_screenshot"
)

// Severity grades a failed check's effect on the job's overall status.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name     CheckName
	Passed   bool
	Message  string
	Severity Severity
}

// Status is a job's or study's overall validation outcome.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// JobCheckInput carries everything a job-level check needs. It is
// deliberately independent of the orchestrator's Job type so this package
// has no dependency on orchestrator (the orchestrator depends on this
// package, not the reverse).
type JobCheckInput struct {
	Success           bool
	ResponseText      string
	MinLength         int
	RequiredPatterns  []string
	ForbiddenPatterns []string
	RequireEvidence   bool
	EvidencePresent   bool
	RequireScreenshot bool
	ScreenshotPresent bool
}

// errorPatterns are phrases that indicate the captured text is itself an
// error or refusal page rather than real answer content (spec §4.5:
// "error_pattern" check).
var errorPatterns = []string{
	"404",
	"rate limit",
	"internal server error",
	"service unavailable",
	"an error occurred",
	"something went wrong",
	"please try again later",
	"i cannot help with that",
	"i'm unable to assist",
}

// JobReport is the full set of check outcomes for one job plus the rolled
// up overall status.
type JobReport struct {
	Checks []CheckResult
	Status Status
}

// CheckJob runs every applicable check against a job's result in the order
// spec §4.5 lists them, then rolls the outcomes up into an overall status.
// In strictMode, a warning-level failure is promoted to an overall failure.
func CheckJob(input JobCheckInput, strictMode bool) JobReport {
	var checks []CheckResult

	checks = append(checks, checkResultPresent(input))
	checks = append(checks, checkContentPresent(input))
	if input.MinLength > 0 {
		checks = append(checks, checkMinLength(input))
	}
	checks = append(checks, checkErrorPattern(input))
	if len(input.RequiredPatterns) > 0 {
		checks = append(checks, checkRequiredKeywords(input))
	}
	if len(input.ForbiddenPatterns) > 0 {
		checks = append(checks, checkForbiddenKeywords(input))
	}
	if input.RequireEvidence {
		checks = append(checks, checkEvidencePresent(input))
	}
	if input.RequireScreenshot {
		checks = append(checks, checkEvidenceScreenshot(input))
	}

	return JobReport{Checks: checks, Status: rollUp(checks, strictMode)}
}

func rollUp(checks []CheckResult, strictMode bool) Status {
	sawWarningFailure := false
	for _, c := range checks {
		if c.Passed {
			continue
		}
		if c.Severity == SeverityError {
			return StatusFailed
		}
		sawWarningFailure = true
	}
	if sawWarningFailure {
		if strictMode {
			return StatusFailed
		}
		return StatusWarning
	}
	return StatusPassed
}

func checkResultPresent(in JobCheckInput) CheckResult {
	if in.Success {
		return CheckResult{Name: CheckResultPresent, Passed: true, Severity: SeverityError}
	}
	return CheckResult{Name: CheckResultPresent, Passed: false, Message: "job did not complete successfully", Severity: SeverityError}
}

func checkContentPresent(in JobCheckInput) CheckResult {
	if strings.TrimSpace(in.ResponseText) != "" {
		return CheckResult{Name: CheckContentPresent, Passed: true, Severity: SeverityError}
	}
	return CheckResult{Name: CheckContentPresent, Passed: false, Message: "response text is empty", Severity: SeverityError}
}

func checkMinLength(in JobCheckInput) CheckResult {
	if len(in.ResponseText) >= in.MinLength {
		return CheckResult{Name: CheckMinLength, Passed: true, Severity: SeverityError}
	}
	return CheckResult{
		Name: CheckMinLength, Passed: false, Severity: SeverityError,
		Message: "response shorter than minimum required length",
	}
}

func checkErrorPattern(in JobCheckInput) CheckResult {
	lower := strings.ToLower(in.ResponseText)
	for _, p := range errorPatterns {
		if strings.Contains(lower, p) {
			return CheckResult{
				Name: CheckErrorPattern, Passed: false, Severity: SeverityWarning,
				Message: "response text resembles an error or refusal page",
			}
		}
	}
	return CheckResult{Name: CheckErrorPattern, Passed: true, Severity: SeverityWarning}
}

func checkRequiredKeywords(in JobCheckInput) CheckResult {
	lower := strings.ToLower(in.ResponseText)
	for _, kw := range in.RequiredPatterns {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return CheckResult{
				Name: CheckRequiredKeywords, Passed: false, Severity: SeverityError,
				Message: "missing required keyword: " + kw,
			}
		}
	}
	return CheckResult{Name: CheckRequiredKeywords, Passed: true, Severity: SeverityError}
}

func checkForbiddenKeywords(in JobCheckInput) CheckResult {
	lower := strings.ToLower(in.ResponseText)
	for _, kw := range in.ForbiddenPatterns {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return CheckResult{
				Name: CheckForbiddenKeywords, Passed: false, Severity: SeverityError,
				Message: "contains forbidden keyword: " + kw,
			}
		}
	}
	return CheckResult{Name: CheckForbiddenKeywords, Passed: true, Severity: SeverityError}
}

func checkEvidencePresent(in JobCheckInput) CheckResult {
	if in.EvidencePresent {
		return CheckResult{Name: CheckEvidencePresent, Passed: true, Severity: SeverityWarning}
	}
	return CheckResult{Name: CheckEvidencePresent, Passed: false, Message: "no evidence blob archived", Severity: SeverityWarning}
}

func checkEvidenceScreenshot(in JobCheckInput) CheckResult {
	if in.ScreenshotPresent {
		return CheckResult{Name: CheckEvidenceScreenshot, Passed: true, Severity: SeverityWarning}
	}
	return CheckResult{Name: CheckEvidenceScreenshot, Passed: false, Message: "no evidence screenshot archived", Severity: SeverityWarning}
}

// SurfaceCoverage is one surface's completion tally within a study.
type SurfaceCoverage struct {
	SurfaceID string
	Completed int
	Total     int
}

// CompletionRate returns Completed/Total, or 1.0 if Total is zero.
func (c SurfaceCoverage) CompletionRate() float64 {
	if c.Total == 0 {
		return 1.0
	}
	return float64(c.Completed) / float64(c.Total)
}

// StudyCompletionReport is the study-level coverage-threshold evaluation
// (spec §4.5, §8 invariant around RequiredSurfaces.CoverageThreshold).
type StudyCompletionReport struct {
	CanComplete bool
	Shortfall   []string
}

// EvaluateStudyCompletion checks each required surface's coverage rate
// against threshold; a study can complete only if every required surface
// meets or exceeds it. Surfaces absent from coverage entirely count as 0%.
func EvaluateStudyCompletion(coverage []SurfaceCoverage, requiredSurfaceIDs []string, threshold float64) StudyCompletionReport {
	bySurface := make(map[string]SurfaceCoverage, len(coverage))
	for _, c := range coverage {
		bySurface[c.SurfaceID] = c
	}

	var shortfall []string
	for _, id := range requiredSurfaceIDs {
		rate := 0.0
		if c, ok := bySurface[id]; ok {
			rate = c.CompletionRate()
		}
		if rate < threshold {
			shortfall = append(shortfall, id)
		}
	}

	return StudyCompletionReport{CanComplete: len(shortfall) == 0, Shortfall: shortfall}
}
