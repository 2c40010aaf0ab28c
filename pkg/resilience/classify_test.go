package resilience

import (
	"errors"
	"testing"

	coreerrors "github.com/aivisrun/study-core/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify_FirstMatchingRuleWins(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		want    coreerrors.Code
		retry   bool
		surface bool
	}{
		{"rate limit", errors.New("429 Too Many Requests"), coreerrors.CodeRateLimited, true, true},
		{"auth", errors.New("401 Unauthorized"), coreerrors.CodeAuthFailed, false, true},
		{"timeout", errors.New("context deadline exceeded: timeout"), coreerrors.CodeTimeout, true, false},
		{"network", errors.New("dial tcp: connection refused (ECONNREFUSED)"), coreerrors.CodeNetworkError, true, false},
		{"service unavailable", errors.New("502 Bad Gateway"), coreerrors.CodeServiceUnavailable, true, true},
		{"content blocked", errors.New("response blocked by content policy"), coreerrors.CodeContentBlocked, false, false},
		{"quota", errors.New("quota exceeded for this billing period"), coreerrors.CodeQuotaExceeded, false, true},
		{"session expired", errors.New("session expired, login required"), coreerrors.CodeSessionExpired, false, true},
		{"captcha", errors.New("captcha verification required"), coreerrors.CodeCaptchaRequired, false, true},
		{"invalid response", errors.New("invalid json in response body"), coreerrors.CodeInvalidResponse, true, false},
		{"unknown", errors.New("something unexpected happened"), coreerrors.CodeUnknownError, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Classify(tc.err)
			assert.Equal(t, tc.want, c.Code)
			assert.Equal(t, tc.retry, c.Retryable)
			assert.Equal(t, tc.surface, c.SurfaceWide)
		})
	}
}

func TestToAdapterError_ScalesDelayByAttempt(t *testing.T) {
	err := errors.New("timeout waiting for response")

	a0 := ToAdapterError(err, 0)
	a2 := ToAdapterError(err, 2)

	assert.Equal(t, coreerrors.CodeTimeout, a0.Code)
	assert.Equal(t, a0.RetryDelayMs*4, a2.RetryDelayMs, "delay should scale by 2^attempt")
}

func TestClassify_NilErrorIsUnknown(t *testing.T) {
	c := Classify(nil)
	assert.Equal(t, coreerrors.CodeUnknownError, c.Code)
}
