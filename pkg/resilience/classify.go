package resilience

import (
	"strings"
	"time"

	coreerrors "github.com/aivisrun/study-core/pkg/errors"
)

// Classification is the pure-data outcome of classifying a leaf error, kept
// as an ordered list of {patterns, classification} records per spec §9's
// design note: "keep the decision table as pure data... the classifier is a
// linear scan returning the first match."
type Classification struct {
	Code            coreerrors.Code
	Retryable       bool
	BaseRetryDelay  time.Duration
	SurfaceWide     bool
	SuggestedAction coreerrors.SuggestedAction
}

type classificationRule struct {
	patterns       []string
	classification Classification
}

// baseRetryDelay is the "base" unit referenced by the classification table in
// spec §4.1 (e.g. TIMEOUT retries at "base", NETWORK_ERROR at "2×base").
const baseRetryDelay = 2 * time.Second

// classificationTable is the ordered decision table from spec §4.1. Order
// matters: classification is a linear scan, first match wins.
var classificationTable = []classificationRule{
	{
		patterns: []string{"rate limit", "429", "too many requests"},
		classification: Classification{
			Code: coreerrors.CodeRateLimited, Retryable: true, BaseRetryDelay: 60 * time.Second,
			SurfaceWide: true, SuggestedAction: coreerrors.ActionRetry,
		},
	},
	{
		patterns: []string{"401", "403", "unauthorized", "forbidden"},
		classification: Classification{
			Code: coreerrors.CodeAuthFailed, Retryable: false, SurfaceWide: true,
			SuggestedAction: coreerrors.ActionRefreshSession,
		},
	},
	{
		patterns: []string{"timeout", "etimedout"},
		classification: Classification{
			Code: coreerrors.CodeTimeout, Retryable: true, BaseRetryDelay: baseRetryDelay,
			SuggestedAction: coreerrors.ActionRetry,
		},
	},
	{
		patterns: []string{"econnrefused", "econnreset", "enotfound", "network"},
		classification: Classification{
			Code: coreerrors.CodeNetworkError, Retryable: true, BaseRetryDelay: 2 * baseRetryDelay,
			SuggestedAction: coreerrors.ActionRotateProxy,
		},
	},
	{
		patterns: []string{"502", "503", "bad gateway", "service unavailable"},
		classification: Classification{
			Code: coreerrors.CodeServiceUnavailable, Retryable: true, BaseRetryDelay: 3 * baseRetryDelay,
			SurfaceWide: true, SuggestedAction: coreerrors.ActionRetry,
		},
	},
	{
		patterns: []string{"blocked", "content policy", "violation"},
		classification: Classification{
			Code: coreerrors.CodeContentBlocked, Retryable: false,
			SuggestedAction: coreerrors.ActionAlertHuman,
		},
	},
	{
		patterns: []string{"quota", "billing", "limit exceeded"},
		classification: Classification{
			Code: coreerrors.CodeQuotaExceeded, Retryable: false, SurfaceWide: true,
			SuggestedAction: coreerrors.ActionAlertHuman,
		},
	},
	{
		patterns: []string{"session", "expired", "login required"},
		classification: Classification{
			Code: coreerrors.CodeSessionExpired, Retryable: false, SurfaceWide: true,
			SuggestedAction: coreerrors.ActionRefreshSession,
		},
	},
	{
		patterns: []string{"captcha", "verification", "robot"},
		classification: Classification{
			Code: coreerrors.CodeCaptchaRequired, Retryable: false, SurfaceWide: true,
			SuggestedAction: coreerrors.ActionAlertHuman,
		},
	},
	{
		patterns: []string{"invalid", "parse", "json"},
		classification: Classification{
			Code: coreerrors.CodeInvalidResponse, Retryable: true, BaseRetryDelay: baseRetryDelay,
			SuggestedAction: coreerrors.ActionRetry,
		},
	},
}

var unknownClassification = Classification{
	Code: coreerrors.CodeUnknownError, Retryable: true, BaseRetryDelay: baseRetryDelay,
	SuggestedAction: coreerrors.ActionRetry,
}

// Classify is the pure function from an error message to a classification,
// scanning classificationTable in order and returning the first substring
// match, or UNKNOWN_ERROR by default (spec §4.1).
func Classify(err error) Classification {
	if err == nil {
		return unknownClassification
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range classificationTable {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.classification
			}
		}
	}
	return unknownClassification
}

// ToAdapterError converts a leaf-reported error into the typed AdapterError
// value carried in a query response, with retryDelayMs scaled by attempt
// per spec §4.1 step 3c ("retryDelayMs × 2^attempt").
func ToAdapterError(err error, attempt int) *coreerrors.AdapterError {
	c := Classify(err)
	delay := c.BaseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return &coreerrors.AdapterError{
		Code:            c.Code,
		Message:         err.Error(),
		Retryable:       c.Retryable,
		RetryDelayMs:    delay.Milliseconds(),
		SurfaceWide:     c.SurfaceWide,
		SuggestedAction: c.SuggestedAction,
	}
}
