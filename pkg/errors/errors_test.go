package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, ErrorTypeTransport, "request failed")

	assert.Contains(t, err.Error(), "request failed")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, cause, err.Unwrap())
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeCreateFailed, "create rejected").
		WithDetail("status", 400).
		WithDetail("external_id", "gh_candidate_42")

	assert.Equal(t, 400, err.Detail("status"))
	assert.Equal(t, "gh_candidate_42", err.Detail("external_id"))
	assert.Nil(t, err.Detail("absent"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeRateLimit, "throttled")))
	assert.True(t, IsRetryable(New(ErrorTypeTransport, "502")))
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "deadline")))
	assert.False(t, IsRetryable(New(ErrorTypeCreateFailed, "400")))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrorTypeAuthentication, "bad token")))
	assert.True(t, IsFatal(New(ErrorTypeData, "malformed graph")))
	assert.False(t, IsFatal(New(ErrorTypeOwnerNotFound, "missing candidate")))
}

func TestTypeOfWrappedChain(t *testing.T) {
	inner := New(ErrorTypeCFUnmapped, "no mapping")
	outer := fmt.Errorf("while building payload: %w", inner)

	assert.True(t, IsType(outer, ErrorTypeCFUnmapped))
	assert.Equal(t, ErrorTypeCFUnmapped, TypeOf(outer))
	assert.Equal(t, ErrorType(""), TypeOf(fmt.Errorf("foreign")))
}

func TestReportReasonValues(t *testing.T) {
	// The per-record types double as report reason strings.
	require.Equal(t, "owner_not_found", string(ErrorTypeOwnerNotFound))
	require.Equal(t, "job_not_found", string(ErrorTypeJobNotFound))
	require.Equal(t, "cf_unmapped", string(ErrorTypeCFUnmapped))
	require.Equal(t, "rate_limit_exceeded", string(ErrorTypeRateLimit))
}
