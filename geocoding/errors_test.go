// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorCheckTestCase struct {
	name string
	err  error
	want bool
}

func runErrorCheckTest(t *testing.T, tests []errorCheckTestCase, checkFunc func(error) bool) {
	t.Helper()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkFunc(tt.err))
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{name: "typed", err: &GeocodingError{Type: ErrorTypeRateLimit}, want: true},
		{name: "wrapped typed", err: fmt.Errorf("reverse: %w", ClassifyStatus("OVER_QUERY_LIMIT", "")), want: true},
		{name: "http 429", err: ClassifyHTTPError(429, ""), want: true},
		{name: "other type", err: &GeocodingError{Type: ErrorTypeNotFound, Message: "rate limit"}, want: false},
		{name: "untyped", err: errors.New("status 429"), want: false},
	}, IsRateLimitError)
}

func TestIsQuotaExceededError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{name: "denied", err: ClassifyStatus("REQUEST_DENIED", "The provided API key is invalid."), want: true},
		{name: "daily", err: ClassifyStatus("OVER_DAILY_LIMIT", ""), want: true},
		{name: "other type", err: &GeocodingError{Type: ErrorTypeRateLimit}, want: false},
		{name: "untyped", err: errors.New("boom"), want: false},
	}, IsQuotaExceededError)
}

func TestIsTimeoutError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{name: "typed", err: &GeocodingError{Type: ErrorTypeTimeout}, want: true},
		{name: "deadline", err: fmt.Errorf("waiting: %w", context.DeadlineExceeded), want: true},
		{name: "other type", err: &GeocodingError{Type: ErrorTypeNotFound}, want: false},
	}, IsTimeoutError)
}

func TestIsNotFoundError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{name: "zero results", err: ClassifyStatus("ZERO_RESULTS", ""), want: true},
		{name: "http 404", err: ClassifyHTTPError(404, ""), want: true},
		{name: "message only", err: errors.New("not found"), want: false},
	}, IsNotFoundError)
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		statusCode int
		wantType   ErrorType
	}{
		{429, ErrorTypeRateLimit},
		{403, ErrorTypeQuotaExceeded},
		{400, ErrorTypeInvalidRequest},
		{404, ErrorTypeNotFound},
		{502, ErrorTypeNetworkError},
		{503, ErrorTypeNetworkError},
		{504, ErrorTypeNetworkError},
		{500, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.statusCode), func(t *testing.T) {
			got := ClassifyHTTPError(tt.statusCode, "")
			assert.Equal(t, tt.wantType, got.Type)
			assert.NoError(t, got.Err)
		})
	}

	got := ClassifyHTTPError(500, strings.Repeat("x", 300))
	require.Error(t, got.Err)
	assert.Len(t, got.Err.Error(), maxErrorBody+len("…"))
}

func TestClassifyStatus(t *testing.T) {
	assert.Nil(t, ClassifyStatus("OK", ""))

	tests := []struct {
		status   string
		wantType ErrorType
	}{
		{"ZERO_RESULTS", ErrorTypeNotFound},
		{"OVER_QUERY_LIMIT", ErrorTypeRateLimit},
		{"OVER_DAILY_LIMIT", ErrorTypeQuotaExceeded},
		{"REQUEST_DENIED", ErrorTypeQuotaExceeded},
		{"INVALID_REQUEST", ErrorTypeInvalidRequest},
		{"UNKNOWN_ERROR", ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := ClassifyStatus(tt.status, "detalle")
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.EqualError(t, got.Err, "detalle")
			assert.Contains(t, got.Error(), tt.status)
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "quota_exceeded", ErrorTypeQuotaExceeded.String())
	assert.Equal(t, "malformed_response", ErrorTypeMalformedResponse.String())
	assert.Equal(t, "unknown", ErrorType(99).String())
}

func TestGeocodingErrorUnwrap(t *testing.T) {
	innerErr := errors.New("inner error")
	geoErr := &GeocodingError{
		Type:    ErrorTypeNetworkError,
		Message: "request failed",
		Err:     innerErr,
	}

	assert.ErrorIs(t, geoErr, innerErr)
	assert.Equal(t, "request failed: inner error", geoErr.Error())
	assert.Equal(t, ErrorTypeNetworkError, ErrorTypeOf(fmt.Errorf("wrapped: %w", geoErr)))
}
