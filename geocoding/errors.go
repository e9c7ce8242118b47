// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GeocodingError is a classified failure of the geocoding service.
type GeocodingError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies geocoding failures.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded covers exhausted quota and rejected keys.
	ErrorTypeQuotaExceeded
	ErrorTypeTimeout
	// ErrorTypeNotFound is an answer without results, not a failure of the call.
	ErrorTypeNotFound
	ErrorTypeInvalidRequest
	ErrorTypeNetworkError
	// ErrorTypeMalformedResponse is a body that could not be decoded.
	ErrorTypeMalformedResponse
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeUnknown:           "unknown",
	ErrorTypeRateLimit:         "rate_limit",
	ErrorTypeQuotaExceeded:     "quota_exceeded",
	ErrorTypeTimeout:           "timeout",
	ErrorTypeNotFound:          "not_found",
	ErrorTypeInvalidRequest:    "invalid_request",
	ErrorTypeNetworkError:      "network",
	ErrorTypeMalformedResponse: "malformed_response",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}

	return errorTypeNames[ErrorTypeUnknown]
}

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// ErrorTypeOf returns the type of the GeocodingError in err's chain, or
// ErrorTypeUnknown when there is none.
func ErrorTypeOf(err error) ErrorType {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type
	}

	return ErrorTypeUnknown
}

func IsRateLimitError(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeRateLimit
}

func IsQuotaExceededError(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeQuotaExceeded
}

// IsTimeoutError also accepts a bare context deadline.
func IsTimeoutError(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeTimeout || errors.Is(err, context.DeadlineExceeded)
}

// IsNotFoundError reports whether the service answered without results.
func IsNotFoundError(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeNotFound
}

var httpErrorTypes = map[int]ErrorType{
	http.StatusTooManyRequests:    ErrorTypeRateLimit,
	http.StatusForbidden:          ErrorTypeQuotaExceeded,
	http.StatusBadRequest:         ErrorTypeInvalidRequest,
	http.StatusNotFound:           ErrorTypeNotFound,
	http.StatusBadGateway:         ErrorTypeNetworkError,
	http.StatusServiceUnavailable: ErrorTypeNetworkError,
	http.StatusGatewayTimeout:     ErrorTypeNetworkError,
}

const maxErrorBody = 200

// ClassifyHTTPError classifies a non 200 answer. A non empty body is kept,
// truncated, as the wrapped error.
func ClassifyHTTPError(statusCode int, body string) *GeocodingError {
	geoErr := &GeocodingError{
		Type:    httpErrorTypes[statusCode],
		Message: fmt.Sprintf("HTTP %d", statusCode),
	}

	if body = strings.TrimSpace(body); body != "" {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody] + "…"
		}

		geoErr.Err = errors.New(body)
	}

	return geoErr
}

var statusErrorTypes = map[string]ErrorType{
	"ZERO_RESULTS":     ErrorTypeNotFound,
	"OVER_QUERY_LIMIT": ErrorTypeRateLimit,
	"OVER_DAILY_LIMIT": ErrorTypeQuotaExceeded,
	"REQUEST_DENIED":   ErrorTypeQuotaExceeded,
	"INVALID_REQUEST":  ErrorTypeInvalidRequest,
}

// ClassifyStatus classifies the status field of an HTTP 200 answer. It
// returns nil for OK.
func ClassifyStatus(status, message string) *GeocodingError {
	if status == "OK" {
		return nil
	}

	geoErr := &GeocodingError{
		Type:    statusErrorTypes[status],
		Message: "status " + status,
	}

	if message != "" {
		geoErr.Err = errors.New(message)
	}

	return geoErr
}
