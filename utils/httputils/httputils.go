// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils holds the http.RoundTripper wrappers used by the
// geocoding client.
package httputils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"
)

const redacted = "REDACTED"

const (
	maxTraceLines = 2048
	maxTraceChars = 512
)

// LoggingRoundTripper writes a trace of every exchange to Writer.
//
// Query parameters listed in RedactQuery and the Authorization header are
// masked in the trace, the request sent upstream is not modified.
type LoggingRoundTripper struct {
	Transport   http.RoundTripper
	Writer      io.Writer
	DumpBody    bool
	RedactQuery []string
}

// trace prefixes every line of dump and truncates long dumps.
func trace(dump []byte, prefix rune) string {
	lines := strings.Split(string(dump), "\n")

	truncated := len(lines) > maxTraceLines
	if truncated {
		lines = lines[:maxTraceLines]
	}

	var sb strings.Builder

	for _, line := range lines {
		if len(line) > maxTraceChars {
			line = line[:maxTraceChars] + "…"
		}

		fmt.Fprintf(&sb, "%c %s\n", prefix, line)
	}

	if truncated {
		sb.WriteString("…\n")
	}

	return sb.String()
}

// redactedCopy returns the request to dump, and whether its body may be read.
func (t *LoggingRoundTripper) redactedCopy(req *http.Request) (*http.Request, bool) {
	sensitive := req.Header.Get("Authorization") != ""

	query := req.URL.Query()
	for _, name := range t.RedactQuery {
		if query.Has(name) {
			query.Set(name, redacted)

			sensitive = true
		}
	}

	if !sensitive {
		return req, true
	}

	clone := req.Clone(req.Context())
	clone.URL.RawQuery = query.Encode()

	if clone.Header.Get("Authorization") != "" {
		clone.Header.Set("Authorization", redacted)
	}

	// the clone shares the body with the original
	return clone, req.Body == nil
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	dumpable, withBody := t.redactedCopy(req)

	dump, err := httputil.DumpRequestOut(dumpable, withBody)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	if _, err := io.WriteString(t.Writer, trace(dump, '>')); err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		fmt.Fprintf(t.Writer, "< ERROR: [%v] %v\n", time.Since(start), err)

		return nil, err
	}

	dump, err = httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP response: %w", err)
	}

	if _, err := fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n%s", time.Since(start), trace(dump, '<')); err != nil {
		return nil, fmt.Errorf("tracing HTTP response: %w", err)
	}

	return resp, nil
}

// AppendRequestHeadersRoundTripper sets Headers on every request.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface. The caller's request
// is left untouched.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	return t.Transport.RoundTrip(req)
}
