// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("RequestIDFromContext() = %q, want req-1", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("empty context returned %q", got)
	}
}

func TestJobIDRoundTrip(t *testing.T) {
	ctx := ContextWithJobID(context.Background(), "job-1")
	if got := JobIDFromContext(ctx); got != "job-1" {
		t.Fatalf("JobIDFromContext() = %q, want job-1", got)
	}
}

func TestNilContextIsSafe(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	if got := RequestIDFromContext(nil); got != "" {
		t.Fatalf("nil context returned %q", got)
	}
	//nolint:staticcheck
	ctx := ContextWithRequestID(nil, "req-2")
	if got := RequestIDFromContext(ctx); got != "req-2" {
		t.Fatalf("got %q, want req-2", got)
	}
}

func TestWithContextEnrichment(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-3")
	ctx = ContextWithJobID(ctx, "job-3")
	enriched := WithContext(ctx, base)
	enriched.Info().Msg("x")

	line := buf.String()
	if !strings.Contains(line, `"request_id":"req-3"`) {
		t.Fatalf("missing request_id: %s", line)
	}
	if !strings.Contains(line, `"job_id":"job-3"`) {
		t.Fatalf("missing job_id: %s", line)
	}

	// No correlation fields: the logger passes through untouched.
	buf.Reset()
	passthrough := WithContext(context.Background(), base)
	passthrough.Info().Msg("x")
	if strings.Contains(buf.String(), "request_id") {
		t.Fatalf("unexpected request_id: %s", buf.String())
	}
}
