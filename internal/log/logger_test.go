// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var fields map[string]any
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return fields
}

func TestNewBase_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := newBase(Config{Output: &buf, Service: "transcoder"})
	logger.Info().Msg("hello")

	fields := decodeLine(t, &buf)
	if fields["service"] != "transcoder" {
		t.Fatalf("service = %v, want transcoder", fields["service"])
	}
	if fields["message"] != "hello" {
		t.Fatalf("message = %v", fields["message"])
	}
	if _, ok := fields["time"]; !ok {
		t.Fatal("missing timestamp")
	}
}

func TestNewBase_DefaultService(t *testing.T) {
	var buf bytes.Buffer
	logger := newBase(Config{Output: &buf})
	logger.Info().Msg("x")
	if fields := decodeLine(t, &buf); fields["service"] != "akane" {
		t.Fatalf("service = %v, want akane", fields["service"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	// The global logger writes to stdout; the component annotation is
	// observable through a child of a buffered base.
	var buf bytes.Buffer
	logger := newBase(Config{Output: &buf}).With().Str("component", "api").Logger()
	logger.Info().Msg("x")
	if fields := decodeLine(t, &buf); fields["component"] != "api" {
		t.Fatalf("component = %v, want api", fields["component"])
	}
}
