package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "driver")).Info(context.Background(), "tick",
		Uint64("seq", 7),
		Float64("azimuth", 12.5),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "tick" || rec["component"] != "driver" || rec["error"] != "boom" {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec["seq"].(float64) != 7 || rec["azimuth"].(float64) != 12.5 {
		t.Fatalf("unexpected numeric fields %v", rec)
	}
}

func TestServiceNameOnEveryLine(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Service: "radar-server", Output: &buf})

	log.Info(context.Background(), "sweep loop started")
	log.With(String("consumer_id", "c1")).Info(context.Background(), "consumer connected")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if rec["service"] != "radar-server" {
			t.Fatalf("line %q has service %v", line, rec["service"])
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRequestLoggerReusesID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "abc")
	ctx, id := EnsureRequestID(ctx)
	if id != "abc" || RequestIDFromContext(ctx) != "abc" {
		t.Fatalf("EnsureRequestID replaced existing id: %q", id)
	}

	_, fresh := EnsureRequestID(context.Background())
	if _, err := uuid.Parse(fresh); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", fresh, err)
	}

	ctx = ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("ContextWithLogger(nil) should store a noop logger")
	}
}
