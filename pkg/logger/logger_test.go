package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	l := Get()
	if l == nil {
		t.Fatal("logger is nil after initialization")
	}

	ctx := context.Background()
	l.Info(ctx, "run started", String("policy", "tower-tier"), Int("players", 1000))
	l.Debug(ctx, "tick", Float64("latency_us", 1.5))
	l.Warn(ctx, "stall approaching", Any("buckets", map[string]int{"10": 3}))
	l.Error(ctx, "run failed", Error(errors.New("boom")))
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	named := Named("engine")
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.Info(context.Background(), "season finished", Int("season", 1))
}

func TestSetLevelString(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{" INFO ", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			SetLevel(slog.LevelInfo)
			err := SetLevelString(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetLevelString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got := levelVar.Level(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l == nil {
		t.Fatal("discard logger is nil")
	}
	l.Named("x").Info(context.Background(), "dropped", String("k", "v"))
}

func TestInitJSONWith(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf), WithFormat(" JSON ")); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Get().With(String("run_id", "r1"), Int64("matches", 7)).Info(context.Background(), "run finished",
		Bool("ok", true), Duration("took", time.Second))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not a JSON line: %v: %q", err, buf.String())
	}
	if entry["msg"] != "run finished" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["run_id"] != "r1" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
	if entry["matches"] != 7.0 {
		t.Errorf("matches = %v", entry["matches"])
	}
	if entry["ok"] != true {
		t.Errorf("ok = %v", entry["ok"])
	}
	src, _ := entry["source"].(string)
	if !strings.Contains(src, "logger_test.go:") {
		t.Errorf("source = %q, want the calling test file", src)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Get().Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug entry written at info level: %q", buf.String())
	}
	SetLevel(slog.LevelDebug)
	Get().Debug(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("debug entry missing after SetLevel: %q", buf.String())
	}
}
