// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"  Error  ", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestNew_StderrOnly(t *testing.T) {
	logger, err := New(Config{Level: LevelDebug, Service: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	if logger.Slog() == nil {
		t.Fatal("Slog() returned nil")
	}
	// No file destination was configured.
	if logger.file != nil {
		t.Fatal("stderr-only logger should not hold a file handle")
	}
}

func TestNew_CreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level:   LevelDebug,
		LogDir:  filepath.Join(dir, "nested", "logs"),
		Service: "causal",
		Quiet:   true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("file test", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	want := filepath.Join(dir, "nested", "logs",
		"causal_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("file entries must be JSON: %v", err)
	}
	if entry["msg"] != "file test" {
		t.Errorf("msg = %v, want %q", entry["msg"], "file test")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
	if entry["service"] != "causal" {
		t.Errorf("service = %v, want %q", entry["service"], "causal")
	}
}

func TestNew_LevelFiltersFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "causal",
		Quiet:   true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")
	logger.Error("kept too")
	_ = logger.Close()

	name := filepath.Join(dir, "causal_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Error("messages below the level must be discarded")
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "kept too") {
		t.Error("messages at or above the level must be written")
	}
}

func TestNew_BadLogDir(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the directory should go.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{LogDir: blocker}); err == nil {
		t.Fatal("expected an error for an unusable log directory")
	}
}

func TestLogger_With(t *testing.T) {
	dir := t.TempDir()
	root, err := New(Config{LogDir: dir, Service: "causal", Quiet: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	child := root.With("run_id", "abc123")
	child.Info("child message")
	_ = root.Close()

	name := filepath.Join(dir, "causal_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "abc123") {
		t.Error("child logger attributes must reach the shared file")
	}
}

func TestLogger_CloseIdempotent(t *testing.T) {
	logger, err := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil || logger.Slog() == nil {
		t.Fatal("Default must return a usable logger")
	}
	logger.Info("default logger works")
}

func TestMultiHandler(t *testing.T) {
	var a, b strings.Builder
	m := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}

	logger := slog.New(m)
	logger.Debug("low")
	logger.Warn("high")

	if !strings.Contains(a.String(), "low") || !strings.Contains(a.String(), "high") {
		t.Error("permissive handler must receive both records")
	}
	if strings.Contains(b.String(), "low") {
		t.Error("strict handler must not receive records below its level")
	}
	if !strings.Contains(b.String(), "high") {
		t.Error("strict handler must receive records at its level")
	}

	if !m.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled must be true when any handler accepts the level")
	}

	grouped := m.WithGroup("g").WithAttrs([]slog.Attr{slog.String("k", "v")})
	if grouped == nil {
		t.Fatal("WithGroup/WithAttrs must return a handler")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in this environment")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("~"); got != home {
		t.Errorf("expandPath(~) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath must pass absolute paths through, got %q", got)
	}
}
