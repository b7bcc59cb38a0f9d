package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theratcoder/ratinit/internal/service"
)

func TestOpenConsolePrefersConfiguredTTY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write tty stand-in: %v", err)
	}

	f, err := openConsole(path)
	if err != nil {
		t.Fatalf("openConsole returned error: %v", err)
	}
	defer f.Close()
	if got, want := f.Name(), path; got != want {
		t.Fatalf("unexpected console: got %q want %q", got, want)
	}
	if isTerminal(f) {
		t.Fatal("a regular file must not count as a terminal")
	}
}

func TestRunConsoleUnitAttachesStreams(t *testing.T) {
	dir := t.TempDir()
	tty := filepath.Join(dir, "tty")
	if err := os.WriteFile(tty, nil, 0o644); err != nil {
		t.Fatalf("write tty stand-in: %v", err)
	}

	svc := service.Console(tty)
	svc.Command = "echo console-hi"
	reg := service.NewRegistry()
	reg.Add(svc)

	sup := newTestSupervisor(reg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	// The console unit always restarts, so wait for the respawn to prove it
	// rides the same reap and backoff path as any service.
	events := collectEvents(t, sup.Events(), 10*time.Second, func(seen []Event) bool {
		return countType(seen, EventTypeStarted) >= 2
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	events = append(events, drain(sup.Events())...)

	if countType(events, EventTypeRestarting) < 1 {
		t.Fatalf("expected a restart event, got %+v", events)
	}

	data, err := os.ReadFile(tty)
	if err != nil {
		t.Fatalf("read tty stand-in: %v", err)
	}
	if len(data) == 0 || string(data[:11]) != "console-hi\n" {
		t.Fatalf("console output missing: %q", data)
	}
}
