package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/theratcoder/ratinit/internal/service"
)

// newTestSupervisor builds a supervisor with fast timing suitable for real
// child processes.
func newTestSupervisor(reg *service.Registry) *Supervisor {
	return New(Config{
		Registry:        reg,
		Backoff:         20 * time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
		Tick:            50 * time.Millisecond,
	})
}

// collectEvents drains the stream until pred returns true or the deadline
// passes, returning everything seen.
func collectEvents(t *testing.T, events <-chan Event, timeout time.Duration, pred func([]Event) bool) []Event {
	t.Helper()
	var seen []Event
	deadline := time.After(timeout)
	for {
		if pred(seen) {
			return seen
		}
		select {
		case evt, ok := <-events:
			if !ok {
				return seen
			}
			seen = append(seen, evt)
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %d: %+v", len(seen), seen)
		}
	}
}

func countType(events []Event, t EventType) int {
	n := 0
	for _, evt := range events {
		if evt.Type == t {
			n++
		}
	}
	return n
}

func drain(events <-chan Event) []Event {
	var rest []Event
	for evt := range events {
		rest = append(rest, evt)
	}
	return rest
}

func TestRunRestartsAlwaysService(t *testing.T) {
	reg := service.NewRegistry()
	reg.Add(&service.Service{
		Name:    "echoer",
		Command: "/bin/echo hi",
		Restart: service.RestartAlways,
		LogPath: filepath.Join(t.TempDir(), "echoer.log"),
	})

	sup := newTestSupervisor(reg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	events := collectEvents(t, sup.Events(), 10*time.Second, func(seen []Event) bool {
		return countType(seen, EventTypeStarted) >= 3
	})
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	events = append(events, drain(sup.Events())...)

	var pids []int
	for _, evt := range events {
		if evt.Type == EventTypeStarted {
			pids = append(pids, evt.PID)
		}
	}
	if len(pids) < 3 {
		t.Fatalf("expected at least 3 launches, got %d", len(pids))
	}
	for i := 1; i < len(pids); i++ {
		if pids[i] == pids[i-1] {
			t.Fatalf("relaunch must produce a fresh pid, got %d twice", pids[i])
		}
	}
	if countType(events, EventTypeRestarting) < 2 {
		t.Fatalf("expected restart events, got %+v", events)
	}
}

func TestRunOnFailureStopsAfterCleanExit(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	reg := service.NewRegistry()
	reg.Add(&service.Service{
		Name:    "flaky",
		Command: fmt.Sprintf("if [ -e %s ]; then exit 0; else touch %s; exit 1; fi", marker, marker),
		Restart: service.RestartOnFailure,
		LogPath: filepath.Join(dir, "flaky.log"),
	})

	sup := newTestSupervisor(reg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	events := collectEvents(t, sup.Events(), 10*time.Second, func(seen []Event) bool {
		return countType(seen, EventTypeExited) >= 2
	})

	// Give the loop a chance to misbehave before stopping it.
	time.Sleep(300 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	events = append(events, drain(sup.Events())...)

	if got, want := countType(events, EventTypeStarted), 2; got != want {
		t.Fatalf("expected exactly one relaunch: got %d launches, want %d", got, want)
	}
}

func TestRunNeverDoesNotRestart(t *testing.T) {
	reg := service.NewRegistry()
	reg.Add(&service.Service{
		Name:    "oneshot",
		Command: "exit 3",
		Restart: service.RestartNever,
		LogPath: filepath.Join(t.TempDir(), "oneshot.log"),
	})

	sup := newTestSupervisor(reg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	events := collectEvents(t, sup.Events(), 10*time.Second, func(seen []Event) bool {
		return countType(seen, EventTypeExited) >= 1
	})

	time.Sleep(300 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	events = append(events, drain(sup.Events())...)

	if got, want := countType(events, EventTypeStarted), 1; got != want {
		t.Fatalf("restart=no must not relaunch: got %d launches, want %d", got, want)
	}
	for _, evt := range events {
		if evt.Type == EventTypeExited && !strings.Contains(evt.Message, "status 3") {
			t.Fatalf("exit status lost: %+v", evt)
		}
	}
}

func TestRunReapsCoalescedTerminations(t *testing.T) {
	dir := t.TempDir()
	reg := service.NewRegistry()
	const n = 5
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("burst-%d", i)
		reg.Add(&service.Service{
			Name:    name,
			Command: "exit 0",
			Restart: service.RestartNever,
			LogPath: filepath.Join(dir, name+".log"),
		})
	}

	sup := newTestSupervisor(reg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	events := collectEvents(t, sup.Events(), 10*time.Second, func(seen []Event) bool {
		return countType(seen, EventTypeExited) >= n
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	events = append(events, drain(sup.Events())...)

	exited := make(map[string]bool)
	for _, evt := range events {
		if evt.Type == EventTypeExited {
			exited[evt.Service] = true
		}
	}
	if len(exited) != n {
		t.Fatalf("expected %d distinct terminations, got %d: %v", n, len(exited), exited)
	}
}

func TestLaunchRedirectsOutputToLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "echoer.log")
	reg := service.NewRegistry()
	svc := &service.Service{
		Name:    "echoer",
		Command: "echo hi",
		Restart: service.RestartNever,
		LogPath: logPath,
	}
	reg.Add(svc)

	sup := newTestSupervisor(reg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	collectEvents(t, sup.Events(), 10*time.Second, func(seen []Event) bool {
		return countType(seen, EventTypeExited) >= 1
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	drain(sup.Events())

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got, want := string(data), "hi\n"; got != want {
		t.Fatalf("unexpected log contents: got %q want %q", got, want)
	}
	if svc.Running {
		t.Fatal("service must be stopped after reap")
	}
	if svc.PID != 0 {
		t.Fatalf("pid must be cleared after reap, got %d", svc.PID)
	}
}

func TestLaunchToleratesLogOpenFailure(t *testing.T) {
	reg := service.NewRegistry()
	svc := &service.Service{
		Name:    "broken",
		Command: "true",
		Restart: service.RestartNever,
		// Unwritable log path: output discarded, launch still proceeds.
		LogPath: filepath.Join(t.TempDir(), "missing", "dir", "broken.log"),
	}
	reg.Add(svc)

	sup := newTestSupervisor(reg)
	if err := sup.launch(svc); err != nil {
		t.Fatalf("launch must tolerate log open failure: %v", err)
	}
	if !svc.Running {
		t.Fatal("service should be running")
	}
	waitForStop(t, sup, svc)
}

func TestReapAllDiscardsUntrackedChildren(t *testing.T) {
	reg := service.NewRegistry()
	svc := &service.Service{
		Name:    "tracked",
		Command: "exit 0",
		Restart: service.RestartNever,
		LogPath: filepath.Join(t.TempDir(), "tracked.log"),
	}
	reg.Add(svc)

	sup := newTestSupervisor(reg)

	// One tracked child plus one the registry knows nothing about.
	if err := sup.launch(svc); err != nil {
		t.Fatalf("launch: %v", err)
	}
	untracked := &service.Service{
		Name:    "ephemeral",
		Command: "exit 0",
		LogPath: filepath.Join(t.TempDir(), "ephemeral.log"),
	}
	if err := sup.launch(untracked); err != nil {
		t.Fatalf("launch untracked: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var reaped []*service.Service
	for time.Now().Before(deadline) {
		reaped = append(reaped, sup.reapAll()...)
		if len(reaped) > 0 && !processAlive(untracked.PID) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if len(reaped) != 1 || reaped[0] != svc {
		t.Fatalf("expected only the tracked service to be reaped, got %+v", reaped)
	}
	if svc.Running {
		t.Fatal("tracked service must be marked stopped")
	}
}

func TestStopServiceEscalation(t *testing.T) {
	reg := service.NewRegistry()
	svc := &service.Service{
		Name:    "sleeper",
		Command: "sleep 60",
		Restart: service.RestartAlways,
		LogPath: filepath.Join(t.TempDir(), "sleeper.log"),
	}
	reg.Add(svc)

	sup := newTestSupervisor(reg)
	if err := sup.launch(svc); err != nil {
		t.Fatalf("launch: %v", err)
	}
	pid := svc.PID

	sup.stopService(svc)
	if svc.Running {
		t.Fatal("service must be stopped")
	}
	if processAlive(pid) {
		t.Fatalf("pid %d still signalable after stop", pid)
	}

	// Idempotent: a second stop on the stopped record is a no-op.
	sup.stopService(svc)
	if svc.Running || svc.PID != 0 {
		t.Fatalf("repeat stop changed state: %+v", svc)
	}
}

func TestStopServiceKillsStubbornGroup(t *testing.T) {
	reg := service.NewRegistry()
	svc := &service.Service{
		Name:    "stubborn",
		Command: "trap '' TERM; sleep 60",
		Restart: service.RestartNever,
		LogPath: filepath.Join(t.TempDir(), "stubborn.log"),
	}
	reg.Add(svc)

	sup := newTestSupervisor(reg)
	sup.shutdownTimeout = 300 * time.Millisecond
	if err := sup.launch(svc); err != nil {
		t.Fatalf("launch: %v", err)
	}
	pid := svc.PID

	// Let the shell install its trap before the escalation starts.
	time.Sleep(200 * time.Millisecond)

	sup.stopService(svc)
	if svc.Running {
		t.Fatal("service must be marked stopped after escalation")
	}

	waitForExit(t, pid)
}

func waitForStop(t *testing.T, sup *Supervisor, svc *service.Service) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sup.reapAll()
		if !svc.Running {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("service %s still running", svc.Name)
}

// waitForExit waits for a SIGKILLed leader to disappear, collecting the
// zombie if it is our child.
func waitForExit(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var status unix.WaitStatus
		got, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
		if got == pid || err == unix.ECHILD {
			return
		}
		if !processAlive(pid) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("pid %d never exited", pid)
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil
}
