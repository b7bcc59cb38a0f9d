package supervisor

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/theratcoder/ratinit/internal/service"
)

// shutdown is the terminal transition: stop every running service, flush
// durable state and hand off to the poweroff collaborator when one exists.
// No launches happen once this runs.
func (s *Supervisor) shutdown() error {
	s.sendEvent("", EventTypeShutdown, "stopping all services", 0, nil)
	for _, svc := range s.registry.Services() {
		s.stopService(svc)
	}
	s.record()
	unix.Sync()

	if path := s.poweroffPath; path != "" {
		if info, err := os.Stat(path); err == nil && info.Mode()&0o111 != 0 {
			// Replaces the supervisor on success.
			if err := s.execv(path, []string{path}, os.Environ()); err != nil {
				s.sendEvent("", EventTypeError, "exec poweroff", 0, err)
			}
		}
	}
	return nil
}

// stopService runs the two-phase escalation against the service's process
// group: SIGTERM, a bounded non-blocking wait, then SIGKILL if the leader is
// still not reapable. Running is cleared unconditionally, so a second call is
// a no-op.
func (s *Supervisor) stopService(svc *service.Service) {
	if !svc.Running {
		return
	}
	pid := svc.PID
	s.sendEvent(svc.Name, EventTypeStopping, "stopping service", pid, nil)

	if err := unix.Kill(-pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		s.sendEvent(svc.Name, EventTypeError, "signal process group", pid, err)
	}

	collected := false
	for elapsed := time.Duration(0); elapsed < s.shutdownTimeout; elapsed += stopPollInterval {
		if s.tryCollect(pid) {
			collected = true
			break
		}
		s.sleep(stopPollInterval)
	}
	if !collected && !s.tryCollect(pid) {
		if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			s.sendEvent(svc.Name, EventTypeError, "kill process group", pid, err)
		}
	}

	svc.Running = false
	svc.PID = 0
	s.sendEvent(svc.Name, EventTypeStopped, "service stopped", pid, nil)
}

// tryCollect reaps the given leader without blocking. ECHILD means some
// earlier wait already collected it, which counts as done.
func (s *Supervisor) tryCollect(pid int) bool {
	for {
		var status unix.WaitStatus
		got, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case errors.Is(err, unix.ECHILD):
			return true
		default:
			return got == pid
		}
	}
}
