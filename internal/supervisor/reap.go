package supervisor

import (
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/theratcoder/ratinit/internal/service"
)

// reapAll drains every currently terminated child with a non-blocking wait,
// looping until none remain. One SIGCHLD wakeup can stand for any number of
// terminations, so stopping at the first reap would leak zombies. Terminated
// pids that do not map to a tracked service are discarded.
func (s *Supervisor) reapAll() []*service.Service {
	var reaped []*service.Service
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil || pid <= 0:
			return reaped
		}

		svc := s.registry.FindByPID(pid)
		if svc == nil {
			continue
		}
		svc.Running = false
		svc.PID = 0
		svc.LastExit = status
		s.sendEvent(svc.Name, EventTypeExited, exitMessage(status), pid, nil)
		reaped = append(reaped, svc)
	}
}

func exitMessage(status unix.WaitStatus) string {
	if status.Signaled() {
		return "service killed by " + status.Signal().String()
	}
	if status.Exited() {
		return "service exited with status " + strconv.Itoa(status.ExitStatus())
	}
	return "service exited"
}
