package supervisor

import (
	"golang.org/x/sys/unix"

	"github.com/theratcoder/ratinit/internal/service"
)

// ShouldRestart decides whether a terminated service is relaunched. Under
// on-failure, termination by signal counts as failure just like a non-zero
// exit status.
func ShouldRestart(policy service.RestartPolicy, status unix.WaitStatus) bool {
	switch policy {
	case service.RestartAlways:
		return true
	case service.RestartOnFailure:
		return !status.Exited() || status.ExitStatus() != 0
	default:
		return false
	}
}
