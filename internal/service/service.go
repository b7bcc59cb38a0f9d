// Package service defines the supervised unit records and the registry that
// holds them for the lifetime of the init process.
package service

import (
	"strings"

	"golang.org/x/sys/unix"
)

// RestartPolicy governs whether a terminated service is relaunched.
type RestartPolicy int

const (
	// RestartNever leaves a terminated service stopped.
	RestartNever RestartPolicy = iota
	// RestartOnFailure relaunches a service whose process did not exit 0.
	RestartOnFailure
	// RestartAlways relaunches a service after every termination.
	RestartAlways
)

// ParseRestartPolicy maps a unit-file Restart value onto a policy.
// Matching is case-insensitive and unrecognized values default to never.
func ParseRestartPolicy(value string) RestartPolicy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "always":
		return RestartAlways
	case "on-failure":
		return RestartOnFailure
	default:
		return RestartNever
	}
}

func (p RestartPolicy) String() string {
	switch p {
	case RestartAlways:
		return "always"
	case RestartOnFailure:
		return "on-failure"
	default:
		return "no"
	}
}

// Service is one supervised unit. A record is created at load time and lives
// for the whole init lifetime; only PID, Running and LastExit change, and only
// the supervision loop writes them.
type Service struct {
	// Name identifies the unit in logs and diagnostics. Names are not
	// required to be unique; the registry does not deduplicate.
	Name string

	// Command is the shell command line from ExecStart, immutable after load.
	Command string

	// Restart is the relaunch policy applied after each observed termination.
	Restart RestartPolicy

	// LogPath is derived from Name once at load time and never recomputed.
	LogPath string

	// Console marks a unit whose streams attach to a terminal instead of a
	// log file. Only the built-in getty uses this.
	Console bool

	// TTY is the terminal path a console unit attaches to.
	TTY string

	// PID is the process group leader while Running, 0 otherwise.
	PID int

	// Running is true between a successful launch and the observed
	// termination of that launch's process.
	Running bool

	// LastExit is the raw wait status recorded by the most recent reap.
	LastExit unix.WaitStatus
}
