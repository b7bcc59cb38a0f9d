// Package boot performs the early filesystem setup an init process needs
// before supervision starts. Everything here is best-effort: a system that
// already has its pseudo-filesystems mounted must keep booting.
package boot

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

type mountPoint struct {
	source string
	target string
	fstype string
}

var pseudoMounts = []mountPoint{
	{"proc", "/proc", "proc"},
	{"sysfs", "/sys", "sysfs"},
	{"devtmpfs", "/dev", "devtmpfs"},
}

// Options selects which setup steps run.
type Options struct {
	// Mounts enables pseudo-filesystem mounting. Leave false when not
	// running as PID 1.
	Mounts bool

	// LogDir is created if absent.
	LogDir string

	// StateFile's parent directory is created if absent.
	StateFile string
}

// Setup runs the selected steps and returns the non-fatal problems it hit.
func Setup(opts Options) []error {
	var errs []error

	if opts.Mounts {
		for _, m := range pseudoMounts {
			if err := os.MkdirAll(m.target, 0o755); err != nil {
				errs = append(errs, fmt.Errorf("mkdir %s: %w", m.target, err))
			}
			if err := unix.Mount(m.source, m.target, m.fstype, 0, ""); err != nil && err != unix.EBUSY {
				errs = append(errs, fmt.Errorf("mount %s: %w", m.target, err))
			}
		}
	}

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("mkdir log dir: %w", err))
		}
	}
	if opts.StateFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.StateFile), 0o755); err != nil {
			errs = append(errs, fmt.Errorf("mkdir state dir: %w", err))
		}
	}
	return errs
}
