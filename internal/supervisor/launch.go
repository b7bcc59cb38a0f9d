package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/theratcoder/ratinit/internal/service"
)

// launch spawns the service's command through the shell, records the new pid
// and marks the service running. The child becomes a session (and therefore
// process group) leader so its descendants stay signalable as a group. If
// the command itself cannot be exec'd the shell exits 127, which surfaces
// through the ordinary reap path.
func (s *Supervisor) launch(svc *service.Service) error {
	cmd := exec.Command("/bin/sh", "-c", svc.Command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	var files []*os.File
	if svc.Console {
		tty, err := openConsole(svc.TTY)
		if err == nil {
			cmd.Stdin = tty
			cmd.Stdout = tty
			cmd.Stderr = tty
			if isTerminal(tty) {
				cmd.SysProcAttr.Setctty = true
				cmd.SysProcAttr.Ctty = 0
			}
			files = append(files, tty)
		}
		// No usable terminal: fall through with the supervisor's streams.
	} else {
		devnull, err := os.Open(os.DevNull)
		if err == nil {
			cmd.Stdin = devnull
			files = append(files, devnull)
		}
		logf, err := os.OpenFile(svc.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			// Output is discarded rather than blocking the launch.
			s.sendEvent(svc.Name, EventTypeError, "open log file", 0, err)
		} else {
			cmd.Stdout = logf
			cmd.Stderr = logf
			files = append(files, logf)
		}
	}

	s.sendEvent(svc.Name, EventTypeStarting, "starting service", 0, nil)
	err := cmd.Start()

	// The descriptors belong to the child; never keep them in the
	// supervisor's table.
	for _, f := range files {
		f.Close()
	}
	if err != nil {
		return fmt.Errorf("start service %s: %w", svc.Name, err)
	}

	pid := cmd.Process.Pid
	// Reaping happens centrally via wait(); release the handle so os/exec
	// never races the reaper for the exit status.
	_ = cmd.Process.Release()

	svc.PID = pid
	svc.Running = true
	s.sendEvent(svc.Name, EventTypeStarted, "service started", pid, nil)
	return nil
}

// openConsole opens the configured terminal, falling back to the system
// console when it is unavailable.
func openConsole(tty string) (*os.File, error) {
	if tty != "" {
		if f, err := os.OpenFile(tty, os.O_RDWR, 0); err == nil {
			return f, nil
		}
	}
	return os.OpenFile("/dev/console", os.O_RDWR, 0)
}

// isTerminal reports whether the child should acquire f as its controlling
// terminal. Setctty on anything but a real terminal would fail the exec.
func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}
