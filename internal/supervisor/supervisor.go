// Package supervisor implements the PID-1 control loop: it launches the
// registered services, reaps terminated children on SIGCHLD, applies each
// service's restart policy and runs the ordered shutdown escalation when a
// termination request arrives.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/theratcoder/ratinit/internal/service"
)

const (
	defaultBackoff         = time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultTick            = time.Second

	// stopPollInterval paces the bounded wait between SIGTERM and SIGKILL.
	stopPollInterval = 100 * time.Millisecond

	eventBuffer = 128
)

// Recorder persists a best-effort snapshot of the registry after each
// transition. Failures are reported as events, never escalated.
type Recorder interface {
	Record(services []*service.Service) error
}

// Config controls construction of the Supervisor.
type Config struct {
	Registry *service.Registry

	// Backoff is the fixed delay applied before any policy-driven relaunch.
	Backoff time.Duration

	// ShutdownTimeout bounds the graceful phase of the stop escalation.
	ShutdownTimeout time.Duration

	// Tick bounds how long the loop sleeps when no signal is pending.
	Tick time.Duration

	// PoweroffPath is executed after shutdown when present and executable.
	// Empty disables the handoff.
	PoweroffPath string

	// Recorder receives registry snapshots. Nil disables persistence.
	Recorder Recorder
}

// Supervisor owns the registry for its whole lifetime. All registry mutation
// happens on the goroutine running Run; there is no other writer.
type Supervisor struct {
	registry *service.Registry
	events   chan Event

	backoff         time.Duration
	shutdownTimeout time.Duration
	tick            time.Duration
	poweroffPath    string
	recorder        Recorder

	sleep func(time.Duration)
	execv func(argv0 string, argv []string, envv []string) error

	chld chan os.Signal
	term chan os.Signal
}

// New constructs a supervisor over the provided registry.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		registry:        cfg.Registry,
		events:          make(chan Event, eventBuffer),
		backoff:         cfg.Backoff,
		shutdownTimeout: cfg.ShutdownTimeout,
		tick:            cfg.Tick,
		poweroffPath:    cfg.PoweroffPath,
		recorder:        cfg.Recorder,
		sleep:           time.Sleep,
		execv:           unix.Exec,
		chld:            make(chan os.Signal, 1),
		term:            make(chan os.Signal, 1),
	}
	if s.registry == nil {
		s.registry = service.NewRegistry()
	}
	if s.backoff <= 0 {
		s.backoff = defaultBackoff
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = defaultShutdownTimeout
	}
	if s.tick <= 0 {
		s.tick = defaultTick
	}
	return s
}

// Events returns the lifecycle event stream. The channel is closed when Run
// returns.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Run launches every registered service and supervises until a termination
// request arrives or ctx is cancelled, then executes the shutdown sequence.
// It is the sole writer of service state for its whole lifetime.
func (s *Supervisor) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer close(s.events)

	// Signal delivery is bridged onto buffered channels; the handler side
	// does no work beyond the non-blocking send, and coalesced delivery is
	// handled by draining wait() to exhaustion per wakeup.
	signal.Notify(s.chld, unix.SIGCHLD)
	signal.Notify(s.term, unix.SIGTERM, unix.SIGINT)
	defer signal.Stop(s.chld)
	defer signal.Stop(s.term)

	for _, svc := range s.registry.Services() {
		if err := s.launch(svc); err != nil {
			s.sendEvent(svc.Name, EventTypeStartFailed, "start failed", 0, err)
		}
	}
	s.record()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.chld:
			s.reapAndRestart()
		case <-s.term:
			return s.shutdown()
		case <-ctx.Done():
			return s.shutdown()
		case <-ticker.C:
			// Bounded idle sleep; nothing pending.
		}
	}
}

// reapAndRestart drains all terminated children, then consults the restart
// policy for each reaped service before the next pass begins.
func (s *Supervisor) reapAndRestart() {
	reaped := s.reapAll()
	for _, svc := range reaped {
		if !ShouldRestart(svc.Restart, svc.LastExit) {
			continue
		}
		s.sendEvent(svc.Name, EventTypeRestarting, "restarting after backoff", 0, nil)
		s.sleep(s.backoff)
		if err := s.launch(svc); err != nil {
			s.sendEvent(svc.Name, EventTypeStartFailed, "restart failed", 0, err)
		}
	}
	if len(reaped) > 0 {
		s.record()
	}
}

func (s *Supervisor) record() {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(s.registry.Services()); err != nil {
		s.sendEvent("", EventTypeError, "record state", 0, err)
	}
}
