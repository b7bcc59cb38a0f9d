package supervisor

import "time"

// EventType captures high level lifecycle notifications emitted by the
// supervision loop.
type EventType string

const (
	EventTypeStarting    EventType = "starting"
	EventTypeStarted     EventType = "started"
	EventTypeStartFailed EventType = "start-failed"
	EventTypeExited      EventType = "exited"
	EventTypeRestarting  EventType = "restarting"
	EventTypeStopping    EventType = "stopping"
	EventTypeStopped     EventType = "stopped"
	EventTypeShutdown    EventType = "shutdown"
	EventTypeError       EventType = "error"
)

// Event represents a single lifecycle notification.
type Event struct {
	Timestamp time.Time
	Service   string
	Type      EventType
	Message   string
	PID       int
	Err       error
}

// sendEvent offers an event to the stream without ever blocking the loop.
// A full stream drops the event; the supervisor's liveness wins.
func (s *Supervisor) sendEvent(name string, t EventType, message string, pid int, err error) {
	if s.events == nil {
		return
	}
	evt := Event{
		Timestamp: time.Now(),
		Service:   name,
		Type:      t,
		Message:   message,
		PID:       pid,
		Err:       err,
	}
	select {
	case s.events <- evt:
	default:
	}
}
