// Package state persists a point-in-time snapshot of the service registry so
// tooling can inspect the supervisor without talking to it.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio/v2"

	"github.com/theratcoder/ratinit/internal/service"
)

// Entry is the persisted view of one service record. The last wait status is
// stored decoded: ExitCode for a normal exit, Signal when the process was
// killed.
type Entry struct {
	Name     string `json:"name"`
	Restart  string `json:"restart"`
	PID      int    `json:"pid,omitempty"`
	Running  bool   `json:"running"`
	ExitCode int    `json:"exitCode"`
	Signal   string `json:"signal,omitempty"`
}

// Snapshot is the document written to the state file.
type Snapshot struct {
	Timestamp time.Time `json:"ts"`
	Services  []Entry   `json:"services"`
}

// File records snapshots at a fixed path. Writes are atomic so readers never
// observe a torn document, even if the supervisor dies mid-write.
type File struct {
	path string
}

// NewFile returns a recorder writing to path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Record implements supervisor.Recorder.
func (f *File) Record(services []*service.Service) error {
	snap := Snapshot{Timestamp: time.Now(), Services: make([]Entry, 0, len(services))}
	for _, svc := range services {
		entry := Entry{
			Name:    svc.Name,
			Restart: svc.Restart.String(),
			PID:     svc.PID,
			Running: svc.Running,
		}
		switch {
		case svc.LastExit.Signaled():
			entry.Signal = svc.LastExit.Signal().String()
		case svc.LastExit.Exited():
			entry.ExitCode = svc.LastExit.ExitStatus()
		}
		snap.Services = append(snap.Services, entry)
	}
	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := renameio.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Read loads a previously recorded snapshot.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &snap, nil
}
