package service

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxServices bounds the registry. Unit files beyond the bound are ignored
// rather than rejected, so an overfull services directory still boots.
const MaxServices = 128

// Registry is the fixed-capacity table of service records. It is built once
// at boot and append-only afterwards; the supervision loop is its only writer.
type Registry struct {
	services []*Service
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make([]*Service, 0, MaxServices)}
}

// Add appends a record, dropping it silently once capacity is reached.
func (r *Registry) Add(svc *Service) {
	if len(r.services) >= MaxServices {
		return
	}
	r.services = append(r.services, svc)
}

// Services returns the records in load order. The slice is shared; callers
// must not mutate it.
func (r *Registry) Services() []*Service {
	return r.services
}

// Len reports the number of loaded records.
func (r *Registry) Len() int {
	return len(r.services)
}

// FindByPID returns the running service owning pid, or nil. A linear scan is
// fine at registry scale.
func (r *Registry) FindByPID(pid int) *Service {
	for _, svc := range r.services {
		if svc.Running && svc.PID == pid {
			return svc
		}
	}
	return nil
}

// LoadDir populates the registry from a directory of unit files, visiting
// files in lexical order. A missing or unreadable directory is an error;
// malformed unit files are skipped so one bad unit cannot block the rest.
func (r *Registry) LoadDir(dir, logDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read services dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		svc, err := parseUnitFile(filepath.Join(dir, name), logDir)
		if err != nil || svc == nil {
			continue
		}
		r.Add(svc)
	}
	return nil
}

// parseUnitFile reads one key=value unit file. Recognized keys are Name,
// ExecStart and Restart, case-insensitive; other lines are ignored. A unit
// without both Name and ExecStart yields (nil, nil).
func parseUnitFile(path, logDir string) (*Service, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var name, execStart, restart string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch {
		case strings.EqualFold(key, "name"):
			name = value
		case strings.EqualFold(key, "execstart"):
			execStart = value
		case strings.EqualFold(key, "restart"):
			restart = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if name == "" || execStart == "" {
		return nil, nil
	}

	return &Service{
		Name:    name,
		Command: execStart,
		Restart: ParseRestartPolicy(restart),
		LogPath: filepath.Join(logDir, name+".log"),
	}, nil
}
