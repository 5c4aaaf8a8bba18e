// Package daemon tracks the background API server through a state file
// holding its pid and listen port.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrAlreadyRunning is returned by Acquire when a live server owns the file.
var ErrAlreadyRunning = errors.New("server already running")

// ErrNotRunning is returned when no live server owns the file.
var ErrNotRunning = errors.New("server not running")

// Record is the content of the state file.
type Record struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"startedAt"`
}

// Addr is the local URL of the recorded server.
func (r Record) Addr() string {
	return fmt.Sprintf("http://localhost:%d", r.Port)
}

// PIDFile manages the server state file at Path.
type PIDFile struct {
	Path string
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Read loads the record. A missing file is reported through os.ErrNotExist.
func (p *PIDFile) Read() (Record, error) {
	var rec Record
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("invalid PID file content: %w", err)
	}
	if rec.PID <= 0 {
		return rec, fmt.Errorf("invalid PID file content: pid %d", rec.PID)
	}
	return rec, nil
}

func (p *PIDFile) write(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(p.Path, append(data, '\n'), 0o644)
}

// Status reports the recorded server and whether its process is alive.
func (p *PIDFile) Status() (Record, bool) {
	rec, err := p.Read()
	if err != nil {
		return Record{}, false
	}
	return rec, processAlive(rec.PID)
}

// Acquire records the current process as the server on port. A file left
// by a dead process is replaced.
func (p *PIDFile) Acquire(port int) error {
	if rec, running := p.Status(); running && rec.PID != os.Getpid() {
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, rec.PID, rec.Addr())
	}
	return p.write(Record{PID: os.Getpid(), Port: port, StartedAt: time.Now().UTC()})
}

// Release removes the file if it belongs to the current process.
func (p *PIDFile) Release() error {
	rec, err := p.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if rec.PID != os.Getpid() {
		return nil
	}
	return os.Remove(p.Path)
}

// Stop signals the recorded server. A stale file is removed and reported
// as ErrNotRunning.
func (p *PIDFile) Stop(sig syscall.Signal) (Record, error) {
	rec, err := p.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rec, ErrNotRunning
		}
		return rec, fmt.Errorf("read PID file: %w", err)
	}
	if !processAlive(rec.PID) {
		_ = os.Remove(p.Path)
		return rec, ErrNotRunning
	}
	if err := signalProcess(rec.PID, sig); err != nil {
		return rec, fmt.Errorf("signal pid %d: %w", rec.PID, err)
	}
	return rec, nil
}
