// Package daemon runs medremind as a long-lived background process.
package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/adrg/xdg"

	"github.com/manav03panchal/medremind/internal/errors"
)

const (
	// AppName is the application name used for runtime directories.
	AppName = "medremind"
	// PIDFileName is the PID file name.
	PIDFileName = "medremind.pid"
)

var (
	ErrNotRunning     = errors.New("daemon is not running")
	ErrAlreadyRunning = errors.New("daemon is already running")
)

// PIDFile names the process that owns the reminder scheduler. At most one
// live daemon holds it; a file left by a dead process is reclaimed.
type PIDFile struct {
	path string
}

// NewPIDFile returns the PID file under the XDG state directory.
func NewPIDFile() *PIDFile {
	return &PIDFile{path: filepath.Join(xdg.StateHome, AppName, PIDFileName)}
}

// Acquire claims the file for this process. It returns ErrAlreadyRunning
// while another live daemon holds it.
func (p *PIDFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}

	// Two attempts: the second follows removal of a stale file.
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			return errors.Wrap(werr, "failed to write PID file")
		}
		if !os.IsExist(err) {
			return errors.Wrap(err, "failed to create PID file")
		}

		if pid := p.RunningPID(); pid > 0 && pid != os.Getpid() {
			return ErrAlreadyRunning
		}
		if err := p.remove(); err != nil {
			return err
		}
	}
	return ErrAlreadyRunning
}

// Release removes the file if this process holds it.
func (p *PIDFile) Release() error {
	pid, err := p.read()
	if err != nil || pid != os.Getpid() {
		return nil
	}
	return p.remove()
}

// ClearStale removes the file when the process it names has exited. It
// reports whether a file was removed.
func (p *PIDFile) ClearStale() (bool, error) {
	pid, err := p.read()
	if err != nil || processAlive(pid) {
		return false, nil
	}
	return true, p.remove()
}

// RunningPID returns the live daemon's PID, or 0 if none holds the file.
func (p *PIDFile) RunningPID() int {
	pid, err := p.read()
	if err != nil || !processAlive(pid) {
		return 0
	}
	return pid
}

// Signal delivers sig to the live daemon and returns its PID.
func (p *PIDFile) Signal(sig os.Signal) (int, error) {
	pid := p.RunningPID()
	if pid == 0 {
		return 0, ErrNotRunning
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to find daemon process %d", pid)
	}
	if err := process.Signal(sig); err != nil {
		return pid, errors.Wrapf(err, "failed to signal daemon process %d", pid)
	}
	return pid, nil
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

func (p *PIDFile) read() (int, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return 0, ErrNotRunning
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read PID file")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid PID file %s", p.path)
	}
	return pid, nil
}

func (p *PIDFile) remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove PID file")
	}
	return nil
}

// processAlive reports whether pid names a live process. FindProcess always
// succeeds on Unix, so signal 0 checks for existence.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
