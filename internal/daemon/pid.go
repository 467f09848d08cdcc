package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile guards against concurrent daemon instances. The file stays
// flock'd for the life of the process, so a second instance fails fast
// instead of fighting over the socket.
type PIDFile struct {
	path string
	file *os.File
}

// NewPIDFile creates a PIDFile for the given path. Nothing is written
// until Acquire.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the pid file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire locks the pid file and records the current process ID. It fails
// if another live instance holds the lock.
func (p *PIDFile) Acquire() error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open pid file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if err == syscall.EWOULDBLOCK {
			return fmt.Errorf("marquee already running (pid file locked)")
		}
		return fmt.Errorf("lock pid file: %w", err)
	}

	if err := file.Truncate(0); err != nil {
		p.unlockAndClose(file)
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		p.unlockAndClose(file)
		return fmt.Errorf("seek pid file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		p.unlockAndClose(file)
		return fmt.Errorf("write pid: %w", err)
	}
	if err := file.Sync(); err != nil {
		p.unlockAndClose(file)
		return fmt.Errorf("sync pid file: %w", err)
	}

	p.file = file
	return nil
}

// Release drops the lock and removes the pid file.
func (p *PIDFile) Release() error {
	if p.file != nil {
		p.unlockAndClose(p.file)
		p.file = nil
	}
	_ = os.Remove(p.path)
	return nil
}

func (p *PIDFile) unlockAndClose(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}

// Read returns the recorded PID, or 0 if the file is missing or malformed.
func (p *PIDFile) Read() int {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// Alive reports whether the recorded process still exists.
func (p *PIDFile) Alive() bool {
	return processAlive(p.Read())
}

// CleanupStale removes the pid file and any companion files (socket,
// daemon info) left behind by a crashed instance. It does nothing while
// the recorded process is alive.
func (p *PIDFile) CleanupStale(companions ...string) {
	if p.Alive() {
		return
	}
	_ = os.Remove(p.path)
	for _, path := range companions {
		if path != "" {
			_ = os.Remove(path)
		}
	}
}

// processAlive checks process existence with signal 0. On Unix,
// os.FindProcess always succeeds, so the signal probe is the real test.
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
