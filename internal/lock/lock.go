// Package lock guards a session directory so that one daemon serves it.
package lock

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Holder describes the process that owns a lock file.
type Holder struct {
	PID     int
	Session string
	APIBase string
	Since   time.Time
}

// LockHeldError is returned when another process holds the session lock.
type LockHeldError struct {
	Holder Holder
	Path   string
}

func (e *LockHeldError) Error() string {
	if e.Holder.APIBase != "" {
		return fmt.Sprintf("session %q already served by PID %d for %s (%s)",
			e.Holder.Session, e.Holder.PID, e.Holder.APIBase, e.Path)
	}
	return fmt.Sprintf("session lock held by PID %d (%s)", e.Holder.PID, e.Path)
}

// Lock represents an acquired session lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive flock on path and records h in it. The PID and
// start time are filled in from the current process.
func Acquire(path string, h Holder) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		held, _ := ReadHolder(path)
		return nil, &LockHeldError{Holder: held, Path: path}
	}

	h.PID = os.Getpid()
	h.Since = time.Now().UTC()
	if err := write(f, h); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadHolder parses the owner recorded in a lock file.
func ReadHolder(path string) (Holder, error) {
	f, err := os.Open(path)
	if err != nil {
		return Holder{}, err
	}
	defer func() { _ = f.Close() }()

	var h Holder
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(val)
		case "session":
			h.Session = val
		case "api_base":
			h.APIBase = val
		case "time":
			h.Since, _ = time.Parse(time.RFC3339, val)
		}
	}
	return h, sc.Err()
}

func write(f *os.File, h Holder) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\nsession=%s\napi_base=%s\ntime=%s\n",
		h.PID, h.Session, h.APIBase, h.Since.Format(time.RFC3339))
	return err
}
