package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/newtron-network/papibridge/pkg/util"
)

// ErrClosed is returned by Log after Close.
var ErrClosed = errors.New("audit log closed")

// rotatedSuffix sorts lexically in time order.
const rotatedSuffix = "20060102-150405.000000000"

// Logger defines the interface for audit logging backends
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// FileLogger appends events to a JSON-lines file
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.RWMutex
	file *os.File
	enc  *json.Encoder
}

// RotationConfig configures log file rotation
type RotationConfig struct {
	MaxSize    int64 // bytes; 0 disables rotation
	MaxBackups int   // rotated files kept; 0 keeps all
}

// NewFileLogger opens (or creates) the log at path.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	l.file, l.enc = f, json.NewEncoder(f)
	return nil
}

// Path returns the active log file.
func (l *FileLogger) Path() string {
	return l.path
}

// Log appends one event, rotating first when the file is full.
func (l *FileLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}
	if l.rotation.MaxSize > 0 {
		if info, err := l.file.Stat(); err == nil && info.Size() >= l.rotation.MaxSize {
			if err := l.rotate(); err != nil {
				return fmt.Errorf("rotating audit log: %w", err)
			}
		}
	}
	return l.enc.Encode(event)
}

// Query returns matching events from the active file, oldest first.
// Offset skips the newest matches and Limit keeps at most that many of
// the newest remaining ones, so Filter{Limit: 10} is "the last ten".
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return []*Event{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []*Event
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			util.Warnf("audit: skipping malformed entry at %s:%d: %v", l.path, line, err)
			continue
		}
		if l.matchesFilter(&event, filter) {
			events = append(events, &event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	end := len(events) - filter.Offset
	if end < 0 {
		end = 0
	}
	start := 0
	if filter.Limit > 0 && end-filter.Limit > 0 {
		start = end - filter.Limit
	}
	return events[start:end], nil
}

// Close closes the log file. Later Log calls fail.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.enc = nil, nil
	return err
}

func (l *FileLogger) matchesFilter(event *Event, filter Filter) bool {
	switch {
	case filter.Host != "" && event.Host != filter.Host:
		return false
	case filter.User != "" && event.User != filter.User:
		return false
	case filter.Command != "" && !event.hasCommand(filter.Command):
		return false
	case !filter.StartTime.IsZero() && event.Timestamp.Before(filter.StartTime):
		return false
	case !filter.EndTime.IsZero() && event.Timestamp.After(filter.EndTime):
		return false
	case filter.SuccessOnly && !event.Success:
		return false
	case filter.FailureOnly && event.Success:
		return false
	}
	return true
}

// rotate renames the active file aside and opens a fresh one. Caller
// holds l.mu.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+"."+time.Now().Format(rotatedSuffix)); err != nil {
		return err
	}
	if err := l.open(); err != nil {
		return err
	}
	if l.rotation.MaxBackups > 0 {
		l.pruneBackups()
	}
	return nil
}

func (l *FileLogger) pruneBackups() {
	backups, err := filepath.Glob(l.path + ".*")
	if err != nil || len(backups) <= l.rotation.MaxBackups {
		return
	}
	sort.Strings(backups)
	for _, old := range backups[:len(backups)-l.rotation.MaxBackups] {
		if err := os.Remove(old); err != nil {
			util.Warnf("audit: removing %s: %v", old, err)
		}
	}
}

var defaultLogger atomic.Pointer[Logger]

// SetDefaultLogger installs the process-wide logger used by Log and Query.
// Passing nil disables auditing.
func SetDefaultLogger(logger Logger) {
	if logger == nil {
		defaultLogger.Store(nil)
		return
	}
	defaultLogger.Store(&logger)
}

// Log records an event with the default logger. Without one it is a no-op.
func Log(event *Event) error {
	if l := defaultLogger.Load(); l != nil {
		return (*l).Log(event)
	}
	return nil
}

// Query queries the default logger.
func Query(filter Filter) ([]*Event, error) {
	if l := defaultLogger.Load(); l != nil {
		return (*l).Query(filter)
	}
	return []*Event{}, nil
}
