package supervisor

import (
	"bufio"
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// defaultTailLines bounds how much of a service's recent output the
// Supervisor keeps in memory for ProcessHandle.LogTail.
const defaultTailLines = 200

// LogRing is a fixed-capacity ring buffer of log lines, additionally teed
// to a rotated file via lumberjack so output survives a supervisor
// restart, per spec.md §2.1's ambient logging stack.
type LogRing struct {
	mu       sync.Mutex
	lines    []string
	next     int
	filled   bool
	capacity int
	file     *lumberjack.Logger
}

// NewLogRing creates a ring holding up to capacity lines, teeing every
// line additionally to logPath (rotated via lumberjack). logPath may be
// empty to disable the file tee (used in tests).
func NewLogRing(capacity int, logPath string) *LogRing {
	if capacity <= 0 {
		capacity = defaultTailLines
	}
	r := &LogRing{lines: make([]string, capacity), capacity: capacity}
	if logPath != "" {
		r.file = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		}
	}
	return r
}

// Append records a single log line.
func (r *LogRing) Append(line string) {
	r.mu.Lock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.filled = true
	}
	r.mu.Unlock()

	if r.file != nil {
		_, _ = r.file.Write([]byte(line + "\n"))
	}
}

// Lines returns the buffered lines in chronological order, oldest first.
func (r *LogRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled {
		out := make([]string, r.next)
		copy(out, r.lines[:r.next])
		return out
	}
	out := make([]string, r.capacity)
	copy(out, r.lines[r.next:])
	copy(out[r.capacity-r.next:], r.lines[:r.next])
	return out
}

// Close releases the underlying log file, if any.
func (r *LogRing) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// pump reads lines from rd and appends each to the ring until rd is
// exhausted (typically when the child process exits and closes its pipe).
func pump(rd io.Reader, ring *LogRing) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		ring.Append(scanner.Text())
	}
}
