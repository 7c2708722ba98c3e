// Package logging keeps the diagnostic log lines of the converter in memory
// so hosts can display them, independently of the progress events.
package logging

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const timestampLayout = "15:04:05.000"

// Buffer is a timestamped, size-limited log line store. It has its own lock
// and never touches conversion progress state.
type Buffer struct {
	mu       sync.Mutex
	lines    []string
	dropped  int // lines discarded from the front, keeps Since offsets stable
	maxLines int
	echo     bool
	now      func() time.Time
}

// NewBuffer creates a Buffer holding at most maxLines lines (0 = unlimited).
// When echo is set every line is also written to the standard logger.
func NewBuffer(maxLines int, echo bool) *Buffer {
	return &Buffer{maxLines: maxLines, echo: echo, now: time.Now}
}

// Log appends one message, prefixed with a local wall-clock timestamp.
func (b *Buffer) Log(msg string) {
	line := fmt.Sprintf("[%s] %s", b.now().Format(timestampLayout), msg)

	b.mu.Lock()
	b.lines = append(b.lines, line)
	if b.maxLines > 0 && len(b.lines) > b.maxLines {
		excess := len(b.lines) - b.maxLines
		b.lines = append([]string(nil), b.lines[excess:]...)
		b.dropped += excess
	}
	b.mu.Unlock()

	if b.echo {
		log.Print(msg)
	}
}

// Logf formats and appends one message.
func (b *Buffer) Logf(format string, args ...any) {
	b.Log(fmt.Sprintf(format, args...))
}

// Lines returns a copy of the retained lines.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Since returns the lines with sequence number >= seq together with the
// sequence number to pass on the next call. Lines that were already dropped
// are skipped silently.
func (b *Buffer) Since(seq int) ([]string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.dropped + len(b.lines)
	start := seq - b.dropped
	if start < 0 {
		start = 0
	}
	if start >= len(b.lines) {
		return nil, next
	}
	return append([]string(nil), b.lines[start:]...), next
}

// Clear removes all retained lines.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.dropped += len(b.lines)
	b.lines = nil
	b.mu.Unlock()
}

// MemoryUsage describes the Go heap for diagnostic log lines.
func MemoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("Memory: heap %s, sys %s, gc cycles %d",
		humanize.IBytes(m.HeapAlloc), humanize.IBytes(m.Sys), m.NumGC)
}
