package testutil

import (
	"sync"
	"testing"

	"github.com/GeorgeStrakhov/briefboarder/pkg/logging"
)

// LogCapture is a logging.Output that records entries for assertions.
type LogCapture struct {
	mu      sync.Mutex
	entries []logging.LogEntry
}

func (c *LogCapture) Write(e logging.LogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *LogCapture) Sync() error  { return nil }
func (c *LogCapture) Close() error { return nil }

// Entries returns a snapshot of the captured log entries.
func (c *LogCapture) Entries() []logging.LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]logging.LogEntry(nil), c.entries...)
}

// CaptureLogs swaps the global logger for one that records everything at
// debug level, restoring the default when the test finishes.
func CaptureLogs(t *testing.T) *LogCapture {
	t.Helper()
	capture := &LogCapture{}
	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: logging.DEBUG,
		Outputs:  []logging.Output{capture},
	}))
	t.Cleanup(func() {
		logging.SetLogger(logging.NewLogger(logging.Config{
			Severity: logging.INFO,
			Outputs:  []logging.Output{logging.NewConsoleOutput(false)},
		}))
	})
	return capture
}
