package testing

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// LogCapture collects zerolog JSON output written from any goroutine
type LogCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogCapture returns a capture and a debug-level logger writing into it
func NewLogCapture() (*LogCapture, zerolog.Logger) {
	c := &LogCapture{}
	return c, zerolog.New(c).Level(zerolog.DebugLevel)
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Entries decodes every captured line
func (c *LogCapture) Entries(t *testing.T) []map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(c.buf.Bytes()))
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", scanner.Text(), err)
		}
		out = append(out, entry)
	}
	return out
}

// Level returns the captured entries logged at level
func (c *LogCapture) Level(t *testing.T, level string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, e := range c.Entries(t) {
		if e["level"] == level {
			out = append(out, e)
		}
	}
	return out
}
