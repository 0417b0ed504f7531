package display

import (
	"context"
	"sync"
)

// Call is one recorded driver operation.
type Call struct {
	Op   string
	Path string
}

// Mock records driver calls in memory. Errors set with Fail are returned
// from the matching operation until cleared with Fail(op, nil).
type Mock struct {
	width, height int

	mu     sync.Mutex
	calls  []Call
	errs   map[string]error
	notify chan Call
}

// NewMock returns a Mock reporting the given size.
func NewMock(width, height int) *Mock {
	return &Mock{width: width, height: height, errs: map[string]error{}}
}

// Width returns the configured width.
func (m *Mock) Width() int { return m.width }

// Height returns the configured height.
func (m *Mock) Height() int { return m.height }

// Fail makes op ("init", "clear", "display", "sleep") return err.
func (m *Mock) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
		return
	}
	m.errs[op] = err
}

// Notify returns a channel receiving every call as it is recorded. Sends do
// not block; calls are dropped when the buffer is full.
func (m *Mock) Notify(buffer int) <-chan Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = make(chan Call, buffer)
	return m.notify
}

// Calls returns a copy of every recorded call.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Displayed returns the paths passed to Display, in order.
func (m *Mock) Displayed() []string {
	var paths []string
	for _, c := range m.Calls() {
		if c.Op == "display" {
			paths = append(paths, c.Path)
		}
	}
	return paths
}

// Count returns how many times op was called.
func (m *Mock) Count(op string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (m *Mock) record(op, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Call{Op: op, Path: path}
	m.calls = append(m.calls, c)
	if m.notify != nil {
		select {
		case m.notify <- c:
		default:
		}
	}
	return m.errs[op]
}

// Init records an "init" call.
func (m *Mock) Init(ctx context.Context) error { return m.record("init", "") }

// Clear records a "clear" call.
func (m *Mock) Clear(ctx context.Context) error { return m.record("clear", "") }

// Sleep records a "sleep" call.
func (m *Mock) Sleep() error { return m.record("sleep", "") }

// Display records a "display" call with path.
func (m *Mock) Display(ctx context.Context, path string) error {
	return m.record("display", path)
}
