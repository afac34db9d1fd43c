package commands

import (
	"bytes"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

type fakeHost struct {
	mu       sync.Mutex
	commands map[string]*HostCommand
}

func newFakeHost(builtins ...*HostCommand) *fakeHost {
	h := &fakeHost{commands: make(map[string]*HostCommand)}
	for _, cmd := range builtins {
		h.commands[cmd.Name] = cmd
	}
	return h
}

func (h *fakeHost) Get(name string) (*HostCommand, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cmd, ok := h.commands[name]
	return cmd, ok
}

func (h *fakeHost) Set(name string, cmd *HostCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[name] = cmd
}

func (h *fakeHost) Remove(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.commands, name)
}

func (h *fakeHost) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type testOwner struct {
	name   string
	core   bool
	starts atomic.Int64
	ends   atomic.Int64
}

func (o *testOwner) Name() string { return o.name }
func (o *testOwner) IsCore() bool { return o.core }
func (o *testOwner) TrackStart()  { o.starts.Add(1) }
func (o *testOwner) TrackEnd()    { o.ends.Add(1) }

type testCaller struct {
	id      string
	mu      sync.Mutex
	replies []string
}

func (c *testCaller) ID() string      { return c.id }
func (c *testCaller) Name() string    { return "player-" + c.id }
func (c *testCaller) IsConsole() bool { return false }

func (c *testCaller) Reply(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, message)
}

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, &buf
}

// recorder returns a handler that records the names it was invoked with.
func recorder(tag string, calls *[]string, mu *sync.Mutex) Handler {
	return func(caller Caller, name string, args []string) bool {
		mu.Lock()
		defer mu.Unlock()
		*calls = append(*calls, tag+":"+name)
		return true
	}
}
