// Package plugins holds registrant handles and their load lifecycle.
package plugins

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/cmdbridge/core/commands"
)

// Plugin is a loaded registrant. It owns commands in the registry and times
// its own handler execution.
type Plugin struct {
	name    string
	author  string
	version string
	core    bool
	id      string
	onInit  func(*Plugin)

	mu      sync.Mutex
	depth   int
	started time.Time
	calls   int64
	total   time.Duration
	now     func() time.Time
}

var (
	_ commands.Owner   = (*Plugin)(nil)
	_ commands.Tracker = (*Plugin)(nil)
)

type Option func(*Plugin)

func WithAuthor(author string) Option {
	return func(p *Plugin) { p.author = author }
}

func WithVersion(version string) Option {
	return func(p *Plugin) { p.version = version }
}

// AsCore marks the plugin as part of the server itself. Its commands cannot
// be replaced by other registrants.
func AsCore() Option {
	return func(p *Plugin) { p.core = true }
}

// WithInit sets the callback run once the server is initialized, or right
// away when the plugin is loaded into an already initialized server.
func WithInit(fn func(*Plugin)) Option {
	return func(p *Plugin) { p.onInit = fn }
}

func New(name string, opts ...Option) *Plugin {
	p := &Plugin{
		name: name,
		id:   uuid.New().String(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string    { return p.name }
func (p *Plugin) Author() string  { return p.author }
func (p *Plugin) Version() string { return p.version }
func (p *Plugin) IsCore() bool    { return p.core }

// ID is unique per loaded instance, so a reloaded plugin gets a new one.
func (p *Plugin) ID() string { return p.id }

// =============================================================================
// Tracking
// =============================================================================

// TrackStart opens a timed section. Nested sections are folded into the
// outermost one.
func (p *Plugin) TrackStart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.depth == 0 {
		p.started = p.now()
	}
	p.depth++
}

func (p *Plugin) TrackEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.depth == 0 {
		return
	}
	p.depth--
	if p.depth == 0 {
		p.total += p.now().Sub(p.started)
		p.calls++
	}
}

// Stats is a snapshot of a plugin's handler timing.
type Stats struct {
	Calls   int64         `json:"calls"`
	Total   time.Duration `json:"total"`
	Average time.Duration `json:"average"`
}

func (p *Plugin) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{Calls: p.calls, Total: p.total}
	if p.calls > 0 {
		stats.Average = p.total / time.Duration(p.calls)
	}
	return stats
}

func (p *Plugin) initialize() {
	if p.onInit != nil {
		p.onInit(p)
	}
}
