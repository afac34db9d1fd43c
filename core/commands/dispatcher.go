package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/adalundhe/cmdbridge/core/tokenizer"
)

const DefaultPrefix = '/'

// Sink is the single entry point a chat or console transport needs: it takes
// a raw line and reports whether a command handled it.
type Sink func(origin Origin, caller Caller, line string) bool

// =============================================================================
// Console Caller
// =============================================================================

const (
	ConsoleID   = "server_console"
	ConsoleName = "Server Console"
)

// ConsoleCaller is the identity used for console input that arrives without
// a caller. Replies go to the console output.
type ConsoleCaller struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleCaller(out io.Writer) *ConsoleCaller {
	if out == nil {
		out = io.Discard
	}
	return &ConsoleCaller{out: out}
}

func (c *ConsoleCaller) ID() string      { return ConsoleID }
func (c *ConsoleCaller) Name() string    { return ConsoleName }
func (c *ConsoleCaller) IsConsole() bool { return true }

func (c *ConsoleCaller) Reply(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, message)
}

// SetOutput redirects console replies.
func (c *ConsoleCaller) SetOutput(out io.Writer) {
	if out == nil {
		out = io.Discard
	}
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
}

// =============================================================================
// Dispatcher
// =============================================================================

// Dispatcher turns chat and console lines into registry invocations.
type Dispatcher struct {
	registry *Registry
	hooks    *HookRegistry
	console  *ConsoleCaller
	prefix   string
	logger   *slog.Logger
}

type DispatcherOption func(*Dispatcher)

// WithPrefix sets the command prefix stripped from incoming lines.
func WithPrefix(prefix rune) DispatcherOption {
	return func(d *Dispatcher) {
		d.prefix = string(prefix)
	}
}

// WithoutPrefix accepts lines as they arrive, with nothing stripped.
func WithoutPrefix() DispatcherOption {
	return func(d *Dispatcher) {
		d.prefix = ""
	}
}

// WithConsoleOutput sets where console replies are written.
func WithConsoleOutput(out io.Writer) DispatcherOption {
	return func(d *Dispatcher) {
		d.console.SetOutput(out)
	}
}

func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher over reg. Host invocations of the
// registry's shims are routed through the dispatcher from then on.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		hooks:    NewHookRegistry(),
		console:  newConsoleCaller(io.Discard),
		prefix:   string(DefaultPrefix),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	reg.bindNative(d.runNative)
	return d
}

func (d *Dispatcher) Registry() *Registry     { return d.registry }
func (d *Dispatcher) Hooks() *HookRegistry    { return d.hooks }
func (d *Dispatcher) Console() *ConsoleCaller { return d.console }
func (d *Dispatcher) Prefix() string          { return d.prefix }

// Sink returns Dispatch as a transport-facing function.
func (d *Dispatcher) Sink() Sink {
	return d.Dispatch
}

// Dispatch parses raw and runs the matching command. Empty input, lines with
// no command and unknown commands are not handled.
func (d *Dispatcher) Dispatch(origin Origin, caller Caller, raw string) bool {
	if raw == "" {
		return false
	}

	name, args, ok := tokenizer.Split(d.stripPrefix(raw))
	if !ok {
		return false
	}

	caller = d.resolveCaller(origin, caller)
	if caller == nil {
		d.logger.Debug("dropping command without caller", "origin", origin.String(), "command", name)
		return false
	}

	inv := &Invocation{
		Origin: origin,
		Caller: caller,
		Raw:    raw,
		Name:   NormalizeName(name),
		Args:   args,
	}

	if result := d.hooks.RunPreDispatch(inv); result.Block {
		inv.Blocked = true
		inv.Handled = true
		d.logger.Debug("command blocked",
			"origin", origin.String(),
			"command", inv.Name,
			"caller", caller.ID(),
			"reason", result.Reason,
		)
		d.hooks.RunPostDispatch(inv)
		return true
	}

	inv.Handled, inv.Found = d.registry.Invoke(caller, inv.Name, args)
	d.hooks.RunPostDispatch(inv)
	return inv.Handled
}

// HandleChatMessage dispatches a chat line from caller.
func (d *Dispatcher) HandleChatMessage(caller Caller, message string) bool {
	return d.Dispatch(OriginChat, caller, message)
}

// HandleConsoleMessage dispatches a console line; a nil caller is the console.
func (d *Dispatcher) HandleConsoleMessage(caller Caller, message string) bool {
	return d.Dispatch(OriginConsole, caller, message)
}

func (d *Dispatcher) stripPrefix(raw string) string {
	if d.prefix == "" {
		return raw
	}
	return strings.TrimPrefix(raw, d.prefix)
}

func (d *Dispatcher) resolveCaller(origin Origin, caller Caller) Caller {
	if caller != nil {
		return caller
	}
	if origin == OriginConsole {
		return d.console
	}
	return nil
}

// runNative handles the host invoking a registry shim directly.
func (d *Dispatcher) runNative(caller Caller, label string, args []string) {
	if caller == nil {
		caller = d.console
	}
	d.registry.Invoke(caller, label, args)
}
