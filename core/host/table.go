// Package host provides an in-memory command table standing in for the game
// engine's own. The command registry overrides entries in it through the
// commands.HostTable interface.
package host

import (
	"sort"
	"sync"

	"github.com/adalundhe/cmdbridge/core/commands"
)

// Table is a thread-safe name to command map. Aliases are separate entries
// pointing at the same command.
type Table struct {
	mu       sync.RWMutex
	commands map[string]*commands.HostCommand

	listenerMu sync.RWMutex
	listeners  []func(names []string)
}

var _ commands.HostTable = (*Table)(nil)

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		commands: make(map[string]*commands.HostCommand),
	}
}

// Get returns the command bound to name.
func (t *Table) Get(name string) (*commands.HostCommand, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cmd, ok := t.commands[commands.NormalizeName(name)]
	return cmd, ok
}

// Set binds cmd to name. A nil cmd removes the entry.
func (t *Table) Set(name string, cmd *commands.HostCommand) {
	if cmd == nil {
		t.Remove(name)
		return
	}
	t.mu.Lock()
	t.commands[commands.NormalizeName(name)] = cmd
	t.mu.Unlock()
}

// Remove drops the entry for name.
func (t *Table) Remove(name string) {
	t.mu.Lock()
	delete(t.commands, commands.NormalizeName(name))
	t.mu.Unlock()
}

// Register installs cmd under its name and aliases the way the engine does for
// its own commands, then tells listeners which names changed.
func (t *Table) Register(cmd *commands.HostCommand) {
	if cmd == nil {
		return
	}
	names := make([]string, 0, 1+len(cmd.Aliases))
	for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
		if name = commands.NormalizeName(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}

	t.mu.Lock()
	for _, name := range names {
		t.commands[name] = cmd
	}
	t.mu.Unlock()

	t.listenerMu.RLock()
	listeners := t.listeners
	t.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(names)
	}
}

// OnRegister adds a listener for Register. Listeners run after the table lock
// is released.
func (t *Table) OnRegister(fn func(names []string)) {
	if fn == nil {
		return
	}
	t.listenerMu.Lock()
	t.listeners = append(t.listeners, fn)
	t.listenerMu.Unlock()
}

// Execute runs the command stored under label. It reports false when the
// label is unknown or the entry has nothing to run.
func (t *Table) Execute(caller commands.Caller, label string, args []string) bool {
	cmd, ok := t.Get(label)
	if !ok || cmd.Run == nil {
		return false
	}
	cmd.Run(caller, commands.NormalizeName(label), args)
	return true
}

// Names returns every label in the table, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.commands))
	for name := range t.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
