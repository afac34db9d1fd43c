package commands

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const (
	unknownOwnerLabel       = "an unknown plugin"
	unknownNewOwnerLabel    = "An unknown plugin"
	defaultHostOwnerLabel   = "the host"
	registryShimUsagePrefix = "/"
)

// =============================================================================
// Registry
// =============================================================================

// Registry maps command names to their current registrant and keeps the host
// table pointing at a forwarding shim for every name it owns.
type Registry struct {
	mu         sync.RWMutex
	host       HostTable
	records    map[string]*Record
	shims      map[string]*HostCommand
	restricted restrictedSet
	native     HostFunc

	hostName string
	logger   *slog.Logger
	pending  []string

	listenerMu   sync.RWMutex
	onRegister   []func(Record)
	onUnregister []func(Record)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for conflict and override notices.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHostName sets the label used when a host built-in is overridden.
func WithHostName(name string) RegistryOption {
	return func(r *Registry) {
		if name != "" {
			r.hostName = name
		}
	}
}

// WithRestricted seeds the restricted-name patterns. Invalid patterns are
// logged and the registry starts unrestricted.
func WithRestricted(patterns ...string) RegistryOption {
	return func(r *Registry) {
		r.pending = append(r.pending, patterns...)
	}
}

// NewRegistry creates a registry that overrides entries in host.
func NewRegistry(host HostTable, opts ...RegistryOption) *Registry {
	r := &Registry{
		host:     host,
		records:  make(map[string]*Record),
		shims:    make(map[string]*HostCommand),
		hostName: defaultHostOwnerLabel,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.pending) > 0 {
		if err := r.SetRestricted(r.pending...); err != nil {
			r.logger.Error("ignoring restricted commands", "error", err)
		}
		r.pending = nil
	}
	return r
}

// SetRestricted replaces the set of names no registrant may take.
func (r *Registry) SetRestricted(patterns ...string) error {
	set, err := compileRestricted(patterns)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.restricted = set
	r.mu.Unlock()
	return nil
}

// Restricted returns the normalized restricted-name patterns.
func (r *Registry) Restricted() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.restricted.patterns))
	copy(out, r.restricted.patterns)
	return out
}

// =============================================================================
// Registration
// =============================================================================

// Register binds name to handler on behalf of owner. Ordinary registrants may
// replace one another; the replacement is logged. Names held by a core owner
// or matching the restricted set fail with a *ConflictError.
func (r *Registry) Register(name string, owner Owner, handler Handler) error {
	name = NormalizeName(name)
	if name == "" {
		return ErrNameRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	r.mu.Lock()
	if err := r.checkOverrideLocked(name); err != nil {
		r.mu.Unlock()
		return err
	}

	record := &Record{Name: name, Owner: owner, Handler: handler}
	if existing, ok := r.records[name]; ok {
		record.PriorBuiltin = existing.PriorBuiltin
		if existing.Owner != owner {
			r.logReplaced(name, ownerName(existing.Owner, unknownOwnerLabel), owner)
		}
	} else if builtin, ok := r.host.Get(name); ok {
		record.PriorBuiltin = builtin
		r.host.Remove(name)
		r.logReplaced(name, r.hostName, owner)
	}

	r.records[name] = record
	r.installShimLocked(name)
	snapshot := *record
	r.mu.Unlock()

	r.notify(r.registerListeners(), snapshot)
	return nil
}

// Unregister removes name if owner currently holds it, restoring the host
// built-in it replaced. Requests from any other owner are ignored.
func (r *Registry) Unregister(name string, owner Owner) {
	name = NormalizeName(name)

	r.mu.Lock()
	record, ok := r.records[name]
	if !ok || record.Owner != owner {
		r.mu.Unlock()
		return
	}
	snapshot := r.removeLocked(record)
	r.mu.Unlock()

	r.notify(r.unregisterListeners(), snapshot)
}

// UnregisterOwner removes every command held by owner and returns how many
// were dropped.
func (r *Registry) UnregisterOwner(owner Owner) int {
	r.mu.Lock()
	var removed []Record
	for _, record := range r.records {
		if record.Owner == owner {
			removed = append(removed, r.removeLocked(record))
		}
	}
	r.mu.Unlock()

	listeners := r.unregisterListeners()
	for _, record := range removed {
		r.notify(listeners, record)
	}
	return len(removed)
}

// CanOverride reports whether a registrant may bind name.
func (r *Registry) CanOverride(name string) bool {
	name = NormalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkOverrideLocked(name) == nil
}

// HostCommandRegistered tells the registry the host has (re)registered native
// commands under names. Names the registry owns take the fresh host entry as
// their built-in and get the shim reinstalled.
func (r *Registry) HostCommandRegistered(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		name = NormalizeName(name)
		record, ok := r.records[name]
		if !ok {
			continue
		}
		current, ok := r.host.Get(name)
		if !ok || current == r.shims[name] {
			continue
		}
		updated := *record
		updated.PriorBuiltin = current
		r.records[name] = &updated
		r.host.Set(name, r.shims[name])
		r.logger.Debug("host re-registered an overridden command",
			"command", name,
			"owner", ownerName(record.Owner, unknownOwnerLabel),
		)
	}
}

func (r *Registry) checkOverrideLocked(name string) error {
	if record, ok := r.records[name]; ok && record.Owner != nil && record.Owner.IsCore() {
		return &ConflictError{Command: name, Holder: ownerName(record.Owner, unknownOwnerLabel)}
	}
	if r.restricted.contains(name) {
		return &ConflictError{Command: name}
	}
	return nil
}

func (r *Registry) removeLocked(record *Record) Record {
	delete(r.records, record.Name)
	delete(r.shims, record.Name)
	if record.PriorBuiltin != nil {
		r.host.Set(record.Name, record.PriorBuiltin)
	} else {
		r.host.Remove(record.Name)
	}
	return *record
}

func (r *Registry) logReplaced(name, previous string, owner Owner) {
	current := ownerName(owner, unknownNewOwnerLabel)
	r.logger.Warn(
		fmt.Sprintf("%s has replaced the '%s' command previously registered by %s", current, name, previous),
		"command", name,
		"owner", current,
		"previous_owner", previous,
	)
}

// =============================================================================
// Shim
// =============================================================================

func (r *Registry) installShimLocked(name string) {
	shim, ok := r.shims[name]
	if !ok {
		shim = &HostCommand{
			Name:  name,
			Usage: registryShimUsagePrefix + name,
			Run:   r.runShim,
		}
		r.shims[name] = shim
	}
	r.host.Set(name, shim)
}

func (r *Registry) runShim(caller Caller, label string, args []string) {
	r.mu.RLock()
	native := r.native
	r.mu.RUnlock()

	if native != nil {
		native(caller, label, args)
		return
	}
	r.Invoke(caller, label, args)
}

// bindNative routes host invocations of shims through fn instead of Invoke.
func (r *Registry) bindNative(fn HostFunc) {
	r.mu.Lock()
	r.native = fn
	r.mu.Unlock()
}

// IsShim reports whether cmd is a forwarding entry installed by this registry.
func (r *Registry) IsShim(cmd *HostCommand) bool {
	if cmd == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shims[cmd.Name] == cmd
}

// =============================================================================
// Lookup and Invocation
// =============================================================================

// Lookup returns a snapshot of the record bound to name.
func (r *Registry) Lookup(name string) (Record, bool) {
	name = NormalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[name]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// Invoke runs the handler bound to name. found is false when no record
// exists. The owner's tracking brackets the call even if the handler panics;
// a panic is logged and reported as not handled.
func (r *Registry) Invoke(caller Caller, name string, args []string) (handled bool, found bool) {
	record, ok := r.Lookup(name)
	if !ok {
		return false, false
	}
	return r.run(record, caller, args), true
}

func (r *Registry) run(record Record, caller Caller, args []string) (handled bool) {
	if tracker, ok := record.Owner.(Tracker); ok {
		tracker.TrackStart()
		defer tracker.TrackEnd()
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("command handler panicked",
				"command", record.Name,
				"owner", ownerName(record.Owner, unknownOwnerLabel),
				"panic", p,
			)
			handled = false
		}
	}()
	return record.Handler(caller, record.Name, args)
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.records))
	for name := range r.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records returns a sorted snapshot of every record.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records
}

// =============================================================================
// Listeners
// =============================================================================

// OnRegister adds a listener called synchronously after each Register.
func (r *Registry) OnRegister(fn func(Record)) {
	if fn == nil {
		return
	}
	r.listenerMu.Lock()
	r.onRegister = append(r.onRegister, fn)
	r.listenerMu.Unlock()
}

// OnUnregister adds a listener called synchronously after a record is removed.
func (r *Registry) OnUnregister(fn func(Record)) {
	if fn == nil {
		return
	}
	r.listenerMu.Lock()
	r.onUnregister = append(r.onUnregister, fn)
	r.listenerMu.Unlock()
}

func (r *Registry) registerListeners() []func(Record) {
	r.listenerMu.RLock()
	defer r.listenerMu.RUnlock()
	return r.onRegister
}

func (r *Registry) unregisterListeners() []func(Record) {
	r.listenerMu.RLock()
	defer r.listenerMu.RUnlock()
	return r.onUnregister
}

func (r *Registry) notify(listeners []func(Record), record Record) {
	for _, fn := range listeners {
		fn(record)
	}
}
