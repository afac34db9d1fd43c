package commands

import "sync"

type HookPhase string

const (
	HookPhasePreDispatch  HookPhase = "pre_dispatch"
	HookPhasePostDispatch HookPhase = "post_dispatch"
)

type HookPriority int

const (
	HookPriorityLow    HookPriority = 10
	HookPriorityNormal HookPriority = 50
	HookPriorityHigh   HookPriority = 100
)

// Invocation describes a parsed command on its way through the dispatcher.
type Invocation struct {
	Origin Origin
	Caller Caller
	Raw    string
	Name   string
	Args   []string

	// Set for post-dispatch hooks.
	Found   bool
	Handled bool
	Blocked bool
}

// HookResult is returned by a hook. Block stops a pre-dispatch invocation
// before the handler runs and reports it as handled.
type HookResult struct {
	Block  bool
	Reason string
}

type DispatchHook interface {
	Name() string
	Phase() HookPhase
	Priority() HookPriority
	Execute(inv *Invocation) HookResult
}

type DispatchHookFunc func(inv *Invocation) HookResult

type funcDispatchHook struct {
	name     string
	phase    HookPhase
	priority HookPriority
	fn       DispatchHookFunc
}

func (h *funcDispatchHook) Name() string           { return h.name }
func (h *funcDispatchHook) Phase() HookPhase       { return h.phase }
func (h *funcDispatchHook) Priority() HookPriority { return h.priority }
func (h *funcDispatchHook) Execute(inv *Invocation) HookResult {
	return h.fn(inv)
}

// =============================================================================
// Hook Registry
// =============================================================================

type HookRegistry struct {
	mu sync.RWMutex

	preHooks  []DispatchHook
	postHooks []DispatchHook
	byName    map[string]DispatchHook
}

func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		preHooks:  make([]DispatchHook, 0),
		postHooks: make([]DispatchHook, 0),
		byName:    make(map[string]DispatchHook),
	}
}

// Register adds hook, replacing any hook with the same name.
func (r *HookRegistry) Register(hook DispatchHook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[hook.Name()]; ok {
		r.removeLocked(hook.Name())
	}
	r.byName[hook.Name()] = hook

	switch hook.Phase() {
	case HookPhasePreDispatch:
		r.preHooks = insertHookSorted(r.preHooks, hook)
	case HookPhasePostDispatch:
		r.postHooks = insertHookSorted(r.postHooks, hook)
	}
}

func (r *HookRegistry) RegisterPreDispatchHook(name string, priority HookPriority, fn DispatchHookFunc) {
	r.Register(&funcDispatchHook{
		name:     name,
		phase:    HookPhasePreDispatch,
		priority: priority,
		fn:       fn,
	})
}

func (r *HookRegistry) RegisterPostDispatchHook(name string, priority HookPriority, fn DispatchHookFunc) {
	r.Register(&funcDispatchHook{
		name:     name,
		phase:    HookPhasePostDispatch,
		priority: priority,
		fn:       fn,
	})
}

func (r *HookRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; !ok {
		return false
	}
	r.removeLocked(name)
	return true
}

func (r *HookRegistry) removeLocked(name string) {
	hook := r.byName[name]
	delete(r.byName, name)

	switch hook.Phase() {
	case HookPhasePreDispatch:
		r.preHooks = removeHook(r.preHooks, name)
	case HookPhasePostDispatch:
		r.postHooks = removeHook(r.postHooks, name)
	}
}

// RunPreDispatch runs pre-dispatch hooks in priority order and stops at the
// first one that blocks.
func (r *HookRegistry) RunPreDispatch(inv *Invocation) HookResult {
	r.mu.RLock()
	hooks := make([]DispatchHook, len(r.preHooks))
	copy(hooks, r.preHooks)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if result := hook.Execute(inv); result.Block {
			return result
		}
	}
	return HookResult{}
}

// RunPostDispatch runs every post-dispatch hook; results are ignored.
func (r *HookRegistry) RunPostDispatch(inv *Invocation) {
	r.mu.RLock()
	hooks := make([]DispatchHook, len(r.postHooks))
	copy(hooks, r.postHooks)
	r.mu.RUnlock()

	for _, hook := range hooks {
		hook.Execute(inv)
	}
}

type HookStats struct {
	PreDispatchHooks  int `json:"pre_dispatch_hooks"`
	PostDispatchHooks int `json:"post_dispatch_hooks"`
}

func (r *HookRegistry) Stats() HookStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return HookStats{
		PreDispatchHooks:  len(r.preHooks),
		PostDispatchHooks: len(r.postHooks),
	}
}

func insertHookSorted(hooks []DispatchHook, hook DispatchHook) []DispatchHook {
	idx := len(hooks)
	for i, h := range hooks {
		if hook.Priority() > h.Priority() {
			idx = i
			break
		}
	}

	hooks = append(hooks, nil)
	copy(hooks[idx+1:], hooks[idx:])
	hooks[idx] = hook
	return hooks
}

func removeHook(hooks []DispatchHook, name string) []DispatchHook {
	for i, h := range hooks {
		if h.Name() == name {
			return append(hooks[:i], hooks[i+1:]...)
		}
	}
	return hooks
}
