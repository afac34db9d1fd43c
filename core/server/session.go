// Package server wires the command layer to a running game server: the host
// command table, plugin registry, dispatcher, permissions and plugins.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/adalundhe/cmdbridge/core/commands"
	"github.com/adalundhe/cmdbridge/core/config"
	"github.com/adalundhe/cmdbridge/core/host"
	"github.com/adalundhe/cmdbridge/core/identity"
	"github.com/adalundhe/cmdbridge/core/permission"
	"github.com/adalundhe/cmdbridge/core/plugins"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrAlreadyInitialized indicates Initialize was called twice
	ErrAlreadyInitialized = errors.New("server already initialized")

	// ErrSessionClosed indicates the session has been closed
	ErrSessionClosed = errors.New("server session is closed")
)

// Player is a connected player as seen by the session.
type Player interface {
	commands.Caller
	// HasPermission reports whether the host grants the player perm.
	HasPermission(perm string) bool
}

// =============================================================================
// Session
// =============================================================================

// Session owns every collaborator of one running server.
type Session struct {
	cfg        *config.Config
	host       *host.Table
	registry   *commands.Registry
	dispatcher *commands.Dispatcher
	store      permission.Store
	ownsStore  bool
	plugins    *plugins.Manager
	core       *plugins.Plugin
	logger     *slog.Logger
	consoleOut io.Writer

	initMu      sync.Mutex
	mu          sync.Mutex
	initialized bool
	closed      bool
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore uses store instead of opening the configured SQLite database.
// The caller keeps ownership and closes it.
func WithStore(store permission.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithHostTable attaches an existing host command table.
func WithHostTable(table *host.Table) Option {
	return func(s *Session) { s.host = table }
}

func WithConsoleOutput(out io.Writer) Option {
	return func(s *Session) { s.consoleOut = out }
}

// New builds a session from cfg. An empty permissions database path keeps
// permissions in memory.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.host == nil {
		s.host = host.NewTable()
	}

	if s.store == nil {
		path := cfg.Permissions.Database
		if path == "" {
			path = ":memory:"
		}
		store, err := permission.NewSQLiteStore(permission.StoreConfig{
			DBPath:    path,
			CacheSize: cfg.Permissions.CacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("open permission store: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	s.registry = commands.NewRegistry(s.host,
		commands.WithLogger(s.logger),
		commands.WithHostName(cfg.Commands.HostName),
		commands.WithRestricted(cfg.Commands.Restricted...),
	)
	s.dispatcher = commands.NewDispatcher(s.registry, s.dispatcherOptions()...)

	s.host.OnRegister(func(names []string) {
		s.registry.HostCommandRegistered(names...)
	})

	s.plugins = plugins.NewManager(s.logger)
	s.plugins.OnUnloaded(func(p *plugins.Plugin) {
		if n := s.registry.UnregisterOwner(p); n > 0 {
			s.logger.Info("dropped plugin commands", "plugin", p.Name(), "count", n)
		}
	})

	if err := s.loadCorePlugin(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) dispatcherOptions() []commands.DispatcherOption {
	opts := []commands.DispatcherOption{commands.WithDispatchLogger(s.logger)}
	switch prefix := s.cfg.Commands.Prefix; prefix {
	case "":
		opts = append(opts, commands.WithoutPrefix())
	default:
		r, _ := utf8.DecodeRuneInString(prefix)
		if r == utf8.RuneError {
			s.logger.Warn("ignoring invalid command prefix", "prefix", prefix)
			break
		}
		opts = append(opts, commands.WithPrefix(r))
	}
	if s.consoleOut != nil {
		opts = append(opts, commands.WithConsoleOutput(s.consoleOut))
	}
	return opts
}

func (s *Session) Config() *config.Config           { return s.cfg }
func (s *Session) Host() *host.Table                { return s.host }
func (s *Session) Registry() *commands.Registry     { return s.registry }
func (s *Session) Dispatcher() *commands.Dispatcher { return s.dispatcher }
func (s *Session) Store() permission.Store          { return s.store }
func (s *Session) Plugins() *plugins.Manager        { return s.plugins }

// =============================================================================
// Lifecycle
// =============================================================================

// Initialize runs once the host reports the server is up. It creates the
// default groups, installs the identity rule, prunes stale permission data
// and initializes loaded plugins. A failed call may be retried.
func (s *Session) Initialize() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	closed, initialized := s.closed, s.initialized
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if initialized {
		return ErrAlreadyInitialized
	}

	for rank, group := range s.cfg.Permissions.DefaultGroups() {
		if strings.TrimSpace(group) == "" {
			continue
		}
		exists, err := s.store.GroupExists(group)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		if exists {
			continue
		}
		if err := s.store.CreateGroup(group, group, rank); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}

	s.store.RegisterValidator(identity.New(s.cfg.Permissions.MinIdentityDigits))
	if err := s.store.Cleanup(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	s.plugins.MarkInitialized()
	s.logger.Info("server initialized",
		"plugins", len(s.plugins.All()),
		"commands", len(s.registry.Names()),
	)
	return nil
}

// PlayerConnected records the player's nickname and default memberships.
// Ids that fail identity validation are logged and skipped.
func (s *Session) PlayerConnected(p Player) error {
	if p == nil {
		return nil
	}
	id := p.ID()

	if err := s.store.UpdateNickname(id, p.Name()); err != nil {
		if errors.Is(err, permission.ErrIdentityRejected) {
			s.logger.Warn("ignoring player with invalid id", "id", id, "name", p.Name())
			return nil
		}
		return err
	}

	perms := s.cfg.Permissions
	if err := s.ensureGroup(id, perms.PlayersGroup); err != nil {
		return err
	}
	if perms.AdminPermission != "" && p.HasPermission(perms.AdminPermission) {
		if err := s.ensureGroup(id, perms.AdminGroup); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) ensureGroup(id, group string) error {
	if group == "" {
		return nil
	}
	has, err := s.store.UserHasGroup(id, group)
	if err != nil || has {
		return err
	}
	if err := s.store.AddUserGroup(id, group); err != nil {
		return fmt.Errorf("add %s to %s: %w", id, group, err)
	}
	return nil
}

// HandleChat dispatches a chat message. Only messages starting with the
// command prefix are commands; the rest is left to the host.
func (s *Session) HandleChat(p Player, message string) bool {
	if prefix := s.dispatcher.Prefix(); prefix != "" && !strings.HasPrefix(message, prefix) {
		return false
	}
	if p == nil {
		return false
	}
	return s.dispatcher.HandleChatMessage(p, message)
}

// HandleConsole dispatches a console line as the server console.
func (s *Session) HandleConsole(line string) bool {
	return s.dispatcher.HandleConsoleMessage(nil, line)
}

func (s *Session) LoadPlugin(p *plugins.Plugin) error {
	return s.plugins.Load(p)
}

// UnloadPlugin removes the plugin and every command it registered.
func (s *Session) UnloadPlugin(name string) error {
	if p, ok := s.plugins.Get(name); ok && p == s.core {
		return fmt.Errorf("cannot unload core plugin %s", p.Name())
	}
	_, err := s.plugins.Unload(name)
	return err
}

// ApplyConfig takes the parts of a reloaded config that can change at runtime.
func (s *Session) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	if err := s.registry.SetRestricted(cfg.Commands.Restricted...); err != nil {
		return err
	}
	s.logger.Info("restricted commands updated", "patterns", s.registry.Restricted())
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.ownsStore {
		return s.store.Close()
	}
	return nil
}
