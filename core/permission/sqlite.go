package permission

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

const (
	DefaultCacheSize    = 1024
	DefaultMaxOpenConns = 1
)

// StoreConfig configures a SQLiteStore.
type StoreConfig struct {
	// DBPath is the SQLite database file. ":memory:" keeps everything in
	// process.
	DBPath string

	// CacheSize bounds the membership lookup cache.
	CacheSize int
}

// SQLiteStore is a Store backed by SQLite with an LRU cache in front of
// membership lookups.
type SQLiteStore struct {
	db    *sql.DB
	cache *lru.Cache[string, bool]

	// cacheMu is held shared across a membership lookup and its cache fill,
	// and exclusively across a write and its purge.
	cacheMu sync.RWMutex

	mu        sync.RWMutex
	validator func(string) bool
	closed    bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at cfg.DBPath and creates the schema.
func NewSQLiteStore(cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("permission store: database path required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, bool](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership cache: %w", err)
	}

	db, err := openDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, cache: cache}, nil
}

func openDatabase(path string) (*sql.DB, error) {
	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)

	if !inMemory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS permission_groups (
		name TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		rank INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		nickname TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS user_groups (
		user_id TEXT NOT NULL,
		group_name TEXT NOT NULL,
		PRIMARY KEY (user_id, group_name)
	);

	CREATE INDEX IF NOT EXISTS idx_user_groups_group ON user_groups(group_name);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// =============================================================================
// Groups
// =============================================================================

func (s *SQLiteStore) GroupExists(name string) (bool, error) {
	if err := s.checkClosed(); err != nil {
		return false, err
	}
	return s.groupExists(normalizeGroup(name))
}

func (s *SQLiteStore) groupExists(name string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM permission_groups WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query group: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) CreateGroup(name, title string, rank int) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	name = normalizeGroup(name)
	if name == "" {
		return ErrGroupNameRequired
	}

	exists, err := s.groupExists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrGroupExists, name)
	}

	if _, err := s.db.Exec(`INSERT INTO permission_groups (name, title, rank) VALUES (?, ?, ?)`, name, title, rank); err != nil {
		return fmt.Errorf("failed to create group %s: %w", name, err)
	}
	return nil
}

// RemoveGroup deletes a group. Memberships in it stop counting at once and are
// pruned by the next Cleanup.
func (s *SQLiteStore) RemoveGroup(name string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	defer s.lockWrites()()

	result, err := s.db.Exec(`DELETE FROM permission_groups WHERE name = ?`, normalizeGroup(name))
	if err != nil {
		return fmt.Errorf("failed to remove group: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	return nil
}

// Groups returns every group ordered by rank.
func (s *SQLiteStore) Groups() ([]Group, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT name, title, rank FROM permission_groups ORDER BY rank, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Name, &g.Title, &g.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// =============================================================================
// Users
// =============================================================================

func (s *SQLiteStore) UserHasGroup(id, group string) (bool, error) {
	if err := s.checkClosed(); err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	group = normalizeGroup(group)

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	key := cacheKey(id, group)
	if has, ok := s.cache.Get(key); ok {
		return has, nil
	}

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM user_groups ug
		JOIN permission_groups g ON g.name = ug.group_name
		WHERE ug.user_id = ? AND ug.group_name = ?
	`, id, group).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query membership: %w", err)
	}

	has := count > 0
	s.cache.Add(key, has)
	return has, nil
}

func (s *SQLiteStore) AddUserGroup(id, group string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	group = normalizeGroup(group)
	if !s.accepts(id) {
		return fmt.Errorf("%w: %q", ErrIdentityRejected, id)
	}

	exists, err := s.groupExists(group)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}

	defer s.lockWrites()()
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO users (id) VALUES (?)`, id); err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO user_groups (user_id, group_name) VALUES (?, ?)`, id, group); err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveUserGroup(id, group string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	defer s.lockWrites()()
	_, err := s.db.Exec(`DELETE FROM user_groups WHERE user_id = ? AND group_name = ?`,
		strings.TrimSpace(id), normalizeGroup(group))
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateNickname(id, nickname string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if !s.accepts(id) {
		return fmt.Errorf("%w: %q", ErrIdentityRejected, id)
	}

	_, err := s.db.Exec(`
		INSERT INTO users (id, nickname) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET nickname = excluded.nickname
	`, id, nickname)
	if err != nil {
		return fmt.Errorf("failed to update nickname: %w", err)
	}
	return nil
}

// Nickname returns the last nickname stored for id.
func (s *SQLiteStore) Nickname(id string) (string, bool, error) {
	if err := s.checkClosed(); err != nil {
		return "", false, err
	}

	var nickname string
	err := s.db.QueryRow(`SELECT nickname FROM users WHERE id = ?`, strings.TrimSpace(id)).Scan(&nickname)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query nickname: %w", err)
	}
	return nickname, true, nil
}

// =============================================================================
// Validation and Maintenance
// =============================================================================

func (s *SQLiteStore) RegisterValidator(fn func(id string) bool) {
	s.mu.Lock()
	s.validator = fn
	s.mu.Unlock()
}

func (s *SQLiteStore) accepts(id string) bool {
	s.mu.RLock()
	fn := s.validator
	s.mu.RUnlock()
	return fn == nil || fn(id)
}

func (s *SQLiteStore) Cleanup() error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	defer s.lockWrites()()

	rejected, err := s.rejectedUsers()
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cleanup: %w", err)
	}
	defer tx.Rollback()

	for _, id := range rejected {
		if _, err := tx.Exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete user %s: %w", id, err)
		}
	}
	if _, err := tx.Exec(`
		DELETE FROM user_groups
		WHERE user_id NOT IN (SELECT id FROM users)
		   OR group_name NOT IN (SELECT name FROM permission_groups)
	`); err != nil {
		return fmt.Errorf("failed to prune memberships: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) rejectedUsers() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var rejected []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if !s.accepts(id) {
			rejected = append(rejected, id)
		}
	}
	return rejected, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cache.Purge()
	return s.db.Close()
}

// lockWrites blocks membership lookups until the returned func purges the
// cache and releases them.
func (s *SQLiteStore) lockWrites() func() {
	s.cacheMu.Lock()
	return func() {
		s.cache.Purge()
		s.cacheMu.Unlock()
	}
}

func (s *SQLiteStore) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func normalizeGroup(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func cacheKey(id, group string) string {
	return id + "\x00" + group
}
