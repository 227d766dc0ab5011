// Package store persists selector cache entries, detected reels and
// per-conversation settings in a local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/detect"
	"github.com/katmoor/dmscout/types"
)

// keyPrefix namespaces settings keys so several tools can share one
// database file.
const keyPrefix = "dmscout"

// Store handles all database operations.
type Store struct {
	db       *sql.DB
	maxReels int
}

// New opens (and if needed creates) the database at cfg.Path and runs
// the schema migration.
func New(cfg config.StoreConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, maxReels: cfg.MaxReels}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS selector_cache (
		entity TEXT PRIMARY KEY,
		selector TEXT NOT NULL,
		method TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS reels (
		conversation_id TEXT NOT NULL,
		id TEXT NOT NULL,
		timestamp DATETIME,
		has_reaction BOOLEAN NOT NULL DEFAULT 0,
		reaction_type TEXT,
		reel_url TEXT,
		dom_path TEXT,
		message_id TEXT,
		detected_at DATETIME NOT NULL,
		PRIMARY KEY (conversation_id, id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reels_detected_at ON reels(conversation_id, detected_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveReel inserts a reel record or, when the id is already known for
// the conversation, refreshes only its reaction fields. Reel ids are
// best-effort identity, so everything else from a re-scan is ignored
// rather than trusted. The per-conversation cap is enforced by evicting
// the oldest records.
func (s *Store) SaveReel(r types.ReelRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO reels (conversation_id, id, timestamp, has_reaction, reaction_type,
			reel_url, dom_path, message_id, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, id) DO UPDATE SET
			has_reaction = excluded.has_reaction,
			reaction_type = excluded.reaction_type
	`, r.ConversationID, r.ID, r.Timestamp, r.HasReaction, r.ReactionType,
		r.ReelURL, r.DOMPath, r.MessageID, r.DetectedAt)
	if err != nil {
		return err
	}
	return s.evict(r.ConversationID)
}

func (s *Store) evict(conversationID string) error {
	if s.maxReels <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM reels
		WHERE conversation_id = ? AND id IN (
			SELECT id FROM reels
			WHERE conversation_id = ?
			ORDER BY detected_at DESC
			LIMIT -1 OFFSET ?
		)
	`, conversationID, conversationID, s.maxReels)
	return err
}

// Reels returns all stored reels for a conversation, newest first.
func (s *Store) Reels(conversationID string) ([]types.ReelRecord, error) {
	rows, err := s.db.Query(`
		SELECT conversation_id, id, timestamp, has_reaction, reaction_type,
			reel_url, dom_path, message_id, detected_at
		FROM reels
		WHERE conversation_id = ?
		ORDER BY detected_at DESC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reels []types.ReelRecord
	for rows.Next() {
		var r types.ReelRecord
		var reactionType, reelURL, domPath, messageID sql.NullString
		err := rows.Scan(&r.ConversationID, &r.ID, &r.Timestamp, &r.HasReaction,
			&reactionType, &reelURL, &domPath, &messageID, &r.DetectedAt)
		if err != nil {
			return nil, err
		}
		r.ReactionType = reactionType.String
		r.ReelURL = reelURL.String
		r.DOMPath = domPath.String
		r.MessageID = messageID.String
		reels = append(reels, r)
	}
	return reels, rows.Err()
}

// ReelCount reports how many reels are stored for a conversation.
func (s *Store) ReelCount(conversationID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM reels WHERE conversation_id = ?`, conversationID).Scan(&n)
	return n, err
}

// CacheGet looks up the persisted selector cache entry for an entity.
func (s *Store) CacheGet(entity string) (detect.CacheEntry, bool, error) {
	var e detect.CacheEntry
	err := s.db.QueryRow(`
		SELECT entity, selector, method FROM selector_cache WHERE entity = ?
	`, entity).Scan(&e.Entity, &e.Selector, &e.Method)
	if err == sql.ErrNoRows {
		return detect.CacheEntry{}, false, nil
	}
	if err != nil {
		return detect.CacheEntry{}, false, err
	}
	return e, true, nil
}

// CachePut persists a selector cache entry, overwriting any previous
// one for the entity.
func (s *Store) CachePut(e detect.CacheEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO selector_cache (entity, selector, method, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(entity) DO UPDATE SET
			selector = excluded.selector,
			method = excluded.method,
			updated_at = excluded.updated_at
	`, e.Entity, e.Selector, string(e.Method))
	return err
}

// Settings. Keys are namespaced by prefix and conversation id.

func settingKey(conversationID, name string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, conversationID, name)
}

func (s *Store) setSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *Store) getSetting(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetEnabled records whether navigation is active for a conversation.
func (s *Store) SetEnabled(conversationID string, enabled bool) error {
	return s.setSetting(settingKey(conversationID, "enabled"), fmt.Sprintf("%t", enabled))
}

// Enabled reports the persisted enabled flag, false when never set.
func (s *Store) Enabled(conversationID string) (bool, error) {
	v, ok, err := s.getSetting(settingKey(conversationID, "enabled"))
	if err != nil || !ok {
		return false, err
	}
	return v == "true", nil
}

// SetLastSync records when a conversation was last scanned.
func (s *Store) SetLastSync(conversationID string, t time.Time) error {
	return s.setSetting(settingKey(conversationID, "lastSync"), t.UTC().Format(time.RFC3339))
}

// LastSync returns the last scan time, nil when never synced.
func (s *Store) LastSync(conversationID string) (*time.Time, error) {
	v, ok, err := s.getSetting(settingKey(conversationID, "lastSync"))
	if err != nil || !ok {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetDateFilter records the scroll target date for a conversation.
func (s *Store) SetDateFilter(conversationID string, t time.Time) error {
	return s.setSetting(settingKey(conversationID, "dateFilter"), t.UTC().Format(time.RFC3339))
}

// DateFilter returns the persisted scroll target date, nil when unset.
func (s *Store) DateFilter(conversationID string) (*time.Time, error) {
	v, ok, err := s.getSetting(settingKey(conversationID, "dateFilter"))
	if err != nil || !ok {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
