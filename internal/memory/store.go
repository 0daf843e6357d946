package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lectern/lectern/internal/db"
)

// Store provides read/write access to the durable memory database.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given DB.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Conn exposes the underlying *sql.DB for low-level queries.
func (s *Store) Conn() *sql.DB {
	return s.db.Conn()
}

// ---- Facts ----

// UpsertFact inserts a fact or overwrites the value of an existing
// (owner, kind, key) row. Returns the fact ID.
func (s *Store) UpsertFact(f Fact) (string, error) {
	if !ValidFactKind(f.Kind) {
		return "", fmt.Errorf("store: invalid fact kind %q", f.Kind)
	}
	if f.Confidence == 0 {
		f.Confidence = 0.7
	}
	if f.TTLDays == 0 {
		f.TTLDays = defaultTTLDays(f.Kind)
	}

	var id string
	err := s.db.Conn().QueryRow(`
		INSERT INTO facts (id, owner, kind, key, value, confidence, ttl_days)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, kind, key) DO UPDATE SET
		    value      = excluded.value,
		    confidence = excluded.confidence,
		    ttl_days   = excluded.ttl_days,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING id`,
		f.Owner, string(f.Kind), f.Key, f.Value, f.Confidence, f.TTLDays,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("store: upsert fact: %w", err)
	}
	return id, nil
}

// ListFacts returns an owner's facts, most recently updated first.
func (s *Store) ListFacts(owner string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Conn().Query(`
		SELECT id, owner, kind, key, value, confidence, ttl_days, created_at, updated_at
		FROM facts WHERE owner = ?
		ORDER BY updated_at DESC, id LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// FactsByKind returns an owner's facts of one kind.
func (s *Store) FactsByKind(owner string, kind FactKind, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Conn().Query(`
		SELECT id, owner, kind, key, value, confidence, ttl_days, created_at, updated_at
		FROM facts WHERE owner = ? AND kind = ?
		ORDER BY updated_at DESC, id LIMIT ?`, owner, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("store: facts by kind: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// DeleteFact removes one fact by (owner, kind, key). Returns true if a
// row was deleted.
func (s *Store) DeleteFact(owner string, kind FactKind, key string) (bool, error) {
	res, err := s.db.Conn().Exec(
		`DELETE FROM facts WHERE owner = ? AND kind = ? AND key = ?`,
		owner, string(kind), key)
	if err != nil {
		return false, fmt.Errorf("store: delete fact: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SweepExpiredFacts deletes facts whose ttl has elapsed since the last
// update. Rows with ttl_days = 0 never expire. Returns the count removed.
func (s *Store) SweepExpiredFacts() (int, error) {
	res, err := s.db.Conn().Exec(`
		DELETE FROM facts
		WHERE ttl_days > 0
		  AND updated_at < datetime('now', '-' || ttl_days || ' days')`)
	if err != nil {
		return 0, fmt.Errorf("store: sweep facts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ---- Turns ----

// InsertTurn archives one conversation message. Returns the turn seq.
func (s *Store) InsertTurn(t Turn) (int64, error) {
	res, err := s.db.Conn().Exec(
		`INSERT INTO turns (owner, role, content) VALUES (?, ?, ?)`,
		t.Owner, t.Role, t.Content)
	if err != nil {
		return 0, fmt.Errorf("store: insert turn: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert turn id: %w", err)
	}
	return seq, nil
}

// RecentTurns returns the owner's newest turns, oldest first so they can
// be replayed as history.
func (s *Store) RecentTurns(owner string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.Conn().Query(`
		SELECT seq, owner, role, content, created_at FROM (
			SELECT seq, owner, role, content, created_at
			FROM turns WHERE owner = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// SweepOldTurns deletes turns older than the cutoff. Returns the count.
func (s *Store) SweepOldTurns(olderThan time.Duration) (int, error) {
	res, err := s.db.Conn().Exec(
		`DELETE FROM turns WHERE created_at < datetime('now', ?)`,
		fmt.Sprintf("-%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("store: sweep turns: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PurgeOwner deletes everything stored for an owner: facts, archived
// turns, mastery, and sessions. Used by the owner-initiated wipe.
func (s *Store) PurgeOwner(owner string) error {
	for _, table := range []string{"facts", "turns", "mastery", "sessions"} {
		if _, err := s.db.Conn().Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE owner = ?`, table), owner); err != nil {
			return fmt.Errorf("store: purge %s: %w", table, err)
		}
	}
	return nil
}

// ---- Mastery ----

// UpsertMastery records the owner's level for a topic, clamped to [0, 1].
func (s *Store) UpsertMastery(m Mastery) error {
	_, err := s.db.Conn().Exec(`
		INSERT INTO mastery (id, owner, topic, level)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?)
		ON CONFLICT(owner, topic) DO UPDATE SET
		    level      = excluded.level,
		    updated_at = CURRENT_TIMESTAMP`,
		m.Owner, m.Topic, clampLevel(m.Level))
	if err != nil {
		return fmt.Errorf("store: upsert mastery: %w", err)
	}
	return nil
}

// WeakTopics lists the owner's topics below the threshold, weakest first.
func (s *Store) WeakTopics(owner string, threshold float64, limit int) ([]Mastery, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Conn().Query(`
		SELECT owner, topic, level, updated_at
		FROM mastery WHERE owner = ? AND level < ?
		ORDER BY level ASC, topic ASC LIMIT ?`, owner, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("store: weak topics: %w", err)
	}
	defer rows.Close()

	var out []Mastery
	for rows.Next() {
		var m Mastery
		var updated string
		if err := rows.Scan(&m.Owner, &m.Topic, &m.Level, &updated); err != nil {
			return nil, fmt.Errorf("store: scan mastery: %w", err)
		}
		m.UpdatedAt = parseTime(updated)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- Sessions ----

// RecordSession stores one answered question for bookkeeping. A zero ID
// gets a fresh UUID.
func (s *Store) RecordSession(sess Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	_, err := s.db.Conn().Exec(`
		INSERT INTO sessions (id, owner, question, mode, model_used, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Owner, sess.Question, sess.Mode, sess.ModelUsed, sess.TokensUsed)
	if err != nil {
		return fmt.Errorf("store: record session: %w", err)
	}
	return nil
}

// SessionCount returns the total number of recorded sessions for an owner.
func (s *Store) SessionCount(owner string) (int, error) {
	var n int
	err := s.db.Conn().QueryRow(
		`SELECT COUNT(*) FROM sessions WHERE owner = ?`, owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: session count: %w", err)
	}
	return n, nil
}

// ---- scanning helpers ----

func scanFacts(rows *sql.Rows) ([]Fact, error) {
	var out []Fact
	for rows.Next() {
		var f Fact
		var kind, created, updated string
		if err := rows.Scan(&f.ID, &f.Owner, &kind, &f.Key, &f.Value,
			&f.Confidence, &f.TTLDays, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: scan fact: %w", err)
		}
		f.Kind = FactKind(kind)
		f.CreatedAt = parseTime(created)
		f.UpdatedAt = parseTime(updated)
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	var out []Turn
	for rows.Next() {
		var t Turn
		var created string
		if err := rows.Scan(&t.Seq, &t.Owner, &t.Role, &t.Content, &created); err != nil {
			return nil, fmt.Errorf("store: scan turn: %w", err)
		}
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// parseTime handles the datetime layouts SQLite emits.
func parseTime(s string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05.999999999-07:00",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
