// Package memory implements the layered conversational memory: a bounded
// short-term turn window, durable keyed facts, topic mastery, and keyword
// deep recall over the turn archive.
package memory

import "time"

// FactKind classifies a durable fact about the student.
type FactKind string

const (
	KindPreference FactKind = "preference"
	KindFact       FactKind = "fact"
	KindGoal       FactKind = "goal"
	KindStruggle   FactKind = "struggle"
	KindInsight    FactKind = "insight"
	KindExam       FactKind = "exam"
)

// ValidFactKind reports whether k is a known kind.
func ValidFactKind(k FactKind) bool {
	switch k {
	case KindPreference, KindFact, KindGoal, KindStruggle, KindInsight, KindExam:
		return true
	}
	return false
}

// defaultTTLDays returns how long a kind stays relevant. Zero means the
// fact never expires.
func defaultTTLDays(k FactKind) int {
	switch k {
	case KindExam:
		return 60 // exams pass
	case KindStruggle:
		return 120 // struggles get resolved
	case KindInsight:
		return 180
	default:
		return 0
	}
}

// Fact is one durable keyed statement about an owner. The (Owner, Kind,
// Key) triple is unique; re-remembering overwrites the value.
type Fact struct {
	ID         string
	Owner      string
	Kind       FactKind
	Key        string
	Value      string
	Confidence float64
	TTLDays    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Turn is a single conversation message. Seq is the archive insertion
// order; zero for window-only turns that have not been persisted.
type Turn struct {
	Seq       int64
	Owner     string
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
}

// Mastery records how well an owner knows a topic, level in [0, 1].
type Mastery struct {
	Owner     string
	Topic     string
	Level     float64
	UpdatedAt time.Time
}

// Session is one answered question, kept for the status command.
type Session struct {
	ID         string
	Owner      string
	Question   string
	Mode       string
	ModelUsed  string
	TokensUsed int
	CreatedAt  time.Time
}

// clampLevel keeps mastery levels inside [0, 1].
func clampLevel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
