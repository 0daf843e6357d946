package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lectern/lectern/internal/db"
	"github.com/lectern/lectern/internal/memory"
)

type noopJob struct{ runs int }

func (j *noopJob) Name() string                { return "noop" }
func (j *noopJob) Run(_ context.Context) error { j.runs++; return nil }

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler(zap.NewNop())
	if err := s.AddJob(&noopJob{}, "not a cron spec"); err == nil {
		t.Error("expected error for invalid spec")
	}
	if err := s.AddJob(&noopJob{}, "*/5 * * * *"); err != nil {
		t.Errorf("valid spec rejected: %v", err)
	}
}

func TestSweepJobRun(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := memory.NewStore(database)

	if _, err := store.InsertTurn(memory.Turn{Owner: "amal", Role: "user", Content: "old"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.Conn().Exec(`UPDATE turns SET created_at = datetime('now', '-30 days')`); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	job := &SweepJob{Store: store, TurnsTTL: 7 * 24 * time.Hour, Logger: zap.NewNop()}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	turns, err := store.RecentTurns("amal", 10)
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("sweep left %d old turns", len(turns))
	}
}
