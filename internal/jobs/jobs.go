package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/memory"
)

// SweepJob evicts expired facts and old archived turns.
type SweepJob struct {
	Store    *memory.Store
	TurnsTTL time.Duration
	Logger   *zap.Logger
}

func (j *SweepJob) Name() string { return "memory-sweep" }

func (j *SweepJob) Run(_ context.Context) error {
	facts, err := j.Store.SweepExpiredFacts()
	if err != nil {
		return err
	}
	turns := 0
	if j.TurnsTTL > 0 {
		turns, err = j.Store.SweepOldTurns(j.TurnsTTL)
		if err != nil {
			return err
		}
	}
	if facts > 0 || turns > 0 {
		j.Logger.Info("memory swept", zap.Int("facts", facts), zap.Int("turns", turns))
	}
	return nil
}

// SnapshotJob rebuilds the lexical index if dirty and persists the
// retrieval store.
type SnapshotJob struct {
	Store  *index.Store
	Path   string
	Logger *zap.Logger
}

func (j *SnapshotJob) Name() string { return "index-snapshot" }

func (j *SnapshotJob) Run(_ context.Context) error {
	rebuilt := j.Store.RebuildLexical()
	if err := j.Store.Save(j.Path); err != nil {
		return err
	}
	if rebuilt {
		j.Logger.Info("lexical index rebuilt before snapshot")
	}
	return nil
}
