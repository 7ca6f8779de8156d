package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// journal is the contract both implementations satisfy.
type journal interface {
	Load(ctx context.Context) ([]model.RecoveryTask, error)
	Save(ctx context.Context, target model.NodeID, tasks []model.RecoveryTask) error
}

var testTime = time.Date(2024, 11, 20, 8, 30, 0, 0, time.UTC)

func createTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func createTestFileJournal(t *testing.T) *FileJournal {
	t.Helper()
	j, err := OpenFileJournal(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func upsertTask(id string, seq int64, target model.NodeID, key string, year int) model.RecoveryTask {
	return model.RecoveryTask{
		ID:         id,
		Seq:        seq,
		Target:     target,
		Op:         model.UpsertOp(model.Record{Key: key, PrimaryTitle: "Title " + key, StartYear: model.IntPtr(year)}),
		EnqueuedAt: testTime.Add(time.Duration(seq) * time.Second),
	}
}

func deleteTask(id string, seq int64, target model.NodeID, key string) model.RecoveryTask {
	return model.RecoveryTask{
		ID:         id,
		Seq:        seq,
		Target:     target,
		Op:         model.DeleteOp(key),
		EnqueuedAt: testTime.Add(time.Duration(seq) * time.Second),
	}
}
