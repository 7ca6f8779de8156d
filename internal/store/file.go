package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

const lockFileName = ".journal.lock"

// ErrJournalLocked is returned when another process holds the journal.
var ErrJournalLocked = errors.New("journal is locked by another process")

// FileJournal stores pending tasks as one JSON file per target.
type FileJournal struct {
	dir  string
	lock *flock.Flock
	// mu serialises writers inside this process; the flock covers other processes.
	mu sync.Mutex
}

// OpenFileJournal takes exclusive ownership of dir, creating it if needed.
func OpenFileJournal(dir string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, ErrJournalLocked)
	}

	return &FileJournal{dir: dir, lock: lock}, nil
}

// Close releases the directory lock.
func (j *FileJournal) Close() error {
	return j.lock.Unlock()
}

// Dir returns the journal directory.
func (j *FileJournal) Dir() string {
	return j.dir
}

func (j *FileJournal) path(target model.NodeID) string {
	return filepath.Join(j.dir, string(target)+".json")
}

// Load reads every target file. Missing files mean no pending tasks.
func (j *FileJournal) Load(ctx context.Context) ([]model.RecoveryTask, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tasks := []model.RecoveryTask{}
	for _, target := range model.AllNodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(j.path(target))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s journal: %w", target, err)
		}

		var batch []model.RecoveryTask
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("decode %s journal: %w", target, err)
		}
		if err := checkTarget(target, batch); err != nil {
			return nil, fmt.Errorf("%s journal: %w", target, err)
		}
		tasks = append(tasks, batch...)
	}

	sort.SliceStable(tasks, func(a, b int) bool {
		if tasks[a].Seq != tasks[b].Seq {
			return tasks[a].Seq < tasks[b].Seq
		}
		return tasks[a].ID < tasks[b].ID
	})
	return tasks, nil
}

// Save atomically replaces the file for target.
func (j *FileJournal) Save(ctx context.Context, target model.NodeID, tasks []model.RecoveryTask) error {
	if err := checkTarget(target, tasks); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if tasks == nil {
		tasks = []model.RecoveryTask{}
	}

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s journal: %w", target, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	tmp, err := os.CreateTemp(j.dir, string(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s journal: %w", target, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s journal: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s journal: %w", target, err)
	}
	if err := os.Rename(tmpName, j.path(target)); err != nil {
		return fmt.Errorf("replace %s journal: %w", target, err)
	}
	return nil
}
