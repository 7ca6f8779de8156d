package store

import (
	"context"
	"fmt"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// Load returns every pending task across all targets in seq order.
// Returns an empty slice (not nil) when the journal is empty.
func (j *SQLiteJournal) Load(ctx context.Context) ([]model.RecoveryTask, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, id, target, payload, enqueued_at
		FROM recovery_tasks
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.RecoveryTask{}
	for rows.Next() {
		var (
			task       model.RecoveryTask
			target     string
			payload    string
			enqueuedAt string
		)
		if err := rows.Scan(&task.Seq, &task.ID, &target, &payload, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		task.Target = model.NodeID(target)
		if task.Op, err = unmarshalOperation(payload); err != nil {
			return nil, fmt.Errorf("task %s: %w", task.ID, err)
		}
		if task.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
			return nil, fmt.Errorf("task %s: %w", task.ID, err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// Save replaces the pending tasks of target with tasks in one transaction.
// Other targets are untouched.
func (j *SQLiteJournal) Save(ctx context.Context, target model.NodeID, tasks []model.RecoveryTask) error {
	if err := checkTarget(target, tasks); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_tasks WHERE target = ?`, string(target)); err != nil {
		return fmt.Errorf("clear %s tasks: %w", target, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recovery_tasks
		(seq, id, target, kind, record_key, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, task := range tasks {
		payload, err := marshalOperation(task.Op)
		if err != nil {
			return fmt.Errorf("task %s: %w", task.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			task.Seq,
			task.ID,
			string(task.Target),
			string(task.Op.Kind),
			task.Op.Key,
			payload,
			formatTime(task.EnqueuedAt),
		); err != nil {
			return fmt.Errorf("insert task %s: %w", task.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tasks: %w", target, err)
	}
	return nil
}
