package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

const timeLayout = time.RFC3339Nano

func marshalOperation(op model.Operation) (string, error) {
	data, err := json.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("marshal operation: %w", err)
	}
	return string(data), nil
}

func unmarshalOperation(payload string) (model.Operation, error) {
	var op model.Operation
	if err := json.Unmarshal([]byte(payload), &op); err != nil {
		return model.Operation{}, fmt.Errorf("unmarshal operation: %w", err)
	}
	return op, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse enqueued_at %q: %w", s, err)
	}
	return t, nil
}

// checkTarget rejects task lists that mix targets or carry bad identifiers.
func checkTarget(target model.NodeID, tasks []model.RecoveryTask) error {
	if !target.Valid() {
		return fmt.Errorf("invalid target %q", target)
	}
	for _, t := range tasks {
		if t.Target != target {
			return fmt.Errorf("task %s targets %s, not %s", t.ID, t.Target, target)
		}
		if t.ID == "" {
			return fmt.Errorf("task with seq %d has no id", t.Seq)
		}
	}
	return nil
}
