package node

import (
	"context"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/query"
)

// Node is one replica of the title data.
//
// Upsert and Delete are idempotent: applying the same operation twice leaves
// the node in the same state as applying it once.
type Node interface {
	ID() model.NodeID
	Upsert(ctx context.Context, rec model.Record) error
	Delete(ctx context.Context, key string) error
	// Get returns the record stored under key. found is false when the node
	// is reachable but holds no such record.
	Get(ctx context.Context, key string) (rec model.Record, found bool, err error)
	Query(ctx context.Context, stmt query.Statement) (query.Rows, error)
	Ping(ctx context.Context) error
}

// Apply executes op against n.
func Apply(ctx context.Context, n Node, op model.Operation) error {
	switch op.Kind {
	case model.OpUpsert:
		if op.Record == nil {
			return model.NewValidationError("upsert operation has no record", nil)
		}
		return n.Upsert(ctx, *op.Record)
	case model.OpDelete:
		return n.Delete(ctx, op.Key)
	default:
		return model.NewValidationError("unknown operation kind "+string(op.Kind), nil)
	}
}
