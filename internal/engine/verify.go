package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/partition"
)

// Copy is the state of one key on one node.
type Copy struct {
	Node        model.NodeID `json:"node"`
	Reachable   bool         `json:"reachable"`
	Present     bool         `json:"present"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Verification reports whether a key is stored where the partition rule
// says it should be, with identical content.
type Verification struct {
	Key        string       `json:"key"`
	Assigned   model.NodeID `json:"assigned,omitempty"`
	Copies     []Copy       `json:"copies"`
	Pending    int          `json:"pending"`
	Consistent bool         `json:"consistent"`
	Problems   []string     `json:"problems,omitempty"`
}

// Verify compares the copies of key on all three nodes.
//
// Steady state for a stored record is an identical copy on central and the
// assigned fragment and no copy on the other fragment. For a deleted key it
// is no copy anywhere. Unreachable nodes and pending recovery tasks make the
// key inconsistent for now without being errors.
func (e *Engine) Verify(ctx context.Context, key string) (Verification, error) {
	if err := model.ValidateKey(key); err != nil {
		return Verification{}, err
	}

	ids := model.AllNodes()
	copies := make([]Copy, len(ids))
	records := make([]model.Record, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			c := Copy{Node: id}
			rec, found, err := e.nodes.MustGet(id).Get(ctx, key)
			if err != nil {
				c.Error = err.Error()
				copies[i] = c
				return nil
			}
			c.Reachable = true
			c.Present = found
			if found {
				fp, err := model.Fingerprint(rec.Normalize())
				if err != nil {
					return fmt.Errorf("fingerprint %s copy: %w", id, err)
				}
				c.Fingerprint = fp
				records[i] = rec
			}
			copies[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Verification{}, err
	}

	v := Verification{Key: key, Copies: copies}
	for _, id := range ids {
		if e.queue.HasPending(id, key) {
			v.Pending++
		}
	}

	central := copies[0]
	for _, c := range copies {
		if !c.Reachable {
			v.Problems = append(v.Problems, fmt.Sprintf("%s unreachable", c.Node))
		}
	}

	switch {
	case !central.Reachable:
		// Nothing authoritative to compare against.
	case central.Present:
		v.Assigned = e.rule.FragmentForRecord(records[0])
		sibling := partition.Sibling(v.Assigned)
		for _, c := range copies[1:] {
			if !c.Reachable {
				continue
			}
			switch {
			case c.Node == v.Assigned && !c.Present:
				v.Problems = append(v.Problems, fmt.Sprintf("missing on %s", c.Node))
			case c.Node == v.Assigned && c.Fingerprint != central.Fingerprint:
				v.Problems = append(v.Problems, fmt.Sprintf("%s copy differs from central", c.Node))
			case c.Node == sibling && c.Present:
				v.Problems = append(v.Problems, fmt.Sprintf("stale copy on %s", c.Node))
			}
		}
	default:
		for _, c := range copies[1:] {
			if c.Reachable && c.Present {
				v.Problems = append(v.Problems, fmt.Sprintf("orphan copy on %s", c.Node))
			}
		}
	}

	if v.Pending > 0 {
		v.Problems = append(v.Problems, fmt.Sprintf("%d recovery task(s) pending", v.Pending))
	}
	v.Consistent = len(v.Problems) == 0
	return v, nil
}
