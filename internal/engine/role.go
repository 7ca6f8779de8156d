package engine

import (
	"fmt"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// Role describes which node this process fronts and how it reads.
type Role struct {
	// Local is the node this process is deployed next to.
	Local model.NodeID
	// FailoverOrder is the default read order.
	FailoverOrder []model.NodeID
}

// DefaultRole returns the role for a process fronting local. Reads prefer the
// local node, then central, then the remaining fragment.
func DefaultRole(local model.NodeID) Role {
	var order []model.NodeID
	switch local {
	case model.FragmentA:
		order = []model.NodeID{model.FragmentA, model.Central, model.FragmentB}
	case model.FragmentB:
		order = []model.NodeID{model.FragmentB, model.Central, model.FragmentA}
	default:
		local = model.Central
		order = []model.NodeID{model.Central, model.FragmentA, model.FragmentB}
	}
	return Role{Local: local, FailoverOrder: order}
}

// Validate checks that the role names known nodes and that the failover
// order has no duplicates.
func (r Role) Validate() error {
	if !r.Local.Valid() {
		return fmt.Errorf("invalid local node %q", r.Local)
	}
	if len(r.FailoverOrder) == 0 {
		return fmt.Errorf("failover order is empty")
	}
	seen := map[model.NodeID]bool{}
	for _, id := range r.FailoverOrder {
		if !id.Valid() {
			return fmt.Errorf("failover order: invalid node %q", id)
		}
		if seen[id] {
			return fmt.Errorf("failover order: duplicate node %s", id)
		}
		seen[id] = true
	}
	return nil
}
