// Package partition maps a record's startYear to the fragment that holds it.
package partition

import "github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"

// DefaultBoundary is the last year stored on fragment-a.
const DefaultBoundary = 2010

// Rule splits the dataset horizontally at Boundary:
// startYear <= Boundary lives on fragment-a, anything later on fragment-b.
//
// Rule is pure and total. The zero value uses a boundary of 0, so callers
// should construct it with New or use Default.
type Rule struct {
	Boundary int
}

// New creates a Rule with the given boundary year.
func New(boundary int) Rule {
	return Rule{Boundary: boundary}
}

// Default returns the rule with DefaultBoundary.
func Default() Rule {
	return Rule{Boundary: DefaultBoundary}
}

// FragmentFor returns the fragment that must hold a record with this year.
func (r Rule) FragmentFor(year int) model.NodeID {
	if year <= r.Boundary {
		return model.FragmentA
	}
	return model.FragmentB
}

// FragmentForRecord is FragmentFor applied to rec's partition field.
// rec must already carry a StartYear (see model.Record.WithDefaults).
func (r Rule) FragmentForRecord(rec model.Record) model.NodeID {
	return r.FragmentFor(rec.Year())
}

// Sibling returns the other fragment.
func Sibling(fragment model.NodeID) model.NodeID {
	if fragment == model.FragmentA {
		return model.FragmentB
	}
	return model.FragmentA
}
