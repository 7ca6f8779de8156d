package model

import (
	"fmt"
	"time"
)

// NodeID names one of the three storage nodes.
type NodeID string

const (
	// Central holds the complete, authoritative dataset.
	Central NodeID = "central"
	// FragmentA holds titles with startYear at or below the partition boundary.
	FragmentA NodeID = "fragment-a"
	// FragmentB holds titles with startYear above the partition boundary.
	FragmentB NodeID = "fragment-b"
)

// AllNodes returns every node, central first.
func AllNodes() []NodeID {
	return []NodeID{Central, FragmentA, FragmentB}
}

// Valid reports whether id is one of the known nodes.
func (id NodeID) Valid() bool {
	switch id {
	case Central, FragmentA, FragmentB:
		return true
	}
	return false
}

// IsFragment reports whether id is a fragment node.
func (id NodeID) IsFragment() bool {
	return id == FragmentA || id == FragmentB
}

func (id NodeID) String() string {
	return string(id)
}

// ParseNodeID converts a string to a NodeID, rejecting unknown names.
func ParseNodeID(s string) (NodeID, error) {
	id := NodeID(s)
	if !id.Valid() {
		return "", fmt.Errorf("unknown node %q: must be one of %v", s, AllNodes())
	}
	return id, nil
}

// Record is a movie title row, the unit of replication.
//
// Key (tconst) is the identity across all nodes. StartYear is the partition
// field; when nil it is defaulted to the current year at write time.
type Record struct {
	Key            string `json:"tconst" validate:"required,max=32,alphanum"`
	TitleType      string `json:"titleType,omitempty" validate:"max=64"`
	PrimaryTitle   string `json:"primaryTitle,omitempty" validate:"max=1024"`
	OriginalTitle  string `json:"originalTitle,omitempty" validate:"max=1024"`
	IsAdult        bool   `json:"isAdult"`
	StartYear      *int   `json:"startYear" validate:"omitempty,min=1874,max=9999"`
	EndYear        *int   `json:"endYear,omitempty" validate:"omitempty,min=1874,max=9999"`
	RuntimeMinutes *int   `json:"runtimeMinutes,omitempty" validate:"omitempty,min=0"`
	Genres         string `json:"genres,omitempty" validate:"max=256"`
}

// Year returns the partition field, or 0 when it is not set.
func (r Record) Year() int {
	if r.StartYear == nil {
		return 0
	}
	return *r.StartYear
}

// WithDefaults returns a copy of r whose StartYear is set to now's year when
// it was nil.
func (r Record) WithDefaults(now time.Time) Record {
	out := r.Clone()
	if out.StartYear == nil {
		out.StartYear = IntPtr(now.Year())
	}
	return out
}

// Clone returns a deep copy of r. Pointer fields are not shared.
func (r Record) Clone() Record {
	out := r
	out.StartYear = clonePtr(r.StartYear)
	out.EndYear = clonePtr(r.EndYear)
	out.RuntimeMinutes = clonePtr(r.RuntimeMinutes)
	return out
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

func clonePtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
