package model

import (
	"sort"
	"time"
)

// Entitlement is the resolved access state for one user: the set of box IDs
// they may open, whether they hold an active membership, and the latest expiry
// across their active memberships. It is recomputed per request and never
// persisted.
type Entitlement struct {
	BoxIDs           map[string]struct{}
	HasMembership    bool
	MembershipExpiry *time.Time
}

// NewEntitlement returns an Entitlement with an empty box set.
func NewEntitlement() *Entitlement {
	return &Entitlement{BoxIDs: make(map[string]struct{})}
}

// Grant adds a box ID to the entitlement set.
func (e *Entitlement) Grant(boxID string) {
	e.BoxIDs[boxID] = struct{}{}
}

// Entitled reports whether the user may access the given box.
func (e *Entitlement) Entitled(boxID string) bool {
	_, ok := e.BoxIDs[boxID]
	return ok
}

// SortedBoxIDs returns the entitled box IDs in lexicographic order, for
// deterministic serialization.
func (e *Entitlement) SortedBoxIDs() []string {
	ids := make([]string, 0, len(e.BoxIDs))
	for id := range e.BoxIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Catalog is the visibility-filtered box list returned alongside the raw
// entitlement data. Sample-box suppression is a display concern only and does
// not affect Entitlement.
type Catalog struct {
	Boxes       []BoxWithAccess
	Entitlement *Entitlement
}
