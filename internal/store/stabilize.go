package store

import (
	"dynkv/internal/address"
	"dynkv/internal/network"
	"dynkv/internal/ring"
	"dynkv/internal/wire"
)

// Stabilizer implements spec.md §4.6: after every ring recomputation, it
// rescans every key the node currently resolves as PRIMARY for — whether
// it already believed that or is only now discovering it via find_replicas
// (the predecessor-failure promotion boundary case) — and pushes internal
// CREATE/DELETE messages so the live ring's three current successors of
// each key's hash always end up holding a copy.
type Stabilizer struct {
	self address.Address
	net  network.Network
	table HashTable

	hasMyReplicas  [2]address.Address // secondary, tertiary successors of self on the ring
	haveReplicasOf [2]address.Address // the two primaries self should hold as secondary/tertiary
}

// NewStabilizer creates a Stabilizer for self.
func NewStabilizer(self address.Address, net network.Network, table HashTable) *Stabilizer {
	return &Stabilizer{self: self, net: net, table: table}
}

// HasMyReplicas exposes the current derived has_my_replicas table, for
// tests and diagnostics.
func (s *Stabilizer) HasMyReplicas() [2]address.Address { return s.hasMyReplicas }

// HaveReplicasOf exposes the current derived have_replicas_of table (the
// ring predecessors whose primaries self holds secondary/tertiary copies
// of), for tests and diagnostics.
func (s *Stabilizer) HaveReplicasOf() [2]address.Address { return s.haveReplicasOf }

// Run executes one stabilization pass against the freshly recomputed ring
// r. internal/node calls it once per ring change that leaves at least one
// member, T_STAB ticks after that change.
func (s *Stabilizer) Run(r *ring.Ring) {
	if r.Len() == 0 {
		return
	}

	oldReplicas := [3]address.Address{s.self, s.hasMyReplicas[0], s.hasMyReplicas[1]}
	var newSuccessors [2]address.Address
	copy(newSuccessors[:], r.SuccessorsOf(s.self, 2))

	type ownedKey struct {
		key        string
		entry      Entry
		wasPrimary bool
	}
	var owned []ownedKey
	s.table.Iterate(func(key string, e Entry) {
		replicas, ok := r.FindReplicas(key)
		if !ok || replicas.Primary != s.self {
			return
		}
		owned = append(owned, ownedKey{key: key, entry: e, wasPrimary: e.ReplicaRole == wire.RolePrimary})
	})

	newSlice := [3]address.Address{s.self, newSuccessors[0], newSuccessors[1]}
	for _, o := range owned {
		// A key that was held as SECONDARY/TERTIARY but whose primary just
		// moved to self (a predecessor failed) is promoted here — the
		// "boundary case" of spec.md §4.6. Its prior holders are unknown,
		// so it gets CREATE to both current successors and no DELETE.
		if !o.wasPrimary {
			o.entry.ReplicaRole = wire.RolePrimary
			_ = s.table.Update(o.key, o.entry)
			for i := 1; i <= 2; i++ {
				s.sendInternalCreate(newSlice[i], o.key, o.entry.Value, roleForIndex(i))
			}
			continue
		}

		for i := 1; i <= 2; i++ {
			if newSlice[i] == oldReplicas[i] {
				continue
			}
			role := roleForIndex(i)
			s.sendInternalCreate(newSlice[i], o.key, o.entry.Value, role)
			// An old holder that is still one of the new successors keeps its copy.
			if !oldReplicas[i].IsNull() && oldReplicas[i] != newSlice[1] && oldReplicas[i] != newSlice[2] {
				s.sendInternalDelete(oldReplicas[i], o.key)
			}
		}
	}

	s.hasMyReplicas = newSuccessors
	copy(s.haveReplicasOf[:], r.PredecessorsOf(s.self, 2))
}

func roleForIndex(i int) wire.ReplicaRole {
	if i == 1 {
		return wire.RoleSecondary
	}
	return wire.RoleTertiary
}

func (s *Stabilizer) sendInternalCreate(to address.Address, key, value string, role wire.ReplicaRole) {
	s.net.Send(s.self, to, wire.Encode(wire.Create{
		From: s.self, To: to, TransID: wire.InternalTransID,
		Key: key, Value: value, Role: role,
	}))
}

func (s *Stabilizer) sendInternalDelete(to address.Address, key string) {
	s.net.Send(s.self, to, wire.Encode(wire.Delete{
		From: s.self, To: to, TransID: wire.InternalTransID, Key: key,
	}))
}
