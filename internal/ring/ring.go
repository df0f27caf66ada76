// Package ring implements the consistent hash ring of spec.md §4.3: the
// member list projected into hash-ordered Ring Nodes, with no virtual
// nodes — this spec's per-key replication is a fixed 3-way successor
// walk, not a load-balancing scheme that would need vnodes to smooth out.
package ring

import (
	"hash/fnv"
	"sort"

	"dynkv/internal/address"
	"dynkv/internal/wire"
)

// Node is one ring position: an address and its hash_code.
type Node struct {
	Addr     address.Address
	HashCode uint32
}

// Ring is the member list sorted ascending by hash_code, ties broken by
// address order (spec.md §3).
type Ring struct {
	size  uint32
	nodes []Node
}

// New builds a Ring from a member snapshot, hashing each address's
// canonical "id:port" form mod size.
func New(members []address.Address, size uint32) *Ring {
	nodes := make([]Node, 0, len(members))
	for _, addr := range members {
		nodes = append(nodes, Node{Addr: addr, HashCode: HashAddress(addr, size)})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].HashCode != nodes[j].HashCode {
			return nodes[i].HashCode < nodes[j].HashCode
		}
		return nodes[i].Addr.Less(nodes[j].Addr)
	})
	return &Ring{size: size, nodes: nodes}
}

// Len returns the number of members on the ring.
func (r *Ring) Len() int { return len(r.nodes) }

// Nodes returns the ring's members in hash order.
func (r *Ring) Nodes() []Node {
	out := make([]Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// SuccessorsOf returns the next n distinct ring members after addr, in
// ring order, wrapping around. Used to derive has_my_replicas (spec.md §3).
// Returns nil if addr is not itself on the ring.
func (r *Ring) SuccessorsOf(addr address.Address, n int) []address.Address {
	idx, ok := r.indexOf(addr)
	if !ok {
		return nil
	}
	out := make([]address.Address, 0, n)
	for i := 1; i <= n && i < len(r.nodes); i++ {
		out = append(out, r.nodes[(idx+i)%len(r.nodes)].Addr)
	}
	return out
}

// PredecessorsOf returns the previous n distinct ring members before addr,
// in ring order, wrapping around. Used to derive have_replicas_of
// (spec.md §3).
func (r *Ring) PredecessorsOf(addr address.Address, n int) []address.Address {
	idx, ok := r.indexOf(addr)
	if !ok {
		return nil
	}
	out := make([]address.Address, 0, n)
	for i := 1; i <= n && i < len(r.nodes); i++ {
		j := idx - i
		if j < 0 {
			j += len(r.nodes)
		}
		out = append(out, r.nodes[j].Addr)
	}
	return out
}

func (r *Ring) indexOf(addr address.Address) (int, bool) {
	for i, n := range r.nodes {
		if n.Addr == addr {
			return i, true
		}
	}
	return -1, false
}

// Replicas is the ordered {primary, secondary, tertiary} result of
// FindReplicas.
type Replicas struct {
	Primary   address.Address
	Secondary address.Address
	Tertiary  address.Address
}

// ByRole indexes a Replicas by wire.ReplicaRole.
func (rs Replicas) ByRole(role wire.ReplicaRole) address.Address {
	switch role {
	case wire.RoleSecondary:
		return rs.Secondary
	case wire.RoleTertiary:
		return rs.Tertiary
	default:
		return rs.Primary
	}
}

// Slice returns the three replicas in role order [primary, secondary, tertiary].
func (rs Replicas) Slice() [3]address.Address {
	return [3]address.Address{rs.Primary, rs.Secondary, rs.Tertiary}
}

// FindReplicas implements spec.md §4.3: hash the key, the primary is the
// first ring member with hash_code >= p (wrapping to ring[0]), secondary
// and tertiary are its next two successors mod ring length.
//
// Returns false if the ring has fewer than 3 members — per spec.md,
// replication never degrades below 3-way; operations on too-small a ring
// fail outright instead.
func (r *Ring) FindReplicas(key string) (Replicas, bool) {
	if len(r.nodes) < 3 {
		return Replicas{}, false
	}

	p := HashKey(key, r.size)
	idx := sort.Search(len(r.nodes), func(i int) bool { return r.nodes[i].HashCode >= p })
	if idx == len(r.nodes) {
		idx = 0
	}

	return Replicas{
		Primary:   r.nodes[idx].Addr,
		Secondary: r.nodes[(idx+1)%len(r.nodes)].Addr,
		Tertiary:  r.nodes[(idx+2)%len(r.nodes)].Addr,
	}, true
}

// HashAddress hashes an address's canonical "id:port" form mod size.
func HashAddress(addr address.Address, size uint32) uint32 {
	return hashString(addr.Canonical(), size)
}

// HashKey hashes a store key mod size.
func HashKey(key string, size uint32) uint32 {
	return hashString(key, size)
}

func hashString(s string, size uint32) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32() % size
}
