// Package node wires together Layer 1 (internal/membership) and Layer 2
// (internal/store) behind the single per-tick control flow of spec.md §2:
// deliver inbound messages, process membership messages, advance
// heartbeat, expire stale members, recompute the ring, run stabilization
// if the ring changed, process store messages, time out old transactions,
// emit one round of gossip.
package node

import (
	"dynkv/internal/address"
	"dynkv/internal/audit"
	"dynkv/internal/membership"
	"dynkv/internal/network"
	"dynkv/internal/params"
	"dynkv/internal/ring"
	"dynkv/internal/store"
	"dynkv/internal/wire"
)

// Node is one simulated process: a membership engine, a ring view derived
// from it, and a store engine (hash table + coordinator + replica +
// stabilizer) driven against that ring.
type Node struct {
	self address.Address
	net  network.Network
	p    params.Params
	log  audit.Log

	membership *membership.Engine
	table      store.HashTable
	coord      *store.Coordinator
	replica    *store.Replica
	stabilizer *store.Stabilizer

	ring         *ring.Ring
	lastSnapshot []address.Address

	// stabilizePending/stabilizeAt implement the T_STAB grace window
	// (params.Params.TStab): a ring change schedules a stabilization pass
	// T_STAB ticks later rather than running it inline, and a further ring
	// change before that deadline simply pushes the deadline back, so a
	// burst of churn settles before the rescan runs (DESIGN.md Open
	// Questions).
	stabilizePending bool
	stabilizeAt      int64
}

// New creates a Node for self. seed drives the membership engine's gossip
// fanout PRNG (spec.md Design Notes §9.2).
func New(self address.Address, net network.Network, p params.Params, log audit.Log, seed int64) *Node {
	table := store.NewInMemoryHashTable()
	return &Node{
		self:       self,
		net:        net,
		p:          p,
		log:        log,
		membership: membership.New(self, net, p, log, seed),
		table:      table,
		coord:      store.NewCoordinator(self, net, p, log),
		replica:    store.NewReplica(self, net, log, table),
		stabilizer: store.NewStabilizer(self, net, table),
		ring:       ring.New(nil, p.RingSize),
	}
}

// Self returns this node's address.
func (n *Node) Self() address.Address { return n.self }

// InGroup reports whether this node considers itself a full Layer 1 member.
func (n *Node) InGroup() bool { return n.membership.InGroup() }

// Ring returns the node's current ring view, for tests and diagnostics.
func (n *Node) Ring() *ring.Ring { return n.ring }

// Coordinator exposes the store coordinator for diagnostics.
func (n *Node) Coordinator() *store.Coordinator { return n.coord }

// ClientCreate, ClientRead, ClientUpdate, ClientDelete implement spec.md
// §4.4's client entry points against this node's current ring view. ok is
// false when the ring has fewer than three members.
func (n *Node) ClientCreate(key, value string, now int64) (transID int32, ok bool) {
	return n.coord.ClientCreate(n.ring, key, value, now)
}

func (n *Node) ClientRead(key string, now int64) (transID int32, ok bool) {
	return n.coord.ClientRead(n.ring, key, now)
}

func (n *Node) ClientUpdate(key, value string, now int64) (transID int32, ok bool) {
	return n.coord.ClientUpdate(n.ring, key, value, now)
}

func (n *Node) ClientDelete(key string, now int64) (transID int32, ok bool) {
	return n.coord.ClientDelete(n.ring, key, now)
}

// PendingTransactions reports the number of in-flight store transactions.
func (n *Node) PendingTransactions() int { return n.coord.PendingCount() }

// Start implements the start(join_addr) contract of spec.md §4.1.
func (n *Node) Start(joinAddr address.Address, now int64) {
	n.membership.Start(joinAddr, now)
}

// Deliver decodes and routes one inbound framed message (spec.md §4.1's
// deliver(msg) contract, generalized to both layers). Malformed frames are
// silently dropped, matching the network's own best-effort semantics.
func (n *Node) Deliver(raw []byte, now int64) {
	msg, err := wire.Decode(raw)
	if err != nil {
		return
	}
	n.route(msg, now)
}

func (n *Node) route(msg wire.Message, now int64) {
	switch v := msg.(type) {
	case wire.JoinReq, wire.JoinRep, wire.Gossip:
		n.membership.Deliver(msg, now)
	case wire.Create, wire.Update, wire.Delete, wire.Read:
		n.replica.Deliver(msg, now)
	case wire.Reply:
		n.coord.HandleReply(v, now)
	case wire.ReadReply:
		n.coord.HandleReadReply(v, now)
	}
}

// Tick runs exactly one simulation round for this node, in the order
// spec.md §2 prescribes.
func (n *Node) Tick(now int64) {
	membershipMsgs, storeMsgs := n.drainAndClassify()

	for _, msg := range membershipMsgs {
		n.membership.Deliver(msg, now)
	}

	n.membership.AdvanceHeartbeat(now)
	n.membership.ExpireStale(now)

	snapshot := n.membership.Snapshot()
	if ringChanged(n.lastSnapshot, snapshot) {
		n.ring = ring.New(snapshot, n.p.RingSize)
		n.lastSnapshot = snapshot
		if n.ring.Len() >= 1 {
			n.stabilizePending = true
			n.stabilizeAt = now + n.p.TStab
		}
	}
	if n.stabilizePending && now >= n.stabilizeAt {
		n.stabilizer.Run(n.ring)
		n.stabilizePending = false
	}

	for _, msg := range storeMsgs {
		n.route(msg, now)
	}

	n.coord.TimeoutTransactions(now)
	n.membership.Gossip(now)
}

func (n *Node) drainAndClassify() (membershipMsgs, storeMsgs []wire.Message) {
	for _, raw := range n.net.Drain(n.self) {
		msg, err := wire.Decode(raw)
		if err != nil {
			continue
		}
		switch msg.(type) {
		case wire.JoinReq, wire.JoinRep, wire.Gossip:
			membershipMsgs = append(membershipMsgs, msg)
		default:
			storeMsgs = append(storeMsgs, msg)
		}
	}
	return membershipMsgs, storeMsgs
}

func ringChanged(prev, next []address.Address) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if prev[i] != next[i] {
			return true
		}
	}
	return false
}
