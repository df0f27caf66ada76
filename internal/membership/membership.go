// Package membership implements the Layer 1 gossip-based membership and
// failure-detection engine of spec.md §4.1: a single-threaded, tick-driven
// state machine with no goroutines, timers, or blocking I/O — every round
// runs to completion inside one Engine.Tick call.
package membership

import (
	"math/rand"
	"sort"

	"dynkv/internal/address"
	"dynkv/internal/audit"
	"dynkv/internal/network"
	"dynkv/internal/params"
	"dynkv/internal/wire"
)

// State is this node's position in the join state machine of spec.md §4.1.
type State int

const (
	StateWaitJoinRep State = iota
	StateInGroup
	StateDead
)

func (s State) String() string {
	switch s {
	case StateWaitJoinRep:
		return "WAIT_JOINREP"
	case StateInGroup:
		return "IN_GROUP"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

type memberEntry struct {
	addr           address.Address
	heartbeat      int64
	localTimestamp int64
}

// Engine is one node's membership view and join state machine.
type Engine struct {
	self address.Address
	net  network.Network
	p    params.Params
	log  audit.Log
	rng  *rand.Rand

	state   State
	members map[address.Address]*memberEntry

	// triggerExclusions accumulates the senders of messages delivered this
	// tick, so the next gossip round excludes them (spec.md §4.1 "excluding
	// ... the immediate sender of any message that triggered this gossip").
	triggerExclusions map[address.Address]bool
}

// New creates an Engine for self. seed seeds the gossip-fanout sampler once,
// per spec.md's Design Notes on avoiding per-call reseeding.
func New(self address.Address, net network.Network, p params.Params, log audit.Log, seed int64) *Engine {
	return &Engine{
		self:              self,
		net:               net,
		p:                 p,
		log:               log,
		rng:               rand.New(rand.NewSource(seed)),
		members:           make(map[address.Address]*memberEntry),
		triggerExclusions: make(map[address.Address]bool),
	}
}

// Start implements the start(join_addr) contract: self-elect as introducer
// when join_addr is our own address, otherwise send a JOINREQ.
func (e *Engine) Start(joinAddr address.Address, now int64) {
	e.members[e.self] = &memberEntry{addr: e.self, heartbeat: 0, localTimestamp: now}
	e.net.Register(e.self)

	if joinAddr == e.self {
		e.state = StateInGroup
		return
	}

	e.state = StateWaitJoinRep
	e.send(joinAddr, wire.JoinReq{From: e.self, Heartbeat: 0, Timestamp: now})
}

// State returns the current join-state-machine state.
func (e *Engine) State() State { return e.state }

// InGroup reports whether this node considers itself a full member.
func (e *Engine) InGroup() bool { return e.state == StateInGroup }

// Deliver accepts one framed inbound Layer 1 message.
func (e *Engine) Deliver(msg wire.Message, now int64) {
	switch v := msg.(type) {
	case wire.JoinReq:
		e.send(v.From, wire.JoinRep{From: e.self, Heartbeat: e.ownHeartbeat(), Timestamp: now})
		e.merge(v.From, v.Heartbeat, now)
		e.triggerExclusions[v.From] = true

	case wire.JoinRep:
		e.state = StateInGroup
		e.merge(v.From, v.Heartbeat, now)
		e.triggerExclusions[v.From] = true

	case wire.Gossip:
		for _, entry := range v.Entries {
			e.merge(entry.Addr, entry.Heartbeat, now)
		}
		e.triggerExclusions[v.From] = true
		for _, excluded := range v.Excluded {
			e.triggerExclusions[excluded] = true
		}
	}
}

// Tick runs one full membership protocol round — advance heartbeat, expire
// stale entries, disseminate gossip — per the tick() contract of spec.md
// §4.1. internal/node's own tick() calls the three phases individually
// (AdvanceHeartbeat, ExpireStale, Gossip) instead, interleaving ring
// recomputation and store processing between them per spec.md §2's
// control-flow order; Tick remains for standalone membership-only use.
func (e *Engine) Tick(now int64) {
	e.AdvanceHeartbeat(now)
	e.ExpireStale(now)
	e.Gossip(now)
}

// AdvanceHeartbeat increments this node's own heartbeat and refreshes its
// local_timestamp (spec.md §4.1).
func (e *Engine) AdvanceHeartbeat(now int64) {
	self := e.members[e.self]
	self.heartbeat++
	self.localTimestamp = now
}

// ExpireStale removes every entry whose local_timestamp has aged past
// T_REMOVE, logging node-remove for each (spec.md §3, §4.1).
func (e *Engine) ExpireStale(now int64) {
	for addr, entry := range e.members {
		if addr == e.self {
			continue
		}
		if now-entry.localTimestamp > e.p.TRemove {
			delete(e.members, addr)
			e.log.NodeRemove(e.self, addr)
		}
	}
}

// Gossip runs one dissemination round and clears this tick's trigger
// exclusion set (spec.md §4.1).
func (e *Engine) Gossip(now int64) {
	e.disseminate(now)
	e.triggerExclusions = make(map[address.Address]bool)
}

// Snapshot returns every currently tracked member for Layer 2, sorted by
// address for deterministic ring construction. T_FAIL only ever governs
// gossip *targeting* (spec.md §4.1): a suspect member still has a live
// entry in the list and stays on the ring until T_REMOVE actually evicts
// it, so every node's ring view agrees regardless of which peers it has
// locally suspected.
func (e *Engine) Snapshot() []address.Address {
	out := make([]address.Address, 0, len(e.members))
	for addr := range e.members {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Heartbeat exposes the node's own current heartbeat value, for tests and
// diagnostics.
func (e *Engine) Heartbeat() int64 { return e.ownHeartbeat() }

func (e *Engine) ownHeartbeat() int64 {
	if self, ok := e.members[e.self]; ok {
		return self.heartbeat
	}
	return 0
}

func (e *Engine) isSuspect(entry *memberEntry, now int64) bool {
	return now-entry.localTimestamp > e.p.TFail
}

// merge implements spec.md §4.1's merge rule for a remote (addr, hb, ts)
// observation.
func (e *Engine) merge(addr address.Address, hbRemote, now int64) {
	if addr == e.self {
		return
	}
	if entry, ok := e.members[addr]; ok {
		if hbRemote > entry.heartbeat {
			entry.heartbeat = hbRemote
			entry.localTimestamp = now
		}
		return
	}
	if e.ownHeartbeat()-e.p.TRemove < hbRemote {
		e.members[addr] = &memberEntry{addr: addr, heartbeat: hbRemote, localTimestamp: now}
		e.log.NodeAdd(e.self, addr)
	}
}

// disseminate picks up to GOSSIP_FANOUT non-suspect, non-excluded targets
// and sends each the entire member list plus the union exclusion set
// (spec.md §4.1).
func (e *Engine) disseminate(now int64) {
	candidates := make([]address.Address, 0, len(e.members))
	for addr, entry := range e.members {
		if addr == e.self || e.triggerExclusions[addr] {
			continue
		}
		if e.isSuspect(entry, now) {
			continue
		}
		candidates = append(candidates, addr)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Less(candidates[j]) })

	fanout := e.p.GossipFanout()
	e.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if fanout < len(candidates) {
		candidates = candidates[:fanout]
	}

	if len(candidates) == 0 {
		return
	}

	entries := make([]wire.GossipEntry, 0, len(e.members))
	for _, entry := range e.members {
		entries = append(entries, wire.GossipEntry{Addr: entry.addr, Heartbeat: entry.heartbeat})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Addr.Less(entries[j].Addr) })

	excluded := make([]address.Address, 0, len(e.triggerExclusions)+1)
	excluded = append(excluded, e.self)
	for addr := range e.triggerExclusions {
		excluded = append(excluded, addr)
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i].Less(excluded[j]) })

	for _, target := range candidates {
		e.send(target, wire.Gossip{From: e.self, Timestamp: now, Entries: entries, Excluded: excluded})
	}
}

func (e *Engine) send(to address.Address, msg wire.Message) {
	e.net.Send(e.self, to, wire.Encode(msg))
}
