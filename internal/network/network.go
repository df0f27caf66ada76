// Package network is the external network-emulator collaborator of
// spec.md §6: it delivers bytes between addresses with configurable loss
// and delay. The simulation core only depends on the Network interface;
// InMemoryNetwork is the concrete, in-process implementation the
// simulation harness wires in.
package network

import (
	"math/rand"
	"sync"

	"dynkv/internal/address"
)

// Network is the send/recv contract consumed by internal/node. A message
// to a departed node is silently dropped (spec.md §4.1 "Failure semantics").
type Network interface {
	// Send enqueues bytes from one address to another. Best-effort: may
	// drop, duplicate, or delay, never blocks.
	Send(from, to address.Address, payload []byte)

	// Drain removes and returns every message currently deliverable to
	// addr, in FIFO order.
	Drain(addr address.Address) [][]byte

	// Register marks addr as reachable; Unregister marks it departed.
	Register(addr address.Address)
	Unregister(addr address.Address)
}

// Config tunes the emulator's unreliability.
type Config struct {
	LossRate       float64 // probability a send is dropped entirely
	DuplicateRate  float64 // probability a send is delivered twice
	MaxDelayTicks  int64   // messages are delayed uniformly in [0, MaxDelayTicks]
	Seed           int64
}

// DefaultConfig returns a lossless, delay-free network — the common case
// for unit tests that want deterministic single-tick delivery.
func DefaultConfig() Config {
	return Config{}
}

type envelope struct {
	payload     []byte
	deliverTick int64
}

// InMemoryNetwork is a single-process stand-in for the real network
// emulator: per-address inbound queues, a tick counter driven by the
// harness, and a seeded PRNG (spec.md Design Notes §9.2: seeded once, not
// reseeded per call).
type InMemoryNetwork struct {
	mu      sync.Mutex
	cfg     Config
	rng     *rand.Rand
	now     int64
	queues  map[address.Address][]envelope
	present map[address.Address]bool
}

// New creates an InMemoryNetwork. Only addresses registered with
// Register are reachable; sends to an unregistered (i.e. departed or
// never-joined) address are silently dropped.
func New(cfg Config) *InMemoryNetwork {
	return &InMemoryNetwork{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		queues:  make(map[address.Address][]envelope),
		present: make(map[address.Address]bool),
	}
}

// Register marks addr as reachable.
func (n *InMemoryNetwork) Register(addr address.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.present[addr] = true
	if _, ok := n.queues[addr]; !ok {
		n.queues[addr] = nil
	}
}

// Unregister marks addr as departed: further sends to it are dropped, and
// its queue is discarded.
func (n *InMemoryNetwork) Unregister(addr address.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.present, addr)
	delete(n.queues, addr)
}

// Tick advances the emulator's clock so delayed messages become eligible
// for delivery. The harness calls this once per simulation tick.
func (n *InMemoryNetwork) Tick(now int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = now
}

// Send enqueues payload for delivery to `to`, subject to loss, duplication,
// and delay.
func (n *InMemoryNetwork) Send(from, to address.Address, payload []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.present[to] {
		return // dropped: no such live address
	}
	if n.cfg.LossRate > 0 && n.rng.Float64() < n.cfg.LossRate {
		return // dropped
	}

	copies := 1
	if n.cfg.DuplicateRate > 0 && n.rng.Float64() < n.cfg.DuplicateRate {
		copies = 2
	}

	delay := int64(0)
	if n.cfg.MaxDelayTicks > 0 {
		delay = n.rng.Int63n(n.cfg.MaxDelayTicks + 1)
	}

	for i := 0; i < copies; i++ {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		n.queues[to] = append(n.queues[to], envelope{payload: buf, deliverTick: n.now + delay})
	}
}

// Drain removes and returns every message currently deliverable to addr.
func (n *InMemoryNetwork) Drain(addr address.Address) [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()

	pending := n.queues[addr]
	if len(pending) == 0 {
		return nil
	}

	var ready [][]byte
	var remaining []envelope
	for _, e := range pending {
		if e.deliverTick <= n.now {
			ready = append(ready, e.payload)
		} else {
			remaining = append(remaining, e)
		}
	}
	n.queues[addr] = remaining
	return ready
}
