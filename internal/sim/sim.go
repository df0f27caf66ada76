// Package sim is the scenario-driver collaborator of spec.md §6: it builds
// a cluster of in-process nodes sharing one network.Network, drives ticks
// across all of them, and injects client operations and node failures. It
// is the concrete form both internal/node's own multi-node tests and
// cmd/simulator build on.
package sim

import (
	"fmt"
	"sort"

	"dynkv/internal/address"
	"dynkv/internal/audit"
	"dynkv/internal/clock"
	"dynkv/internal/network"
	"dynkv/internal/node"
	"dynkv/internal/params"
)

// Cluster owns a shared network, a shared logical clock, and the set of
// currently-live nodes. Nodes are constructed with ascending ids on port 0,
// per spec.md §6's CLI/driver contract; the introducer is the
// earliest-added node that is still live.
type Cluster struct {
	net *network.InMemoryNetwork
	clk *clock.SimClock
	p   params.Params
	log audit.Log

	nodes map[uint32]*node.Node
	order []uint32 // insertion order, for deterministic tick scheduling
}

// NewCluster creates an empty cluster.
func NewCluster(p params.Params, log audit.Log) *Cluster {
	return &Cluster{
		net:   network.New(network.DefaultConfig()),
		clk:   clock.New(),
		p:     p,
		log:   log,
		nodes: make(map[uint32]*node.Node),
	}
}

// NewClusterWithNetwork is like NewCluster but lets the caller supply a
// pre-configured network (e.g. with nonzero loss/delay for resilience
// tests).
func NewClusterWithNetwork(p params.Params, log audit.Log, net *network.InMemoryNetwork) *Cluster {
	return &Cluster{
		net:   net,
		clk:   clock.New(),
		p:     p,
		log:   log,
		nodes: make(map[uint32]*node.Node),
	}
}

// Now returns the cluster's current logical tick.
func (c *Cluster) Now() int64 { return c.clk.Now() }

// AddNode constructs and starts a new node with the given id on port 0. The
// first node added self-elects as introducer; every later node joins
// through the earliest-added node that is still live. Each node's gossip-fanout PRNG is seeded from the cluster's
// configured params.Seed combined with its id, so every node gets a
// distinct but reproducible sequence (spec.md Design Notes §9.2).
func (c *Cluster) AddNode(id uint32) *node.Node {
	self := address.New(id, 0)
	n := node.New(self, c.net, c.p, c.log, c.p.Seed*1_000_003+int64(id))

	introducer := self
	if len(c.order) > 0 {
		introducer = address.New(c.order[0], 0)
	}
	n.Start(introducer, c.clk.Now())

	c.nodes[id] = n
	c.order = append(c.order, id)
	return n
}

// Bootstrap adds n nodes with ascending ids 1..n.
func (c *Cluster) Bootstrap(n int) {
	for id := uint32(1); id <= uint32(n); id++ {
		c.AddNode(id)
	}
}

// Node returns the node with the given id, if it is currently live.
func (c *Cluster) Node(id uint32) (*node.Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// LiveNodes returns every currently-live node, in ascending id order.
func (c *Cluster) LiveNodes() []*node.Node {
	ids := make([]uint32, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*node.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.nodes[id])
	}
	return out
}

// Fail simulates a node crashing: it stops ticking and its network
// registration is torn down, so every live peer eventually expires it past
// T_REMOVE (spec.md §7 "Transient network loss"/§4.1 expiry).
func (c *Cluster) Fail(id uint32) {
	n, ok := c.nodes[id]
	if !ok {
		return
	}
	c.net.Unregister(n.Self())
	delete(c.nodes, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Tick advances the shared clock by one and runs exactly one Tick on the
// network and every live node, in the order the nodes were added.
func (c *Cluster) Tick() int64 {
	now := c.clk.Advance()
	c.net.Tick(now)
	for _, id := range c.order {
		c.nodes[id].Tick(now)
	}
	return now
}

// RunTicks runs n consecutive ticks.
func (c *Cluster) RunTicks(n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}

// ClientCreate, ClientRead, ClientUpdate, ClientDelete submit one client
// operation from the node with the given id, per spec.md §4.4. They return
// an error if that node id is not currently live in the cluster.
func (c *Cluster) ClientCreate(from uint32, key, value string) (int32, error) {
	return c.clientOp(from, func(n *node.Node) (int32, bool) {
		return n.ClientCreate(key, value, c.clk.Now())
	})
}

func (c *Cluster) ClientRead(from uint32, key string) (int32, error) {
	return c.clientOp(from, func(n *node.Node) (int32, bool) {
		return n.ClientRead(key, c.clk.Now())
	})
}

func (c *Cluster) ClientUpdate(from uint32, key, value string) (int32, error) {
	return c.clientOp(from, func(n *node.Node) (int32, bool) {
		return n.ClientUpdate(key, value, c.clk.Now())
	})
}

func (c *Cluster) ClientDelete(from uint32, key string) (int32, error) {
	return c.clientOp(from, func(n *node.Node) (int32, bool) {
		return n.ClientDelete(key, c.clk.Now())
	})
}

func (c *Cluster) clientOp(from uint32, op func(*node.Node) (int32, bool)) (int32, error) {
	n, ok := c.nodes[from]
	if !ok {
		return 0, fmt.Errorf("sim: node %d is not live", from)
	}
	transID, ok := op(n)
	if !ok {
		return 0, fmt.Errorf("sim: node %d's ring has fewer than 3 members", from)
	}
	return transID, nil
}

// MemberLists returns, for each live node, the set of member addresses it
// currently carries, keyed by node id — used by tests asserting spec.md
// §8 P1 (membership convergence).
func (c *Cluster) MemberLists() map[uint32][]address.Address {
	out := make(map[uint32][]address.Address, len(c.nodes))
	for id, n := range c.nodes {
		ringNodes := n.Ring().Nodes()
		addrs := make([]address.Address, len(ringNodes))
		for i, rn := range ringNodes {
			addrs[i] = rn.Addr
		}
		out[id] = addrs
	}
	return out
}
