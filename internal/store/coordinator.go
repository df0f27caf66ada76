package store

import (
	"dynkv/internal/address"
	"dynkv/internal/audit"
	"dynkv/internal/network"
	"dynkv/internal/params"
	"dynkv/internal/ring"
	"dynkv/internal/wire"
)

// OpKind is a client operation's verb.
type OpKind int

const (
	OpCreate OpKind = iota
	OpRead
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "CREATE"
	case OpRead:
		return "READ"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

type replyRecord struct {
	role    wire.ReplicaRole
	success bool
	value   string
	found   bool
}

type transaction struct {
	id        int32
	kind      OpKind
	key       string
	value     string
	startedAt int64
	replies   []replyRecord
}

// Coordinator is the coordinator side of the store engine (spec.md §4.4):
// it funnels client operations into replica fan-out and applies the
// quorum settlement rules as REPLY/READREPLY messages arrive.
type Coordinator struct {
	self address.Address
	net  network.Network
	p    params.Params
	log  audit.Log

	nextTransID  int32
	transactions map[int32]*transaction
}

// NewCoordinator creates a Coordinator for self.
func NewCoordinator(self address.Address, net network.Network, p params.Params, log audit.Log) *Coordinator {
	return &Coordinator{
		self:         self,
		net:          net,
		p:            p,
		log:          log,
		transactions: make(map[int32]*transaction),
	}
}

// ClientCreate, ClientRead, ClientUpdate, ClientDelete implement spec.md
// §4.4's client_* entry points. Each allocates a transaction id, resolves
// replicas via the ring, and fans the request out to all three replicas
// tagged with their role. ok is false when the ring has fewer than 3
// members (spec.md §4.3) and no transaction was created.
func (c *Coordinator) ClientCreate(r *ring.Ring, key, value string, now int64) (transID int32, ok bool) {
	return c.dispatch(r, OpCreate, key, value, now)
}

func (c *Coordinator) ClientRead(r *ring.Ring, key string, now int64) (transID int32, ok bool) {
	return c.dispatch(r, OpRead, key, "", now)
}

func (c *Coordinator) ClientUpdate(r *ring.Ring, key, value string, now int64) (transID int32, ok bool) {
	return c.dispatch(r, OpUpdate, key, value, now)
}

func (c *Coordinator) ClientDelete(r *ring.Ring, key string, now int64) (transID int32, ok bool) {
	return c.dispatch(r, OpDelete, key, "", now)
}

func (c *Coordinator) dispatch(r *ring.Ring, kind OpKind, key, value string, now int64) (int32, bool) {
	replicas, ok := r.FindReplicas(key)
	if !ok {
		c.logFail(kind, true, audit.NoTransID, key)
		return 0, false
	}

	id := c.nextTransID
	c.nextTransID++

	roles := [3]wire.ReplicaRole{wire.RolePrimary, wire.RoleSecondary, wire.RoleTertiary}
	targets := replicas.Slice()
	for i, role := range roles {
		c.send(targets[i], kind, id, key, value, role)
	}

	c.transactions[id] = &transaction{id: id, kind: kind, key: key, value: value, startedAt: now}
	return id, true
}

func (c *Coordinator) send(to address.Address, kind OpKind, id int32, key, value string, role wire.ReplicaRole) {
	switch kind {
	case OpCreate:
		c.net.Send(c.self, to, wire.Encode(wire.Create{From: c.self, To: to, TransID: id, Key: key, Value: value, Role: role}))
	case OpUpdate:
		c.net.Send(c.self, to, wire.Encode(wire.Update{From: c.self, To: to, TransID: id, Key: key, Value: value, Role: role}))
	case OpDelete:
		c.net.Send(c.self, to, wire.Encode(wire.Delete{From: c.self, To: to, TransID: id, Key: key, Role: role}))
	case OpRead:
		c.net.Send(c.self, to, wire.Encode(wire.Read{From: c.self, To: to, TransID: id, Key: key, Role: role}))
	}
}

// HandleReply processes one inbound REPLY against the quorum rules of
// spec.md §4.4 for CREATE/UPDATE/DELETE transactions.
func (c *Coordinator) HandleReply(msg wire.Reply, now int64) {
	txn, ok := c.transactions[msg.TransID]
	if !ok {
		return // already settled
	}
	txn.replies = append(txn.replies, replyRecord{role: msg.Role, success: msg.Success})
	c.evaluateWrite(txn)
}

// HandleReadReply processes one inbound READREPLY against spec.md §4.4's
// byte-equal 2-of-3 READ rule.
func (c *Coordinator) HandleReadReply(msg wire.ReadReply, now int64) {
	txn, ok := c.transactions[msg.TransID]
	if !ok {
		return
	}
	txn.replies = append(txn.replies, replyRecord{role: msg.Role, value: msg.Value, found: msg.Found})
	c.evaluateRead(txn)
}

func (c *Coordinator) evaluateWrite(txn *transaction) {
	if len(txn.replies) < 2 {
		return
	}
	successes := 0
	for _, r := range txn.replies {
		if r.success {
			successes++
		}
	}
	switch {
	case successes >= 2:
		c.settleWriteSuccess(txn)
	case len(txn.replies) == 3:
		c.settleWriteFail(txn)
	}
}

func (c *Coordinator) evaluateRead(txn *transaction) {
	if len(txn.replies) < 2 {
		return
	}

	counts := make(map[string]int)
	for _, r := range txn.replies {
		if r.found {
			counts[r.value]++
		}
	}
	for value, n := range counts {
		if n >= 2 {
			c.settleReadSuccess(txn, value)
			return
		}
	}

	if len(txn.replies) == 3 {
		c.settleReadFail(txn)
	}
}

func (c *Coordinator) settleWriteSuccess(txn *transaction) {
	switch txn.kind {
	case OpCreate:
		c.log.CreateSuccess(c.self, true, txn.id, txn.key, txn.value)
	case OpUpdate:
		c.log.UpdateSuccess(c.self, true, txn.id, txn.key, txn.value)
	case OpDelete:
		c.log.DeleteSuccess(c.self, true, txn.id, txn.key)
	}
	delete(c.transactions, txn.id)
}

func (c *Coordinator) settleWriteFail(txn *transaction) {
	c.logFail(txn.kind, true, txn.id, txn.key)
	delete(c.transactions, txn.id)
}

func (c *Coordinator) settleReadSuccess(txn *transaction, value string) {
	c.log.ReadSuccess(c.self, true, txn.id, txn.key, value)
	delete(c.transactions, txn.id)
}

func (c *Coordinator) settleReadFail(txn *transaction) {
	c.log.ReadFail(c.self, true, txn.id, txn.key)
	delete(c.transactions, txn.id)
}

func (c *Coordinator) logFail(kind OpKind, isCoordinator bool, transID int32, key string) {
	switch kind {
	case OpCreate:
		c.log.CreateFail(c.self, isCoordinator, transID, key)
	case OpUpdate:
		c.log.UpdateFail(c.self, isCoordinator, transID, key)
	case OpDelete:
		c.log.DeleteFail(c.self, isCoordinator, transID, key)
	case OpRead:
		c.log.ReadFail(c.self, isCoordinator, transID, key)
	}
}

// TimeoutTransactions settles FAIL any transaction older than T_TXN
// (spec.md §4.4).
func (c *Coordinator) TimeoutTransactions(now int64) {
	for id, txn := range c.transactions {
		if now-txn.startedAt <= c.p.TTxn {
			continue
		}
		if txn.kind == OpRead {
			c.settleReadFail(txn)
		} else {
			c.settleWriteFail(txn)
		}
		delete(c.transactions, id)
	}
}

// PendingCount reports the number of in-flight transactions, for tests and
// diagnostics.
func (c *Coordinator) PendingCount() int { return len(c.transactions) }
