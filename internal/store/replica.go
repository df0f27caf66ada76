package store

import (
	"dynkv/internal/address"
	"dynkv/internal/audit"
	"dynkv/internal/network"
	"dynkv/internal/wire"
)

// Replica is the replica side of the store engine (spec.md §4.5): it
// dispatches inbound CREATE/READ/UPDATE/DELETE by type against the local
// HashTable and answers with REPLY/READREPLY — except messages tagged
// trans_id = -1 (internal, stabilization), which produce no reply and no
// success/fail log.
type Replica struct {
	self  address.Address
	net   network.Network
	log   audit.Log
	table HashTable
}

// NewReplica creates a Replica backed by table.
func NewReplica(self address.Address, net network.Network, log audit.Log, table HashTable) *Replica {
	return &Replica{self: self, net: net, log: log, table: table}
}

// Deliver dispatches one inbound store message.
func (r *Replica) Deliver(msg wire.Message, now int64) {
	switch v := msg.(type) {
	case wire.Create:
		r.handleCreate(v, now)
	case wire.Update:
		r.handleUpdate(v, now)
	case wire.Delete:
		r.handleDelete(v)
	case wire.Read:
		r.handleRead(v)
	}
}

func (r *Replica) internal(transID int32) bool { return transID == wire.InternalTransID }

func (r *Replica) handleCreate(v wire.Create, now int64) {
	err := r.table.Create(v.Key, Entry{Value: v.Value, Timestamp: now, ReplicaRole: v.Role})
	success := err == nil
	if r.internal(v.TransID) {
		return
	}
	r.net.Send(r.self, v.From, wire.Encode(wire.Reply{From: r.self, To: v.From, TransID: v.TransID, Role: v.Role, Success: success}))
	if success {
		r.log.CreateSuccess(r.self, false, v.TransID, v.Key, v.Value)
	} else {
		r.log.CreateFail(r.self, false, v.TransID, v.Key)
	}
}

func (r *Replica) handleUpdate(v wire.Update, now int64) {
	err := r.table.Update(v.Key, Entry{Value: v.Value, Timestamp: now, ReplicaRole: v.Role})
	success := err == nil
	if r.internal(v.TransID) {
		return
	}
	r.net.Send(r.self, v.From, wire.Encode(wire.Reply{From: r.self, To: v.From, TransID: v.TransID, Role: v.Role, Success: success}))
	if success {
		r.log.UpdateSuccess(r.self, false, v.TransID, v.Key, v.Value)
	} else {
		r.log.UpdateFail(r.self, false, v.TransID, v.Key)
	}
}

func (r *Replica) handleDelete(v wire.Delete) {
	err := r.table.Delete(v.Key)
	success := err == nil
	if r.internal(v.TransID) {
		return
	}
	r.net.Send(r.self, v.From, wire.Encode(wire.Reply{From: r.self, To: v.From, TransID: v.TransID, Role: v.Role, Success: success}))
	if success {
		r.log.DeleteSuccess(r.self, false, v.TransID, v.Key)
	} else {
		r.log.DeleteFail(r.self, false, v.TransID, v.Key)
	}
}

func (r *Replica) handleRead(v wire.Read) {
	entry, found := r.table.Read(v.Key)
	if r.internal(v.TransID) {
		return
	}
	value := ""
	if found {
		value = entry.Value
	}
	r.net.Send(r.self, v.From, wire.Encode(wire.ReadReply{From: r.self, To: v.From, TransID: v.TransID, Role: v.Role, Value: value, Found: found}))
}
