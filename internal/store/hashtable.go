// Package store implements the Layer 2 store engine of spec.md §4.4-§4.6:
// the per-node HashTable, the coordinator-side quorum transaction state
// machine, the replica-side message dispatch table, and the self
// stabilization protocol that keeps exactly three replicas per key as
// the ring changes.
package store

import (
	"fmt"

	"dynkv/internal/wire"
)

// Entry is one stored value (spec.md §3): the value, the simulation time
// it was written, and which replica role this node believes it plays for
// the key — stabilization may rewrite the role without rewriting value or
// timestamp.
type Entry struct {
	Value       string
	Timestamp   int64
	ReplicaRole wire.ReplicaRole
}

// HashTable is the per-node key -> Entry map. create rejects a
// pre-existing key; update requires the key to already exist (spec.md §3).
type HashTable interface {
	Create(key string, entry Entry) error
	Read(key string) (Entry, bool)
	Update(key string, entry Entry) error
	Delete(key string) error
	Iterate(fn func(key string, entry Entry))
}

// InMemoryHashTable is the concrete HashTable used by every node in the
// simulation.
type InMemoryHashTable struct {
	data map[string]Entry
}

// NewInMemoryHashTable creates an empty table.
func NewInMemoryHashTable() *InMemoryHashTable {
	return &InMemoryHashTable{data: make(map[string]Entry)}
}

func (h *InMemoryHashTable) Create(key string, entry Entry) error {
	if _, exists := h.data[key]; exists {
		return fmt.Errorf("store: key %q already exists", key)
	}
	h.data[key] = entry
	return nil
}

func (h *InMemoryHashTable) Read(key string) (Entry, bool) {
	e, ok := h.data[key]
	return e, ok
}

func (h *InMemoryHashTable) Update(key string, entry Entry) error {
	if _, exists := h.data[key]; !exists {
		return fmt.Errorf("store: key %q does not exist", key)
	}
	h.data[key] = entry
	return nil
}

func (h *InMemoryHashTable) Delete(key string) error {
	if _, exists := h.data[key]; !exists {
		return fmt.Errorf("store: key %q does not exist", key)
	}
	delete(h.data, key)
	return nil
}

func (h *InMemoryHashTable) Iterate(fn func(key string, entry Entry)) {
	for k, e := range h.data {
		fn(k, e)
	}
}
