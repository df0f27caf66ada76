// Package wire defines the message types exchanged between nodes and the
// fixed-width binary framing for GOSSIP payloads described in spec.md §4.2.
//
// Spec.md's Design Notes call out the original's "duck-typed" single
// struct with an overloaded type discriminant as something to move away
// from; here each message kind is its own Go type implementing the Message
// interface, a tagged variant rather than one struct with unused fields.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"dynkv/internal/address"
)

// Kind tags a Message's wire type.
type Kind uint8

const (
	KindJoinReq Kind = iota + 1
	KindJoinRep
	KindGossip
	KindCreate
	KindRead
	KindUpdate
	KindDelete
	KindReply
	KindReadReply
)

func (k Kind) String() string {
	switch k {
	case KindJoinReq:
		return "JOINREQ"
	case KindJoinRep:
		return "JOINREP"
	case KindGossip:
		return "GOSSIP"
	case KindCreate:
		return "CREATE"
	case KindRead:
		return "READ"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindReply:
		return "REPLY"
	case KindReadReply:
		return "READREPLY"
	default:
		return "UNKNOWN"
	}
}

// Message is implemented by every wire-level message type.
type Message interface {
	Kind() Kind
}

// JoinReq is sent by a node that is not the introducer (spec.md §4.1).
type JoinReq struct {
	From      address.Address
	Heartbeat int64
	Timestamp int64
}

func (JoinReq) Kind() Kind { return KindJoinReq }

// JoinRep replies to a JoinReq and bootstraps the requester into the group.
type JoinRep struct {
	From      address.Address
	Heartbeat int64
	Timestamp int64
}

func (JoinRep) Kind() Kind { return KindJoinRep }

// GossipEntry is one member-list row carried in a GOSSIP payload.
type GossipEntry struct {
	Addr      address.Address
	Heartbeat int64
}

// Gossip disseminates the sender's member list, with an exclusion set that
// damps amplification within one propagation wave (spec.md §4.1).
type Gossip struct {
	From      address.Address
	Timestamp int64
	Entries   []GossipEntry
	Excluded  []address.Address
}

func (Gossip) Kind() Kind { return KindGossip }

// ReplicaRole records what a replica believes it is for a given key
// (spec.md §3).
type ReplicaRole uint8

const (
	RolePrimary ReplicaRole = iota
	RoleSecondary
	RoleTertiary
)

func (r ReplicaRole) String() string {
	switch r {
	case RolePrimary:
		return "PRIMARY"
	case RoleSecondary:
		return "SECONDARY"
	case RoleTertiary:
		return "TERTIARY"
	default:
		return "UNKNOWN"
	}
}

// InternalTransID marks a stabilization message: no reply, no success/fail
// log (spec.md §4.6).
const InternalTransID int32 = -1

// Create requests ht.create(key, Entry(value, now, role)) at the replica.
type Create struct {
	From    address.Address
	To      address.Address
	TransID int32
	Key     string
	Value   string
	Role    ReplicaRole
}

func (Create) Kind() Kind { return KindCreate }

// Read requests ht.read(key) at the replica.
type Read struct {
	From    address.Address
	To      address.Address
	TransID int32
	Key     string
	Role    ReplicaRole
}

func (Read) Kind() Kind { return KindRead }

// Update requests ht.update(key, Entry(value, now, role)) at the replica.
type Update struct {
	From    address.Address
	To      address.Address
	TransID int32
	Key     string
	Value   string
	Role    ReplicaRole
}

func (Update) Kind() Kind { return KindUpdate }

// Delete requests ht.delete(key) at the replica.
type Delete struct {
	From    address.Address
	To      address.Address
	TransID int32
	Key     string
	Role    ReplicaRole
}

func (Delete) Kind() Kind { return KindDelete }

// Reply answers CREATE/UPDATE/DELETE.
type Reply struct {
	From    address.Address
	To      address.Address
	TransID int32
	Role    ReplicaRole
	Success bool
}

func (Reply) Kind() Kind { return KindReply }

// ReadReply answers READ. An empty, not-found Value means "key not present".
type ReadReply struct {
	From    address.Address
	To      address.Address
	TransID int32
	Role    ReplicaRole
	Value   string
	Found   bool
}

func (ReadReply) Kind() Kind { return KindReadReply }

// gossipEntrySize is the fixed per-entry frame size of spec.md §4.2:
// a 6-byte address, an 8-byte heartbeat, and a 1-byte separator.
const gossipEntrySize = 6 + 8 + 1

// gossipHeaderSize is message type (1) + sender address (6) + timestamp (8)
// + data_size (4) + sent_size (4).
const gossipHeaderSize = 1 + 6 + 8 + 4 + 4

// EncodeGossip packs a Gossip message into the fixed-width frame of
// spec.md §4.2: header, then data_size bytes of member entries, then
// sent_size bytes of exclusion entries, then one trailing separator byte
// kept for backward compatibility but not semantic.
func EncodeGossip(g Gossip) []byte {
	dataSize := len(g.Entries) * gossipEntrySize
	sentSize := len(g.Excluded) * gossipEntrySize

	buf := bytes.NewBuffer(make([]byte, 0, gossipHeaderSize+dataSize+sentSize+1))

	buf.WriteByte(byte(KindGossip))
	writeAddr(buf, g.From)
	writeInt64(buf, g.Timestamp)
	writeUint32(buf, uint32(dataSize))
	writeUint32(buf, uint32(sentSize))

	for _, e := range g.Entries {
		writeAddr(buf, e.Addr)
		writeInt64(buf, e.Heartbeat)
		buf.WriteByte(0) // separator, not semantic
	}
	for _, a := range g.Excluded {
		writeAddr(buf, a)
		writeInt64(buf, 0)
		buf.WriteByte(0)
	}
	buf.WriteByte(0) // terminal separator

	return buf.Bytes()
}

// DecodeGossip unpacks a frame produced by EncodeGossip. It rejects frames
// whose declared data_size/sent_size is not a multiple of the per-entry
// frame size (spec.md Design Notes §9).
func DecodeGossip(b []byte) (Gossip, error) {
	if len(b) < gossipHeaderSize {
		return Gossip{}, fmt.Errorf("wire: gossip frame too short: %d bytes", len(b))
	}
	if Kind(b[0]) != KindGossip {
		return Gossip{}, fmt.Errorf("wire: not a gossip frame (kind=%d)", b[0])
	}

	r := bytes.NewReader(b[1:])
	from := readAddr(r)
	timestamp := readInt64(r)
	dataSize := readUint32(r)
	sentSize := readUint32(r)

	if dataSize%gossipEntrySize != 0 {
		return Gossip{}, fmt.Errorf("wire: data_size %d not a multiple of frame size %d", dataSize, gossipEntrySize)
	}
	if sentSize%gossipEntrySize != 0 {
		return Gossip{}, fmt.Errorf("wire: sent_size %d not a multiple of frame size %d", sentSize, gossipEntrySize)
	}

	wantTotal := gossipHeaderSize + int(dataSize) + int(sentSize) + 1
	if len(b) != wantTotal {
		return Gossip{}, fmt.Errorf("wire: frame length %d does not match header-declared total %d", len(b), wantTotal)
	}

	// An empty section decodes to a nil slice, so a message built without
	// entries or exclusions round-trips unchanged.
	var entries []GossipEntry
	for i := uint32(0); i < dataSize/gossipEntrySize; i++ {
		addr := readAddr(r)
		hb := readInt64(r)
		r.ReadByte() // separator
		entries = append(entries, GossipEntry{Addr: addr, Heartbeat: hb})
	}

	var excluded []address.Address
	for i := uint32(0); i < sentSize/gossipEntrySize; i++ {
		addr := readAddr(r)
		readInt64(r) // heartbeat field unused for exclusion entries
		r.ReadByte()  // separator
		excluded = append(excluded, addr)
	}

	return Gossip{
		From:      from,
		Timestamp: timestamp,
		Entries:   entries,
		Excluded:  excluded,
	}, nil
}

func writeAddr(buf *bytes.Buffer, a address.Address) {
	writeUint32(buf, a.ID)
	writeUint16(buf, a.Port)
}

func readAddr(r *bytes.Reader) address.Address {
	id := readUint32(r)
	port := readUint16(r)
	return address.New(id, port)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func readUint16(r *bytes.Reader) uint16 {
	var tmp [2]byte
	r.Read(tmp[:])
	return binary.BigEndian.Uint16(tmp[:])
}

func readUint32(r *bytes.Reader) uint32 {
	var tmp [4]byte
	r.Read(tmp[:])
	return binary.BigEndian.Uint32(tmp[:])
}

func readInt64(r *bytes.Reader) int64 {
	var tmp [8]byte
	r.Read(tmp[:])
	return int64(binary.BigEndian.Uint64(tmp[:]))
}
