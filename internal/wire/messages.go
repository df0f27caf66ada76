package wire

import (
	"bytes"
	"fmt"
)

// Encode serializes any Message to bytes suitable for network.Network.Send.
// GOSSIP uses the fixed-width frame of spec.md §4.2; every other kind uses a
// simple length-prefixed encoding since the spec only pins GOSSIP to a byte
// layout.
func Encode(m Message) []byte {
	switch v := m.(type) {
	case Gossip:
		return EncodeGossip(v)
	case JoinReq:
		buf := newBuf(KindJoinReq)
		writeAddr(buf, v.From)
		writeInt64(buf, v.Heartbeat)
		writeInt64(buf, v.Timestamp)
		return buf.Bytes()
	case JoinRep:
		buf := newBuf(KindJoinRep)
		writeAddr(buf, v.From)
		writeInt64(buf, v.Heartbeat)
		writeInt64(buf, v.Timestamp)
		return buf.Bytes()
	case Create:
		buf := newBuf(KindCreate)
		writeAddr(buf, v.From)
		writeAddr(buf, v.To)
		writeInt64(buf, int64(v.TransID))
		buf.WriteByte(byte(v.Role))
		writeString(buf, v.Key)
		writeString(buf, v.Value)
		return buf.Bytes()
	case Update:
		buf := newBuf(KindUpdate)
		writeAddr(buf, v.From)
		writeAddr(buf, v.To)
		writeInt64(buf, int64(v.TransID))
		buf.WriteByte(byte(v.Role))
		writeString(buf, v.Key)
		writeString(buf, v.Value)
		return buf.Bytes()
	case Read:
		buf := newBuf(KindRead)
		writeAddr(buf, v.From)
		writeAddr(buf, v.To)
		writeInt64(buf, int64(v.TransID))
		buf.WriteByte(byte(v.Role))
		writeString(buf, v.Key)
		return buf.Bytes()
	case Delete:
		buf := newBuf(KindDelete)
		writeAddr(buf, v.From)
		writeAddr(buf, v.To)
		writeInt64(buf, int64(v.TransID))
		buf.WriteByte(byte(v.Role))
		writeString(buf, v.Key)
		return buf.Bytes()
	case Reply:
		buf := newBuf(KindReply)
		writeAddr(buf, v.From)
		writeAddr(buf, v.To)
		writeInt64(buf, int64(v.TransID))
		buf.WriteByte(byte(v.Role))
		writeBool(buf, v.Success)
		return buf.Bytes()
	case ReadReply:
		buf := newBuf(KindReadReply)
		writeAddr(buf, v.From)
		writeAddr(buf, v.To)
		writeInt64(buf, int64(v.TransID))
		buf.WriteByte(byte(v.Role))
		writeBool(buf, v.Found)
		writeString(buf, v.Value)
		return buf.Bytes()
	default:
		panic(fmt.Sprintf("wire: unencodable message type %T", m))
	}
}

// Decode is the inverse of Encode, dispatching on the leading kind byte.
func Decode(b []byte) (Message, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("wire: empty frame")
	}
	kind := Kind(b[0])
	switch kind {
	case KindGossip:
		return DecodeGossip(b)
	case KindJoinReq:
		r := bytes.NewReader(b[1:])
		from := readAddr(r)
		hb := readInt64(r)
		ts := readInt64(r)
		return JoinReq{From: from, Heartbeat: hb, Timestamp: ts}, nil
	case KindJoinRep:
		r := bytes.NewReader(b[1:])
		from := readAddr(r)
		hb := readInt64(r)
		ts := readInt64(r)
		return JoinRep{From: from, Heartbeat: hb, Timestamp: ts}, nil
	case KindCreate:
		r := bytes.NewReader(b[1:])
		from, to := readAddr(r), readAddr(r)
		transID := int32(readInt64(r))
		role := readRole(r)
		key := readString(r)
		value := readString(r)
		return Create{From: from, To: to, TransID: transID, Role: role, Key: key, Value: value}, nil
	case KindUpdate:
		r := bytes.NewReader(b[1:])
		from, to := readAddr(r), readAddr(r)
		transID := int32(readInt64(r))
		role := readRole(r)
		key := readString(r)
		value := readString(r)
		return Update{From: from, To: to, TransID: transID, Role: role, Key: key, Value: value}, nil
	case KindRead:
		r := bytes.NewReader(b[1:])
		from, to := readAddr(r), readAddr(r)
		transID := int32(readInt64(r))
		role := readRole(r)
		key := readString(r)
		return Read{From: from, To: to, TransID: transID, Role: role, Key: key}, nil
	case KindDelete:
		r := bytes.NewReader(b[1:])
		from, to := readAddr(r), readAddr(r)
		transID := int32(readInt64(r))
		role := readRole(r)
		key := readString(r)
		return Delete{From: from, To: to, TransID: transID, Role: role, Key: key}, nil
	case KindReply:
		r := bytes.NewReader(b[1:])
		from, to := readAddr(r), readAddr(r)
		transID := int32(readInt64(r))
		role := readRole(r)
		success := readBool(r)
		return Reply{From: from, To: to, TransID: transID, Role: role, Success: success}, nil
	case KindReadReply:
		r := bytes.NewReader(b[1:])
		from, to := readAddr(r), readAddr(r)
		transID := int32(readInt64(r))
		role := readRole(r)
		found := readBool(r)
		value := readString(r)
		return ReadReply{From: from, To: to, TransID: transID, Role: role, Found: found, Value: value}, nil
	default:
		return nil, fmt.Errorf("wire: unknown kind %d", b[0])
	}
}

func newBuf(k Kind) *bytes.Buffer {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(k))
	return buf
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	n := readUint32(r)
	b := make([]byte, n)
	r.Read(b)
	return string(b)
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) bool {
	b, _ := r.ReadByte()
	return b != 0
}

func readRole(r *bytes.Reader) ReplicaRole {
	b, _ := r.ReadByte()
	return ReplicaRole(b)
}
