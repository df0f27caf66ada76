package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dynkv/internal/address"
)

func TestEncodeDecodeRoundTripsEveryKind(t *testing.T) {
	from := address.New(1, 0)
	to := address.New(2, 0)

	cases := []Message{
		JoinReq{From: from, Heartbeat: 5, Timestamp: 10},
		JoinRep{From: from, Heartbeat: 6, Timestamp: 11},
		Gossip{From: from, Timestamp: 3, Entries: []GossipEntry{{Addr: to, Heartbeat: 2}}},
		Create{From: from, To: to, TransID: 1, Key: "k", Value: "v", Role: RolePrimary},
		Update{From: from, To: to, TransID: 2, Key: "k", Value: "v2", Role: RoleSecondary},
		Read{From: from, To: to, TransID: 3, Key: "k"},
		Delete{From: from, To: to, TransID: 4, Key: "k"},
		Reply{From: from, To: to, TransID: 5, Role: RoleTertiary, Success: true},
		ReadReply{From: from, To: to, TransID: 6, Role: RolePrimary, Value: "v3", Found: true},
		Create{From: from, To: to, TransID: InternalTransID, Key: "k", Value: "v", Role: RolePrimary},
	}

	for _, original := range cases {
		encoded := Encode(original)
		require.NotEmpty(t, encoded)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, original, decoded)
		require.Equal(t, original.Kind(), decoded.Kind())
	}
}

func TestDecodeRejectsEmptyFrame(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	require.Error(t, err)
}
