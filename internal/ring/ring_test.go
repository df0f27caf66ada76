package ring

import (
	"testing"

	"dynkv/internal/address"
	"dynkv/internal/wire"
)

func TestFindReplicasRequiresThreeMembers(t *testing.T) {
	r := New([]address.Address{address.New(1, 0), address.New(2, 0)}, 1024)

	_, ok := r.FindReplicas("k")
	if ok {
		t.Fatal("expected FindReplicas to fail with fewer than 3 members")
	}
}

func TestFindReplicasWrapsAroundRing(t *testing.T) {
	members := []address.Address{address.New(1, 0), address.New(2, 0), address.New(3, 0), address.New(4, 0)}
	r := New(members, 97)

	// Hash every member so we know which one sits last on the ring.
	nodes := r.Nodes()
	last := nodes[len(nodes)-1]

	// A key hashing just past the last node's hash_code must wrap to ring[0].
	rs, ok := r.FindReplicas(keyHashingNear(t, last.HashCode+1, 97))
	if !ok {
		t.Fatal("expected FindReplicas to succeed")
	}
	if rs.Primary != nodes[0].Addr {
		t.Errorf("expected wraparound primary %v, got %v", nodes[0].Addr, rs.Primary)
	}
}

func TestFindReplicasAreThreeDistinctSuccessors(t *testing.T) {
	members := []address.Address{
		address.New(1, 0), address.New(2, 0), address.New(3, 0),
		address.New(4, 0), address.New(5, 0),
	}
	r := New(members, 65536)

	for _, key := range []string{"a", "b", "c", "user:123", "another-key"} {
		rs, ok := r.FindReplicas(key)
		if !ok {
			t.Fatalf("FindReplicas(%q) unexpectedly failed", key)
		}
		if rs.Primary == rs.Secondary || rs.Secondary == rs.Tertiary || rs.Primary == rs.Tertiary {
			t.Errorf("FindReplicas(%q) returned non-distinct replicas: %+v", key, rs)
		}
	}
}

func TestFindReplicasIsDeterministic(t *testing.T) {
	members := []address.Address{address.New(1, 0), address.New(2, 0), address.New(3, 0), address.New(4, 0)}
	r1 := New(members, 65536)
	r2 := New(members, 65536)

	for _, key := range []string{"key1", "key2", "key3"} {
		a, _ := r1.FindReplicas(key)
		b, _ := r2.FindReplicas(key)
		if a != b {
			t.Errorf("FindReplicas(%q) not deterministic: %+v vs %+v", key, a, b)
		}
	}
}

func TestSuccessorsOfWrapsAroundRing(t *testing.T) {
	members := []address.Address{address.New(1, 0), address.New(2, 0), address.New(3, 0), address.New(4, 0)}
	r := New(members, 97)
	nodes := r.Nodes()
	last := nodes[len(nodes)-1].Addr

	got := r.SuccessorsOf(last, 2)
	want := []address.Address{nodes[0].Addr, nodes[1].Addr}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("SuccessorsOf(last, 2) = %v, want %v", got, want)
	}
}

func TestPredecessorsOfWrapsAroundRing(t *testing.T) {
	members := []address.Address{address.New(1, 0), address.New(2, 0), address.New(3, 0), address.New(4, 0)}
	r := New(members, 97)
	nodes := r.Nodes()
	first := nodes[0].Addr

	got := r.PredecessorsOf(first, 2)
	want := []address.Address{nodes[len(nodes)-1].Addr, nodes[len(nodes)-2].Addr}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("PredecessorsOf(first, 2) = %v, want %v", got, want)
	}
}

func TestSuccessorsAndPredecessorsOfReturnNilForNonMember(t *testing.T) {
	members := []address.Address{address.New(1, 0), address.New(2, 0), address.New(3, 0)}
	r := New(members, 1024)
	stranger := address.New(99, 0)

	if got := r.SuccessorsOf(stranger, 2); got != nil {
		t.Errorf("SuccessorsOf(non-member) = %v, want nil", got)
	}
	if got := r.PredecessorsOf(stranger, 2); got != nil {
		t.Errorf("PredecessorsOf(non-member) = %v, want nil", got)
	}
}

func TestReplicasByRole(t *testing.T) {
	rs := Replicas{Primary: address.New(1, 0), Secondary: address.New(2, 0), Tertiary: address.New(3, 0)}

	if rs.ByRole(wire.RolePrimary) != rs.Primary {
		t.Error("ByRole(primary) mismatch")
	}
	if rs.ByRole(wire.RoleSecondary) != rs.Secondary {
		t.Error("ByRole(secondary) mismatch")
	}
	if rs.ByRole(wire.RoleTertiary) != rs.Tertiary {
		t.Error("ByRole(tertiary) mismatch")
	}
}

func TestNodesAreSortedByHashThenAddress(t *testing.T) {
	members := []address.Address{address.New(5, 0), address.New(1, 0), address.New(3, 0)}
	r := New(members, 1<<20)

	nodes := r.Nodes()
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].HashCode > nodes[i].HashCode {
			t.Fatalf("nodes not sorted by hash_code: %+v", nodes)
		}
	}
}

// keyHashingNear brute-forces a short key whose hash mod size lands exactly
// on target, so ring wraparound can be tested deterministically.
func keyHashingNear(t *testing.T, target uint32, size uint32) string {
	t.Helper()
	for i := 0; i < 100000; i++ {
		k := address.New(uint32(i), 0).Canonical()
		if HashKey(k, size) == target%size {
			return k
		}
	}
	t.Fatal("could not find a key hashing to the target slot")
	return ""
}
