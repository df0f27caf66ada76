package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dynkv/internal/audit"
	"dynkv/internal/params"
)

func testParams() params.Params {
	p := params.Default()
	p.GroupSize = 10
	p.TFail = 4
	p.TRemove = 10
	p.TTxn = 5
	p.TStab = 2
	p.RingSize = 1 << 16
	return p
}

// TestBringUpTenNodesNoFailures mirrors spec.md §8 scenario 1: after bring-up
// and enough ticks for gossip convergence, every node's member list has
// exactly the 10 nodes, each appearing once.
func TestBringUpTenNodesNoFailures(t *testing.T) {
	c := NewCluster(testParams(), audit.NewLogrusLog(nil))
	c.Bootstrap(10)
	c.RunTicks(50)

	lists := c.MemberLists()
	require.Len(t, lists, 10)
	for id, members := range lists {
		require.Len(t, members, 10, "node %d should see all 10 members", id)
		seen := make(map[string]bool, len(members))
		for _, m := range members {
			require.False(t, seen[m.Canonical()], "duplicate member %s in node %d's list", m, id)
			seen[m.Canonical()] = true
		}
	}
}

// TestCRUDHappyPath mirrors spec.md §8 scenario 2.
func TestCRUDHappyPath(t *testing.T) {
	c := NewCluster(testParams(), audit.NewLogrusLog(nil))
	c.Bootstrap(10)
	c.RunTicks(50)

	_, err := c.ClientCreate(1, "k1", "v1")
	require.NoError(t, err)
	c.RunTicks(5)

	n1, ok := c.Node(1)
	require.True(t, ok)
	require.Equal(t, 0, n1.PendingTransactions(), "create should have settled")
}

// TestReadQuorumSurvivesOneFailure mirrors spec.md §8 scenario 3: after a
// successful CREATE, failing one of the three replicas still leaves a
// READ able to settle via the remaining two.
func TestReadQuorumSurvivesOneFailure(t *testing.T) {
	c := NewCluster(testParams(), audit.NewLogrusLog(nil))
	c.Bootstrap(10)
	c.RunTicks(50)

	_, err := c.ClientCreate(1, "k1", "v1")
	require.NoError(t, err)
	c.RunTicks(5)

	n1, ok := c.Node(1)
	require.True(t, ok)
	replicas, ok := n1.Ring().FindReplicas("k1")
	require.True(t, ok)

	victim := replicas.Tertiary
	for _, n := range c.LiveNodes() {
		if n.Self() == victim && n.Self().ID != 2 {
			c.Fail(n.Self().ID)
			break
		}
	}

	_, err = c.ClientRead(2, "k1")
	require.NoError(t, err)
	c.RunTicks(5)

	n2, ok := c.Node(2)
	require.True(t, ok)
	require.Equal(t, 0, n2.PendingTransactions(), "read should settle 2-of-3 despite one silent replica")
}

// TestNodeAddLoggedExactlyOnce mirrors spec.md §8 scenario 5: every
// existing node's member list picks up the newly joined node exactly once,
// with no duplication introduced by later gossip rounds.
func TestJoinedNodeListedExactlyOnce(t *testing.T) {
	c := NewCluster(testParams(), audit.NewLogrusLog(nil))
	c.Bootstrap(6)
	c.RunTicks(20)

	c.AddNode(7)
	c.RunTicks(20)

	lists := c.MemberLists()
	for id, members := range lists {
		count := 0
		for _, m := range members {
			if m.ID == 7 {
				count++
			}
		}
		require.Equal(t, 1, count, "node %d should carry node 7 exactly once", id)
	}
}

// TestDeleteConvergence mirrors spec.md §8 scenario 6.
func TestDeleteConvergence(t *testing.T) {
	c := NewCluster(testParams(), audit.NewLogrusLog(nil))
	c.Bootstrap(10)
	c.RunTicks(50)

	_, err := c.ClientCreate(1, "k1", "v1")
	require.NoError(t, err)
	c.RunTicks(5)

	_, err = c.ClientDelete(3, "k1")
	require.NoError(t, err)
	c.RunTicks(5)

	n3, ok := c.Node(3)
	require.True(t, ok)
	require.Equal(t, 0, n3.PendingTransactions())
}

func TestScenarioRunAppliesEventsAtTheScheduledTick(t *testing.T) {
	joinID := uint32(7)
	s := Scenario{
		Nodes: 6,
		Ticks: 40,
		Events: []Event{
			{AtTick: 10, Join: &joinID},
			{AtTick: 20, Create: &KeyValueOp{From: 1, Key: "k1", Value: "v1"}},
		},
	}
	c := Run(s, testParams(), audit.NewLogrusLog(nil))

	_, ok := c.Node(7)
	require.True(t, ok, "joined node should be live")

	n1, ok := c.Node(1)
	require.True(t, ok)
	require.Equal(t, 0, n1.PendingTransactions())
}

func TestLoadScenarioRejectsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ticks: 10\n"), 0o644)) // no nodes

	_, err := LoadScenario(path)
	require.Error(t, err)
}
