// Package params is the parameter/configuration adapter of spec.md §6: it
// owns the group size, the timing constants, and current_time() is left to
// internal/clock, but everything fixed at cluster bring-up lives here.
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Params holds the timing and sizing constants shared by every node in a
// run. Fields are exported so a scenario file can set them directly via
// yaml.v3 unmarshaling.
type Params struct {
	// EN_GPSZ is the expected cluster group size, used only to size
	// GOSSIP_FANOUT (spec.md §4.1).
	GroupSize int `yaml:"group_size"`

	// RingSize is the modulus of the consistent hash ring (spec.md §4.3).
	RingSize uint32 `yaml:"ring_size"`

	// TFail is the suspicion threshold, in ticks: a member this long
	// without a refresh is no longer gossiped *to* (spec.md §4.1).
	TFail int64 `yaml:"t_fail"`

	// TRemove is the eviction threshold, in ticks (spec.md §3, §4.1).
	TRemove int64 `yaml:"t_remove"`

	// TTxn is the store transaction timeout, in ticks (spec.md §3).
	TTxn int64 `yaml:"t_txn"`

	// TStab is the grace window, in ticks, a node waits after a ring
	// change before re-scanning all keys for stabilization — resolves
	// spec.md's Open Question on stabilization cadence using the
	// original MP2 source's fixed post-change delay (SPEC_FULL.md §5).
	TStab int64 `yaml:"t_stab"`

	// Seed drives every node's gossip-fanout PRNG (spec.md Design Notes
	// §9.2: one seeded PRNG per node, not srand-in-the-loop).
	Seed int64 `yaml:"seed"`
}

// Default returns the constants used when a scenario file doesn't
// override them.
func Default() Params {
	return Params{
		GroupSize: 10,
		RingSize:  1 << 16,
		TFail:     4,
		TRemove:   10,
		TTxn:      5,
		TStab:     8,
		Seed:      1,
	}
}

// Validate checks the invariants spec.md requires of the constants
// (T_FAIL < T_REMOVE, positive sizes).
func (p Params) Validate() error {
	if p.GroupSize <= 0 {
		return fmt.Errorf("group_size must be positive, got %d", p.GroupSize)
	}
	if p.RingSize == 0 {
		return fmt.Errorf("ring_size must be positive")
	}
	if p.TFail >= p.TRemove {
		return fmt.Errorf("t_fail (%d) must be less than t_remove (%d)", p.TFail, p.TRemove)
	}
	if p.TTxn <= 0 {
		return fmt.Errorf("t_txn must be positive, got %d", p.TTxn)
	}
	return nil
}

// GossipFanout computes GOSSIP_FANOUT = max(1, group_size/3) per spec.md §4.1.
func (p Params) GossipFanout() int {
	fanout := p.GroupSize / 3
	if fanout < 1 {
		fanout = 1
	}
	return fanout
}

// Load reads a YAML scenario file and overlays it onto Default().
func Load(path string) (Params, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("reading params file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing params file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid params in %s: %w", path, err)
	}

	return p, nil
}
