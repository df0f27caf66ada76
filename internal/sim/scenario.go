package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dynkv/internal/audit"
	"dynkv/internal/params"
)

// Scenario is a declarative cluster script: how many nodes to bring up,
// how many ticks to run, and what to inject along the way (spec.md §6's
// "scenario script" consumed by the CLI/driver).
type Scenario struct {
	Nodes  int     `yaml:"nodes"`
	Ticks  int     `yaml:"ticks"`
	Events []Event `yaml:"events"`
}

// Event is one scripted action, scheduled to run immediately before the
// tick numbered AtTick. At most one of the optional fields should be set;
// if more than one is, all of them run, in the field order below.
type Event struct {
	AtTick int64 `yaml:"at_tick"`

	Join *uint32 `yaml:"join,omitempty"` // bring up a new node with this id
	Fail *uint32 `yaml:"fail,omitempty"` // crash the node with this id

	Create *KeyValueOp `yaml:"create,omitempty"`
	Read   *KeyOp      `yaml:"read,omitempty"`
	Update *KeyValueOp `yaml:"update,omitempty"`
	Delete *KeyOp      `yaml:"delete,omitempty"`
}

// KeyValueOp is a scripted CREATE/UPDATE.
type KeyValueOp struct {
	From  uint32 `yaml:"from"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// KeyOp is a scripted READ/DELETE.
type KeyOp struct {
	From uint32 `yaml:"from"`
	Key  string `yaml:"key"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}
	if s.Nodes <= 0 {
		return Scenario{}, fmt.Errorf("scenario %s: nodes must be positive", path)
	}
	if s.Ticks <= 0 {
		return Scenario{}, fmt.Errorf("scenario %s: ticks must be positive", path)
	}
	return s, nil
}

// Run executes a scenario against a fresh cluster: bring up s.Nodes nodes
// with ascending ids on port 0, then run s.Ticks ticks, applying each
// Event immediately before the tick numbered Event.AtTick.
func Run(s Scenario, p params.Params, log audit.Log) *Cluster {
	c := NewCluster(p, log)
	c.Bootstrap(s.Nodes)

	pending := make(map[int64][]Event, len(s.Events))
	for _, e := range s.Events {
		pending[e.AtTick] = append(pending[e.AtTick], e)
	}

	for tick := int64(1); tick <= int64(s.Ticks); tick++ {
		for _, e := range pending[tick] {
			c.applyEvent(e)
		}
		c.Tick()
	}
	return c
}

func (c *Cluster) applyEvent(e Event) {
	if e.Join != nil {
		c.AddNode(*e.Join)
	}
	if e.Fail != nil {
		c.Fail(*e.Fail)
	}
	if e.Create != nil {
		c.ClientCreate(e.Create.From, e.Create.Key, e.Create.Value)
	}
	if e.Read != nil {
		c.ClientRead(e.Read.From, e.Read.Key)
	}
	if e.Update != nil {
		c.ClientUpdate(e.Update.From, e.Update.Key, e.Update.Value)
	}
	if e.Delete != nil {
		c.ClientDelete(e.Delete.From, e.Delete.Key)
	}
}
