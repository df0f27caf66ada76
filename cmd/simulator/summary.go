package main

import (
	"github.com/sirupsen/logrus"

	"dynkv/internal/address"
	"dynkv/internal/audit"
)

// countingLog wraps a Log, tallying coordinator-side success/fail counts
// for the end-of-run summary while still emitting the real audit trail
// through the wrapped logger.
type countingLog struct {
	audit.Log
	nodeAdds    int
	nodeRemoves int
	successes   int
	fails       int
}

func newCountingLog(logger *logrus.Logger) *countingLog {
	return &countingLog{Log: audit.NewLogrusLog(logger)}
}

func (c *countingLog) NodeAdd(self, joined address.Address) {
	c.nodeAdds++
	c.Log.NodeAdd(self, joined)
}

func (c *countingLog) NodeRemove(self, left address.Address) {
	c.nodeRemoves++
	c.Log.NodeRemove(self, left)
}

func (c *countingLog) CreateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	c.tally(isCoordinator, true)
	c.Log.CreateSuccess(self, isCoordinator, transID, key, value)
}

func (c *countingLog) CreateFail(self address.Address, isCoordinator bool, transID int32, key string) {
	c.tally(isCoordinator, false)
	c.Log.CreateFail(self, isCoordinator, transID, key)
}

func (c *countingLog) UpdateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	c.tally(isCoordinator, true)
	c.Log.UpdateSuccess(self, isCoordinator, transID, key, value)
}

func (c *countingLog) UpdateFail(self address.Address, isCoordinator bool, transID int32, key string) {
	c.tally(isCoordinator, false)
	c.Log.UpdateFail(self, isCoordinator, transID, key)
}

func (c *countingLog) DeleteSuccess(self address.Address, isCoordinator bool, transID int32, key string) {
	c.tally(isCoordinator, true)
	c.Log.DeleteSuccess(self, isCoordinator, transID, key)
}

func (c *countingLog) DeleteFail(self address.Address, isCoordinator bool, transID int32, key string) {
	c.tally(isCoordinator, false)
	c.Log.DeleteFail(self, isCoordinator, transID, key)
}

func (c *countingLog) ReadSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	c.tally(isCoordinator, true)
	c.Log.ReadSuccess(self, isCoordinator, transID, key, value)
}

func (c *countingLog) ReadFail(self address.Address, isCoordinator bool, transID int32, key string) {
	c.tally(isCoordinator, false)
	c.Log.ReadFail(self, isCoordinator, transID, key)
}

// tally only counts coordinator-side outcomes (spec.md §8 P6's "no
// *_success without..." language is about the coordinator's own log line,
// not the replica echoes).
func (c *countingLog) tally(isCoordinator, success bool) {
	if !isCoordinator {
		return
	}
	if success {
		c.successes++
	} else {
		c.fails++
	}
}
