// Package audit is the log-sink collaborator of spec.md §6: it records the
// well-defined per-event audit trail consumed by the grader. The protocol
// core only ever talks to the Log interface; Logrus is the concrete,
// structured-logging implementation wired into every node.
package audit

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dynkv/internal/address"
)

// Log is the narrow event surface spec.md §6 requires. Every event records
// the node doing the logging (self), whether it is acting as coordinator
// or replica, and trans_id (ignored — pass audit.NoTransID — for internal
// stabilization messages).
type Log interface {
	NodeAdd(self, joined address.Address)
	NodeRemove(self, left address.Address)

	CreateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string)
	CreateFail(self address.Address, isCoordinator bool, transID int32, key string)
	UpdateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string)
	UpdateFail(self address.Address, isCoordinator bool, transID int32, key string)
	DeleteSuccess(self address.Address, isCoordinator bool, transID int32, key string)
	DeleteFail(self address.Address, isCoordinator bool, transID int32, key string)
	ReadSuccess(self address.Address, isCoordinator bool, transID int32, key, value string)
	ReadFail(self address.Address, isCoordinator bool, transID int32, key string)
}

// NoTransID is passed for store events with no associated transaction:
// internal stabilization messages, and client operations that failed before
// a transaction id was allocated. NodeAdd and NodeRemove take no trans_id.
const NoTransID int32 = -1

// LogrusLog implements Log on top of github.com/sirupsen/logrus, the
// structured-logging library carried over from the teacher's largest
// sibling in the retrieval pack (moby-moby).
type LogrusLog struct {
	logger *logrus.Logger
}

// NewLogrusLog creates a Log backed by a logrus.Logger. Pass nil to use
// logrus's standard logger.
func NewLogrusLog(logger *logrus.Logger) *LogrusLog {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLog{logger: logger}
}

func (l *LogrusLog) entry(self address.Address, isCoordinator bool, transID int32) *logrus.Entry {
	fields := logrus.Fields{
		"event_id":       uuid.NewString(),
		"self":           self.String(),
		"is_coordinator": isCoordinator,
	}
	if transID != NoTransID {
		fields["trans_id"] = transID
	}
	return l.logger.WithFields(fields)
}

// NodeAdd logs discovery of a new live member.
func (l *LogrusLog) NodeAdd(self, joined address.Address) {
	l.logger.WithFields(logrus.Fields{
		"event_id": uuid.NewString(),
		"self":     self.String(),
		"joined":   joined.String(),
	}).Info("node-add")
}

// NodeRemove logs eviction of a member whose local_timestamp went stale.
func (l *LogrusLog) NodeRemove(self, left address.Address) {
	l.logger.WithFields(logrus.Fields{
		"event_id": uuid.NewString(),
		"self":     self.String(),
		"left":     left.String(),
	}).Info("node-remove")
}

func (l *LogrusLog) CreateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	l.entry(self, isCoordinator, transID).WithFields(logrus.Fields{"key": key, "value": value}).Info("create-success")
}

func (l *LogrusLog) CreateFail(self address.Address, isCoordinator bool, transID int32, key string) {
	l.entry(self, isCoordinator, transID).WithField("key", key).Warn("create-fail")
}

func (l *LogrusLog) UpdateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	l.entry(self, isCoordinator, transID).WithFields(logrus.Fields{"key": key, "value": value}).Info("update-success")
}

func (l *LogrusLog) UpdateFail(self address.Address, isCoordinator bool, transID int32, key string) {
	l.entry(self, isCoordinator, transID).WithField("key", key).Warn("update-fail")
}

func (l *LogrusLog) DeleteSuccess(self address.Address, isCoordinator bool, transID int32, key string) {
	l.entry(self, isCoordinator, transID).WithField("key", key).Info("delete-success")
}

func (l *LogrusLog) DeleteFail(self address.Address, isCoordinator bool, transID int32, key string) {
	l.entry(self, isCoordinator, transID).WithField("key", key).Warn("delete-fail")
}

func (l *LogrusLog) ReadSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	l.entry(self, isCoordinator, transID).WithFields(logrus.Fields{"key": key, "value": value}).Info("read-success")
}

func (l *LogrusLog) ReadFail(self address.Address, isCoordinator bool, transID int32, key string) {
	l.entry(self, isCoordinator, transID).WithField("key", key).Warn("read-fail")
}
