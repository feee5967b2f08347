// Package audit keeps a local record of remote API executions: who ran
// which calls against which host, and how it ended. Reply contents are
// never recorded.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one remote execution.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Host      string        `json:"host"`
	Node      string        `json:"node,omitempty"`
	Mode      string        `json:"mode"`
	Commands  []string      `json:"commands"`
	BatchID   string        `json:"batch_id,omitempty"` // set once the batch reached the remote side
	Replies   int           `json:"replies"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Filter defines criteria for querying events. Zero fields match all.
type Filter struct {
	Host        string
	User        string
	Command     string // matches events whose batch contained this API name
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent starts an event for one batch.
func NewEvent(user, host, mode string, commands []string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Host:      host,
		Mode:      mode,
		Commands:  commands,
	}
}

// WithNode sets the container the batch ran in.
func (e *Event) WithNode(node string) *Event {
	e.Node = node
	return e
}

// WithBatch records the executor's batch ID and the number of replies.
func (e *Event) WithBatch(id string, replies int) *Event {
	e.BatchID = id
	e.Replies = replies
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	e.Error = ""
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the round-trip duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

func (e *Event) hasCommand(name string) bool {
	for _, c := range e.Commands {
		if c == name {
			return true
		}
	}
	return false
}
