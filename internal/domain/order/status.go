package order

import (
	"fmt"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusReceived  Status = "Received"
	StatusPreparing Status = "Preparing"
	StatusReady     Status = "Ready"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusRejected  Status = "Rejected"
)

// Actor identifies who requests a status transition.
type Actor string

const (
	ActorStudent Actor = "student"
	ActorVendor  Actor = "vendor"
)

// ParseStatus maps a stored status value to a Status. Empty or unknown
// values normalize to StatusReceived.
func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusReceived, StatusPreparing, StatusReady,
		StatusCompleted, StatusCancelled, StatusRejected:
		return st
	default:
		return StatusReceived
	}
}

// Terminal reports whether no further transitions leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Active reports whether the order is still in the kitchen pipeline.
func (s Status) Active() bool {
	return !s.Terminal()
}

type edge struct {
	from Status
	to   Status
}

var transitions = map[edge]Actor{
	{StatusReceived, StatusPreparing}: ActorVendor,
	{StatusReceived, StatusRejected}:  ActorVendor,
	{StatusReceived, StatusCancelled}: ActorStudent,
	{StatusPreparing, StatusReady}:    ActorVendor,
	{StatusReady, StatusCompleted}:    ActorStudent,
}

// TransitionError reports a status change that the state machine forbids
// for the requesting actor.
type TransitionError struct {
	From  Status
	To    Status
	Actor Actor
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move order from %s to %s", e.Actor, e.From, e.To)
}

// CanTransition validates a status change requested by actor.
func CanTransition(actor Actor, from, to Status) error {
	allowed, ok := transitions[edge{from: from, to: to}]
	if !ok || allowed != actor {
		return &TransitionError{From: from, To: to, Actor: actor}
	}
	return nil
}
