// Package matchstate holds the match lifecycle transition table. It has no I/O; callers supply the facts
// the guards are evaluated against and persist the outcome themselves.
package matchstate

import (
	"fmt"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
)

type State string

const (
	Pending   State = "pending"
	Ready     State = "ready"
	Assigned  State = "assigned"
	Active    State = "active"
	Paused    State = "paused"
	Completed State = "completed"
	Cancelled State = "cancelled"
	Abandoned State = "abandoned"
	Forfeited State = "forfeited"
)

// All lists every state in lifecycle order.
var All = []State{Pending, Ready, Assigned, Active, Paused, Completed, Cancelled, Abandoned, Forfeited}

type Event string

const (
	EventResolve     Event = "resolve"
	EventAssignTable Event = "assign_table"
	EventUnassign    Event = "unassign"
	EventStart       Event = "start"
	EventPause       Event = "pause"
	EventResume      Event = "resume"
	EventComplete    Event = "complete"
	EventCancel      Event = "cancel"
	EventAbandon     Event = "abandon"
	EventForfeit     Event = "forfeit"
	EventBye         Event = "bye"
)

type Guard string

const (
	HasPlayers Guard = "hasPlayers"
	HasTable   Guard = "hasTable"
	HasWinner  Guard = "hasWinner"
	IsBye      Guard = "isBye"
)

// Requirement is an actor-supplied precondition checked separately from guards.
type Requirement string

const (
	NoRequirement         Requirement = ""
	NeedsReason           Requirement = "reason"
	NeedsForfeitingPlayer Requirement = "forfeitingPlayer"
)

type Rule struct {
	From     State
	Event    Event
	To       State
	Guards   []Guard
	Requires Requirement
}

func (r Rule) String() string {
	return fmt.Sprintf("%s --%s--> %s", r.From, r.Event, r.To)
}

// Facts are what guards and requirements are evaluated against.
type Facts struct {
	HasPlayerA       bool
	HasPlayerB       bool
	HasTable         bool
	HasWinner        bool
	Reason           string
	ForfeitingPlayer bool
	IsBye            bool
}

type key struct {
	from  State
	event Event
}

var rules = map[key]Rule{}

// ruleOrder keeps ValidNextStates deterministic.
var ruleOrder []Rule

func add(from []State, event Event, to State, req Requirement, guards ...Guard) {
	for _, f := range from {
		r := Rule{From: f, Event: event, To: to, Guards: guards, Requires: req}
		rules[key{f, event}] = r
		ruleOrder = append(ruleOrder, r)
	}
}

func init() {
	add([]State{Pending}, EventResolve, Ready, NoRequirement, HasPlayers)
	add([]State{Pending}, EventAssignTable, Ready, NoRequirement, HasPlayers, HasTable)
	add([]State{Ready}, EventAssignTable, Assigned, NoRequirement, HasPlayers, HasTable)
	add([]State{Assigned}, EventUnassign, Ready, NoRequirement)
	add([]State{Ready, Assigned}, EventStart, Active, NoRequirement, HasPlayers, HasTable)
	add([]State{Active}, EventPause, Paused, NoRequirement)
	add([]State{Paused}, EventResume, Active, NoRequirement)
	add([]State{Active}, EventComplete, Completed, NoRequirement, HasWinner)
	add([]State{Pending, Ready, Assigned}, EventCancel, Cancelled, NeedsReason)
	add([]State{Active, Paused}, EventAbandon, Abandoned, NeedsReason)
	add([]State{Active, Paused}, EventForfeit, Forfeited, NeedsForfeitingPlayer)
	add([]State{Pending}, EventBye, Completed, NoRequirement, IsBye)
}

func Lookup(from State, event Event) (Rule, bool) {
	r, ok := rules[key{from, event}]
	return r, ok
}

func IsTerminal(s State) bool {
	switch s {
	case Completed, Cancelled, Abandoned, Forfeited:
		return true
	default:
		return false
	}
}

func IsValid(s State) bool {
	for _, known := range All {
		if s == known {
			return true
		}
	}
	return false
}

// ValidNextStates lists the distinct targets reachable from s in one event.
func ValidNextStates(s State) []State {
	var out []State
	seen := map[State]bool{}
	for _, r := range ruleOrder {
		if r.From == s && !seen[r.To] {
			seen[r.To] = true
			out = append(out, r.To)
		}
	}
	return out
}

// IsValidTransition reports whether some event moves from to to. A state always transitions to itself.
func IsValidTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, r := range ruleOrder {
		if r.From == from && r.To == to {
			return true
		}
	}
	return false
}

// TargetOf returns the single state an event always leads to, if the event has exactly one target.
func TargetOf(event Event) (State, bool) {
	var target State
	for _, r := range ruleOrder {
		if r.Event != event {
			continue
		}
		if target != "" && target != r.To {
			return "", false
		}
		target = r.To
	}
	return target, target != ""
}

// IsNoOp reports a same-state request: the event's only target is the current state.
func IsNoOp(from State, event Event) bool {
	if _, ok := Lookup(from, event); ok {
		return false
	}
	target, ok := TargetOf(event)
	return ok && target == from
}

// TransitionError reports that event is not accepted in from, listing where from can go instead.
func TransitionError(from State, event Event) *apperr.StateTransitionError {
	next := ValidNextStates(from)
	names := make([]string, 0, len(next))
	for _, s := range next {
		names = append(names, string(s))
	}
	return &apperr.StateTransitionError{From: string(from), Event: string(event), ValidNext: names}
}

// Evaluate resolves the next state for event, checking guards and requirements.
func Evaluate(from State, event Event, f Facts) (State, error) {
	if IsNoOp(from, event) {
		return from, nil
	}

	rule, ok := Lookup(from, event)
	if !ok {
		return from, TransitionError(from, event)
	}

	for _, g := range rule.Guards {
		if !f.holds(g) {
			return from, &apperr.GuardViolationError{Rule: rule.String(), Guard: string(g)}
		}
	}

	switch rule.Requires {
	case NeedsReason:
		if f.Reason == "" {
			return from, apperr.Validation("reason", "%s requires a reason", rule.Event)
		}
	case NeedsForfeitingPlayer:
		if !f.ForfeitingPlayer {
			return from, apperr.Validation("forfeitingPlayerId", "forfeit requires the forfeiting player")
		}
	}

	return rule.To, nil
}

func (f Facts) holds(g Guard) bool {
	switch g {
	case HasPlayers:
		return f.HasPlayerA && f.HasPlayerB
	case HasTable:
		return f.HasTable
	case HasWinner:
		return f.HasWinner
	case IsBye:
		return f.IsBye
	default:
		return false
	}
}
