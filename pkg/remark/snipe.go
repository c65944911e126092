package remark

import (
	"context"
	"fmt"
	"time"
)

// ServiceSnipeStore is the canonical service registry key for snipe candidate lookup.
const ServiceSnipeStore = "remark.snipe_store"

// ChangeType tags how a recorded message state was observed.
type ChangeType string

const (
	// ChangeTypeEdit records the state a message had before an edit.
	ChangeTypeEdit ChangeType = "edit"
	// ChangeTypeDelete records the state a message had when it was deleted.
	ChangeTypeDelete ChangeType = "delete"
)

// Validate checks whether one change type is supported.
func (c ChangeType) Validate() error {
	switch c {
	case ChangeTypeEdit, ChangeTypeDelete:
		return nil
	default:
		return fmt.Errorf("validate change type: unsupported change type %q", c)
	}
}

// MessageState is one immutable recorded version of a message.
//
// States are value types; holders must never mutate payload slices after
// construction. CloneMessage at the recording boundary enforces this.
type MessageState struct {
	// Conversation identifies where the message lived.
	Conversation Conversation
	// Author identifies who wrote the recorded version.
	Author Actor
	// Message is the recorded message payload, render-opaque to the core.
	Message Message
	// ChangeType tags whether this state was captured by an edit or a delete.
	ChangeType ChangeType
	// ChangedAt is when the change was observed.
	ChangedAt time.Time
}

// MessageHistory is the ordered sequence of recorded states for one message
// id, ascending by ChangedAt. Histories are append-only: the last element is
// always the latest known state.
type MessageHistory []MessageState

// Latest returns the most recent recorded state.
//
// found is false for an empty history; the store never hands one out, but
// callers constructing histories directly still get a total function.
func (h MessageHistory) Latest() (MessageState, bool) {
	if len(h) == 0 {
		return MessageState{}, false
	}

	return h[len(h)-1], true
}

// SnipeStore provides read/consume access to tracked message histories.
//
// Implementations must be concurrency-safe because command handlers and the
// prune loop run on independent workers.
type SnipeStore interface {
	// OrderedCandidates returns every non-expired history whose latest state
	// belongs to the conversation, ascending by the latest state's ChangedAt:
	// the most recently changed eligible message is last.
	OrderedCandidates(ctx context.Context, conversationID string) ([]MessageHistory, error)
	// Consume removes one tracked message id after a delivered response.
	//
	// Absent ids are a normal outcome, never an error: consumption races the
	// prune loop by design.
	Consume(ctx context.Context, messageID string) error
}

// StateFromMutationEvent builds the recorded state carried by one edit or
// delete event.
func StateFromMutationEvent(event *Event) (MessageState, error) {
	if event == nil {
		return MessageState{}, fmt.Errorf("state from mutation event: nil event")
	}
	if event.Mutation == nil {
		return MessageState{}, fmt.Errorf("state from mutation event %s: missing mutation payload", event.Kind)
	}

	var changeType ChangeType
	switch event.Kind {
	case EventKindMessageEdited:
		changeType = ChangeTypeEdit
	case EventKindMessageDeleted:
		changeType = ChangeTypeDelete
	default:
		return MessageState{}, fmt.Errorf("state from mutation event: unsupported kind %s", event.Kind)
	}

	message := Message{ID: event.Mutation.TargetMessageID}
	if event.Mutation.Before != nil {
		message = CloneMessage(*event.Mutation.Before)
		if message.ID == "" {
			message.ID = event.Mutation.TargetMessageID
		}
	}

	state := MessageState{
		Conversation: event.Conversation,
		Author:       event.Actor,
		Message:      message,
		ChangeType:   changeType,
		ChangedAt:    event.OccurredAt,
	}
	if err := state.ChangeType.Validate(); err != nil {
		return MessageState{}, fmt.Errorf("state from mutation event %s: %w", event.Kind, err)
	}

	return state, nil
}
