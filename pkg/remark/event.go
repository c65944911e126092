package remark

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindMessageCreated is emitted when a new message is posted.
	EventKindMessageCreated EventKind = "message.created"
	// EventKindMessageEdited is emitted when an existing message is edited.
	EventKindMessageEdited EventKind = "message.edited"
	// EventKindMessageDeleted is emitted when a message is deleted.
	EventKindMessageDeleted EventKind = "message.deleted"
	// EventKindCommandReceived is emitted when an inbound message binds to a
	// registered command.
	EventKindCommandReceived EventKind = "command.received"
)

// Platform identifies an external chat platform source.
type Platform string

const (
	// PlatformDiscord is Discord.
	PlatformDiscord Platform = "discord"
)

// ConversationType identifies conversation scope.
type ConversationType string

const (
	// ConversationTypeText is a regular text channel.
	ConversationTypeText ConversationType = "text"
	// ConversationTypeThread is a thread inside a text channel.
	ConversationTypeThread ConversationType = "thread"
	// ConversationTypeDirect is a direct/private conversation.
	ConversationTypeDirect ConversationType = "direct"
)

// Event is the neutral envelope that drivers publish and modules consume.
//
// Payload branches are selected by Kind so platform detail never leaks into
// module code: Message carries content for created events, Mutation carries
// the prior state for edit/delete events, and Command carries a bound command
// invocation.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Platform identifies the upstream platform that produced the event.
	Platform Platform
	// Conversation identifies where the event happened.
	Conversation Conversation
	// Actor identifies who initiated the event when available. For mutation
	// events this is the author of the mutated message.
	Actor Actor
	// Message carries message content for message-created and command events.
	Message *Message
	// Mutation carries prior-state context for edit and delete events.
	Mutation *Mutation
	// Command carries the bound invocation for command events.
	Command *CommandInvocation
	// Metadata stores optional driver-provided key/value context.
	Metadata map[string]string
}

// Conversation identifies the neutral destination where an event occurred.
type Conversation struct {
	// ID is the stable conversation identifier on the source platform.
	ID string
	// Type describes the conversation scope.
	Type ConversationType
	// ParentID is the containing channel for threads, empty otherwise.
	ParentID string
	// Title is a best-effort display label for the conversation.
	Title string
}

// Actor identifies the user/account that initiated an event.
type Actor struct {
	// ID is the stable actor identifier on the source platform.
	ID string
	// Username is the platform handle when available.
	Username string
	// DisplayName is the human-readable actor name.
	DisplayName string
	// AvatarURL locates the actor's avatar for impersonated sends.
	AvatarURL string
	// IsBot reports whether the actor is an automated account.
	IsBot bool
}

// Message holds neutral message content including render-opaque payloads.
type Message struct {
	// ID is the message identifier on the source platform.
	ID string
	// ReplyToID is the parent message identifier when this is a reply.
	ReplyToID string
	// Text is the normalized message text body.
	Text string
	// Attachments contains file metadata associated with the message.
	Attachments []Attachment
	// Embeds contains rich embed payloads carried by the message. They are
	// opaque to the core and interpreted only by rendering.
	Embeds []Embed
}

// Attachment represents file payload metadata.
type Attachment struct {
	// ID is the stable attachment identifier when provided by the platform.
	ID string
	// FileName is the original attachment filename when available.
	FileName string
	// MIMEType is the attachment content type when known.
	MIMEType string
	// SizeBytes is the attachment size in bytes when available.
	SizeBytes int64
	// URL is the retrievable location for the attachment.
	URL string
}

// Embed is a neutral rich embed payload.
type Embed struct {
	// Type identifies the embed class; only "rich" embeds are re-rendered.
	Type string
	// Title is the embed title text.
	Title string
	// Description is the embed body text.
	Description string
	// URL is the optional embed link.
	URL string
	// Color is the accent color as a 24-bit RGB value.
	Color int
}

// MutationType identifies message mutation kind.
type MutationType string

const (
	// MutationTypeEdit indicates a message edit.
	MutationTypeEdit MutationType = "edit"
	// MutationTypeDelete indicates a message deletion.
	MutationTypeDelete MutationType = "delete"
)

// Mutation holds prior-state context for edit and delete events.
type Mutation struct {
	// Type identifies the mutation operation.
	Type MutationType
	// TargetMessageID identifies the message affected by the mutation.
	TargetMessageID string
	// Before captures the message state before the mutation when known.
	Before *Message
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if e.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidEvent)
	}

	return validatePayloadByKind(e)
}

// validatePayloadByKind enforces payload branch requirements per event kind.
func validatePayloadByKind(e *Event) error {
	switch e.Kind {
	case EventKindMessageCreated:
		if e.Message == nil {
			return fmt.Errorf("%w: message.created requires message payload", ErrInvalidEvent)
		}
	case EventKindMessageEdited, EventKindMessageDeleted:
		if e.Mutation == nil {
			return fmt.Errorf("%w: mutation event requires mutation payload", ErrInvalidEvent)
		}
		if e.Mutation.TargetMessageID == "" {
			return fmt.Errorf("%w: mutation event requires target message id", ErrInvalidEvent)
		}
	case EventKindCommandReceived:
		if e.Command == nil {
			return fmt.Errorf("%w: command event requires command payload", ErrInvalidEvent)
		}
		if e.Message == nil {
			return fmt.Errorf("%w: command event requires message payload", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}

// CloneMessage deep-copies a message payload so snapshot holders cannot be
// affected by later caller mutation.
func CloneMessage(message Message) Message {
	cloned := message
	if len(message.Attachments) > 0 {
		cloned.Attachments = append([]Attachment(nil), message.Attachments...)
	} else {
		cloned.Attachments = nil
	}
	if len(message.Embeds) > 0 {
		cloned.Embeds = append([]Embed(nil), message.Embeds...)
	} else {
		cloned.Embeds = nil
	}

	return cloned
}
