package remark

import (
	"context"
	"fmt"
)

// ServiceOutboundDispatcher is the canonical service registry key for outbound messaging.
const ServiceOutboundDispatcher = "remark.outbound_dispatcher"

// OutboundDispatcher sends neutral outbound operations to the platform driver.
//
// Implementations should enforce platform-specific constraints while preserving
// these protocol-level request semantics.
type OutboundDispatcher interface {
	// SendMessage publishes a new outbound message to a destination conversation.
	SendMessage(ctx context.Context, request SendMessageRequest) (*OutboundMessage, error)
	// SendWebhook publishes a message through a named channel webhook, spoofing
	// the display identity carried by the request persona.
	SendWebhook(ctx context.Context, request SendWebhookRequest) (*OutboundMessage, error)
	// DeleteMessage removes an existing outbound message by ID.
	DeleteMessage(ctx context.Context, request DeleteMessageRequest) error
}

// OutboundTarget identifies where an outbound operation should be delivered.
type OutboundTarget struct {
	// Conversation identifies the destination conversation.
	Conversation Conversation
}

// Validate checks target identity fields used for outbound delivery.
func (t OutboundTarget) Validate() error {
	if t.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidOutboundRequest)
	}
	if t.Conversation.Type == "" {
		return fmt.Errorf("%w: missing conversation type", ErrInvalidOutboundRequest)
	}

	return nil
}

// OutboundTargetFromEvent derives a destination target from an inbound event.
func OutboundTargetFromEvent(event *Event) (OutboundTarget, error) {
	if event == nil {
		return OutboundTarget{}, fmt.Errorf("%w: nil event", ErrInvalidOutboundRequest)
	}

	target := OutboundTarget{Conversation: event.Conversation}
	if err := target.Validate(); err != nil {
		return OutboundTarget{}, fmt.Errorf("derive target from event %s: %w", event.Kind, err)
	}

	return target, nil
}

// OutboundMessage identifies a message successfully emitted by the dispatcher.
type OutboundMessage struct {
	// ID is the destination-platform message identifier.
	ID string
	// Target is the destination where this message was delivered.
	Target OutboundTarget
}

// SendMessageRequest describes a new outbound message.
type SendMessageRequest struct {
	// Target identifies where the message should be sent.
	Target OutboundTarget
	// Text is the message body.
	Text string
	// Embeds carries rich embed payloads rendered by the platform.
	Embeds []Embed
	// Attachments lists source files the dispatcher re-uploads with the message.
	Attachments []Attachment
	// ReplyToMessageID optionally links this message as a reply.
	ReplyToMessageID string
	// SuppressMentions prevents the message from pinging mentioned users.
	SuppressMentions bool
}

// Validate checks the request envelope before dispatch.
func (r SendMessageRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate send message target: %w", err)
	}
	if r.Text == "" && len(r.Embeds) == 0 && len(r.Attachments) == 0 {
		return fmt.Errorf("%w: missing message content", ErrInvalidOutboundRequest)
	}

	return nil
}

// WebhookPersona carries the display identity a webhook send impersonates.
type WebhookPersona struct {
	// DisplayName is the name shown as the message author.
	DisplayName string
	// AvatarURL is the avatar shown next to the message.
	AvatarURL string
}

// Validate checks persona fields required for impersonated sends.
func (p WebhookPersona) Validate() error {
	if p.DisplayName == "" {
		return fmt.Errorf("%w: missing persona display name", ErrInvalidOutboundRequest)
	}

	return nil
}

// SendWebhookRequest describes an impersonated outbound message.
//
// Thread targets deliver through the parent channel's webhook, matching the
// platform constraint that webhooks attach to channels, not threads.
type SendWebhookRequest struct {
	// Target identifies where the message should be sent.
	Target OutboundTarget
	// Persona is the impersonated display identity.
	Persona WebhookPersona
	// Text is the message body.
	Text string
	// Embeds carries rich embed payloads rendered by the platform.
	Embeds []Embed
	// Attachments lists source files the dispatcher re-uploads with the message.
	Attachments []Attachment
	// SuppressMentions prevents the message from pinging mentioned users.
	SuppressMentions bool
}

// Validate checks the request envelope before dispatch.
func (r SendWebhookRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate send webhook target: %w", err)
	}
	if err := r.Persona.Validate(); err != nil {
		return fmt.Errorf("validate send webhook persona: %w", err)
	}
	if r.Text == "" && len(r.Embeds) == 0 && len(r.Attachments) == 0 {
		return fmt.Errorf("%w: missing message content", ErrInvalidOutboundRequest)
	}

	return nil
}

// DeleteMessageRequest describes message deletion behavior.
type DeleteMessageRequest struct {
	// Target identifies where the message exists.
	Target OutboundTarget
	// MessageID identifies which message should be deleted.
	MessageID string
}

// Validate checks the request envelope before dispatch.
func (r DeleteMessageRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate delete message target: %w", err)
	}
	if r.MessageID == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidOutboundRequest)
	}

	return nil
}
