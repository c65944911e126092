package remark

import (
	"errors"
	"testing"
	"time"
)

func TestSendMessageRequestValidate(t *testing.T) {
	t.Parallel()

	validTarget := OutboundTarget{
		Conversation: Conversation{ID: "chan-1", Type: ConversationTypeText},
	}

	tests := []struct {
		name    string
		request SendMessageRequest
		wantErr bool
	}{
		{
			name:    "text only",
			request: SendMessageRequest{Target: validTarget, Text: "hello"},
		},
		{
			name: "embeds only",
			request: SendMessageRequest{
				Target: validTarget,
				Embeds: []Embed{{Type: "rich", Description: "body"}},
			},
		},
		{
			name:    "missing content",
			request: SendMessageRequest{Target: validTarget},
			wantErr: true,
		},
		{
			name:    "missing conversation id",
			request: SendMessageRequest{Text: "hello"},
			wantErr: true,
		},
		{
			name: "missing conversation type",
			request: SendMessageRequest{
				Target: OutboundTarget{Conversation: Conversation{ID: "chan-1"}},
				Text:   "hello",
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.request.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidOutboundRequest) {
					t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSendWebhookRequestValidate(t *testing.T) {
	t.Parallel()

	validTarget := OutboundTarget{
		Conversation: Conversation{ID: "chan-1", Type: ConversationTypeText},
	}

	tests := []struct {
		name    string
		request SendWebhookRequest
		wantErr bool
	}{
		{
			name: "valid impersonated send",
			request: SendWebhookRequest{
				Target:  validTarget,
				Persona: WebhookPersona{DisplayName: "Someone", AvatarURL: "https://cdn/a.png"},
				Text:    "spoofed body",
			},
		},
		{
			name: "missing persona display name",
			request: SendWebhookRequest{
				Target: validTarget,
				Text:   "spoofed body",
			},
			wantErr: true,
		},
		{
			name: "missing content",
			request: SendWebhookRequest{
				Target:  validTarget,
				Persona: WebhookPersona{DisplayName: "Someone"},
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.request.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidOutboundRequest) {
					t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestOutboundTargetFromEvent(t *testing.T) {
	t.Parallel()

	event := &Event{
		ID:         "evt-1",
		Kind:       EventKindMessageCreated,
		OccurredAt: time.Now(),
		Conversation: Conversation{
			ID:       "thread-1",
			Type:     ConversationTypeThread,
			ParentID: "chan-1",
		},
		Message: &Message{ID: "msg-1", Text: "hi"},
	}

	target, err := OutboundTargetFromEvent(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Conversation.ID != "thread-1" {
		t.Fatalf("conversation id = %q, want thread-1", target.Conversation.ID)
	}
	if target.Conversation.ParentID != "chan-1" {
		t.Fatalf("parent id = %q, want chan-1", target.Conversation.ParentID)
	}

	if _, err := OutboundTargetFromEvent(nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}

func TestDeleteMessageRequestValidate(t *testing.T) {
	t.Parallel()

	request := DeleteMessageRequest{
		Target: OutboundTarget{
			Conversation: Conversation{ID: "chan-1", Type: ConversationTypeText},
		},
	}
	if err := request.Validate(); !errors.Is(err, ErrInvalidOutboundRequest) {
		t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
	}

	request.MessageID = "msg-1"
	if err := request.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
