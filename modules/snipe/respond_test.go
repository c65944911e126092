package snipe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"remark-bot/pkg/remark"
)

func testTarget() remark.OutboundTarget {
	return remark.OutboundTarget{
		Conversation: remark.Conversation{ID: "chan-1", Type: remark.ConversationTypeText},
	}
}

func TestHeadline(t *testing.T) {
	t.Parallel()

	edited := newState("1", "chan-1", "alice", remark.ChangeTypeEdit, time.Now())
	edited.Author.DisplayName = "Alice"
	if got := headline(edited); got != "Sniped message edited by Alice" {
		t.Fatalf("headline = %q", got)
	}

	deleted := newState("2", "chan-1", "bob", remark.ChangeTypeDelete, time.Now())
	if got := headline(deleted); got != "Sniped message deleted by bob" {
		t.Fatalf("headline = %q", got)
	}

	anonymous := deleted
	anonymous.Author = remark.Actor{}
	if got := headline(anonymous); got != "Sniped message deleted by unknown author" {
		t.Fatalf("headline = %q", got)
	}
}

func TestRenderEmbeds(t *testing.T) {
	t.Parallel()

	state := newState("1", "chan-1", "alice", remark.ChangeTypeDelete, time.Now())
	state.Message.Text = "so long"
	state.Message.ReplyToID = "parent-1"
	state.Message.Embeds = []remark.Embed{
		{Type: "rich", Title: "kept"},
		{Type: "link", Title: "dropped"},
	}

	embeds := renderEmbeds(state)
	if len(embeds) != 3 {
		t.Fatalf("embed count = %d, want 3", len(embeds))
	}
	if !strings.Contains(embeds[0].Description, "so long") {
		t.Fatalf("body embed missing text: %q", embeds[0].Description)
	}
	if !strings.Contains(embeds[1].Description, "parent-1") {
		t.Fatalf("reply embed missing parent id: %q", embeds[1].Description)
	}
	if embeds[2].Title != "kept" {
		t.Fatalf("rich embed not re-attached: %+v", embeds[2])
	}
}

func TestRenderEmbedsEmptyBody(t *testing.T) {
	t.Parallel()

	state := newState("1", "chan-1", "alice", remark.ChangeTypeDelete, time.Now())
	state.Message.Text = ""

	embeds := renderEmbeds(state)
	if len(embeds) != 1 {
		t.Fatalf("embed count = %d, want 1", len(embeds))
	}
	if embeds[0].Description != contentUnavailable {
		t.Fatalf("description = %q, want placeholder", embeds[0].Description)
	}
}

func TestWebhookBodyWithAttachmentsOnly(t *testing.T) {
	t.Parallel()

	state := newState("1", "chan-1", "alice", remark.ChangeTypeDelete, time.Now())
	state.Message.Text = ""
	state.Message.Attachments = []remark.Attachment{{ID: "a1", URL: "https://cdn.example/cat.png"}}

	if got := webhookBody(state); got != "" {
		t.Fatalf("body = %q, want empty next to re-uploaded files", got)
	}

	state.Message.Attachments = nil
	if got := webhookBody(state); got != contentUnavailable {
		t.Fatalf("body = %q, want placeholder", got)
	}
}

func TestDeliverForwardsAttachmentsForReupload(t *testing.T) {
	t.Parallel()

	state := newState("1", "chan-1", "alice", remark.ChangeTypeDelete, time.Now())
	state.Message.Attachments = []remark.Attachment{
		{ID: "a1", URL: "https://cdn.example/cat.png", FileName: "cat.png"},
	}

	dispatcher := &captureDispatcher{}
	render := responder{dispatcher: dispatcher, logger: slog.Default()}

	if _, err := render.deliver(context.Background(), testTarget(), state, ResponseModeEmbed, "cmd-msg-1"); err != nil {
		t.Fatalf("embed deliver failed: %v", err)
	}
	if got := dispatcher.messages[0].Attachments; len(got) != 1 || got[0].URL != "https://cdn.example/cat.png" {
		t.Fatalf("embed request attachments = %+v", got)
	}

	if _, err := render.deliver(context.Background(), testTarget(), state, ResponseModeWebhook, "cmd-msg-1"); err != nil {
		t.Fatalf("webhook deliver failed: %v", err)
	}
	if got := dispatcher.webhooks[0].Attachments; len(got) != 1 || got[0].FileName != "cat.png" {
		t.Fatalf("webhook request attachments = %+v", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", maxEmbedDescription+100)
	got := truncate(long, maxEmbedDescription)
	if len(got) > maxEmbedDescription {
		t.Fatalf("truncated length = %d, want <= %d", len(got), maxEmbedDescription)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated text should end with ellipsis, got suffix %q", got[len(got)-8:])
	}

	short := "fits"
	if truncate(short, maxEmbedDescription) != short {
		t.Fatal("short text should pass through unchanged")
	}

	// Truncation never splits a multi-byte rune.
	multi := strings.Repeat("ж", 50)
	cut := truncate(multi, 21)
	if !strings.HasSuffix(cut, "...") {
		t.Fatalf("multibyte truncation missing ellipsis: %q", cut)
	}
	for _, r := range cut {
		if r == '�' {
			t.Fatalf("truncation split a rune: %q", cut)
		}
	}
}

func TestResponderDeliverEmbed(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{}
	render := responder{dispatcher: dispatcher, logger: slog.Default()}

	state := newState("1", "chan-1", "alice", remark.ChangeTypeEdit, time.Now())
	response, err := render.deliver(context.Background(), testTarget(), state, ResponseModeEmbed, "cmd-msg-1")
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if response == nil || response.ID != "sent-1" {
		t.Fatalf("response = %+v, want delivered handle", response)
	}
	if len(dispatcher.messages) != 1 {
		t.Fatalf("message sends = %d, want 1", len(dispatcher.messages))
	}

	request := dispatcher.messages[0]
	if request.ReplyToMessageID != "cmd-msg-1" {
		t.Fatalf("reply to = %q, want cmd-msg-1", request.ReplyToMessageID)
	}
	if !request.SuppressMentions {
		t.Fatal("embed response should suppress mentions")
	}
	if !strings.HasPrefix(request.Text, "Sniped message edited by") {
		t.Fatalf("text = %q", request.Text)
	}
}

func TestResponderDeliverWebhook(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{}
	render := responder{dispatcher: dispatcher, logger: slog.Default()}

	state := newState("1", "chan-1", "alice", remark.ChangeTypeDelete, time.Now())
	state.Author.DisplayName = "Alice"
	state.Author.AvatarURL = "https://cdn.example/alice.png"

	response, err := render.deliver(context.Background(), testTarget(), state, ResponseModeWebhook, "cmd-msg-1")
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if response == nil || response.ID != "hook-1" {
		t.Fatalf("response = %+v, want delivered handle", response)
	}
	if len(dispatcher.webhooks) != 1 || len(dispatcher.messages) != 0 {
		t.Fatalf("webhooks = %d messages = %d, want 1/0", len(dispatcher.webhooks), len(dispatcher.messages))
	}

	request := dispatcher.webhooks[0]
	if request.Persona.DisplayName != "Alice" {
		t.Fatalf("persona display name = %q", request.Persona.DisplayName)
	}
	if request.Persona.AvatarURL != "https://cdn.example/alice.png" {
		t.Fatalf("persona avatar = %q", request.Persona.AvatarURL)
	}
	if request.Text != "body of 1" {
		t.Fatalf("webhook text = %q", request.Text)
	}
}

func TestResponderWebhookFallsBackToEmbed(t *testing.T) {
	t.Parallel()

	webhookErr := errors.New("webhook exploded")
	dispatcher := &captureDispatcher{webhookErr: webhookErr}
	render := responder{dispatcher: dispatcher, logger: slog.Default()}

	state := newState("1", "chan-1", "alice", remark.ChangeTypeDelete, time.Now())
	response, err := render.deliver(context.Background(), testTarget(), state, ResponseModeWebhook, "cmd-msg-1")
	if response == nil || response.ID != "sent-1" {
		t.Fatalf("response = %+v, want fallback embed handle", response)
	}
	if !errors.Is(err, webhookErr) {
		t.Fatalf("error = %v, want wrapped webhook error", err)
	}
	if len(dispatcher.messages) != 1 {
		t.Fatalf("fallback message sends = %d, want 1", len(dispatcher.messages))
	}
}

func TestResponderWebhookAndFallbackFail(t *testing.T) {
	t.Parallel()

	webhookErr := errors.New("webhook exploded")
	sendErr := errors.New("send exploded")
	dispatcher := &captureDispatcher{webhookErr: webhookErr, sendErr: sendErr}
	render := responder{dispatcher: dispatcher, logger: slog.Default()}

	state := newState("1", "chan-1", "alice", remark.ChangeTypeDelete, time.Now())
	response, err := render.deliver(context.Background(), testTarget(), state, ResponseModeWebhook, "cmd-msg-1")
	if response != nil {
		t.Fatal("nothing was delivered")
	}
	if !errors.Is(err, webhookErr) || !errors.Is(err, sendErr) {
		t.Fatalf("error = %v, want both failures reported", err)
	}
}

func TestResponderRejectsInvalidMode(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{}
	render := responder{dispatcher: dispatcher, logger: slog.Default()}

	state := newState("1", "chan-1", "alice", remark.ChangeTypeDelete, time.Now())
	response, err := render.deliver(context.Background(), testTarget(), state, ResponseMode("smoke-signal"), "")
	if response != nil {
		t.Fatal("invalid mode must not deliver")
	}
	if !errors.Is(err, remark.ErrInvalidResponseMode) {
		t.Fatalf("error = %v, want ErrInvalidResponseMode", err)
	}
	if len(dispatcher.messages) != 0 || len(dispatcher.webhooks) != 0 {
		t.Fatal("invalid mode must not reach the dispatcher")
	}
}
