package snipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"remark-bot/pkg/remark"
)

const (
	noMessagesReply      = "No messages to snipe."
	snipingDisabledReply = "Sniping is disabled."

	contentUnavailable = "(message content unavailable)"

	// Discord caps embed descriptions at 4096; leave room for the ellipsis
	// and attachment lines appended below the body.
	maxEmbedDescription = 4000

	snipeEmbedColor = 0xED4245
)

// responder renders one sniped state through the configured response mode.
type responder struct {
	dispatcher remark.OutboundDispatcher
	logger     *slog.Logger
}

// deliver sends one sniped state to target and returns the delivered-response
// handle. A nil response means nothing reached the channel; a webhook failure
// that falls back to an embed still yields the embed's handle while the
// webhook error is reported up.
func (r *responder) deliver(
	ctx context.Context,
	target remark.OutboundTarget,
	state remark.MessageState,
	mode ResponseMode,
	replyToMessageID string,
) (*remark.OutboundMessage, error) {
	if r.dispatcher == nil {
		return nil, fmt.Errorf("snipe deliver: outbound dispatcher not configured")
	}
	if err := mode.Validate(); err != nil {
		return nil, fmt.Errorf("snipe deliver: %w", err)
	}

	switch mode {
	case ResponseModeWebhook:
		response, webhookErr := r.sendWebhook(ctx, target, state)
		if webhookErr == nil {
			return response, nil
		}
		r.logger.Warn("snipe webhook response failed, falling back to embed",
			"conversation_id", target.Conversation.ID,
			"message_id", state.Message.ID,
			"error", webhookErr,
		)
		fallback, embedErr := r.sendEmbed(ctx, target, state, replyToMessageID)
		if embedErr != nil {
			return nil, errors.Join(
				fmt.Errorf("snipe webhook response: %w", webhookErr),
				fmt.Errorf("snipe embed fallback: %w", embedErr),
			)
		}

		return fallback, fmt.Errorf("snipe webhook response: %w", webhookErr)
	default:
		response, embedErr := r.sendEmbed(ctx, target, state, replyToMessageID)
		if embedErr != nil {
			return nil, fmt.Errorf("snipe embed response: %w", embedErr)
		}

		return response, nil
	}
}

func (r *responder) sendEmbed(
	ctx context.Context,
	target remark.OutboundTarget,
	state remark.MessageState,
	replyToMessageID string,
) (*remark.OutboundMessage, error) {
	return r.dispatcher.SendMessage(ctx, remark.SendMessageRequest{
		Target:           target,
		Text:             headline(state),
		Embeds:           renderEmbeds(state),
		Attachments:      state.Message.Attachments,
		ReplyToMessageID: replyToMessageID,
		SuppressMentions: true,
	})
}

func (r *responder) sendWebhook(
	ctx context.Context,
	target remark.OutboundTarget,
	state remark.MessageState,
) (*remark.OutboundMessage, error) {
	return r.dispatcher.SendWebhook(ctx, remark.SendWebhookRequest{
		Target: target,
		Persona: remark.WebhookPersona{
			DisplayName: authorLabel(state.Author),
			AvatarURL:   state.Author.AvatarURL,
		},
		Text:             webhookBody(state),
		Embeds:           richEmbeds(state.Message.Embeds),
		Attachments:      state.Message.Attachments,
		SuppressMentions: true,
	})
}

// headline describes what happened to the sniped message and by whom.
func headline(state remark.MessageState) string {
	verb := "deleted"
	if state.ChangeType == remark.ChangeTypeEdit {
		verb = "edited"
	}

	return fmt.Sprintf("Sniped message %s by %s", verb, authorLabel(state.Author))
}

// renderEmbeds builds the embed-mode payload: the sniped body, a reply
// pointer when the message was itself a reply, and the message's own rich
// embeds re-attached after them. Attachments travel on the request and the
// dispatcher re-uploads them.
func renderEmbeds(state remark.MessageState) []remark.Embed {
	body := state.Message.Text
	if body == "" {
		body = contentUnavailable
	}
	body = truncate(body, maxEmbedDescription)

	embeds := []remark.Embed{{
		Type:        "rich",
		Description: body,
		Color:       snipeEmbedColor,
	}}
	if state.Message.ReplyToID != "" {
		embeds = append(embeds, remark.Embed{
			Type:        "rich",
			Description: fmt.Sprintf("In reply to message %s", state.Message.ReplyToID),
			Color:       snipeEmbedColor,
		})
	}

	return append(embeds, richEmbeds(state.Message.Embeds)...)
}

// webhookBody rebuilds the sniped message text for an impersonated resend.
func webhookBody(state remark.MessageState) string {
	if state.Message.Text != "" {
		return truncate(state.Message.Text, maxEmbedDescription)
	}
	if len(state.Message.Attachments) > 0 || len(richEmbeds(state.Message.Embeds)) > 0 {
		return ""
	}

	return contentUnavailable
}

// richEmbeds keeps only re-renderable embeds; link previews and media unfurls
// regenerate on their own from the message text.
func richEmbeds(embeds []remark.Embed) []remark.Embed {
	kept := make([]remark.Embed, 0, len(embeds))
	for _, embed := range embeds {
		if embed.Type == "rich" {
			kept = append(kept, embed)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	return kept
}

func authorLabel(author remark.Actor) string {
	if author.DisplayName != "" {
		return author.DisplayName
	}
	if author.Username != "" {
		return author.Username
	}
	if author.ID != "" {
		return author.ID
	}

	return "unknown author"
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := limit - len("...")
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}

	return text[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
