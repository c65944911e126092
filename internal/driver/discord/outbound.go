package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"remark-bot/pkg/remark"
)

const (
	// maxReuploadBytes is Discord's default per-file upload cap. Larger
	// attachments degrade to their source link instead of a re-upload.
	maxReuploadBytes = 10 << 20

	attachmentFetchTimeout = 30 * time.Second
)

// restAPI is the slice of session surface the dispatcher depends on.
type restAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID string, messageID string, options ...discordgo.RequestOption) error
	ChannelWebhooks(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Webhook, error)
	WebhookCreate(channelID string, name string, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	WebhookDelete(webhookID string, options ...discordgo.RequestOption) error
	WebhookExecute(webhookID string, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookThreadExecute(webhookID string, token string, wait bool, threadID string, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// OutboundDispatcher adapts neutral outbound operations to Discord REST calls.
type OutboundDispatcher struct {
	api             restAPI
	webhookName     string
	logger          *slog.Logger
	fetchAttachment func(ctx context.Context, rawURL string) (io.ReadCloser, error)

	mu    sync.Mutex
	owned map[string]struct{}
}

// NewOutboundDispatcher creates a Discord outbound dispatcher on one session.
func NewOutboundDispatcher(session *discordgo.Session, webhookName string, logger *slog.Logger) *OutboundDispatcher {
	return newOutboundDispatcherWithAPI(session, webhookName, logger)
}

func newOutboundDispatcherWithAPI(api restAPI, webhookName string, logger *slog.Logger) *OutboundDispatcher {
	if webhookName == "" {
		webhookName = DefaultWebhookName
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OutboundDispatcher{
		api:             api,
		webhookName:     webhookName,
		logger:          logger,
		fetchAttachment: httpAttachmentFetcher(),
		owned:           make(map[string]struct{}),
	}
}

// OwnsWebhook reports whether the dispatcher has found or created the webhook
// with the given id. Messages executed through an owned webhook are this bot's
// own output, whatever persona they carry.
func (d *OutboundDispatcher) OwnsWebhook(webhookID string) bool {
	if webhookID == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.owned[webhookID]

	return ok
}

func (d *OutboundDispatcher) rememberWebhook(webhookID string) {
	if webhookID == "" {
		return
	}

	d.mu.Lock()
	d.owned[webhookID] = struct{}{}
	d.mu.Unlock()
}

// SendMessage publishes a regular bot message to a Discord channel.
func (d *OutboundDispatcher) SendMessage(
	ctx context.Context,
	request remark.SendMessageRequest,
) (*remark.OutboundMessage, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("send message validate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	data := &discordgo.MessageSend{
		Content: request.Text,
		Embeds:  mapOutboundEmbeds(request.Embeds),
	}
	if request.ReplyToMessageID != "" {
		data.Reference = &discordgo.MessageReference{
			MessageID: request.ReplyToMessageID,
			ChannelID: request.Target.Conversation.ID,
		}
	}
	if request.SuppressMentions {
		data.AllowedMentions = &discordgo.MessageAllowedMentions{}
	}

	files, links, release := d.attachmentFiles(ctx, request.Attachments)
	defer release()
	data.Files = files
	data.Content = appendLinkLines(data.Content, links)

	sent, err := d.api.ChannelMessageSendComplex(request.Target.Conversation.ID, data)
	if err != nil {
		return nil, fmt.Errorf("send message to channel %s: %w", request.Target.Conversation.ID, err)
	}

	return &remark.OutboundMessage{ID: sent.ID, Target: request.Target}, nil
}

// SendWebhook publishes an impersonated message through the named channel
// webhook. Thread targets execute on the parent channel's webhook because
// webhooks attach to channels.
func (d *OutboundDispatcher) SendWebhook(
	ctx context.Context,
	request remark.SendWebhookRequest,
) (*remark.OutboundMessage, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("send webhook validate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("send webhook: %w", err)
	}

	channelID := request.Target.Conversation.ID
	threadID := ""
	if request.Target.Conversation.Type == remark.ConversationTypeThread {
		if request.Target.Conversation.ParentID == "" {
			return nil, fmt.Errorf(
				"%w: thread %s has no parent channel for webhook delivery",
				remark.ErrInvalidOutboundRequest,
				request.Target.Conversation.ID,
			)
		}
		channelID = request.Target.Conversation.ParentID
		threadID = request.Target.Conversation.ID
	}

	webhook, err := d.ensureWebhook(channelID)
	if err != nil {
		return nil, fmt.Errorf("send webhook to channel %s: %w", channelID, err)
	}

	params := &discordgo.WebhookParams{
		Content:   request.Text,
		Username:  request.Persona.DisplayName,
		AvatarURL: request.Persona.AvatarURL,
		Embeds:    mapOutboundEmbeds(request.Embeds),
	}
	if request.SuppressMentions {
		params.AllowedMentions = &discordgo.MessageAllowedMentions{}
	}

	files, links, release := d.attachmentFiles(ctx, request.Attachments)
	defer release()
	params.Files = files
	params.Content = appendLinkLines(params.Content, links)

	var sent *discordgo.Message
	if threadID != "" {
		sent, err = d.api.WebhookThreadExecute(webhook.ID, webhook.Token, true, threadID, params)
	} else {
		sent, err = d.api.WebhookExecute(webhook.ID, webhook.Token, true, params)
	}
	if err != nil {
		return nil, fmt.Errorf("execute webhook %s: %w", webhook.ID, err)
	}

	result := &remark.OutboundMessage{Target: request.Target}
	if sent != nil {
		result.ID = sent.ID
	}

	return result, nil
}

// DeleteMessage removes one message from its channel.
func (d *OutboundDispatcher) DeleteMessage(ctx context.Context, request remark.DeleteMessageRequest) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("delete message validate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	if err := d.api.ChannelMessageDelete(request.Target.Conversation.ID, request.MessageID); err != nil {
		return fmt.Errorf("delete message %s: %w", request.MessageID, err)
	}

	return nil
}

// ensureWebhook returns the channel webhook carrying the configured name.
// A stale entry without a usable token is deleted and recreated so execution
// never runs against a webhook this bot cannot post through.
func (d *OutboundDispatcher) ensureWebhook(channelID string) (*discordgo.Webhook, error) {
	webhooks, err := d.api.ChannelWebhooks(channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel webhooks: %w", err)
	}

	for _, webhook := range webhooks {
		if webhook == nil || webhook.Name != d.webhookName {
			continue
		}
		d.rememberWebhook(webhook.ID)
		if webhook.Token != "" {
			return webhook, nil
		}

		d.logger.Debug("recreating webhook without usable token",
			"channel_id", channelID,
			"webhook_id", webhook.ID,
		)
		if err := d.api.WebhookDelete(webhook.ID); err != nil {
			return nil, fmt.Errorf("delete stale webhook %s: %w", webhook.ID, err)
		}
		break
	}

	created, err := d.api.WebhookCreate(channelID, d.webhookName, "")
	if err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	d.rememberWebhook(created.ID)

	return created, nil
}

// attachmentFiles downloads the request's attachments for re-upload. An
// attachment that cannot be re-uploaded, because it is oversized or its
// download fails, degrades to its source link. The returned release func
// closes the download bodies and must run after the send.
func (d *OutboundDispatcher) attachmentFiles(
	ctx context.Context,
	attachments []remark.Attachment,
) ([]*discordgo.File, []string, func()) {
	var (
		files   []*discordgo.File
		links   []string
		closers []io.Closer
	)
	for _, attachment := range attachments {
		if attachment.URL == "" {
			continue
		}
		if attachment.SizeBytes > maxReuploadBytes || d.fetchAttachment == nil {
			links = append(links, attachment.URL)
			continue
		}

		body, err := d.fetchAttachment(ctx, attachment.URL)
		if err != nil {
			d.logger.Warn("attachment download failed, linking source instead",
				"url", attachment.URL,
				"error", err,
			)
			links = append(links, attachment.URL)
			continue
		}
		closers = append(closers, body)
		files = append(files, &discordgo.File{
			Name:        attachmentFileName(attachment),
			ContentType: attachment.MIMEType,
			Reader:      body,
		})
	}

	release := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}

	return files, links, release
}

func attachmentFileName(attachment remark.Attachment) string {
	if attachment.FileName != "" {
		return attachment.FileName
	}
	if parsed, err := url.Parse(attachment.URL); err == nil {
		if name := path.Base(parsed.Path); name != "." && name != "/" {
			return name
		}
	}

	return "attachment"
}

func appendLinkLines(content string, links []string) string {
	if len(links) == 0 {
		return content
	}
	joined := strings.Join(links, "\n")
	if content == "" {
		return joined
	}

	return content + "\n\n" + joined
}

func httpAttachmentFetcher() func(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	client := &http.Client{Timeout: attachmentFetchTimeout}

	return func(ctx context.Context, rawURL string) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build attachment request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch attachment: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()

			return nil, fmt.Errorf("fetch attachment: unexpected status %s", resp.Status)
		}

		return resp.Body, nil
	}
}

func mapOutboundEmbeds(embeds []remark.Embed) []*discordgo.MessageEmbed {
	if len(embeds) == 0 {
		return nil
	}

	mapped := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, embed := range embeds {
		mapped = append(mapped, &discordgo.MessageEmbed{
			Type:        discordgo.EmbedType(embed.Type),
			Title:       embed.Title,
			Description: embed.Description,
			URL:         embed.URL,
			Color:       embed.Color,
		})
	}

	return mapped
}

var _ remark.OutboundDispatcher = (*OutboundDispatcher)(nil)
