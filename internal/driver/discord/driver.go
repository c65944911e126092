package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"remark-bot/pkg/remark"
)

const (
	// DriverType is the configuration type token for this driver.
	DriverType = "discord"
	// DriverPlatform is the neutral platform served by this driver.
	DriverPlatform = remark.PlatformDiscord

	defaultPublishTimeout = 2 * time.Second
)

// webhookRegistry answers whether a webhook id belongs to this bot's own
// dispatcher. The dispatcher implements it over the webhooks it has found or
// created.
type webhookRegistry interface {
	OwnsWebhook(webhookID string) bool
}

// Driver adapts Discord gateway events into neutral events.
type Driver struct {
	name           string
	webhookName    string
	publishTimeout time.Duration
	logger         *slog.Logger
	session        *discordgo.Session
	now            func() time.Time

	webhookOwner webhookRegistry
	fetchWebhook func(webhookID string) (*discordgo.Webhook, error)

	webhookMu      sync.Mutex
	webhookVerdict map[string]bool

	startMu sync.Mutex
	started bool
}

// BuildRuntimeFromConfig constructs the gateway driver and its outbound
// dispatcher from one configured JSON payload. Both share one session.
func BuildRuntimeFromConfig(name string, logger *slog.Logger, raw []byte) (*Driver, *OutboundDispatcher, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("build discord runtime: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("build discord runtime: new session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	session.StateEnabled = true
	session.State.MaxMessageCount = cfg.MessageCacheSize

	if logger == nil {
		logger = slog.Default()
	}

	runtimeDriver := &Driver{
		name:           name,
		webhookName:    cfg.WebhookName,
		publishTimeout: defaultPublishTimeout,
		logger:         logger,
		session:        session,
		now:            time.Now,
		webhookVerdict: make(map[string]bool),
	}
	dispatcher := NewOutboundDispatcher(session, cfg.WebhookName, logger)
	runtimeDriver.webhookOwner = dispatcher
	runtimeDriver.fetchWebhook = func(webhookID string) (*discordgo.Webhook, error) {
		return session.Webhook(webhookID)
	}

	return runtimeDriver, dispatcher, nil
}

// Name returns the stable driver identifier.
func (d *Driver) Name() string {
	if d.name != "" {
		return d.name
	}

	return DriverType
}

// Start opens the gateway session, publishes neutral events until context
// cancellation, then closes the session.
func (d *Driver) Start(ctx context.Context, sink remark.EventSink) error {
	if sink == nil {
		return fmt.Errorf("start discord driver: nil sink")
	}
	if err := d.markStarted(); err != nil {
		return err
	}
	defer d.markStopped()

	removeCreate := d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		d.handleCreate(ctx, sink, m)
	})
	removeUpdate := d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
		d.handleUpdate(ctx, sink, m)
	})
	removeDelete := d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageDelete) {
		d.handleDelete(ctx, sink, m)
	})
	defer removeCreate()
	defer removeUpdate()
	defer removeDelete()

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("start discord driver: open gateway: %w", err)
	}
	d.logger.Info("discord gateway connected", "driver", d.Name())

	<-ctx.Done()

	if err := d.session.Close(); err != nil {
		return fmt.Errorf("start discord driver: close gateway: %w", err)
	}

	return nil
}

// Shutdown releases resources not controlled by the Start context.
func (d *Driver) Shutdown(_ context.Context) error {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if !d.started {
		return nil
	}

	if err := d.session.Close(); err != nil {
		return fmt.Errorf("shutdown discord driver: %w", err)
	}

	return nil
}

func (d *Driver) markStarted() error {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.started {
		return fmt.Errorf("start discord driver: already started")
	}
	d.started = true

	return nil
}

func (d *Driver) markStopped() {
	d.startMu.Lock()
	d.started = false
	d.startMu.Unlock()
}

func (d *Driver) handleCreate(ctx context.Context, sink remark.EventSink, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	if d.isOwnActivity(m.Author, m.WebhookID) {
		return
	}

	event := createdEvent(m.Message, d.conversationFor(m.ChannelID), d.now())
	d.publish(ctx, sink, event)
}

func (d *Driver) handleUpdate(ctx context.Context, sink remark.EventSink, m *discordgo.MessageUpdate) {
	if m == nil || m.Message == nil {
		return
	}
	author := m.Author
	if author == nil && m.BeforeUpdate != nil {
		author = m.BeforeUpdate.Author
	}
	if author == nil {
		return
	}
	if d.isOwnActivity(author, m.WebhookID) {
		return
	}

	event := editedEvent(m.Message, m.BeforeUpdate, d.conversationFor(m.ChannelID), d.now())
	d.publish(ctx, sink, event)
}

func (d *Driver) handleDelete(ctx context.Context, sink remark.EventSink, m *discordgo.MessageDelete) {
	if m == nil || m.Message == nil {
		return
	}
	if m.BeforeDelete != nil && m.BeforeDelete.Author != nil {
		if d.isOwnActivity(m.BeforeDelete.Author, m.BeforeDelete.WebhookID) {
			return
		}
	}

	event := deletedEvent(m.ID, m.BeforeDelete, d.conversationFor(m.ChannelID), d.now())
	d.publish(ctx, sink, event)
}

// isOwnActivity reports whether an inbound message originated from this bot
// user or from the bot's own response webhook. Those never reach the kernel.
// Webhook sends impersonate the sniped author, so the author fields carry the
// persona; only the webhook id identifies the sender.
func (d *Driver) isOwnActivity(author *discordgo.User, webhookID string) bool {
	if author == nil {
		return false
	}
	if d.session != nil && d.session.State != nil && d.session.State.User != nil &&
		author.ID == d.session.State.User.ID {
		return true
	}
	if webhookID == "" {
		return false
	}
	if d.webhookOwner != nil && d.webhookOwner.OwnsWebhook(webhookID) {
		return true
	}

	return d.isOwnWebhookID(webhookID)
}

// isOwnWebhookID resolves webhook ids the dispatcher has not touched this
// process, such as a webhook created by a previous run. Verdicts are cached
// per id; lookup failures stay uncached so a transient error can retry.
func (d *Driver) isOwnWebhookID(webhookID string) bool {
	d.webhookMu.Lock()
	verdict, seen := d.webhookVerdict[webhookID]
	d.webhookMu.Unlock()
	if seen {
		return verdict
	}
	if d.fetchWebhook == nil {
		return false
	}

	webhook, err := d.fetchWebhook(webhookID)
	if err != nil {
		d.logger.Debug("webhook identity lookup failed",
			"driver", d.Name(),
			"webhook_id", webhookID,
			"error", err,
		)

		return false
	}

	verdict = webhook != nil && webhook.Name == d.webhookName
	d.webhookMu.Lock()
	d.webhookVerdict[webhookID] = verdict
	d.webhookMu.Unlock()

	return verdict
}

func (d *Driver) conversationFor(channelID string) remark.Conversation {
	var channel *discordgo.Channel
	if d.session.State != nil {
		channel, _ = d.session.State.Channel(channelID)
	}

	return mapChannel(channelID, channel)
}

func (d *Driver) publish(ctx context.Context, sink remark.EventSink, event *remark.Event) {
	publishCtx := ctx
	cancel := func() {}
	if d.publishTimeout > 0 {
		publishCtx, cancel = context.WithTimeout(ctx, d.publishTimeout)
	}
	defer cancel()

	if err := sink.Publish(publishCtx, event); err != nil {
		d.logger.Warn("discord event publish failed",
			"driver", d.Name(),
			"kind", string(event.Kind),
			"error", err,
		)
	}
}
