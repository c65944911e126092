package snipe

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"remark-bot/pkg/remark"
)

const (
	moduleName        = "snipe"
	snipeCommandName  = "snipe"
	snipeCommandAlias = "s"
)

// Option mutates snipe module configuration.
type Option func(*Module)

// WithLogger injects a logger for lifecycle and eviction events.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// withClock overrides the time source for deterministic tests.
func withClock(clock func() time.Time) Option {
	return func(module *Module) {
		if clock != nil {
			module.clock = clock
		}
	}
}

// Module records pre-mutation message states and replays them on /snipe.
type Module struct {
	logger     *slog.Logger
	dispatcher remark.OutboundDispatcher
	settings   Settings
	clock      func() time.Time

	store  *Store
	policy ExpiryPolicy
	pruner *Pruner
}

// New creates a snipe module with validated settings.
func New(settings Settings, options ...Option) (*Module, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("snipe module: %w", err)
	}

	module := &Module{
		logger:   slog.Default(),
		settings: settings,
		clock:    time.Now,
		store:    NewStore(),
	}
	for _, option := range options {
		option(module)
	}
	module.policy = NewExpiryPolicy(settings.MaxAge, module.clock)

	return module, nil
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return moduleName
}

// Spec declares the mutation recorder and the /snipe command handler.
func (m *Module) Spec() remark.ModuleSpec {
	return remark.ModuleSpec{
		Handlers: []remark.ModuleHandler{
			{
				Capability: remark.Capability{
					Name:        "snipe-recorder",
					Description: "records the prior state of edited and deleted messages",
					Interest: remark.InterestSet{
						Kinds: []remark.EventKind{
							remark.EventKindMessageEdited,
							remark.EventKindMessageDeleted,
						},
						RequireMutation: true,
					},
				},
				Subscription: remark.NewDefaultSubscriptionSpec("snipe-mutations"),
				Handler:      m.handleMutation,
			},
			{
				Capability: remark.Capability{
					Name:        "snipe-command-handler",
					Description: "replays a recently edited or deleted message by recency index",
					Interest: remark.InterestSet{
						Kinds:          []remark.EventKind{remark.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{snipeCommandName},
					},
					RequiredServices: []string{remark.ServiceOutboundDispatcher},
				},
				Subscription: remark.NewDefaultSubscriptionSpec("snipe-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []remark.CommandSpec{
			{
				Name:        snipeCommandName,
				Aliases:     []string{snipeCommandAlias},
				Description: "replay a recently edited or deleted message, newest first; optional 1-based index",
			},
		},
	}
}

// OnRegister resolves the outbound dispatcher and publishes this module as
// the snipe store service.
func (m *Module) OnRegister(_ context.Context, runtime remark.ModuleRuntime) error {
	dispatcher, err := remark.ResolveAs[remark.OutboundDispatcher](
		runtime.Services(),
		remark.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("snipe resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	if err := runtime.Services().Register(remark.ServiceSnipeStore, m); err != nil {
		return fmt.Errorf("snipe register store service: %w", err)
	}

	return nil
}

// OnStart launches the background prune loop.
func (m *Module) OnStart(_ context.Context) error {
	m.pruner = NewPruner(m.store, m.policy, m.settings.PruneInterval, m.logger)
	m.pruner.Start()
	m.logger.Info("snipe module started",
		"max_age", m.settings.MaxAge,
		"prune_interval", m.settings.PruneInterval,
		"response_mode", string(m.settings.ResponseMode),
		"allow_edit_sniping", m.settings.AllowEditSniping,
		"allow_deletion_sniping", m.settings.AllowDeletionSniping,
		"allow_self_snipe", m.settings.AllowSelfSnipe,
	)

	return nil
}

// OnShutdown stops the prune loop and drops tracked histories.
func (m *Module) OnShutdown(_ context.Context) error {
	if m.pruner != nil {
		m.pruner.Stop()
	}
	m.store.Clear()
	m.logger.Info("snipe module stopped")

	return nil
}

// OrderedCandidates implements remark.SnipeStore.
func (m *Module) OrderedCandidates(ctx context.Context, conversationID string) ([]remark.MessageHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("snipe ordered candidates: %w", err)
	}

	return ChannelCandidates(m.store.Snapshot(), m.policy, conversationID), nil
}

// Consume implements remark.SnipeStore. Consuming an id the pruner already
// evicted is a normal outcome.
func (m *Module) Consume(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("snipe consume: %w", err)
	}
	m.store.Remove(messageID)

	return nil
}

func (m *Module) handleMutation(_ context.Context, event *remark.Event) error {
	if event == nil || event.Mutation == nil {
		return nil
	}
	switch event.Kind {
	case remark.EventKindMessageEdited:
		if !m.settings.AllowEditSniping {
			return nil
		}
	case remark.EventKindMessageDeleted:
		if !m.settings.AllowDeletionSniping {
			return nil
		}
	default:
		return nil
	}

	state, err := remark.StateFromMutationEvent(event)
	if err != nil {
		return fmt.Errorf("snipe record mutation: %w", err)
	}

	m.store.Record(state.Message.ID, state)
	m.logger.Debug("snipe state recorded",
		"message_id", state.Message.ID,
		"conversation_id", state.Conversation.ID,
		"change_type", string(state.ChangeType),
	)

	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *remark.Event) error {
	if event == nil || event.Command == nil || event.Message == nil {
		return nil
	}
	if event.Kind != remark.EventKindCommandReceived {
		return nil
	}
	if event.Command.Name != snipeCommandName {
		return nil
	}

	target, err := remark.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("snipe derive outbound target: %w", err)
	}

	if !m.settings.AllowEditSniping && !m.settings.AllowDeletionSniping {
		return m.reply(ctx, target, event, snipingDisabledReply)
	}

	index := 1
	if len(event.Command.Args) > 0 {
		parsed, parseErr := strconv.Atoi(event.Command.Args[0])
		if parseErr != nil {
			return m.reply(ctx, target, event,
				fmt.Sprintf("Snipe index must be a whole number, got %q.", event.Command.Args[0]))
		}
		index = parsed
	}

	candidates, err := m.OrderedCandidates(ctx, event.Conversation.ID)
	if err != nil {
		return err
	}
	if !m.settings.AllowSelfSnipe {
		candidates = ExcludeAuthor(candidates, event.Actor.ID)
	}

	history, found := SelectByIndex(candidates, index)
	if !found {
		return m.reply(ctx, target, event, noMessagesReply)
	}
	latest, found := history.Latest()
	if !found {
		return m.reply(ctx, target, event, noMessagesReply)
	}

	render := responder{dispatcher: m.dispatcher, logger: m.logger}
	response, deliverErr := render.deliver(ctx, target, latest, m.settings.ResponseMode, event.Message.ID)
	if response != nil {
		if consumeErr := m.Consume(ctx, latest.Message.ID); consumeErr != nil && deliverErr == nil {
			deliverErr = consumeErr
		}
	}

	return deliverErr
}

func (m *Module) reply(ctx context.Context, target remark.OutboundTarget, event *remark.Event, text string) error {
	if m.dispatcher == nil {
		return fmt.Errorf("snipe reply: outbound dispatcher not configured")
	}

	_, err := m.dispatcher.SendMessage(ctx, remark.SendMessageRequest{
		Target:           target,
		Text:             text,
		ReplyToMessageID: event.Message.ID,
		SuppressMentions: true,
	})
	if err != nil {
		return fmt.Errorf("snipe reply: %w", err)
	}

	return nil
}

var (
	_ remark.Module          = (*Module)(nil)
	_ remark.ModuleRegistrar = (*Module)(nil)
	_ remark.SnipeStore      = (*Module)(nil)
)
