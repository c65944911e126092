package help

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"remark-bot/pkg/remark"
)

const helpCommandName = "help"

// Module replies with command reference text when it receives a /help command.
type Module struct {
	dispatcher remark.OutboundDispatcher
	catalog    remark.CommandCatalog
}

// New creates a help module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Spec declares interest in help command events.
func (m *Module) Spec() remark.ModuleSpec {
	return remark.ModuleSpec{
		Handlers: []remark.ModuleHandler{
			{
				Capability: remark.Capability{
					Name:        "help-command-handler",
					Description: "renders registered command help for /help",
					Interest: remark.InterestSet{
						Kinds:          []remark.EventKind{remark.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{helpCommandName},
					},
					RequiredServices: []string{
						remark.ServiceOutboundDispatcher,
						remark.ServiceCommandCatalog,
					},
				},
				Subscription: remark.NewDefaultSubscriptionSpec("help-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []remark.CommandSpec{
			{
				Name:        helpCommandName,
				Description: "show all available commands",
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime remark.ModuleRuntime) error {
	dispatcher, err := remark.ResolveAs[remark.OutboundDispatcher](
		runtime.Services(),
		remark.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("help resolve outbound dispatcher: %w", err)
	}
	catalog, err := remark.ResolveAs[remark.CommandCatalog](
		runtime.Services(),
		remark.ServiceCommandCatalog,
	)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}

	m.dispatcher = dispatcher
	m.catalog = catalog

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *remark.Event) error {
	if event == nil || event.Command == nil || event.Message == nil {
		return nil
	}
	if event.Kind != remark.EventKindCommandReceived {
		return nil
	}
	if event.Command.Name != helpCommandName {
		return nil
	}
	if m.dispatcher == nil {
		return fmt.Errorf("help handle command: outbound dispatcher not configured")
	}
	if m.catalog == nil {
		return fmt.Errorf("help handle command: command catalog not configured")
	}

	commands, err := m.catalog.ListCommands(ctx)
	if err != nil {
		return fmt.Errorf("help list commands: %w", err)
	}
	body := renderHelp(commands)

	target, err := remark.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("help derive outbound target: %w", err)
	}
	_, err = m.dispatcher.SendMessage(ctx, remark.SendMessageRequest{
		Target:           target,
		Text:             body,
		ReplyToMessageID: event.Message.ID,
		SuppressMentions: true,
	})
	if err != nil {
		return fmt.Errorf("help send help message: %w", err)
	}

	return nil
}

func renderHelp(commands []remark.RegisteredCommand) string {
	if len(commands) == 0 {
		return "Available commands:\n(none)"
	}

	sorted := append([]remark.RegisteredCommand(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool {
		left := commandLabel(sorted[i].Command)
		right := commandLabel(sorted[j].Command)
		if left == right {
			return sorted[i].ModuleName < sorted[j].ModuleName
		}
		return left < right
	})

	lines := make([]string, 0, len(sorted)*4+1)
	lines = append(lines, "Available commands:\n")
	for index, command := range sorted {
		if index > 0 {
			lines = append(lines, "")
		}
		label := commandLabel(command.Command)
		description := strings.TrimSpace(command.Command.Description)
		moduleName := strings.TrimSpace(command.ModuleName)
		if moduleName == "" {
			moduleName = "unknown"
		}

		lines = append(lines, label)
		if aliases := renderAliases(command.Command.Aliases); aliases != "" {
			lines = append(lines, aliases)
		}
		if description != "" {
			lines = append(lines, description)
		}
		lines = append(lines, fmt.Sprintf("(%s)", moduleName))
	}

	return strings.Join(lines, "\n")
}

func commandLabel(command remark.CommandSpec) string {
	return fmt.Sprintf("%s%s", remark.CommandPrefix, strings.ToLower(strings.TrimSpace(command.Name)))
}

func renderAliases(aliases []string) string {
	labels := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		normalized := strings.ToLower(strings.TrimSpace(alias))
		if normalized == "" {
			continue
		}
		labels = append(labels, remark.CommandPrefix+normalized)
	}
	if len(labels) == 0 {
		return ""
	}

	return fmt.Sprintf("aliases: %s", strings.Join(labels, ", "))
}

var (
	_ remark.Module          = (*Module)(nil)
	_ remark.ModuleRegistrar = (*Module)(nil)
)
