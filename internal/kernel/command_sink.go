package kernel

import (
	"context"
	"fmt"
	"strings"

	"remark-bot/pkg/remark"
)

type commandRegistration struct {
	moduleName string
	spec       remark.CommandSpec
}

// registerModuleCommands validates and registers module-owned command specs.
// Every name and alias claims a registry slot so two modules cannot collide
// on the same invocation token.
func (k *Kernel) registerModuleCommands(moduleName string, commands []remark.CommandSpec) error {
	if len(commands) == 0 {
		return nil
	}

	normalized := make([]remark.CommandSpec, 0, len(commands))
	seenInModule := make(map[string]struct{}, len(commands))
	for index, command := range commands {
		if err := command.Validate(); err != nil {
			return fmt.Errorf("register command[%d] for module %s: %w", index, moduleName, err)
		}

		command = cloneCommandSpec(command)
		for _, name := range command.Names() {
			if _, exists := seenInModule[name]; exists {
				return fmt.Errorf(
					"register command %s%s for module %s: duplicate declaration",
					remark.CommandPrefix, name, moduleName,
				)
			}
			seenInModule[name] = struct{}{}
		}
		normalized = append(normalized, command)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, command := range normalized {
		for _, name := range command.Names() {
			existing, exists := k.commands[name]
			if exists {
				return fmt.Errorf(
					"register command %s%s for module %s: already registered by module %s",
					remark.CommandPrefix, name, moduleName, existing.moduleName,
				)
			}
		}
	}
	for _, command := range normalized {
		for _, name := range command.Names() {
			k.commands[name] = commandRegistration{
				moduleName: moduleName,
				spec:       command,
			}
		}
	}

	return nil
}

// unregisterModuleCommands removes every command owned by one module.
func (k *Kernel) unregisterModuleCommands(moduleName string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for name, registration := range k.commands {
		if registration.moduleName == moduleName {
			delete(k.commands, name)
		}
	}
}

// lookupCommand resolves one command spec by normalized name or alias.
func (k *Kernel) lookupCommand(name string) (remark.CommandSpec, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))

	k.mu.RLock()
	registration, exists := k.commands[normalized]
	k.mu.RUnlock()
	if !exists {
		return remark.CommandSpec{}, false
	}

	return cloneCommandSpec(registration.spec), true
}

// newDriverEventSink creates the source-event sink wrapped with command derivation.
func (k *Kernel) newDriverEventSink() remark.EventSink {
	return &commandDerivingSink{
		base:          k.bus,
		lookupCommand: k.lookupCommand,
		reportAsync:   k.cfg.onAsyncError,
	}
}

// commandDerivingSink publishes source events and derives command events.
type commandDerivingSink struct {
	base          remark.EventSink
	lookupCommand func(name string) (remark.CommandSpec, bool)
	reportAsync   func(context.Context, string, error)
}

// Publish forwards one source event and conditionally derives one command event.
// Unknown commands and non-command text pass through silently. Syntax and bind
// failures on a registered command are reported to the async error sink instead
// of failing source delivery.
func (s *commandDerivingSink) Publish(ctx context.Context, event *remark.Event) error {
	if event == nil {
		return fmt.Errorf("publish command deriving sink: nil event")
	}
	if s.base == nil {
		return fmt.Errorf("publish command deriving sink: nil base sink")
	}

	if err := s.base.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish source event %s: %w", event.Kind, err)
	}

	if event.Kind != remark.EventKindMessageCreated || event.Message == nil {
		return nil
	}

	candidate, matched, parseErr := remark.ParseCommandCandidate(event.Message.Text)
	if !matched {
		return nil
	}
	if parseErr != nil {
		s.reportAsyncError(ctx, "parse command candidate", parseErr)
		return nil
	}

	spec, registered := s.lookupCommand(candidate.Name)
	if !registered {
		return nil
	}

	invocation, bindErr := remark.BindCommand(candidate, spec, event)
	if bindErr != nil {
		s.reportAsyncError(ctx, "bind command "+candidate.Name, bindErr)
		return nil
	}

	commandEvent := derivedCommandEvent(event, invocation)
	if err := s.base.Publish(ctx, commandEvent); err != nil {
		return fmt.Errorf("publish derived command %s: %w", invocation.Name, err)
	}

	return nil
}

func (s *commandDerivingSink) reportAsyncError(ctx context.Context, scope string, err error) {
	if s.reportAsync != nil {
		s.reportAsync(ctx, scope, err)
	}
}

// derivedCommandEvent clones the source envelope with a command payload so
// downstream handler mutation cannot reach the source event.
func derivedCommandEvent(sourceEvent *remark.Event, invocation remark.CommandInvocation) *remark.Event {
	message := remark.CloneMessage(*sourceEvent.Message)

	return &remark.Event{
		ID:           sourceEvent.ID + "#command",
		Kind:         remark.EventKindCommandReceived,
		OccurredAt:   sourceEvent.OccurredAt,
		Platform:     sourceEvent.Platform,
		Conversation: sourceEvent.Conversation,
		Actor:        sourceEvent.Actor,
		Message:      &message,
		Command:      &invocation,
		Metadata:     cloneStringMap(sourceEvent.Metadata),
	}
}

func cloneCommandSpec(spec remark.CommandSpec) remark.CommandSpec {
	cloned := spec
	cloned.Name = strings.ToLower(strings.TrimSpace(spec.Name))
	if len(spec.Aliases) > 0 {
		cloned.Aliases = make([]string, 0, len(spec.Aliases))
		for _, alias := range spec.Aliases {
			cloned.Aliases = append(cloned.Aliases, strings.ToLower(strings.TrimSpace(alias)))
		}
	}

	return cloned
}

func cloneStringMap(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	cloned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}

	return cloned
}
