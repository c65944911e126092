package remark

import (
	"context"
	"fmt"
	"strings"
)

// ServiceCommandCatalog is the canonical service registry key for command discovery.
const ServiceCommandCatalog = "remark.command_catalog"

// CommandPrefix introduces one command invocation in message text.
const CommandPrefix = "/"

// CommandSpec declares one module command registration.
type CommandSpec struct {
	// Name is the command name without prefix and mention suffix.
	Name string
	// Aliases lists alternate names binding to the same command.
	Aliases []string
	// Description describes command behavior for diagnostics and help text.
	Description string
}

// Validate checks command specification coherence.
func (s CommandSpec) Validate() error {
	if normalizeCommandName(s.Name) == "" {
		return fmt.Errorf("validate command spec: missing name")
	}
	if strings.ContainsAny(s.Name, " \t\r\n") {
		return fmt.Errorf("validate command spec: name %q contains whitespace", s.Name)
	}

	seen := map[string]struct{}{normalizeCommandName(s.Name): {}}
	for _, alias := range s.Aliases {
		normalized := normalizeCommandName(alias)
		if normalized == "" {
			return fmt.Errorf("validate command spec %s: empty alias", s.Name)
		}
		if _, exists := seen[normalized]; exists {
			return fmt.Errorf("validate command spec %s: duplicate alias %q", s.Name, alias)
		}
		seen[normalized] = struct{}{}
	}

	return nil
}

// Names returns the canonical name followed by all aliases, normalized.
func (s CommandSpec) Names() []string {
	names := make([]string, 0, 1+len(s.Aliases))
	names = append(names, normalizeCommandName(s.Name))
	for _, alias := range s.Aliases {
		names = append(names, normalizeCommandName(alias))
	}

	return names
}

// CommandCandidate is a parsed command-looking message before spec binding.
type CommandCandidate struct {
	// Name is the normalized command name without prefix and mention suffix.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// Args stores whitespace-separated tokens after the command header.
	Args []string
	// RawInput is the original untrimmed message text.
	RawInput string
}

// CommandInvocation carries one validated command event payload.
type CommandInvocation struct {
	// Name is the canonical command name from the bound spec, never an alias.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// Args stores positional argument tokens.
	Args []string
	// SourceEventID identifies the inbound event that produced this command.
	SourceEventID string
	// RawInput stores the original inbound message text.
	RawInput string
}

// Validate checks command invocation contract fields.
func (c *CommandInvocation) Validate() error {
	if c == nil {
		return fmt.Errorf("validate command invocation: nil invocation")
	}
	if normalizeCommandName(c.Name) == "" {
		return fmt.Errorf("validate command invocation: missing name")
	}
	if c.SourceEventID == "" {
		return fmt.Errorf("validate command invocation: missing source_event_id")
	}

	return nil
}

// ParseCommandCandidate parses one input text into a command candidate.
//
// matched is false when text does not look like a command. When matched is
// true, err reports syntax issues such as a missing command name.
func ParseCommandCandidate(text string) (candidate CommandCandidate, matched bool, err error) {
	candidate.RawInput = text

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return candidate, false, nil
	}
	header := fields[0]
	if !strings.HasPrefix(header, CommandPrefix) {
		return candidate, false, nil
	}

	name, mention := splitCommandHeader(header[len(CommandPrefix):])
	candidate.Name = normalizeCommandName(name)
	candidate.Mention = strings.TrimSpace(mention)
	if candidate.Name == "" {
		return candidate, true, fmt.Errorf("parse command candidate: missing command name")
	}

	if len(fields) > 1 {
		candidate.Args = append([]string(nil), fields[1:]...)
	}

	return candidate, true, nil
}

// BindCommand validates one parsed candidate against one command spec.
//
// sourceEvent must identify the inbound event that produced this command.
func BindCommand(candidate CommandCandidate, spec CommandSpec, sourceEvent *Event) (CommandInvocation, error) {
	if sourceEvent == nil {
		return CommandInvocation{}, fmt.Errorf("bind command: nil source event")
	}
	if err := spec.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}
	if !containsString(spec.Names(), normalizeCommandName(candidate.Name)) {
		return CommandInvocation{}, fmt.Errorf("bind command %s: name mismatch, got %q", spec.Name, candidate.Name)
	}

	invocation := CommandInvocation{
		Name:          normalizeCommandName(spec.Name),
		Mention:       candidate.Mention,
		Args:          append([]string(nil), candidate.Args...),
		SourceEventID: sourceEvent.ID,
		RawInput:      candidate.RawInput,
	}
	if err := invocation.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}

	return invocation, nil
}

// RegisteredCommand describes one runtime command registration entry.
type RegisteredCommand struct {
	// ModuleName identifies which module registered this command.
	ModuleName string
	// Command is the registered command specification.
	Command CommandSpec
}

// CommandCatalog provides read access to registered command specifications.
//
// Implementations must be concurrency-safe because modules can list commands
// from multiple workers at the same time.
type CommandCatalog interface {
	// ListCommands returns all currently registered command entries.
	//
	// Returned entries should be a defensive copy so caller mutation does not
	// affect runtime command registration state.
	ListCommands(ctx context.Context) ([]RegisteredCommand, error)
}

func splitCommandHeader(token string) (name string, mention string) {
	if token == "" {
		return "", ""
	}
	separator := strings.Index(token, "@")
	if separator < 0 {
		return token, ""
	}

	return token[:separator], token[separator+1:]
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
