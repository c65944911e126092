package remark

import (
	"testing"
	"time"
)

func TestParseCommandCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		text        string
		wantMatched bool
		wantErr     bool
		wantName    string
		wantMention string
		wantArgs    []string
	}{
		{
			name:        "plain command",
			text:        "/snipe",
			wantMatched: true,
			wantName:    "snipe",
		},
		{
			name:        "command with index argument",
			text:        "/snipe 3",
			wantMatched: true,
			wantName:    "snipe",
			wantArgs:    []string{"3"},
		},
		{
			name:        "command with mention suffix",
			text:        "/snipe@remark 2",
			wantMatched: true,
			wantName:    "snipe",
			wantMention: "remark",
			wantArgs:    []string{"2"},
		},
		{
			name:        "uppercase command is normalized",
			text:        "/SNIPE",
			wantMatched: true,
			wantName:    "snipe",
		},
		{
			name:        "plain text does not match",
			text:        "just chatting",
			wantMatched: false,
		},
		{
			name:        "empty text does not match",
			text:        "   ",
			wantMatched: false,
		},
		{
			name:        "bare prefix is a syntax error",
			text:        "/",
			wantMatched: true,
			wantErr:     true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			candidate, matched, err := ParseCommandCandidate(testCase.text)
			if matched != testCase.wantMatched {
				t.Fatalf("matched = %v, want %v", matched, testCase.wantMatched)
			}
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !matched {
				return
			}

			if candidate.Name != testCase.wantName {
				t.Fatalf("name = %q, want %q", candidate.Name, testCase.wantName)
			}
			if candidate.Mention != testCase.wantMention {
				t.Fatalf("mention = %q, want %q", candidate.Mention, testCase.wantMention)
			}
			if len(candidate.Args) != len(testCase.wantArgs) {
				t.Fatalf("args = %v, want %v", candidate.Args, testCase.wantArgs)
			}
			for idx := range testCase.wantArgs {
				if candidate.Args[idx] != testCase.wantArgs[idx] {
					t.Fatalf("args[%d] = %q, want %q", idx, candidate.Args[idx], testCase.wantArgs[idx])
				}
			}
		})
	}
}

func TestBindCommand(t *testing.T) {
	t.Parallel()

	spec := CommandSpec{
		Name:        "snipe",
		Aliases:     []string{"s"},
		Description: "retrieve a recently deleted or edited message",
	}
	sourceEvent := &Event{
		ID:           "evt-7",
		Kind:         EventKindMessageCreated,
		OccurredAt:   time.Now(),
		Conversation: Conversation{ID: "chan-1", Type: ConversationTypeText},
		Message:      &Message{ID: "msg-7", Text: "/s 2"},
	}

	tests := []struct {
		name      string
		candidate CommandCandidate
		wantErr   bool
	}{
		{
			name:      "canonical name binds",
			candidate: CommandCandidate{Name: "snipe", Args: []string{"2"}, RawInput: "/snipe 2"},
		},
		{
			name:      "alias binds to canonical name",
			candidate: CommandCandidate{Name: "s", Args: []string{"2"}, RawInput: "/s 2"},
		},
		{
			name:      "unrelated name is rejected",
			candidate: CommandCandidate{Name: "help", RawInput: "/help"},
			wantErr:   true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			invocation, err := BindCommand(testCase.candidate, spec, sourceEvent)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if invocation.Name != "snipe" {
				t.Fatalf("name = %q, want snipe (canonical)", invocation.Name)
			}
			if invocation.SourceEventID != sourceEvent.ID {
				t.Fatalf("source_event_id = %q, want %q", invocation.SourceEventID, sourceEvent.ID)
			}
		})
	}
}

func TestBindCommandNilSourceEvent(t *testing.T) {
	t.Parallel()

	_, err := BindCommand(CommandCandidate{Name: "snipe"}, CommandSpec{Name: "snipe"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCommandSpecValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    CommandSpec
		wantErr bool
	}{
		{
			name: "valid spec with alias",
			spec: CommandSpec{Name: "snipe", Aliases: []string{"s"}},
		},
		{
			name:    "missing name",
			spec:    CommandSpec{},
			wantErr: true,
		},
		{
			name:    "whitespace in name",
			spec:    CommandSpec{Name: "sni pe"},
			wantErr: true,
		},
		{
			name:    "alias duplicating name",
			spec:    CommandSpec{Name: "snipe", Aliases: []string{"SNIPE"}},
			wantErr: true,
		},
		{
			name:    "empty alias",
			spec:    CommandSpec{Name: "snipe", Aliases: []string{" "}},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.spec.Validate()
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
