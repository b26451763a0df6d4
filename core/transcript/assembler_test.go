package transcript

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"
)

func envelopeJSON(t *testing.T, envelope Envelope) []byte {
	t.Helper()

	content, err := EncodeEnvelope(envelope)
	if err != nil {
		t.Fatalf("expected envelope to encode, got %v", err)
	}
	return content
}

func TestAssembleEmptyInput(t *testing.T) {
	if got := Assemble(nil); len(got) != 0 {
		t.Fatalf("expected no messages, got %d", len(got))
	}
}

func TestAssembleUserText(t *testing.T) {
	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{{
		Role:      "user",
		Content:   envelopeJSON(t, Envelope{Role: "user", Parts: []Part{{Text: "hi"}}}),
		CreatedAt: createdAt,
	}}

	messages := Assemble(records)
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Role != RoleUser || messages[0].Text != "hi" {
		t.Fatalf("expected user message %q, got %s %q", "hi", messages[0].Role, messages[0].Text)
	}
	if !messages[0].Timestamp.Equal(createdAt) {
		t.Fatalf("expected timestamp %s, got %s", createdAt, messages[0].Timestamp)
	}
	if messages[0].ID == "" {
		t.Fatalf("expected message to have an id")
	}
}

func TestAssembleJoinsTextPartsSkippingEmpty(t *testing.T) {
	records := []Record{{
		Role: "assistant",
		Content: envelopeJSON(t, Envelope{Role: "model", Parts: []Part{
			{Text: "Hello"}, {Text: ""}, {Text: "there."},
		}}),
	}}

	messages := Assemble(records)
	if messages[0].Text != "Hello there." {
		t.Fatalf("expected %q, got %q", "Hello there.", messages[0].Text)
	}
	if messages[0].Role != RoleAssistant {
		t.Fatalf("expected record role to win, got %s", messages[0].Role)
	}
}

func TestAssembleToolResponse(t *testing.T) {
	records := []Record{{
		Role: "tool",
		Content: envelopeJSON(t, Envelope{Role: "tool", Parts: []Part{
			{ToolResponse: &ToolResponse{Name: "search", Output: "42"}},
		}}),
	}}

	message := Assemble(records)[0]
	if message.Role != RoleTool {
		t.Fatalf("expected tool role, got %s", message.Role)
	}
	if message.Text != "Called tool search" {
		t.Fatalf("expected tool label, got %q", message.Text)
	}
	if message.ToolName != "search" || message.ToolOutput != "42" {
		t.Fatalf("expected search/42, got %s/%v", message.ToolName, message.ToolOutput)
	}
}

func TestAssembleToolResponseTakesFirstNameAndOutput(t *testing.T) {
	records := []Record{{
		Role: "tool",
		Content: envelopeJSON(t, Envelope{Role: "tool", Parts: []Part{
			{Text: "ignored"},
			{ToolResponse: &ToolResponse{Name: "weather"}},
			{ToolResponse: &ToolResponse{Name: "other", Output: "sunny"}},
			{ToolResponse: &ToolResponse{Output: "rain"}},
		}}),
	}}

	message := Assemble(records)[0]
	if message.ToolName != "weather" {
		t.Fatalf("expected first tool name, got %q", message.ToolName)
	}
	if message.ToolOutput != "sunny" {
		t.Fatalf("expected first tool output, got %v", message.ToolOutput)
	}
}

func TestAssembleAcceptsBase64Content(t *testing.T) {
	raw := envelopeJSON(t, Envelope{Role: "user", Parts: []Part{{Text: "encoded"}}})
	records := []Record{{
		Role:    "user",
		Content: []byte(base64.StdEncoding.EncodeToString(raw)),
	}}

	message := Assemble(records)[0]
	if message.Text != "encoded" {
		t.Fatalf("expected %q, got %q", "encoded", message.Text)
	}
}

func TestAssembleRendersPlaceholderForCorruptRecord(t *testing.T) {
	records := []Record{
		{Role: "user", Content: envelopeJSON(t, Envelope{Role: "user", Parts: []Part{{Text: "before"}}})},
		{Role: "assistant", Content: []byte("%%% not json or base64 %%%")},
		{Role: "user", Content: envelopeJSON(t, Envelope{Role: "user", Parts: []Part{{Text: "after"}}})},
	}

	messages := Assemble(records)
	if len(messages) != len(records) {
		t.Fatalf("expected %d messages, got %d", len(records), len(messages))
	}
	if !messages[1].IsPlaceholder() || messages[1].Text != UnreadableText {
		t.Fatalf("expected placeholder, got %q", messages[1].Text)
	}
	if !errors.Is(messages[1].Err, ErrDecode) {
		t.Fatalf("expected decode error, got %v", messages[1].Err)
	}
	var decodeErr *DecodeError
	if !errors.As(messages[1].Err, &decodeErr) || decodeErr.Index != 1 {
		t.Fatalf("expected decode error for index 1, got %v", messages[1].Err)
	}
	if messages[0].Text != "before" || messages[2].Text != "after" {
		t.Fatalf("expected neighbours to render, got %q and %q", messages[0].Text, messages[2].Text)
	}
}

func TestAssemblePreservesOrderAndAssignsUniqueIDs(t *testing.T) {
	records := []Record{}
	for i := range 10 {
		text := fmt.Sprintf("message %d", i)
		records = append(records, Record{
			Role:    "user",
			Content: envelopeJSON(t, Envelope{Role: "user", Parts: []Part{{Text: text}}}),
		})
	}

	messages := Assemble(records)
	seen := map[string]bool{}
	for i, message := range messages {
		if want := fmt.Sprintf("message %d", i); message.Text != want {
			t.Fatalf("expected %q at %d, got %q", want, i, message.Text)
		}
		if seen[message.ID] {
			t.Fatalf("expected unique ids, got duplicate %s", message.ID)
		}
		seen[message.ID] = true
	}
}

func TestAssemblerOptions(t *testing.T) {
	next := 0
	assembler := NewAssembler(
		WithToolLabel("Gọi công cụ %s"),
		WithIDGenerator(func() string {
			next++
			return fmt.Sprintf("msg-%d", next)
		}),
	)

	records := []Record{{
		Role:    "tool",
		Content: envelopeJSON(t, Envelope{Role: "tool", Parts: []Part{{ToolResponse: &ToolResponse{Name: "search"}}}}),
	}}

	message := assembler.Assemble(records)[0]
	if message.Text != "Gọi công cụ search" {
		t.Fatalf("expected localized label, got %q", message.Text)
	}
	if message.ID != "msg-1" {
		t.Fatalf("expected generated id msg-1, got %s", message.ID)
	}
}
