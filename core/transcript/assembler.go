package transcript

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// UnreadableText replaces the text of records whose content is corrupt.
	UnreadableText = "[message could not be displayed]"

	defaultToolLabel = "Called tool %s"
)

type AssemblerOption func(*Assembler)

// WithIDGenerator replaces the uuid generator used for message IDs.
func WithIDGenerator(generate func() string) AssemblerOption {
	return func(a *Assembler) {
		if generate != nil {
			a.newID = generate
		}
	}
}

// WithToolLabel sets the fmt format used to label tool entries. It receives
// the tool name as its only argument.
func WithToolLabel(format string) AssemblerOption {
	return func(a *Assembler) {
		if format != "" {
			a.toolLabel = format
		}
	}
}

// Assembler turns persisted records into display messages.
//
// A record whose content fails to decode becomes a placeholder message
// carrying the decode error, so the output always has one message per
// record and the gap stays visible to the reader.
type Assembler struct {
	newID     func() string
	toolLabel string
}

func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{newID: uuid.NewString, toolLabel: defaultToolLabel}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAssembler = NewAssembler()

// Assemble converts records with the default assembler.
func Assemble(records []Record) []DisplayMessage {
	return defaultAssembler.Assemble(records)
}

func (a *Assembler) Assemble(records []Record) []DisplayMessage {
	messages := make([]DisplayMessage, 0, len(records))
	for i, record := range records {
		messages = append(messages, a.assembleRecord(i, record))
	}
	return messages
}

func (a *Assembler) assembleRecord(index int, record Record) DisplayMessage {
	envelope, err := DecodeEnvelope(record.Content)
	if err != nil {
		decodeErr := &DecodeError{Index: index, Err: err}
		logger.Warn("rendering placeholder for undecodable record", "index", index, "role", record.Role, "error", err)
		return DisplayMessage{
			ID:        a.newID(),
			Role:      Role(record.Role),
			Text:      UnreadableText,
			Timestamp: record.CreatedAt,
			Err:       decodeErr,
		}
	}

	if Role(envelope.Role) == RoleTool {
		return a.toolMessage(record, envelope)
	}

	role := Role(record.Role)
	if role == "" {
		role = Role(envelope.Role)
	}

	texts := []string{}
	for _, part := range envelope.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}

	return DisplayMessage{
		ID:        a.newID(),
		Role:      role,
		Text:      strings.Join(texts, " "),
		Timestamp: record.CreatedAt,
	}
}

func (a *Assembler) toolMessage(record Record, envelope Envelope) DisplayMessage {
	var name string
	var output any
	nameFound, outputFound := false, false
	for _, part := range envelope.Parts {
		if part.ToolResponse == nil {
			continue
		}
		if !nameFound && part.ToolResponse.Name != "" {
			name = part.ToolResponse.Name
			nameFound = true
		}
		if !outputFound && part.ToolResponse.Output != nil {
			output = part.ToolResponse.Output
			outputFound = true
		}
		if nameFound && outputFound {
			break
		}
	}

	return DisplayMessage{
		ID:         a.newID(),
		Role:       RoleTool,
		Text:       fmt.Sprintf(a.toolLabel, name),
		ToolName:   name,
		ToolOutput: output,
		Timestamp:  record.CreatedAt,
	}
}
