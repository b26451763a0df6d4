package transcript

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleModel     Role = "model"
	RoleSystem    Role = "system"
)

// Record is one persisted conversation message as returned by storage.
// Content holds the encoded [Envelope].
type Record struct {
	Role      string    `json:"role"`
	Content   []byte    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Envelope is the structured message stored in [Record.Content].
type Envelope struct {
	Role  string `json:"role"`
	Parts []Part `json:"content"`
}

type Part struct {
	Text         string        `json:"text,omitempty"`
	ToolResponse *ToolResponse `json:"toolResponse,omitempty"`
}

type ToolResponse struct {
	Name   string `json:"name"`
	Output any    `json:"output,omitempty"`
}

var ErrDecode = errors.New("transcript record decode failed")

// DecodeError reports a record whose envelope could not be decoded.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode transcript record %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// DecodeEnvelope decodes stored content. Content arrives either as raw JSON
// or as standard base64 of that JSON, depending on which bridge carried it.
func DecodeEnvelope(content []byte) (Envelope, error) {
	if len(content) == 0 {
		return Envelope{}, errors.New("empty content")
	}

	raw := content
	if !json.Valid(raw) {
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(content)))
		n, err := base64.StdEncoding.Decode(decoded, content)
		if err != nil {
			return Envelope{}, fmt.Errorf("content is neither json nor base64 json: %w", err)
		}
		raw = decoded[:n]
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return envelope, nil
}

// EncodeEnvelope is the inverse of [DecodeEnvelope] producing raw JSON.
func EncodeEnvelope(envelope Envelope) ([]byte, error) {
	return json.Marshal(envelope)
}

// DisplayMessage is one rendered transcript entry. It is derived from
// storage and never mutated; IDs are unique per assembly, not stable.
type DisplayMessage struct {
	ID         string
	Role       Role
	Text       string
	ToolName   string
	ToolOutput any
	Timestamp  time.Time
	// Err is set on placeholders for records that could not be decoded.
	Err error
}

func (m DisplayMessage) IsPlaceholder() bool { return m.Err != nil }
