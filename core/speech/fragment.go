package speech

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// PlayAudioTopic is the topic the synthesis backend publishes fragments on.
const PlayAudioTopic = "live2d:play-audio"

// Fragment is one unit of streamed speech. Field names match the wire
// format emitted by the backend.
type Fragment struct {
	Text   string `json:"Text" jsonschema:"title=Text,description=Sentence spoken by this fragment"`
	Base64 string `json:"Base64" jsonschema:"title=Base64,description=Base64 audio payload optionally wrapped in a data URI"`
	IsDone bool   `json:"IsDone" jsonschema:"title=IsDone,description=Marks the terminal fragment of a reply; carries no audio"`
}

// IsTerminal reports whether the fragment ends the reply.
func (f Fragment) IsTerminal() bool { return f.IsDone }

// Terminal builds the end-of-reply marker fragment.
func Terminal() Fragment { return Fragment{IsDone: true} }

// FromPayload normalizes the payload shapes a topic may carry into a
// Fragment.
func FromPayload(payload any) (Fragment, error) {
	switch typed := payload.(type) {
	case Fragment:
		return typed, nil
	case *Fragment:
		if typed == nil {
			return Fragment{}, fmt.Errorf("nil fragment payload")
		}
		return *typed, nil
	case json.RawMessage:
		return unmarshalFragment(typed)
	case []byte:
		return unmarshalFragment(typed)
	case string:
		return unmarshalFragment([]byte(typed))
	default:
		return Fragment{}, fmt.Errorf("unsupported fragment payload type %T", payload)
	}
}

func unmarshalFragment(data []byte) (Fragment, error) {
	var fragment Fragment
	if err := json.Unmarshal(data, &fragment); err != nil {
		return Fragment{}, fmt.Errorf("failed to unmarshal fragment: %w", err)
	}
	return fragment, nil
}

// FragmentSchema describes the wire format of [Fragment].
func FragmentSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&Fragment{})
	schema.Title = "SpeechFragment"
	schema.Description = "One synthesized speech fragment of an assistant reply"
	return schema
}
