package events

const (
	// KindFragmentReceived identifies a speech fragment arriving from the backend.
	KindFragmentReceived Kind = "speech_fragment.received"
	// KindFragmentDecodeFailed identifies a fragment whose audio could not be decoded.
	KindFragmentDecodeFailed Kind = "speech_fragment.decode_failed"
)

// FragmentReceived carries the caption of an incoming fragment.
type FragmentReceived struct {
	Base
	Text     string
	HasAudio bool
	IsDone   bool
}

// NewFragmentReceived creates a fragment received event.
func NewFragmentReceived(text string, hasAudio, isDone bool) FragmentReceived {
	return FragmentReceived{Base: NewBase(KindFragmentReceived), Text: text, HasAudio: hasAudio, IsDone: isDone}
}

// FragmentDecodeFailed reports a fragment whose audio was unusable.
type FragmentDecodeFailed struct {
	Base
	Text string
	Err  error
}

// NewFragmentDecodeFailed creates a fragment decode failed event.
func NewFragmentDecodeFailed(text string, err error) FragmentDecodeFailed {
	return FragmentDecodeFailed{Base: NewBase(KindFragmentDecodeFailed), Text: text, Err: err}
}
