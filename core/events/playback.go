package events

const (
	KindPlaybackStarted  Kind = "playback.started"
	KindPlaybackFinished Kind = "playback.finished"
	KindPlaybackFailed   Kind = "playback.failed"
)

type PlaybackStarted struct {
	Base
	TaskID string
	Text   string
}

func NewPlaybackStarted(taskID, text string) PlaybackStarted {
	return PlaybackStarted{Base: NewBase(KindPlaybackStarted), TaskID: taskID, Text: text}
}

type PlaybackFinished struct {
	Base
	TaskID string
	Text   string
}

func NewPlaybackFinished(taskID, text string) PlaybackFinished {
	return PlaybackFinished{Base: NewBase(KindPlaybackFinished), TaskID: taskID, Text: text}
}

// PlaybackFailed is emitted for failed and discarded fragments alike;
// Discarded tells them apart.
type PlaybackFailed struct {
	Base
	TaskID    string
	Text      string
	Err       error
	Discarded bool
}

func NewPlaybackFailed(taskID, text string, err error, discarded bool) PlaybackFailed {
	return PlaybackFailed{Base: NewBase(KindPlaybackFailed), TaskID: taskID, Text: text, Err: err, Discarded: discarded}
}
