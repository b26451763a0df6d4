package events

const (
	KindTranscriptRefreshed     Kind = "transcript.refreshed"
	KindTranscriptRefreshFailed Kind = "transcript.refresh_failed"
)

// TranscriptRefreshed reports how many messages the new transcript holds and
// how many of them are placeholders for unreadable records.
type TranscriptRefreshed struct {
	Base
	Messages     int
	Placeholders int
}

func NewTranscriptRefreshed(messages, placeholders int) TranscriptRefreshed {
	return TranscriptRefreshed{Base: NewBase(KindTranscriptRefreshed), Messages: messages, Placeholders: placeholders}
}

type TranscriptRefreshFailed struct {
	Base
	Err error
}

func NewTranscriptRefreshFailed(err error) TranscriptRefreshFailed {
	return TranscriptRefreshFailed{Base: NewBase(KindTranscriptRefreshFailed), Err: err}
}
