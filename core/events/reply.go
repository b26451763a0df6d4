package events

const (
	// KindCaptionUpdated identifies caption snapshots for the playing fragment.
	KindCaptionUpdated Kind = "reply.caption_updated"
	// KindReplyUpdated identifies running reply text snapshots.
	KindReplyUpdated Kind = "reply.updated"
	// KindReplyFinal identifies the end of the reply stream.
	KindReplyFinal Kind = "reply.final"
	// KindReplyCleared identifies removal of the running reply.
	KindReplyCleared Kind = "reply.cleared"
)

// CaptionUpdated carries the caption shown while a fragment plays. An empty
// caption means nothing is being spoken.
type CaptionUpdated struct {
	Base
	Caption string
}

// NewCaptionUpdated creates a caption updated event.
func NewCaptionUpdated(caption string) CaptionUpdated {
	return CaptionUpdated{Base: NewBase(KindCaptionUpdated), Caption: caption}
}

// ReplyUpdated carries the running reply text accumulated so far.
type ReplyUpdated struct {
	Base
	Text string
}

// NewReplyUpdated creates a reply updated event.
func NewReplyUpdated(text string) ReplyUpdated {
	return ReplyUpdated{Base: NewBase(KindReplyUpdated), Text: text}
}

// ReplyFinal marks the end of the reply stream.
type ReplyFinal struct {
	Base
	Text string
}

// NewReplyFinal creates a reply final event.
func NewReplyFinal(text string) ReplyFinal {
	return ReplyFinal{Base: NewBase(KindReplyFinal), Text: text}
}

// ReplyCleared marks removal of the running reply.
type ReplyCleared struct{ Base }

// NewReplyCleared creates a reply cleared event.
func NewReplyCleared() ReplyCleared {
	return ReplyCleared{Base: NewBase(KindReplyCleared)}
}
