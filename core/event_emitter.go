package orchestration

import (
	"github.com/koscakluka/ema-companion/core/events"
	"github.com/koscakluka/ema-companion/core/transcript"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

type sessionCallbacks struct {
	onEvent      func(events.Event)
	onCaption    func(string)
	onReply      func(*string)
	onTranscript func([]transcript.DisplayMessage)
}

func newCallbackEventEmitter(callbacks sessionCallbacks) eventEmitter {
	if callbacks.onEvent == nil && callbacks.onCaption == nil && callbacks.onReply == nil {
		return noopEventEmitter
	}

	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.CaptionUpdated:
			if callbacks.onCaption != nil {
				callbacks.onCaption(typedEvent.Caption)
			}
		case events.ReplyUpdated:
			if callbacks.onReply != nil {
				reply := typedEvent.Text
				callbacks.onReply(&reply)
			}
		case events.ReplyCleared:
			if callbacks.onReply != nil {
				callbacks.onReply(nil)
			}
		}

		if callbacks.onEvent != nil {
			callbacks.onEvent(event)
		}
	}
}
