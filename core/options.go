package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-companion/core/audio"
	"github.com/koscakluka/ema-companion/core/events"
	"github.com/koscakluka/ema-companion/core/playback"
	"github.com/koscakluka/ema-companion/core/pubsub"
	"github.com/koscakluka/ema-companion/core/speech"
	"github.com/koscakluka/ema-companion/core/transcript"
)

// DefaultSettlingDelay is how long the final caption of a reply stays up
// before it is cleared and the persisted transcript takes over.
const DefaultSettlingDelay = time.Second

type SessionOption func(*Session)

// HistoryStore returns the persisted records of a conversation, oldest first.
type HistoryStore interface {
	History(ctx context.Context, conversationID string) ([]transcript.Record, error)
}

// Submitter hands user input to the backend. Replies arrive asynchronously
// as speech fragments.
type Submitter interface {
	SubmitText(ctx context.Context, conversationID string, text string) error
	SubmitAudio(ctx context.Context, conversationID string, recording *audio.Resource) error
}

// Recorder captures microphone input into an audio resource. The caller
// owns the returned resource.
type Recorder interface {
	StartCapture(ctx context.Context) error
	StopCapture(ctx context.Context) (*audio.Resource, error)
}

// WithSpeaker sets the avatar that presents decoded audio. Without one,
// fragments only advance the caption.
func WithSpeaker(speaker playback.Speaker) SessionOption {
	return func(s *Session) { s.speaker = speaker }
}

// WithBus sets the bus fragments are published on. A private bus is created
// when none is given.
func WithBus(bus *pubsub.Bus) SessionOption {
	return func(s *Session) {
		if bus != nil {
			s.bus = bus
		}
	}
}

func WithHistoryStore(store HistoryStore) SessionOption {
	return func(s *Session) { s.history = store }
}

func WithSubmitter(submitter Submitter) SessionOption {
	return func(s *Session) { s.submitter = submitter }
}

func WithRecorder(recorder Recorder) SessionOption {
	return func(s *Session) { s.recorder = recorder }
}

// WithCooldown sets the pause after each spoken fragment.
func WithCooldown(cooldown time.Duration) SessionOption {
	return func(s *Session) {
		if cooldown >= 0 {
			s.cooldown = cooldown
		}
	}
}

// WithSettlingDelay sets how long the finished reply stays on screen.
func WithSettlingDelay(delay time.Duration) SessionOption {
	return func(s *Session) {
		if delay >= 0 {
			s.settlingDelay = delay
		}
	}
}

func WithAudioPool(pool *audio.Pool) SessionOption {
	return func(s *Session) {
		if pool != nil {
			s.pool = pool
		}
	}
}

func WithDecoderOptions(opts ...speech.DecoderOption) SessionOption {
	return func(s *Session) { s.decoderOptions = append(s.decoderOptions, opts...) }
}

func WithAssembler(assembler *transcript.Assembler) SessionOption {
	return func(s *Session) {
		if assembler != nil {
			s.assembler = assembler
		}
	}
}

// WithEventCallback receives every session event. Callbacks run on the
// goroutine that produced the event and must be safe for concurrent use.
func WithEventCallback(callback func(events.Event)) SessionOption {
	return func(s *Session) { s.callbacks.onEvent = callback }
}

// WithCaptionCallback receives the caption whenever it changes. An empty
// caption means nothing is being spoken.
func WithCaptionCallback(callback func(caption string)) SessionOption {
	return func(s *Session) { s.callbacks.onCaption = callback }
}

// WithReplyCallback receives the running reply; nil means no reply is in
// progress.
func WithReplyCallback(callback func(reply *string)) SessionOption {
	return func(s *Session) { s.callbacks.onReply = callback }
}

// WithTranscriptCallback receives a copy of the transcript whenever it is
// replaced or extended.
func WithTranscriptCallback(callback func([]transcript.DisplayMessage)) SessionOption {
	return func(s *Session) { s.callbacks.onTranscript = callback }
}
