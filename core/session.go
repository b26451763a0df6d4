package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-companion/core/audio"
	"github.com/koscakluka/ema-companion/core/events"
	"github.com/koscakluka/ema-companion/core/playback"
	"github.com/koscakluka/ema-companion/core/pubsub"
	"github.com/koscakluka/ema-companion/core/speech"
	"github.com/koscakluka/ema-companion/core/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrSessionClosed         = errors.New("session is closed")
	ErrMissingConversationID = errors.New("no conversation selected")
	ErrNoHistoryStore        = errors.New("no history store configured")
	ErrNoRecorder            = errors.New("no recorder configured")
	ErrAlreadyCapturing      = errors.New("capture already in progress")
	ErrNotCapturing          = errors.New("no capture in progress")
)

// Session is the client side of one companion conversation. It listens for
// speech fragments, plays them in order while keeping the caption in sync
// and keeps the displayed transcript up to date.
type Session struct {
	bus            *pubsub.Bus
	speaker        playback.Speaker
	history        HistoryStore
	submitter      Submitter
	recorder       Recorder
	pool           *audio.Pool
	decoderOptions []speech.DecoderOption
	assembler      *transcript.Assembler
	cooldown       time.Duration
	settlingDelay  time.Duration
	callbacks      sessionCallbacks

	decoder    *speech.Decoder
	queue      *playback.Queue
	aggregator *streamingAggregator
	emit       eventEmitter

	mu             sync.RWMutex
	conversationID string
	baseContext    context.Context
	cancel         context.CancelFunc
	subscription   *pubsub.Subscription
	transcript     []transcript.DisplayMessage
	refreshSeq     uint64
	deliveredSeq   uint64
	started        bool
	closed         bool

	captureMu sync.Mutex
	capturing bool

	background sync.WaitGroup
	closeCh    chan struct{}
	closeOnce  sync.Once

	refreshes metric.Int64Counter
}

func NewSession(conversationID string, opts ...SessionOption) *Session {
	s := &Session{
		conversationID: conversationID,
		cooldown:       playback.DefaultCooldown,
		settlingDelay:  DefaultSettlingDelay,
		closeCh:        make(chan struct{}),
	}
	s.baseContext, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}

	if s.bus == nil {
		s.bus = pubsub.NewBus()
	}
	if s.pool == nil {
		s.pool = audio.NewPool()
	}
	if s.assembler == nil {
		s.assembler = transcript.NewAssembler()
	}

	s.emit = newCallbackEventEmitter(s.callbacks)
	s.decoder = speech.NewDecoder(s.pool, s.decoderOptions...)
	s.queue = playback.NewQueue(s.speaker, playback.WithCooldown(s.cooldown))
	s.aggregator = newStreamingAggregator(s.queue, s.emit, s.settlingDelay, s.cooldown, s.refreshAfterReply)

	counter, err := meter.Int64Counter("companion.transcript.refreshes",
		metric.WithDescription("Transcript refresh attempts"))
	if err != nil {
		logger.Warn("failed to create transcript refresh counter", "error", err)
	}
	s.refreshes = counter

	return s
}

// Start subscribes to speech fragments and starts playback. ctx bounds the
// session; cancelling it has the same effect as Close. Starting twice is a
// no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	// Workers started before Start keep the detached context; Close cancels
	// both.
	cancelDetached := s.cancel
	baseContext, cancel := context.WithCancel(ctx)
	s.baseContext = baseContext
	s.cancel = func() {
		cancel()
		cancelDetached()
	}
	s.subscription = s.bus.Subscribe(speech.PlayAudioTopic, s.handlePayload)
	s.mu.Unlock()

	s.queue.Start(baseContext)

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.closeCh:
		}
	}()

	return nil
}

// Close unsubscribes, discards queued fragments, cancels background work and
// waits for it to finish. It is safe to call more than once but must not be called
// from a session callback.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		subscription := s.subscription
		s.subscription = nil
		cancel := s.cancel
		s.mu.Unlock()
		close(s.closeCh)
		cancel()

		subscription.Unsubscribe()
		s.queue.Close()
		s.abandonCapture()
		s.background.Wait()
	})
}

// Bus returns the bus the session listens on.
func (s *Session) Bus() *pubsub.Bus { return s.bus }

func (s *Session) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// Reset switches the session to another conversation. Pending fragments are
// discarded, the reply state is cleared and in-flight transcript refreshes
// are ignored. The new conversation's history is loaded in the background.
func (s *Session) Reset(conversationID string) {
	s.mu.Lock()
	s.conversationID = conversationID
	s.refreshSeq++
	s.deliveredSeq = s.refreshSeq
	s.transcript = nil
	closed := s.closed
	s.mu.Unlock()

	s.aggregator.reset()
	s.queue.Clear()
	s.notifyTranscript()

	if !closed && conversationID != "" && s.history != nil {
		s.goBackground("load history", func(ctx context.Context) error {
			return s.ignoreUnavailable(s.RefreshTranscript(ctx))
		})
	}
}

// HandleFragment decodes one fragment and queues it for playback. Fragments
// normally arrive through the bus; this is the direct entry point.
func (s *Session) HandleFragment(fragment speech.Fragment) string {
	_, span := tracer.Start(s.currentContext(), "handle speech fragment")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("speech.terminal", fragment.IsTerminal()),
		attribute.Int("speech.text_length", len(fragment.Text)),
	)

	s.emit(events.NewFragmentReceived(fragment.Text, fragment.Base64 != "", fragment.IsTerminal()))
	if fragment.IsTerminal() {
		return s.aggregator.onFragment(fragment, nil)
	}

	resource, err := s.decoder.Decode(fragment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.emit(events.NewFragmentDecodeFailed(fragment.Text, err))
		resource = nil
	}
	return s.aggregator.onFragment(fragment, resource)
}

func (s *Session) handlePayload(payload any) {
	fragment, err := speech.FromPayload(payload)
	if err != nil {
		logger.Warn("dropping malformed speech fragment", "error", err)
		s.emit(events.NewFragmentDecodeFailed("", err))
		return
	}
	s.HandleFragment(fragment)
}

// Caption is the text of the fragment currently presented, or empty.
func (s *Session) Caption() string {
	return s.aggregator.currentCaption()
}

// RunningReply is the reply text spoken so far, or nil when no reply is in
// progress.
func (s *Session) RunningReply() *string {
	return s.aggregator.currentReply()
}

// Transcript returns a copy of the displayed transcript.
func (s *Session) Transcript() []transcript.DisplayMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcriptSnapshotLocked()
}

func (s *Session) transcriptSnapshotLocked() []transcript.DisplayMessage {
	messages := []transcript.DisplayMessage{}
	if err := copier.Copy(&messages, &s.transcript); err != nil {
		logger.Error("failed to copy transcript", "error", err)
		return append(messages[:0], s.transcript...)
	}
	return messages
}

// RefreshTranscript reloads the conversation history and replaces the
// transcript. A refresh that completes after a newer one is dropped.
func (s *Session) RefreshTranscript(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "refresh transcript")
	defer span.End()

	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	conversationID := s.conversationID
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.Int64("transcript.refresh_seq", int64(seq)),
	)

	err := s.refreshTranscript(ctx, seq, conversationID)
	if s.refreshes != nil {
		s.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("failed", err != nil)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, ErrNoHistoryStore) && !errors.Is(err, ErrMissingConversationID) {
			s.emit(events.NewTranscriptRefreshFailed(err))
		}
		return err
	}
	return nil
}

func (s *Session) refreshTranscript(ctx context.Context, seq uint64, conversationID string) error {
	if s.history == nil {
		return ErrNoHistoryStore
	}
	if conversationID == "" {
		return ErrMissingConversationID
	}

	records, err := s.history.History(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	messages := s.assembler.Assemble(records)

	s.mu.Lock()
	if seq < s.deliveredSeq {
		s.mu.Unlock()
		trace.SpanFromContext(ctx).AddEvent("stale refresh dropped")
		logger.Debug("dropping stale transcript refresh", "seq", seq, "delivered_seq", s.deliveredSeq)
		return nil
	}
	s.deliveredSeq = seq
	s.transcript = messages
	s.mu.Unlock()

	placeholders := 0
	for _, message := range messages {
		if message.IsPlaceholder() {
			placeholders++
		}
	}
	s.emit(events.NewTranscriptRefreshed(len(messages), placeholders))
	s.notifyTranscript()
	return nil
}

func (s *Session) refreshAfterReply() {
	s.goBackground("refresh transcript", func(ctx context.Context) error {
		return s.ignoreUnavailable(s.RefreshTranscript(ctx))
	})
}

func (s *Session) ignoreUnavailable(err error) error {
	if errors.Is(err, ErrNoHistoryStore) || errors.Is(err, ErrMissingConversationID) {
		return nil
	}
	return err
}

func (s *Session) notifyTranscript() {
	if s.callbacks.onTranscript == nil {
		return
	}
	s.callbacks.onTranscript(s.Transcript())
}

// SendText shows the message in the transcript right away and submits it in
// the background. The next refresh replaces the local copy with the stored
// one.
func (s *Session) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	conversationID := s.conversationID
	if conversationID == "" {
		s.mu.Unlock()
		return ErrMissingConversationID
	}
	s.transcript = append(s.transcript, transcript.DisplayMessage{
		ID:        uuid.NewString(),
		Role:      transcript.RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	})
	s.mu.Unlock()
	s.notifyTranscript()

	if s.submitter == nil {
		logger.Warn("no submitter configured, message kept locally", "conversation_id", conversationID)
		return nil
	}

	s.goBackground("submit text", func(ctx context.Context) error {
		return s.submitter.SubmitText(ctx, conversationID, text)
	})
	return nil
}
