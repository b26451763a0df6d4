package orchestration

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-companion/core/audio"
	"github.com/koscakluka/ema-companion/core/events"
	"github.com/koscakluka/ema-companion/core/pubsub"
	"github.com/koscakluka/ema-companion/core/speech"
	"github.com/koscakluka/ema-companion/core/transcript"
)

type captionSpeaker struct {
	mu       sync.Mutex
	session  *Session
	played   []string
	captions []string
	failOn   map[string]error
	block    bool
	started  chan string
}

func newCaptionSpeaker() *captionSpeaker {
	return &captionSpeaker{failOn: map[string]error{}, started: make(chan string, 16)}
}

func (s *captionSpeaker) Speak(ctx context.Context, resource *audio.Resource) error {
	data, err := resource.Bytes()
	if err != nil {
		return err
	}
	name := string(data)

	s.mu.Lock()
	s.played = append(s.played, name)
	if s.session != nil {
		s.captions = append(s.captions, s.session.Caption())
	}
	failure := s.failOn[name]
	block := s.block
	s.mu.Unlock()

	select {
	case s.started <- name:
	default:
	}

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return failure
}

func (s *captionSpeaker) snapshot() (played, captions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...), append([]string(nil), s.captions...)
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	records map[string][]transcript.Record
	calls   map[string]int
	gates   map[string]chan struct{}
	err     error
	entered chan string
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{
		records: map[string][]transcript.Record{},
		calls:   map[string]int{},
		gates:   map[string]chan struct{}{},
		entered: make(chan string, 16),
	}
}

func (f *fakeHistoryStore) History(ctx context.Context, conversationID string) ([]transcript.Record, error) {
	f.mu.Lock()
	f.calls[conversationID]++
	records := f.records[conversationID]
	gate := f.gates[conversationID]
	err := f.err
	f.mu.Unlock()

	select {
	case f.entered <- conversationID:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return records, err
}

func (f *fakeHistoryStore) callCount(conversationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[conversationID]
}

type fakeSubmitter struct {
	mu     sync.Mutex
	texts  []string
	audio  []*audio.Resource
	sizes  []int
	called chan struct{}
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{called: make(chan struct{}, 16)}
}

func (f *fakeSubmitter) SubmitText(ctx context.Context, conversationID string, text string) error {
	f.mu.Lock()
	f.texts = append(f.texts, conversationID+":"+text)
	f.mu.Unlock()
	f.called <- struct{}{}
	return nil
}

func (f *fakeSubmitter) SubmitAudio(ctx context.Context, conversationID string, recording *audio.Resource) error {
	f.mu.Lock()
	f.audio = append(f.audio, recording)
	f.sizes = append(f.sizes, recording.Size())
	f.mu.Unlock()
	f.called <- struct{}{}
	return nil
}

type fakeRecorder struct {
	pool      *audio.Pool
	startErr  error
	starts    int
	stops     int
	recording []byte
}

func (f *fakeRecorder) StartCapture(ctx context.Context) error {
	f.starts++
	return f.startErr
}

func (f *fakeRecorder) StopCapture(ctx context.Context) (*audio.Resource, error) {
	f.stops++
	return f.pool.Allocate(audio.MediaTypeWAV, f.recording), nil
}

type eventRecorder struct {
	mu      sync.Mutex
	events  []events.Event
	cleared chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{cleared: make(chan struct{}, 8)}
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()

	if event.Kind() == events.KindReplyCleared {
		select {
		case r.cleared <- struct{}{}:
		default:
		}
	}
}

func (r *eventRecorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	matching := []events.Event{}
	for _, event := range r.events {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

func waitFor(t *testing.T, signal <-chan struct{}, what string) {
	t.Helper()

	select {
	case <-signal:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func spoken(text string) speech.Fragment {
	return speech.Fragment{Text: text, Base64: base64.StdEncoding.EncodeToString([]byte(text))}
}

func storedRecord(t *testing.T, role, text string) transcript.Record {
	t.Helper()

	content, err := transcript.EncodeEnvelope(transcript.Envelope{Role: role, Parts: []transcript.Part{{Text: text}}})
	if err != nil {
		t.Fatalf("expected envelope to encode, got %v", err)
	}
	return transcript.Record{Role: role, Content: content, CreatedAt: time.Now()}
}

func newTestSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()

	defaults := []SessionOption{WithCooldown(0), WithSettlingDelay(10 * time.Millisecond)}
	session := NewSession("c1", append(defaults, opts...)...)
	t.Cleanup(session.Close)
	return session
}

func TestSessionPlaysReplyInOrderAndRefreshesOnce(t *testing.T) {
	pool := audio.NewPool()
	speaker := newCaptionSpeaker()
	history := newFakeHistoryStore()
	history.records["c1"] = []transcript.Record{
		storedRecord(t, "user", "hi"),
		storedRecord(t, "assistant", "Hello there friend"),
	}
	recorder := newEventRecorder()
	refreshed := make(chan struct{}, 4)

	session := newTestSession(t,
		WithAudioPool(pool),
		WithSpeaker(speaker),
		WithHistoryStore(history),
		WithEventCallback(recorder.record),
		WithTranscriptCallback(func(messages []transcript.DisplayMessage) {
			if len(messages) > 0 {
				refreshed <- struct{}{}
			}
		}),
	)
	speaker.session = session
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("expected session to start, got %v", err)
	}

	texts := []string{"Hello ", "there ", "friend"}
	for _, text := range texts {
		session.Bus().Publish(speech.PlayAudioTopic, spoken(text))
	}
	session.Bus().Publish(speech.PlayAudioTopic, speech.Terminal())

	waitFor(t, recorder.cleared, "reply to settle")
	waitFor(t, refreshed, "transcript refresh")

	played, captions := speaker.snapshot()
	if len(played) != len(texts) {
		t.Fatalf("expected %d fragments played, got %v", len(texts), played)
	}
	for i, text := range texts {
		if played[i] != text {
			t.Fatalf("expected fragment %d to be %q, got %q", i, text, played[i])
		}
		if captions[i] != text {
			t.Fatalf("expected caption %q while fragment %d played, got %q", text, i, captions[i])
		}
	}

	finals := recorder.ofKind(events.KindReplyFinal)
	if len(finals) != 1 {
		t.Fatalf("expected 1 reply final event, got %d", len(finals))
	}
	if got := finals[0].(events.ReplyFinal).Text; got != "Hello there friend" {
		t.Fatalf("expected running reply %q at terminal, got %q", "Hello there friend", got)
	}

	if reply := session.RunningReply(); reply != nil {
		t.Fatalf("expected no running reply after settling, got %q", *reply)
	}
	if caption := session.Caption(); caption != "" {
		t.Fatalf("expected caption to be cleared, got %q", caption)
	}
	if calls := history.callCount("c1"); calls != 1 {
		t.Fatalf("expected exactly one refresh, got %d", calls)
	}
	if messages := session.Transcript(); len(messages) != 2 || messages[1].Text != "Hello there friend" {
		t.Fatalf("expected refreshed transcript, got %+v", messages)
	}
	if live := pool.Live(); live != 0 {
		t.Fatalf("expected every fragment resource released, got %d live", live)
	}
}

func TestSessionDecodeFailureStillAdvancesCaption(t *testing.T) {
	speaker := newCaptionSpeaker()
	recorder := newEventRecorder()
	session := newTestSession(t, WithSpeaker(speaker), WithEventCallback(recorder.record))
	speaker.session = session
	session.Start(context.Background())

	session.HandleFragment(spoken("one"))
	session.HandleFragment(speech.Fragment{Text: "two", Base64: "!!! not base64 !!!"})
	session.HandleFragment(spoken("three"))
	session.HandleFragment(speech.Terminal())

	waitFor(t, recorder.cleared, "reply to settle")

	played, _ := speaker.snapshot()
	if len(played) != 2 || played[0] != "one" || played[1] != "three" {
		t.Fatalf("expected only decodable fragments to play, got %v", played)
	}

	captions := []string{}
	for _, event := range recorder.ofKind(events.KindCaptionUpdated) {
		captions = append(captions, event.(events.CaptionUpdated).Caption)
	}
	if len(captions) < 3 || captions[0] != "one" || captions[1] != "two" || captions[2] != "three" {
		t.Fatalf("expected captions one, two, three, got %v", captions)
	}

	failures := recorder.ofKind(events.KindFragmentDecodeFailed)
	if len(failures) != 1 {
		t.Fatalf("expected 1 decode failure, got %d", len(failures))
	}
	if err := failures[0].(events.FragmentDecodeFailed).Err; !errors.Is(err, speech.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}

	finals := recorder.ofKind(events.KindReplyFinal)
	if got := finals[0].(events.ReplyFinal).Text; got != "onetwothree" {
		t.Fatalf("expected running reply to include undecodable caption, got %q", got)
	}
}

func TestSessionPlaybackFailureDoesNotStopLaterFragments(t *testing.T) {
	pool := audio.NewPool()
	speaker := newCaptionSpeaker()
	speaker.failOn["two"] = errors.New("avatar rejected audio")
	recorder := newEventRecorder()
	session := newTestSession(t, WithAudioPool(pool), WithSpeaker(speaker), WithEventCallback(recorder.record))
	session.Start(context.Background())

	for _, text := range []string{"one", "two", "three"} {
		session.HandleFragment(spoken(text))
	}
	session.HandleFragment(speech.Terminal())
	waitFor(t, recorder.cleared, "reply to settle")

	played, _ := speaker.snapshot()
	if len(played) != 3 || played[2] != "three" {
		t.Fatalf("expected third fragment to play after a failure, got %v", played)
	}
	failed := recorder.ofKind(events.KindPlaybackFailed)
	if len(failed) != 1 || failed[0].(events.PlaybackFailed).Text != "two" {
		t.Fatalf("expected one playback failure for %q, got %v", "two", failed)
	}
	if finished := recorder.ofKind(events.KindPlaybackFinished); len(finished) != 2 {
		t.Fatalf("expected 2 finished fragments, got %d", len(finished))
	}
	if live := pool.Live(); live != 0 {
		t.Fatalf("expected failed fragment resource released, got %d live", live)
	}
}

func TestSessionAcceptsRawJSONPayloads(t *testing.T) {
	speaker := newCaptionSpeaker()
	recorder := newEventRecorder()
	session := newTestSession(t, WithSpeaker(speaker), WithEventCallback(recorder.record))
	session.Start(context.Background())

	payload := `{"Text":"hi","Base64":"data:audio/wav;base64,` + base64.StdEncoding.EncodeToString([]byte("hi")) + `","IsDone":false}`
	session.Bus().Publish(speech.PlayAudioTopic, []byte(payload))
	session.Bus().Publish(speech.PlayAudioTopic, []byte(`{"Text":"","Base64":"","IsDone":true}`))
	session.Bus().Publish(speech.PlayAudioTopic, []byte(`not json`))

	waitFor(t, recorder.cleared, "reply to settle")

	played, _ := speaker.snapshot()
	if len(played) != 1 || played[0] != "hi" {
		t.Fatalf("expected json fragment to play, got %v", played)
	}
	if failures := recorder.ofKind(events.KindFragmentDecodeFailed); len(failures) != 1 {
		t.Fatalf("expected malformed payload to be reported, got %d failures", len(failures))
	}
}

func TestSessionStartTwiceSubscribesOnceAndCloseUnsubscribes(t *testing.T) {
	bus := pubsub.NewBus()
	session := NewSession("c1", WithBus(bus))

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("expected first start to succeed, got %v", err)
	}
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("expected second start to be a no-op, got %v", err)
	}
	if got := bus.Subscribers(speech.PlayAudioTopic); got != 1 {
		t.Fatalf("expected 1 subscription, got %d", got)
	}

	session.Close()
	session.Close()
	if got := bus.Subscribers(speech.PlayAudioTopic); got != 0 {
		t.Fatalf("expected no subscriptions after close, got %d", got)
	}
	if err := session.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected %v, got %v", ErrSessionClosed, err)
	}
}

func TestSessionContextCancellationClosesSession(t *testing.T) {
	bus := pubsub.NewBus()
	session := NewSession("c1", WithBus(bus))
	ctx, cancel := context.WithCancel(context.Background())
	session.Start(ctx)
	cancel()

	deadline := time.After(2 * time.Second)
	for bus.Subscribers(speech.PlayAudioTopic) != 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for session to close")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type blockingSubmitter struct {
	entered chan struct{}
}

func (b *blockingSubmitter) SubmitText(ctx context.Context, _ string, _ string) error {
	b.entered <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingSubmitter) SubmitAudio(ctx context.Context, _ string, _ *audio.Resource) error {
	b.entered <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func closeWithin(t *testing.T, session *Session, timeout time.Duration) {
	t.Helper()

	closed := make(chan struct{})
	go func() {
		session.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(timeout):
		t.Fatalf("expected Close to return within %s", timeout)
	}
}

func TestCloseCancelsBackgroundHistoryLoad(t *testing.T) {
	history := newFakeHistoryStore()
	history.gates["c2"] = make(chan struct{})

	session := NewSession("c1", WithHistoryStore(history))
	session.Start(context.Background())
	session.Reset("c2")

	select {
	case id := <-history.entered:
		if id != "c2" {
			t.Fatalf("expected history load of c2, got %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for history load")
	}

	closeWithin(t, session, 2*time.Second)
}

func TestCloseCancelsHistoryLoadStartedBeforeStart(t *testing.T) {
	history := newFakeHistoryStore()
	history.gates["c2"] = make(chan struct{})

	session := NewSession("c1", WithHistoryStore(history))
	session.Reset("c2")

	select {
	case <-history.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for history load")
	}

	session.Start(context.Background())
	closeWithin(t, session, 2*time.Second)
}

func TestCloseCancelsPendingSubmission(t *testing.T) {
	submitter := &blockingSubmitter{entered: make(chan struct{}, 1)}
	session := NewSession("c1", WithSubmitter(submitter))
	session.Start(context.Background())

	if err := session.SendText(context.Background(), "hello"); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	waitFor(t, submitter.entered, "submission")

	closeWithin(t, session, 2*time.Second)
}

func TestSessionResetDiscardsPendingFragmentsWithoutRefresh(t *testing.T) {
	pool := audio.NewPool()
	speaker := newCaptionSpeaker()
	speaker.block = true
	history := newFakeHistoryStore()
	history.records["c2"] = []transcript.Record{storedRecord(t, "user", "new conversation")}
	recorder := newEventRecorder()

	session := newTestSession(t,
		WithAudioPool(pool),
		WithSpeaker(speaker),
		WithHistoryStore(history),
		WithEventCallback(recorder.record),
	)
	session.Start(context.Background())

	session.HandleFragment(spoken("current"))
	session.HandleFragment(spoken("pending"))
	session.HandleFragment(speech.Terminal())

	select {
	case <-speaker.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for first fragment to play")
	}

	session.Reset("c2")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := session.queue.AwaitIdle(ctx); err != nil {
		t.Fatalf("expected queue to drain after reset, got %v", err)
	}
	deadline := time.After(2 * time.Second)
	for len(session.Transcript()) != 1 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for new conversation history")
		case <-time.After(5 * time.Millisecond):
		}
	}

	played, _ := speaker.snapshot()
	if len(played) != 1 {
		t.Fatalf("expected pending fragments to be discarded, got %v", played)
	}
	if calls := history.callCount("c1"); calls != 0 {
		t.Fatalf("expected discarded terminal not to refresh the old conversation, got %d calls", calls)
	}
	if reply := session.RunningReply(); reply != nil {
		t.Fatalf("expected running reply to be reset, got %q", *reply)
	}
	if finals := recorder.ofKind(events.KindReplyFinal); len(finals) != 0 {
		t.Fatalf("expected discarded terminal not to finalize, got %d", len(finals))
	}
	if live := pool.Live(); live != 0 {
		t.Fatalf("expected discarded fragments to release audio, got %d live", live)
	}
	if session.ConversationID() != "c2" {
		t.Fatalf("expected conversation c2, got %s", session.ConversationID())
	}
}

func TestRefreshTranscriptDropsResultsFromBeforeReset(t *testing.T) {
	history := newFakeHistoryStore()
	gate := make(chan struct{})
	history.gates["c1"] = gate
	history.records["c1"] = []transcript.Record{storedRecord(t, "user", "old")}
	history.records["c2"] = []transcript.Record{storedRecord(t, "user", "new")}

	session := newTestSession(t, WithHistoryStore(history))
	session.Start(context.Background())

	refreshDone := make(chan error, 1)
	go func() { refreshDone <- session.RefreshTranscript(context.Background()) }()

	select {
	case <-history.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for refresh to start")
	}

	session.Reset("c2")
	deadline := time.After(2 * time.Second)
	for len(session.Transcript()) != 1 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for c2 history")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(gate)
	select {
	case err := <-refreshDone:
		if err != nil {
			t.Fatalf("expected stale refresh to be dropped silently, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for stale refresh")
	}

	messages := session.Transcript()
	if len(messages) != 1 || messages[0].Text != "new" {
		t.Fatalf("expected transcript of c2 to survive, got %+v", messages)
	}
}

func TestRefreshTranscriptFailureKeepsPreviousTranscript(t *testing.T) {
	history := newFakeHistoryStore()
	history.records["c1"] = []transcript.Record{storedRecord(t, "user", "kept")}
	recorder := newEventRecorder()
	session := newTestSession(t, WithHistoryStore(history), WithEventCallback(recorder.record))

	if err := session.RefreshTranscript(context.Background()); err != nil {
		t.Fatalf("expected refresh to succeed, got %v", err)
	}

	history.mu.Lock()
	history.err = errors.New("storage offline")
	history.mu.Unlock()

	if err := session.RefreshTranscript(context.Background()); err == nil {
		t.Fatalf("expected refresh to fail")
	}
	if messages := session.Transcript(); len(messages) != 1 || messages[0].Text != "kept" {
		t.Fatalf("expected previous transcript to be kept, got %+v", messages)
	}
	if failures := recorder.ofKind(events.KindTranscriptRefreshFailed); len(failures) != 1 {
		t.Fatalf("expected 1 refresh failure event, got %d", len(failures))
	}
}

func TestRefreshTranscriptWithoutStore(t *testing.T) {
	session := newTestSession(t)
	if err := session.RefreshTranscript(context.Background()); !errors.Is(err, ErrNoHistoryStore) {
		t.Fatalf("expected %v, got %v", ErrNoHistoryStore, err)
	}
}

func TestTranscriptReturnsCopy(t *testing.T) {
	history := newFakeHistoryStore()
	history.records["c1"] = []transcript.Record{storedRecord(t, "user", "original")}
	session := newTestSession(t, WithHistoryStore(history))
	session.RefreshTranscript(context.Background())

	messages := session.Transcript()
	messages[0].Text = "mutated"

	if got := session.Transcript()[0].Text; got != "original" {
		t.Fatalf("expected transcript to be unaffected by caller mutation, got %q", got)
	}
}

func TestSendTextAppendsLocalMessageAndSubmits(t *testing.T) {
	submitter := newFakeSubmitter()
	session := newTestSession(t, WithSubmitter(submitter))
	session.Start(context.Background())

	if err := session.SendText(context.Background(), "  how are you?  "); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}

	messages := session.Transcript()
	if len(messages) != 1 || messages[0].Role != transcript.RoleUser || messages[0].Text != "how are you?" {
		t.Fatalf("expected optimistic user message, got %+v", messages)
	}

	waitFor(t, submitter.called, "text submission")
	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	if len(submitter.texts) != 1 || submitter.texts[0] != "c1:how are you?" {
		t.Fatalf("expected submission to c1, got %v", submitter.texts)
	}
}

func TestSendTextValidation(t *testing.T) {
	session := newTestSession(t)
	if err := session.SendText(context.Background(), "   "); err != nil {
		t.Fatalf("expected blank text to be ignored, got %v", err)
	}
	if len(session.Transcript()) != 0 {
		t.Fatalf("expected blank text not to be shown")
	}

	unselected := NewSession("")
	defer unselected.Close()
	if err := unselected.SendText(context.Background(), "hello"); !errors.Is(err, ErrMissingConversationID) {
		t.Fatalf("expected %v, got %v", ErrMissingConversationID, err)
	}
}

func TestCaptureLifecycle(t *testing.T) {
	pool := audio.NewPool()
	recorder := &fakeRecorder{pool: pool, recording: []byte("RIFF recording")}
	submitter := newFakeSubmitter()
	observed := newEventRecorder()
	session := newTestSession(t, WithRecorder(recorder), WithSubmitter(submitter), WithEventCallback(observed.record))
	session.Start(context.Background())

	if err := session.EndCapture(context.Background()); !errors.Is(err, ErrNotCapturing) {
		t.Fatalf("expected %v, got %v", ErrNotCapturing, err)
	}
	if err := session.BeginCapture(context.Background()); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}
	if err := session.BeginCapture(context.Background()); !errors.Is(err, ErrAlreadyCapturing) {
		t.Fatalf("expected %v, got %v", ErrAlreadyCapturing, err)
	}
	if !session.IsCapturing() {
		t.Fatalf("expected session to be capturing")
	}
	if err := session.EndCapture(context.Background()); err != nil {
		t.Fatalf("expected capture to end, got %v", err)
	}

	waitFor(t, submitter.called, "audio submission")
	session.Close()

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	if len(submitter.sizes) != 1 || submitter.sizes[0] != len("RIFF recording") {
		t.Fatalf("expected one submitted recording, got %v", submitter.sizes)
	}
	if !submitter.audio[0].IsReleased() {
		t.Fatalf("expected recording to be released after submission")
	}
	if recorder.starts != 1 || recorder.stops != 1 {
		t.Fatalf("expected one start and one stop, got %d and %d", recorder.starts, recorder.stops)
	}
	if ended := observed.ofKind(events.KindCaptureEnded); len(ended) != 1 {
		t.Fatalf("expected one capture ended event, got %d", len(ended))
	}
}

func TestCaptureWithoutRecorder(t *testing.T) {
	session := newTestSession(t)
	if err := session.BeginCapture(context.Background()); !errors.Is(err, ErrNoRecorder) {
		t.Fatalf("expected %v, got %v", ErrNoRecorder, err)
	}
}
