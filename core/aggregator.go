package orchestration

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-companion/core/audio"
	"github.com/koscakluka/ema-companion/core/events"
	"github.com/koscakluka/ema-companion/core/playback"
	"github.com/koscakluka/ema-companion/core/speech"
)

// streamingAggregator turns the fragments of a reply into playback tasks and
// owns the caption and running reply shown while the reply is spoken.
//
// All mutations happen inside task hooks, which run on the queue worker, so
// the caption always matches the fragment being presented. generation is
// bumped on reset; hooks of tasks enqueued before a reset become no-ops.
type streamingAggregator struct {
	queue         *playback.Queue
	emit          eventEmitter
	settlingDelay time.Duration
	captionHold   time.Duration
	onSettled     func()

	mu           sync.Mutex
	generation   uint64
	caption      string
	runningReply *string
}

func newStreamingAggregator(queue *playback.Queue, emit eventEmitter, settlingDelay, captionHold time.Duration, onSettled func()) *streamingAggregator {
	if emit == nil {
		emit = noopEventEmitter
	}
	return &streamingAggregator{
		queue:         queue,
		emit:          emit,
		settlingDelay: settlingDelay,
		captionHold:   captionHold,
		onSettled:     onSettled,
	}
}

// onFragment enqueues the playback obligation of one fragment and returns
// the task ID. resource is nil for terminal fragments and for fragments
// whose audio could not be decoded; those still advance the caption.
func (a *streamingAggregator) onFragment(fragment speech.Fragment, resource *audio.Resource) string {
	generation := a.currentGeneration()

	if fragment.IsTerminal() {
		if resource != nil {
			_ = resource.Release()
		}
		return a.queue.Enqueue(playback.Task{
			Terminal: true,
			Hold:     a.settlingDelay,
			OnStart:  func() { a.finalize(generation) },
			OnEnd:    func(result playback.Result) { a.settle(generation, result) },
		})
	}

	hasAudio := resource != nil
	task := playback.Task{
		ID:       uuid.NewString(),
		Text:     fragment.Text,
		Resource: resource,
	}
	if !hasAudio {
		task.Hold = a.captionHold
	}
	taskID := task.ID
	task.OnStart = func() { a.advance(generation, taskID, fragment.Text, hasAudio) }
	task.OnEnd = func(result playback.Result) { a.reportPlayback(result, hasAudio) }

	return a.queue.Enqueue(task)
}

func (a *streamingAggregator) advance(generation uint64, taskID, text string, hasAudio bool) {
	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		return
	}
	reply := text
	if a.runningReply != nil {
		reply = *a.runningReply + text
	}
	a.caption = text
	a.runningReply = &reply
	a.mu.Unlock()

	if hasAudio {
		a.emit(events.NewPlaybackStarted(taskID, text))
	}
	a.emit(events.NewCaptionUpdated(text))
	a.emit(events.NewReplyUpdated(reply))
}

func (a *streamingAggregator) reportPlayback(result playback.Result, hasAudio bool) {
	switch {
	case result.State == playback.StateFailed:
		a.emit(events.NewPlaybackFailed(result.TaskID, result.Text, result.Err, result.Discarded))
	case hasAudio:
		a.emit(events.NewPlaybackFinished(result.TaskID, result.Text))
	}
}

func (a *streamingAggregator) finalize(generation uint64) {
	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		return
	}
	final := ""
	if a.runningReply != nil {
		final = *a.runningReply
	}
	a.mu.Unlock()

	a.emit(events.NewReplyFinal(final))
}

// settle clears the reply after the settling delay. Only a terminal that
// actually played requests a transcript refresh.
func (a *streamingAggregator) settle(generation uint64, result playback.Result) {
	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		return
	}
	a.caption = ""
	a.runningReply = nil
	a.mu.Unlock()

	a.emit(events.NewCaptionUpdated(""))
	a.emit(events.NewReplyCleared())

	if !result.Discarded && a.onSettled != nil {
		a.onSettled()
	}
}

func (a *streamingAggregator) reset() {
	a.mu.Lock()
	a.generation++
	hadReply := a.runningReply != nil || a.caption != ""
	a.caption = ""
	a.runningReply = nil
	a.mu.Unlock()

	if hadReply {
		a.emit(events.NewCaptionUpdated(""))
		a.emit(events.NewReplyCleared())
	}
}

func (a *streamingAggregator) currentGeneration() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

func (a *streamingAggregator) currentCaption() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caption
}

func (a *streamingAggregator) currentReply() *string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runningReply == nil {
		return nil
	}
	reply := *a.runningReply
	return &reply
}
