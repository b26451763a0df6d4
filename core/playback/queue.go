package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCooldown separates consecutive fragments so neither the audio nor
// the avatar's mouth movement gets clipped.
const DefaultCooldown = 500 * time.Millisecond

type QueueOption func(*Queue)

func WithCooldown(cooldown time.Duration) QueueOption {
	return func(q *Queue) {
		if cooldown >= 0 {
			q.cooldown = cooldown
		}
	}
}

// WithResultCallback registers a callback receiving every task outcome,
// after the task's own OnEnd hook.
func WithResultCallback(callback func(Result)) QueueOption {
	return func(q *Queue) { q.onResult = callback }
}

// WithStateCallback registers a callback for every task state transition.
// It runs synchronously and must not block.
func WithStateCallback(callback func(StateChange)) QueueOption {
	return func(q *Queue) { q.onState = callback }
}

// Queue plays tasks one at a time in the order they were enqueued.
//
// Enqueue never blocks; bursts are buffered in memory since a reply has a
// bounded number of fragments. A single worker goroutine owns playback, so
// at most one task is ever in [StatePlaying].
type Queue struct {
	speaker  Speaker
	cooldown time.Duration
	onResult func(Result)
	onState  func(StateChange)

	mu            sync.Mutex
	pending       []*queuedTask
	current       *queuedTask
	currentCancel context.CancelFunc
	idle          chan struct{}
	isIdle        bool

	updateSignal chan struct{}
	closeCh      chan struct{}
	done         chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool

	tasks metric.Int64Counter
}

type queuedTask struct {
	Task

	mu        sync.Mutex
	state     TaskState
	discarded bool
	queuedAt  time.Time
}

func NewQueue(speaker Speaker, opts ...QueueOption) *Queue {
	idle := make(chan struct{})
	close(idle)

	q := &Queue{
		speaker:      speaker,
		cooldown:     DefaultCooldown,
		idle:         idle,
		isIdle:       true,
		updateSignal: make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	counter, err := meter.Int64Counter("companion.playback.tasks",
		metric.WithDescription("Playback tasks that reached a terminal state"))
	if err != nil {
		logger.Warn("failed to create playback task counter", "error", err)
	}
	q.tasks = counter
	return q
}

// Start launches the worker. ctx bounds every task's playback; cancelling it
// stops the queue like Close.
func (q *Queue) Start(ctx context.Context) (started bool) {
	if q.isClosed() {
		return false
	}

	q.startOnce.Do(func() {
		started = true
		q.started.Store(true)

		go func() {
			select {
			case <-ctx.Done():
				q.Close()
			case <-q.closeCh:
			}
		}()

		go func() {
			defer close(q.done)
			for {
				task, ok := q.next()
				if !ok {
					return
				}
				q.run(ctx, task)
			}
		}()
	})
	return started
}

// Enqueue appends a task and returns its ID. Tasks enqueued after Close
// fail immediately with [ErrQueueClosed].
func (q *Queue) Enqueue(task Task) string {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	queued := &queuedTask{Task: task, state: StateQueued, queuedAt: time.Now()}

	q.mu.Lock()
	if q.isClosed() {
		q.mu.Unlock()
		q.resolveUnplayed(queued, ErrQueueClosed)
		return task.ID
	}
	q.pending = append(q.pending, queued)
	q.markBusyLocked()
	q.mu.Unlock()

	q.emitState(queued.ID, StateQueued)
	q.signalUpdate()
	return task.ID
}

// Len returns the number of tasks waiting behind the current one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Clear discards all waiting tasks and interrupts the task being played.
// Discarded tasks still release their audio and report a Failed result.
func (q *Queue) Clear() {
	q.mu.Lock()
	discarded := q.pending
	q.pending = nil
	if q.current != nil {
		q.current.mu.Lock()
		q.current.discarded = true
		q.current.mu.Unlock()
		if q.currentCancel != nil {
			q.currentCancel()
		}
	}
	q.markIdleLocked()
	q.mu.Unlock()

	for _, task := range discarded {
		task.mu.Lock()
		task.discarded = true
		task.mu.Unlock()
		q.resolveUnplayed(task, ErrTaskDiscarded)
	}
}

// AwaitIdle blocks until no task is waiting or playing.
func (q *Queue) AwaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after discarding all remaining work and waits for
// it to exit.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		close(q.closeCh)
		q.mu.Unlock()
		q.Clear()
	})

	if q.started.Load() {
		<-q.done
	}
}

func (q *Queue) isClosed() bool {
	select {
	case <-q.closeCh:
		return true
	default:
		return false
	}
}

func (q *Queue) next() (*queuedTask, bool) {
	for {
		q.mu.Lock()
		if q.isClosed() {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.pending) > 0 {
			task := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.current = task
			q.mu.Unlock()
			return task, true
		}
		q.mu.Unlock()

		select {
		case <-q.updateSignal:
		case <-q.closeCh:
			return nil, false
		}
	}
}

func (q *Queue) run(ctx context.Context, task *queuedTask) {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	q.mu.Lock()
	q.currentCancel = cancel
	task.mu.Lock()
	discardedBeforeStart := task.discarded
	task.mu.Unlock()
	q.mu.Unlock()
	if discardedBeforeStart {
		cancel()
	}

	ctx, span := tracer.Start(taskCtx, "play queued task")
	defer span.End()

	queuedTime := time.Since(task.queuedAt).Seconds()
	span.SetAttributes(
		attribute.String("playback.task_id", task.ID),
		attribute.Bool("playback.terminal", task.Terminal),
		attribute.Bool("playback.has_audio", task.Resource != nil),
		attribute.Float64("playback.queued_time", queuedTime),
	)

	result := Result{
		TaskID:    task.ID,
		Text:      task.Text,
		Terminal:  task.Terminal,
		QueuedAt:  task.queuedAt,
		StartedAt: time.Now(),
	}

	q.transition(task, StatePlaying)
	if err := q.play(ctx, task); err != nil {
		result.State = StateFailed
		result.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("playback task failed", "task_id", task.ID, "text", task.Text, "error", err)
	} else {
		result.State = StateFinished
	}
	q.transition(task, result.State)

	hold := q.cooldown
	if task.Resource == nil {
		hold = task.Hold
	}
	if hold > 0 {
		span.AddEvent("cooldown", trace.WithAttributes(attribute.Int64("playback.hold_ms", hold.Milliseconds())))
		wait(ctx, hold)
	}

	task.mu.Lock()
	result.Discarded = task.discarded
	task.mu.Unlock()

	q.release(task)
	result.EndedAt = time.Now()
	q.report(task, result)

	q.mu.Lock()
	q.current = nil
	q.currentCancel = nil
	q.markIdleLocked()
	q.mu.Unlock()
}

// play runs the start hook and awaits the speaker. Panics are converted to
// errors so one bad task cannot stop the worker.
func (q *Queue) play(ctx context.Context, task *queuedTask) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PlaybackError{TaskID: task.ID, Err: fmt.Errorf("playback panicked: %v", recovered)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return &PlaybackError{TaskID: task.ID, Err: err}
	}

	if task.OnStart != nil {
		task.OnStart()
	}

	if task.Resource == nil {
		return nil
	}
	if q.speaker == nil {
		logger.Debug("no speaker configured, skipping audio", "task_id", task.ID)
		return nil
	}

	if err := q.speaker.Speak(ctx, task.Resource); err != nil {
		return &PlaybackError{TaskID: task.ID, Err: err}
	}
	return nil
}

// resolveUnplayed fails a task that never reached the worker.
func (q *Queue) resolveUnplayed(task *queuedTask, reason error) {
	q.transition(task, StateFailed)
	q.release(task)

	now := time.Now()
	q.report(task, Result{
		TaskID:    task.ID,
		Text:      task.Text,
		Terminal:  task.Terminal,
		State:     StateFailed,
		Err:       reason,
		Discarded: errors.Is(reason, ErrTaskDiscarded) || errors.Is(reason, ErrQueueClosed),
		QueuedAt:  task.queuedAt,
		EndedAt:   now,
	})
}

func (q *Queue) release(task *queuedTask) {
	if task.Resource != nil {
		if err := task.Resource.Release(); err != nil {
			logger.Error("audio resource released twice", "task_id", task.ID, "resource_id", task.Resource.ID(), "error", err)
		}
	}
	q.transition(task, StateReleased)
}

func (q *Queue) report(task *queuedTask, result Result) {
	if q.tasks != nil {
		q.tasks.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("state", result.State.String()),
			attribute.Bool("discarded", result.Discarded),
		))
	}

	safeCall("task end hook", func() {
		if task.OnEnd != nil {
			task.OnEnd(result)
		}
	})
	safeCall("result callback", func() {
		if q.onResult != nil {
			q.onResult(result)
		}
	})
}

func (q *Queue) transition(task *queuedTask, next TaskState) {
	task.mu.Lock()
	if !task.state.canTransition(next) {
		current := task.state
		task.mu.Unlock()
		logger.Error("invalid playback task transition", "task_id", task.ID, "from", current.String(), "to", next.String())
		return
	}
	task.state = next
	task.mu.Unlock()

	q.emitState(task.ID, next)
}

func (q *Queue) emitState(taskID string, state TaskState) {
	if q.onState != nil {
		q.onState(StateChange{TaskID: taskID, State: state})
	}
}

func (q *Queue) markBusyLocked() {
	if q.isIdle {
		q.idle = make(chan struct{})
		q.isIdle = false
	}
}

func (q *Queue) markIdleLocked() {
	if !q.isIdle && q.current == nil && len(q.pending) == 0 {
		close(q.idle)
		q.isIdle = true
	}
}

func (q *Queue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}

func wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func safeCall(name string, f func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("playback callback panicked", "callback", name, "panic", fmt.Sprint(recovered))
		}
	}()
	f()
}
