package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-companion/core/audio"
)

var (
	ErrPlayback      = errors.New("playback failed")
	ErrTaskDiscarded = errors.New("playback task discarded")
	ErrQueueClosed   = errors.New("playback queue closed")
)

// PlaybackError reports that the speaker could not play a task's audio.
type PlaybackError struct {
	TaskID string
	Err    error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("failed to play task %s: %v", e.TaskID, e.Err)
}

func (e *PlaybackError) Unwrap() []error { return []error{ErrPlayback, e.Err} }

// Speaker presents audio to the listener and returns once playback finished
// or failed. It is the puppeted avatar's speak capability.
type Speaker interface {
	Speak(ctx context.Context, resource *audio.Resource) error
}

// SpeakerFunc adapts a function to [Speaker].
type SpeakerFunc func(ctx context.Context, resource *audio.Resource) error

func (f SpeakerFunc) Speak(ctx context.Context, resource *audio.Resource) error {
	return f(ctx, resource)
}

type TaskState int

const (
	StateQueued TaskState = iota
	StatePlaying
	StateFinished
	StateFailed
	StateReleased
)

func (s TaskState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	case StateReleased:
		return "released"
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// canTransition enforces Queued -> Playing -> {Finished|Failed} -> Released.
// Queued tasks may fail directly when they are discarded.
func (s TaskState) canTransition(next TaskState) bool {
	switch s {
	case StateQueued:
		return next == StatePlaying || next == StateFailed
	case StatePlaying:
		return next == StateFinished || next == StateFailed
	case StateFinished, StateFailed:
		return next == StateReleased
	}
	return false
}

// Task is the playback obligation of one speech fragment.
type Task struct {
	// ID is assigned by the queue when left empty.
	ID   string
	Text string
	// Resource is the audio to speak. Tasks without one only run their hooks,
	// e.g. a caption whose audio failed to decode or a reply terminator.
	// The queue owns the resource once enqueued and releases it.
	Resource *audio.Resource
	Terminal bool
	// Hold keeps the worker on a task without audio for the given duration
	// before the next task starts. Audio tasks use the queue cooldown.
	Hold time.Duration

	// OnStart runs on the worker right before the audio is presented.
	OnStart func()
	// OnEnd runs on the worker after the task was released.
	OnEnd func(Result)
}

// Result is the outcome of a task, reported once per task.
type Result struct {
	TaskID   string
	Text     string
	Terminal bool
	// State is the outcome before release, StateFinished or StateFailed.
	State TaskState
	Err   error
	// Discarded is set when the task was dropped by Clear or Close.
	Discarded bool

	QueuedAt  time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// StateChange is reported for every state a task enters.
type StateChange struct {
	TaskID string
	State  TaskState
}
