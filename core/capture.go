package orchestration

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-companion/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BeginCapture starts recording the user.
func (s *Session) BeginCapture(ctx context.Context) error {
	if s.recorder == nil {
		return ErrNoRecorder
	}
	if s.ConversationID() == "" {
		return ErrMissingConversationID
	}

	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if s.capturing {
		return ErrAlreadyCapturing
	}
	if err := s.recorder.StartCapture(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	s.capturing = true

	s.emit(events.NewCaptureStarted())
	return nil
}

// EndCapture stops recording and submits the recording in the background.
// The recording is released once the submission finished.
func (s *Session) EndCapture(ctx context.Context) error {
	if s.recorder == nil {
		return ErrNoRecorder
	}

	ctx, span := tracer.Start(ctx, "end capture")
	defer span.End()

	s.captureMu.Lock()
	if !s.capturing {
		s.captureMu.Unlock()
		return ErrNotCapturing
	}
	recording, err := s.recorder.StopCapture(ctx)
	s.capturing = false
	s.captureMu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	if recording == nil {
		s.emit(events.NewCaptureEnded(0))
		return nil
	}

	span.SetAttributes(
		attribute.Int("capture.bytes", recording.Size()),
		attribute.String("capture.media_type", recording.MediaType()),
	)
	s.emit(events.NewCaptureEnded(recording.Size()))

	conversationID := s.ConversationID()
	if s.submitter == nil || conversationID == "" {
		logger.Warn("recording dropped, nothing to submit it to", "conversation_id", conversationID)
		_ = recording.Release()
		return nil
	}

	submitted := s.goBackground("submit audio", func(ctx context.Context) error {
		defer func() { _ = recording.Release() }()
		return s.submitter.SubmitAudio(ctx, conversationID, recording)
	})
	if !submitted {
		_ = recording.Release()
		return ErrSessionClosed
	}
	return nil
}

// IsCapturing reports whether a recording is in progress.
func (s *Session) IsCapturing() bool {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	return s.capturing
}

func (s *Session) abandonCapture() {
	if s.recorder == nil {
		return
	}

	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	if !s.capturing {
		return
	}
	s.capturing = false

	recording, err := s.recorder.StopCapture(context.Background())
	if err != nil {
		logger.Warn("failed to stop capture on close", "error", err)
		return
	}
	if recording != nil {
		_ = recording.Release()
	}
}
