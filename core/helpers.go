package orchestration

import (
	"context"
	"fmt"
)

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// goBackground runs a named worker off the caller's goroutine, bounded by
// the session's base context. Close waits for every background worker. It
// reports false when the session is already closed and run was skipped.
func (s *Session) goBackground(name string, run func(context.Context) error) bool {
	worker := panicSafeNamedWorker(name, run)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		logger.Debug("session closed, skipping background worker", "worker", name)
		return false
	}
	ctx := s.baseContext
	if ctx == nil {
		ctx = context.Background()
	}
	s.background.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.background.Done()
		if err := worker(ctx); err != nil {
			logger.Warn("background worker failed", "worker", name, "error", err)
		}
	}()
	return true
}

func (s *Session) currentContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.baseContext != nil {
		return s.baseContext
	}
	return context.Background()
}
