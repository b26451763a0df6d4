package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name      string
		event     Event
		expected  Kind
		namespace string
	}{
		{name: "fragment received", event: NewFragmentReceived("hi", true, false), expected: KindFragmentReceived, namespace: "speech_fragment"},
		{name: "fragment decode failed", event: NewFragmentDecodeFailed("hi", errors.New("bad")), expected: KindFragmentDecodeFailed, namespace: "speech_fragment"},
		{name: "playback started", event: NewPlaybackStarted("id", "hi"), expected: KindPlaybackStarted, namespace: "playback"},
		{name: "playback finished", event: NewPlaybackFinished("id", "hi"), expected: KindPlaybackFinished, namespace: "playback"},
		{name: "playback failed", event: NewPlaybackFailed("id", "hi", errors.New("bad"), false), expected: KindPlaybackFailed, namespace: "playback"},
		{name: "caption updated", event: NewCaptionUpdated("hi"), expected: KindCaptionUpdated, namespace: "reply"},
		{name: "reply updated", event: NewReplyUpdated("hi"), expected: KindReplyUpdated, namespace: "reply"},
		{name: "reply final", event: NewReplyFinal("hi"), expected: KindReplyFinal, namespace: "reply"},
		{name: "reply cleared", event: NewReplyCleared(), expected: KindReplyCleared, namespace: "reply"},
		{name: "transcript refreshed", event: NewTranscriptRefreshed(2, 0), expected: KindTranscriptRefreshed, namespace: "transcript"},
		{name: "transcript refresh failed", event: NewTranscriptRefreshFailed(errors.New("bad")), expected: KindTranscriptRefreshFailed, namespace: "transcript"},
		{name: "capture started", event: NewCaptureStarted(), expected: KindCaptureStarted, namespace: "capture"},
		{name: "capture ended", event: NewCaptureEnded(10), expected: KindCaptureEnded, namespace: "capture"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if got := testCase.event.Kind().Namespace(); got != testCase.namespace {
				t.Fatalf("expected namespace %q, got %q", testCase.namespace, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected event timestamp to be set")
			}
		})
	}
}

func TestReplyFinalAndClearedKindsAreDistinct(t *testing.T) {
	if NewReplyFinal("").Kind() == NewReplyCleared().Kind() {
		t.Fatalf("expected reply final and reply cleared kinds to differ")
	}
}

func TestNamespaceOfKindWithoutDot(t *testing.T) {
	if got := Kind("custom").Namespace(); got != "custom" {
		t.Fatalf("expected namespace %q, got %q", "custom", got)
	}
	if got := NewBase(KindPlaybackFailed).Namespace(); got != "playback" {
		t.Fatalf("expected namespace %q, got %q", "playback", got)
	}
}
