// Package events defines the typed event contract of a companion session.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - speech_fragment.*
//   - playback.*
//   - reply.*
//   - transcript.*
//   - capture.*
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable state for the current reply.
//   - Cleared: the value was reset and should no longer be shown.
//
// speech_fragment events
//
//   - FragmentReceived (speech_fragment.received): a fragment arrived from the
//     backend, before decoding.
//   - FragmentDecodeFailed (speech_fragment.decode_failed): the fragment audio
//     could not be decoded; its caption is still shown.
//
// playback events
//
//   - PlaybackStarted (playback.started): a queued fragment started playing.
//   - PlaybackFinished (playback.finished): the avatar reported the fragment
//     finished.
//   - PlaybackFailed (playback.failed): playback failed or was discarded.
//
// reply events
//
//   - CaptionUpdated (reply.caption_updated): caption snapshot for the
//     fragment currently playing.
//   - ReplyUpdated (reply.updated): running reply text snapshot.
//   - ReplyFinal (reply.final): the reply stream ended; the final running text
//     is included.
//   - ReplyCleared (reply.cleared): the running reply was removed after the
//     settling delay.
//
// transcript events
//
//   - TranscriptRefreshed (transcript.refreshed): persisted history was
//     reloaded and reassembled.
//   - TranscriptRefreshFailed (transcript.refresh_failed): history could not be
//     fetched; the previous transcript is kept.
//
// capture events
//
//   - CaptureStarted (capture.started): microphone capture began.
//   - CaptureEnded (capture.ended): capture stopped and the recording was
//     handed off.
package events
