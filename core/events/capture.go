package events

const (
	KindCaptureStarted Kind = "capture.started"
	KindCaptureEnded   Kind = "capture.ended"
)

type CaptureStarted struct{ Base }

func NewCaptureStarted() CaptureStarted {
	return CaptureStarted{Base: NewBase(KindCaptureStarted)}
}

// CaptureEnded carries the size of the recording handed off for submission.
type CaptureEnded struct {
	Base
	Bytes int
}

func NewCaptureEnded(bytes int) CaptureEnded {
	return CaptureEnded{Base: NewBase(KindCaptureEnded), Bytes: bytes}
}
