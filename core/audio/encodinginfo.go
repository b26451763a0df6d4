package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: encodingFormat(DefaultFormat)}
}

// EncodingInfo describes raw PCM audio as handed to and from sound devices.
type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// FrameSize is the number of bytes one sample occupies across all channels.
func (e EncodingInfo) FrameSize() int {
	channels := e.Channels
	if channels <= 0 {
		channels = 1
	}
	return e.Format.ByteSize() * channels
}

// Duration estimates how long n bytes of audio take to play.
func (e EncodingInfo) Duration(n int) time.Duration {
	frameSize := e.FrameSize()
	if e.SampleRate <= 0 || frameSize <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(frameSize) / float64(e.SampleRate) * float64(time.Second))
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case encodingFormat("mulaw"), encodingFormat("alaw"), encodingFormat("linear8"):
		return 1
	case encodingFormat("linear16"):
		return 2
	case encodingFormat("linear24"):
		return 3
	case encodingFormat("linear32"):
		return 4
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear8  encodingFormat = "linear8"
	EncodingLinear16 encodingFormat = "linear16"
	EncodingLinear24 encodingFormat = "linear24"
	EncodingLinear32 encodingFormat = "linear32"
)

// LinearEncoding maps a PCM bit depth to its linear encoding format.
func LinearEncoding(bitsPerSample int) (encodingFormat, bool) {
	switch bitsPerSample {
	case 8:
		return EncodingLinear8, true
	case 16:
		return EncodingLinear16, true
	case 24:
		return EncodingLinear24, true
	case 32:
		return EncodingLinear32, true
	}
	return "", false
}
