package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// mp3Channels is fixed by the decoder, which always yields interleaved
// 16-bit stereo.
const mp3Channels = 2

// LooksLikeMP3 reports whether data starts with an ID3v2 tag or an MPEG
// audio frame sync.
func LooksLikeMP3(data []byte) bool {
	if len(data) >= 3 && string(data[:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// DecodeMP3 decodes a whole MP3 stream to little-endian 16-bit PCM.
func DecodeMP3(data []byte) (EncodingInfo, []byte, error) {
	if len(data) == 0 {
		return EncodingInfo{}, nil, errors.New("empty mp3 payload")
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return EncodingInfo{}, nil, fmt.Errorf("failed to open mp3 stream: %w", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return EncodingInfo{}, nil, fmt.Errorf("failed to decode mp3 stream: %w", err)
	}

	info := EncodingInfo{SampleRate: decoder.SampleRate(), Channels: mp3Channels, Format: EncodingLinear16}
	return info, pcm[:len(pcm)-len(pcm)%info.FrameSize()], nil
}
