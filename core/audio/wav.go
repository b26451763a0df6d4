package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

const (
	wavHeaderSize     = 44
	wavExtensibleSize = 40
	wavFormatPCM      = 1
	wavFormatExtend   = 0xFFFE
)

var ErrUnsupportedMediaType = errors.New("unsupported media type for pcm playback")

// DecodePCM extracts little-endian PCM samples from a WAV, MP3 or L16
// payload. MP3 content is recognised by its leading bytes even when it is
// labelled as WAV, since bare payloads get the WAV default. Other media types
// are rejected with [ErrUnsupportedMediaType].
func DecodePCM(mediaType string, data []byte) (EncodingInfo, []byte, error) {
	base, params, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return EncodingInfo{}, nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedMediaType, mediaType, err)
	}

	switch base {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		if LooksLikeMP3(data) {
			return DecodeMP3(data)
		}
		return ParseWAV(data)
	case strings.ToLower(MediaTypeMPEG), "audio/mp3", "audio/mpeg3", "audio/x-mpeg":
		return DecodeMP3(data)
	case strings.ToLower(MediaTypeL16):
		return decodeL16(params, data)
	default:
		return EncodingInfo{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, base)
	}
}

// ParseWAV reads a RIFF/WAVE file holding integer PCM.
func ParseWAV(data []byte) (EncodingInfo, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return EncodingInfo{}, nil, errors.New("not a RIFF/WAVE file")
	}

	var info EncodingInfo
	formatFound := false
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + chunkSize
		if end > len(data) || chunkSize < 0 {
			// Streamed WAVs often leave the data size unset.
			end = len(data)
		}

		switch chunkID {
		case "fmt ":
			if end-body < 16 {
				return EncodingInfo{}, nil, errors.New("wav format chunk too short")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat == wavFormatExtend {
				// The first two bytes of the sub-format GUID hold the real
				// format code.
				if end-body < wavExtensibleSize {
					return EncodingInfo{}, nil, errors.New("wav extensible format chunk too short")
				}
				audioFormat = binary.LittleEndian.Uint16(data[body+24 : body+26])
			}
			if audioFormat != wavFormatPCM {
				return EncodingInfo{}, nil, fmt.Errorf("unsupported wav sample format %d", audioFormat)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			format, ok := LinearEncoding(bits)
			if !ok {
				return EncodingInfo{}, nil, fmt.Errorf("unsupported wav bit depth %d", bits)
			}
			info.Format = format
			formatFound = true
		case "data":
			if !formatFound {
				return EncodingInfo{}, nil, errors.New("wav data chunk before format chunk")
			}
			return info, data[body:end], nil
		}

		offset = end + chunkSize%2
	}

	return EncodingInfo{}, nil, errors.New("wav data chunk not found")
}

// EncodeWAV wraps little-endian PCM in a RIFF/WAVE header.
func EncodeWAV(info EncodingInfo, pcm []byte) ([]byte, error) {
	bitsPerSample := info.Format.ByteSize() * 8
	if bitsPerSample <= 0 || strings.HasSuffix(info.Format.Name(), "law") {
		return nil, fmt.Errorf("cannot encode %q as pcm wav", info.Format.Name())
	}
	channels := info.Channels
	if channels <= 0 {
		channels = 1
	}
	blockAlign := channels * info.Format.ByteSize()

	buffer := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buffer.WriteString("RIFF")
	binary.Write(buffer, binary.LittleEndian, uint32(36+len(pcm)))
	buffer.WriteString("WAVE")
	buffer.WriteString("fmt ")
	binary.Write(buffer, binary.LittleEndian, uint32(16))
	binary.Write(buffer, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buffer, binary.LittleEndian, uint16(channels))
	binary.Write(buffer, binary.LittleEndian, uint32(info.SampleRate))
	binary.Write(buffer, binary.LittleEndian, uint32(info.SampleRate*blockAlign))
	binary.Write(buffer, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buffer, binary.LittleEndian, uint16(bitsPerSample))
	buffer.WriteString("data")
	binary.Write(buffer, binary.LittleEndian, uint32(len(pcm)))
	buffer.Write(pcm)

	return buffer.Bytes(), nil
}

// decodeL16 converts network byte order L16 samples to little endian.
func decodeL16(params map[string]string, data []byte) (EncodingInfo, []byte, error) {
	info := EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: EncodingLinear16}
	if rate, ok := params["rate"]; ok {
		parsed, err := strconv.Atoi(rate)
		if err != nil || parsed <= 0 {
			return EncodingInfo{}, nil, fmt.Errorf("invalid L16 rate %q", rate)
		}
		info.SampleRate = parsed
	}
	if channels, ok := params["channels"]; ok {
		parsed, err := strconv.Atoi(channels)
		if err != nil || parsed <= 0 {
			return EncodingInfo{}, nil, fmt.Errorf("invalid L16 channels %q", channels)
		}
		info.Channels = parsed
	}

	pcm := make([]byte, len(data)-len(data)%2)
	for i := 0; i+1 < len(data); i += 2 {
		pcm[i], pcm[i+1] = data[i+1], data[i]
	}
	return info, pcm, nil
}
