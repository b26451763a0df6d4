package audio

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultMediaType is assumed for payloads that carry no data URI prefix.
	DefaultMediaType = "audio/wav"

	MediaTypeWAV  = "audio/wav"
	MediaTypeMPEG = "audio/mpeg"
	MediaTypeL16  = "audio/L16"

	dataURIScheme = "data:"
	base64Param   = "base64"
)

var (
	ErrMalformedDataURI    = errors.New("malformed data uri")
	ErrUnsupportedEncoding = errors.New("unsupported data uri encoding")
)

// Payload is an encoded audio payload split from its optional data URI
// header.
type Payload struct {
	MediaType string
	// Params holds the media type parameters in order, e.g. "rate=16000".
	Params []string
	Data   string
	// HasPrefix reports whether the payload came wrapped in a data URI.
	HasPrefix bool
}

// ParseDataURI splits "data:<media-type>[;param]*;base64,<data>" into its
// parts. Anything not starting with "data:", in any letter case, is treated
// as a bare base64 payload of [DefaultMediaType].
func ParseDataURI(payload string) (Payload, error) {
	trimmed := strings.TrimSpace(payload)
	if !hasDataScheme(trimmed) {
		return Payload{MediaType: DefaultMediaType, Data: trimmed}, nil
	}

	header, data, ok := strings.Cut(trimmed[len(dataURIScheme):], ",")
	if !ok {
		return Payload{}, fmt.Errorf("%w: missing ',' separator", ErrMalformedDataURI)
	}

	fields := strings.Split(header, ";")
	mediaType := strings.TrimSpace(fields[0])
	if mediaType == "" {
		mediaType = DefaultMediaType
	}

	isBase64 := false
	params := []string{}
	for _, field := range fields[1:] {
		field = strings.TrimSpace(field)
		if strings.EqualFold(field, base64Param) {
			isBase64 = true
			continue
		}
		if field != "" {
			params = append(params, field)
		}
	}
	if !isBase64 {
		return Payload{}, fmt.Errorf("%w: only base64 payloads are supported", ErrUnsupportedEncoding)
	}

	return Payload{MediaType: mediaType, Params: params, Data: data, HasPrefix: true}, nil
}

// hasDataScheme matches the scheme case-insensitively, as URI schemes are.
func hasDataScheme(payload string) bool {
	return len(payload) >= len(dataURIScheme) && strings.EqualFold(payload[:len(dataURIScheme)], dataURIScheme)
}

// FormatDataURI is the inverse of [ParseDataURI] for base64 payloads.
func FormatDataURI(mediaType, base64Data string) string {
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	return dataURIScheme + mediaType + ";" + base64Param + "," + base64Data
}
