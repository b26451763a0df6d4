package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-companion/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrDecode           = errors.New("speech fragment decode failed")
	ErrTerminalFragment = errors.New("terminal fragment carries no audio")
	ErrEmptyPayload     = errors.New("empty audio payload")
)

// DecodeError is returned for fragments whose audio payload cannot be turned
// into a playable resource.
type DecodeError struct {
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode fragment %q: %v", e.Text, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// Decoder turns wire fragments into playable audio resources.
type Decoder struct {
	pool             *audio.Pool
	defaultMediaType string
	decodeErrors     metric.Int64Counter
}

type DecoderOption func(*Decoder)

// WithDefaultMediaType overrides the media type assumed for bare payloads.
func WithDefaultMediaType(mediaType string) DecoderOption {
	return func(d *Decoder) {
		if mediaType != "" {
			d.defaultMediaType = mediaType
		}
	}
}

func NewDecoder(pool *audio.Pool, opts ...DecoderOption) *Decoder {
	if pool == nil {
		pool = audio.NewPool()
	}

	d := &Decoder{pool: pool, defaultMediaType: audio.DefaultMediaType}
	for _, opt := range opts {
		opt(d)
	}

	counter, err := meter.Int64Counter("companion.speech.decode_errors",
		metric.WithDescription("Speech fragments whose audio payload failed to decode"))
	if err != nil {
		logger.Warn("failed to create decode error counter", "error", err)
	}
	d.decodeErrors = counter
	return d
}

// Pool returns the pool resources are allocated from.
func (d *Decoder) Pool() *audio.Pool { return d.pool }

// Decode allocates a resource for the fragment's audio. The caller owns the
// returned resource and must release it.
func (d *Decoder) Decode(fragment Fragment) (*audio.Resource, error) {
	if fragment.IsTerminal() {
		return nil, &DecodeError{Text: fragment.Text, Err: ErrTerminalFragment}
	}

	payload, err := audio.ParseDataURI(fragment.Base64)
	if err != nil {
		return nil, d.fail(fragment, err)
	}
	if !payload.HasPrefix {
		payload.MediaType = d.defaultMediaType
	}
	if payload.Data == "" {
		return nil, d.fail(fragment, ErrEmptyPayload)
	}

	data, err := decodeBase64(payload.Data)
	if err != nil {
		return nil, d.fail(fragment, err)
	}
	if len(data) == 0 {
		return nil, d.fail(fragment, ErrEmptyPayload)
	}

	mediaType := payload.MediaType
	if len(payload.Params) > 0 {
		mediaType += ";" + strings.Join(payload.Params, ";")
	}
	return d.pool.Allocate(mediaType, data), nil
}

func (d *Decoder) fail(fragment Fragment, err error) error {
	decodeErr := &DecodeError{Text: fragment.Text, Err: err}
	if d.decodeErrors != nil {
		d.decodeErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("error", err.Error())))
	}
	logger.Warn("dropping undecodable fragment audio", "text", fragment.Text, "error", err)
	return decodeErr
}

// decodeBase64 accepts padded and unpadded standard and URL-safe alphabets;
// backends disagree on which one they emit.
func decodeBase64(data string) ([]byte, error) {
	data = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, data)

	var firstErr error
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		decoded, err := encoding.DecodeString(data)
		if err == nil {
			return decoded, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("invalid base64 payload: %w", firstErr)
}
