// Package wsbridge relays backend events received over a websocket onto a
// local bus.
//
// Each text frame is either an envelope {"event": topic, "data": payload}
// or a bare speech fragment, which is published on the play audio topic.
package wsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-companion/core/pubsub"
	"github.com/koscakluka/ema-companion/core/speech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const closeGracePeriod = time.Second

type BridgeOption func(*Bridge)

func WithHeader(header http.Header) BridgeOption {
	return func(b *Bridge) { b.header = header.Clone() }
}

func WithDialer(dialer *websocket.Dialer) BridgeOption {
	return func(b *Bridge) {
		if dialer != nil {
			b.dialer = dialer
		}
	}
}

// WithDefaultTopic sets the topic for frames without an envelope.
func WithDefaultTopic(topic string) BridgeOption {
	return func(b *Bridge) {
		if topic != "" {
			b.defaultTopic = topic
		}
	}
}

type Bridge struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	bus          *pubsub.Bus
	defaultTopic string

	frames metric.Int64Counter
}

func NewBridge(url string, bus *pubsub.Bus, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		url:          url,
		header:       http.Header{},
		dialer:       websocket.DefaultDialer,
		bus:          bus,
		defaultTopic: speech.PlayAudioTopic,
	}
	for _, opt := range opts {
		opt(b)
	}

	counter, err := meter.Int64Counter("companion.wsbridge.frames",
		metric.WithDescription("Websocket frames relayed to the bus"))
	if err != nil {
		logger.Warn("failed to create frame counter", "error", err)
	}
	b.frames = counter
	return b
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Run connects and relays frames until ctx is cancelled or the server closes
// the connection. Both end with a nil error.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "relay backend events")
	defer span.End()
	span.SetAttributes(attribute.String("websocket.url", b.url))

	conn, _, err := b.dialer.DialContext(ctx, b.url, b.header)
	if err != nil {
		err = fmt.Errorf("failed to open socket connection: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeGracePeriod))
		_ = conn.Close()
	})
	defer stop()

	relayed := 0
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			span.SetAttributes(attribute.Int("websocket.relayed_frames", relayed))
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			err = fmt.Errorf("websocket read failed: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		switch msgType {
		case websocket.TextMessage:
			if b.relay(ctx, msg) {
				relayed++
			}
		default:
			logger.Debug("ignoring non-text websocket frame", "type", msgType)
		}
	}
}

func (b *Bridge) relay(ctx context.Context, msg []byte) bool {
	topic, payload, err := b.route(msg)
	if err != nil {
		logger.Warn("dropping malformed websocket frame", "error", err)
		return false
	}

	delivered := b.bus.Publish(topic, payload)
	if b.frames != nil {
		b.frames.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
	}
	logger.Debug("relayed websocket frame", "topic", topic, "subscribers", delivered)
	return true
}

func (b *Bridge) route(msg []byte) (string, json.RawMessage, error) {
	if !json.Valid(msg) {
		return "", nil, fmt.Errorf("frame is not valid json")
	}

	var wrapped envelope
	if err := json.Unmarshal(msg, &wrapped); err == nil && wrapped.Event != "" {
		return wrapped.Event, append(json.RawMessage(nil), wrapped.Data...), nil
	}
	return b.defaultTopic, append(json.RawMessage(nil), msg...), nil
}
