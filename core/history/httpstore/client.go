// Package httpstore talks to the companion backend over HTTP. It loads the
// persisted messages of a conversation and submits user input.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koscakluka/ema-companion/core/audio"
	"github.com/koscakluka/ema-companion/core/transcript"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxErrorBody = 4 << 10

var ErrUnexpectedStatus = errors.New("unexpected http status")

type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("non-OK HTTP status: %s", e.Status)
	}
	return fmt.Sprintf("non-OK HTTP status: %s: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

type ClientOption func(*Client)

// WithHTTPClient replaces the instrumented default client. The timeout
// option does not apply to a replaced client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.timeout = timeout }
}

// Client implements the session's history store and submitter against the
// backend REST API.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
		}
	}
	return c
}

type messageRecord struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// History returns the stored messages of a conversation, oldest first.
func (c *Client) History(ctx context.Context, conversationID string) ([]transcript.Record, error) {
	ctx, span := tracer.Start(ctx, "fetch conversation history")
	defer span.End()

	request, err := c.newRequest(ctx, http.MethodGet, conversationID, "messages", nil)
	if err != nil {
		return nil, fail(span, err)
	}
	request.Header.Set("Accept", "application/json")

	body, err := c.do(span, request)
	if err != nil {
		return nil, fail(span, err)
	}

	var wire []messageRecord
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fail(span, fmt.Errorf("error unmarshalling history: %w", err))
	}

	records := make([]transcript.Record, 0, len(wire))
	for _, message := range wire {
		records = append(records, transcript.Record{
			Role:      message.Role,
			Content:   recordContent(message.Content),
			CreatedAt: message.CreatedAt,
		})
	}
	span.SetAttributes(attribute.Int("history.records", len(records)))
	return records, nil
}

// recordContent accepts content either as an embedded JSON envelope or as a
// string holding the encoded envelope.
func recordContent(raw json.RawMessage) []byte {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return []byte(encoded)
	}
	return []byte(raw)
}

func (c *Client) SubmitText(ctx context.Context, conversationID string, text string) error {
	ctx, span := tracer.Start(ctx, "submit text")
	defer span.End()

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fail(span, fmt.Errorf("error marshalling request body: %w", err))
	}

	request, err := c.newRequest(ctx, http.MethodPost, conversationID, "messages", bytes.NewReader(payload))
	if err != nil {
		return fail(span, err)
	}
	request.Header.Set("Content-Type", "application/json")

	if _, err := c.do(span, request); err != nil {
		return fail(span, err)
	}
	return nil
}

func (c *Client) SubmitAudio(ctx context.Context, conversationID string, recording *audio.Resource) error {
	ctx, span := tracer.Start(ctx, "submit audio")
	defer span.End()

	if recording == nil {
		return fail(span, errors.New("no recording to submit"))
	}
	data, err := recording.Bytes()
	if err != nil {
		return fail(span, fmt.Errorf("error reading recording: %w", err))
	}
	span.SetAttributes(
		attribute.Int("audio.bytes", len(data)),
		attribute.String("audio.media_type", recording.MediaType()),
	)

	request, err := c.newRequest(ctx, http.MethodPost, conversationID, "audio", bytes.NewReader(data))
	if err != nil {
		return fail(span, err)
	}
	request.Header.Set("Content-Type", recording.MediaType())

	if _, err := c.do(span, request); err != nil {
		return fail(span, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, conversationID, resource string, body io.Reader) (*http.Request, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id is required")
	}

	endpoint := fmt.Sprintf("%s/conversations/%s/%s", c.baseURL, url.PathEscape(conversationID), resource)

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return request, nil
}

func (c *Client) do(span trace.Span, request *http.Request) ([]byte, error) {
	span.SetAttributes(attribute.String("request.url", request.URL.String()))

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer response.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", response.StatusCode))
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		if readErr != nil {
			logger.Warn("error reading error body", "error", readErr)
		}
		return nil, &StatusError{
			StatusCode: response.StatusCode,
			Status:     response.Status,
			Body:       strings.TrimSpace(string(errorBody)),
		}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return body, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
