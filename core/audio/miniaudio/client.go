// Package miniaudio plays fragment audio on the default output device and
// records the microphone, using miniaudio through malgo.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-companion/core/audio"
)

type ClientOption func(*Client)

// WithCaptureEncoding sets the format recordings are captured in.
func WithCaptureEncoding(info audio.EncodingInfo) ClientOption {
	return func(c *Client) {
		if !info.IsZero() {
			c.captureClient.encoding = info
		}
	}
}

// Client is both the avatar voice and the microphone of a session.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	pool         *audio.Pool
	playbackClient
	captureClient
}

func NewClient(pool *audio.Pool, opts ...ClientOption) (*Client, error) {
	if pool == nil {
		pool = audio.NewPool()
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w", err)
	}

	client := Client{
		audioContext:  audioCtx,
		pool:          pool,
		captureClient: captureClient{encoding: audio.GetDefaultEncodingInfo()},
	}
	for _, opt := range opts {
		opt(&client)
	}

	client.playbackClient.audioContext = audioCtx
	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

// Speak plays a WAV, MP3 or L16 resource and returns once the device has
// consumed all of it. Cancelling ctx cuts playback short.
func (c *Client) Speak(ctx context.Context, resource *audio.Resource) error {
	data, err := resource.Bytes()
	if err != nil {
		return err
	}
	info, pcm, err := audio.DecodePCM(resource.MediaType(), data)
	if err != nil {
		return err
	}
	return c.playbackClient.Play(ctx, info, pcm)
}

func (c *Client) StartCapture(_ context.Context) error {
	return c.captureClient.Start()
}

// StopCapture ends the recording and returns it as a WAV resource owned by
// the caller.
func (c *Client) StopCapture(_ context.Context) (*audio.Resource, error) {
	pcm, err := c.captureClient.Stop()
	if err != nil {
		return nil, err
	}
	wav, err := audio.EncodeWAV(c.captureClient.encoding, pcm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recording: %w", err)
	}
	return c.pool.Allocate(audio.MediaTypeWAV, wav), nil
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func malgoFormat(format interface{ Name() string }) (malgo.FormatType, error) {
	switch format.Name() {
	case audio.EncodingLinear8.Name():
		return malgo.FormatU8, nil
	case audio.EncodingLinear16.Name():
		return malgo.FormatS16, nil
	case audio.EncodingLinear24.Name():
		return malgo.FormatS24, nil
	case audio.EncodingLinear32.Name():
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("unsupported device format %q", format.Name())
}
