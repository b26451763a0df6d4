package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-companion/core/audio"
)

// playbackClient owns the output device. The device is (re)initialized
// lazily whenever a resource arrives in a different format.
type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	encoding     audio.EncodingInfo

	leftoverAudio []byte
	marks         []playbackMark

	mu      sync.Mutex
	audioMu sync.Mutex
	marksMu sync.Mutex
}

func (c *playbackClient) configure(info audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil && c.encoding == info {
		return nil
	}
	if c.audioContext == nil {
		return fmt.Errorf("audio context not initialized")
	}
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	format, err := malgoFormat(info.Format)
	if err != nil {
		return err
	}
	sampleRate := uint32(info.SampleRate)

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(info.Channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(info.FrameSize())},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	c.encoding = info
	return nil
}

// Play queues pcm and blocks until the device drained it.
func (c *playbackClient) Play(ctx context.Context, info audio.EncodingInfo, pcm []byte) error {
	if err := c.configure(info); err != nil {
		return err
	}
	if err := c.sendAudio(pcm); err != nil {
		return err
	}

	played := make(chan struct{})
	c.mark(func() { close(played) })

	select {
	case <-played:
		return nil
	case <-ctx.Done():
		c.clearBuffer()
		return ctx.Err()
	}
}

func (c *playbackClient) sendAudio(pcm []byte) error {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()
	if device == nil {
		return fmt.Errorf("device not initialized")
	} else if !device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = append(c.leftoverAudio, pcm...)
	return nil
}

func (c *playbackClient) clearBuffer() {
	c.audioMu.Lock()
	c.marksMu.Lock()
	defer c.audioMu.Unlock()
	defer c.marksMu.Unlock()
	c.leftoverAudio = nil
	c.marks = nil
}

func (c *playbackClient) mark(callback func()) {
	c.audioMu.Lock()
	position := len(c.leftoverAudio)
	c.audioMu.Unlock()

	c.marksMu.Lock()
	defer c.marksMu.Unlock()
	c.marks = append(c.marks, playbackMark{position: position, callback: callback})
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil
	return nil
}

type playbackMark struct {
	position int
	callback func()
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		c.processMarks(need)

		c.audioMu.Lock()
		defer c.audioMu.Unlock()
		if len(c.leftoverAudio) == 0 {
			return
		}

		if len(c.leftoverAudio) < need {
			_ = copy(pOutput, c.leftoverAudio)
			c.leftoverAudio = nil
			return
		}

		_ = copy(pOutput, c.leftoverAudio[:need])
		c.leftoverAudio = c.leftoverAudio[need:]
	}
}

func (c *playbackClient) processMarks(until int) {
	c.marksMu.Lock()
	passedMarks := 0
	for i, mark := range c.marks {
		if mark.position >= until {
			c.marks[i].position -= until
		} else {
			passedMarks++
		}
	}
	toCall := append([]playbackMark(nil), c.marks[:passedMarks]...)
	c.marks = c.marks[passedMarks:]
	c.marksMu.Unlock()

	if len(toCall) > 0 {
		go func() {
			for _, mark := range toCall {
				mark.callback()
			}
		}()
	}
}
