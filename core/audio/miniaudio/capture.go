package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-companion/core/audio"
)

// captureClient records the microphone into memory between Start and Stop.
type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	encoding     audio.EncodingInfo

	recording []byte

	mu          sync.Mutex
	recordingMu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format, err := malgoFormat(c.encoding.Format)
	if err != nil {
		return err
	}
	bytesPerFrame := c.encoding.FrameSize()

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = uint32(c.encoding.SampleRate)
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(c.encoding.Channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	c.audioContext = audioContext

	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.recordingMu.Lock()
			c.recording = append(c.recording, pInput[:n]...)
			c.recordingMu.Unlock()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	c.recordingMu.Lock()
	c.recording = nil
	c.recordingMu.Unlock()

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

// Stop halts the device and hands over the recorded PCM.
func (c *captureClient) Stop() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil, fmt.Errorf("device not initialized")
	}

	if c.device.IsStarted() {
		if err := c.device.Stop(); err != nil {
			return nil, fmt.Errorf("failed to stop device: %w", err)
		}
	}

	c.recordingMu.Lock()
	defer c.recordingMu.Unlock()
	recording := c.recording
	c.recording = nil
	return recording, nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.recording = nil
	return nil
}
