package audio

import (
	"github.com/gen2brain/malgo"
)

// DeviceConfig configures the malgo capture device.
type DeviceConfig struct {
	Format          malgo.FormatType
	CaptureChannels int
	SampleRate      int
	// PacketBuffer is the number of device packets buffered between the
	// audio thread and ReadSamples. Packets are dropped when it is full.
	PacketBuffer int
}

const defaultPacketBuffer = 64

// DefaultDeviceConfig returns a mono S16 config at the given sample rate.
func DefaultDeviceConfig(sampleRate int) *DeviceConfig {
	return &DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: 1,
		SampleRate:      sampleRate,
		PacketBuffer:    defaultPacketBuffer,
	}
}
