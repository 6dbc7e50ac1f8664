package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/alkime/voicebank/pkg/channels"
	"github.com/alkime/voicebank/pkg/collections"
	"github.com/gen2brain/malgo"
)

// ErrDeviceNotOpen is returned by ReadSamples before Open or after Close.
var ErrDeviceNotOpen = errors.New("audio device not open")

// MalgoDevice is a microphone backed by miniaudio. It satisfies the capture
// package's CaptureDevice interface.
type MalgoDevice struct {
	conf *DeviceConfig

	mu       sync.Mutex
	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
	dataC    chan DataPacket
}

// NewDevice creates a capture device. Nothing is allocated until Open.
func NewDevice(conf *DeviceConfig) *MalgoDevice {
	return &MalgoDevice{conf: conf}
}

// SampleRate returns the configured capture sample rate.
func (d *MalgoDevice) SampleRate() int {
	if d.conf == nil {
		return 0
	}
	return d.conf.SampleRate
}

// EnumerateDevices lists available capture devices.
// It ignores any device configuration passed in.
func (d *MalgoDevice) EnumerateDevices(ctx context.Context) ([]Info, error) {
	// Initialize an empty context. AFAICT this is fine for just
	// enumrating the available devices.
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(devCtx)

	captureDevices, err := devCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	return collections.Apply(captureDevices, malgoDeviceInfoToDeviceInfo), nil
}

// Open allocates and starts the device. An already open device is released
// first.
func (d *MalgoDevice) Open(ctx context.Context) error {
	if d.conf == nil {
		return errors.New("device config nil. unable to open device")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.deallocLocked()

	buf := d.conf.PacketBuffer
	if buf <= 0 {
		buf = defaultPacketBuffer
	}
	dataC := make(chan DataPacket, buf)

	mgCtx, mgDevice, err := d.allocMGDevice(dataC)
	if err != nil {
		return fmt.Errorf("failed to create malgo capture device: %w", err)
	}

	if err := mgDevice.Start(); err != nil {
		mgDevice.Uninit()
		uninitializeContext(mgCtx)
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	d.mgCtx, d.mgDevice, d.dataC = mgCtx, mgDevice, dataC

	return nil
}

// ReadSamples blocks until the next packet of samples is captured.
// It returns io.EOF once the device has been closed.
func (d *MalgoDevice) ReadSamples(ctx context.Context) ([]int16, error) {
	d.mu.Lock()
	dataC := d.dataC
	d.mu.Unlock()

	if dataC == nil {
		return nil, ErrDeviceNotOpen
	}

	select {
	case packet, ok := <-dataC:
		if !ok {
			return nil, io.EOF
		}
		return BytesToInt16(packet), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the device and frees its resources. Closing a closed device is
// a no-op.
func (d *MalgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.mgDevice != nil && d.mgDevice.IsStarted() {
		if stopErr := d.mgDevice.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop malgo device: %w", stopErr)
		}
	}

	d.deallocLocked()

	return err
}

func (d *MalgoDevice) allocMGDevice(dataC chan DataPacket) (*malgo.AllocatedContext, *malgo.Device, error) {
	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = d.conf.Format
	devCnf.Capture.Channels = uint32(d.conf.CaptureChannels)
	devCnf.SampleRate = uint32(d.conf.SampleRate)

	callBacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			// samples is only valid for the duration of the callback
			packet := make([]byte, len(samples))
			copy(packet, samples)
			if err := channels.SendNonBlock(dataC, packet); err != nil {
				slog.Debug("dropped capture packet", "error", err)
			}
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callBacks)
	if err != nil {
		uninitializeContext(mgCtx)
		return nil, nil, fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	return mgCtx, mgDevice, nil
}

func (d *MalgoDevice) deallocLocked() {
	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	uninitializeContext(d.mgCtx)
	close(d.dataC)
	d.mgDevice = nil
	d.mgCtx = nil
	d.dataC = nil
}

// Info describes a capture device.
type Info struct {
	Name        string
	IsDefault   bool
	FormatCount int
	Formats     []string
}

func malgoDeviceInfoToDeviceInfo(mdi malgo.DeviceInfo) Info {
	formats := make([]string, len(mdi.Formats))
	for i, mf := range mdi.Formats {
		formats[i] = fmt.Sprintf("(SampleSizeBytes: %d, Channels: %d, SampleRate: %d)",
			malgo.SampleSizeInBytes(mf.Format),
			mf.Channels, mf.SampleRate)
	}
	return Info{
		Name:        mdi.Name(),
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
	}
}

// DataPacket is one buffer of S16LE bytes delivered by the device.
type DataPacket = []byte

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
