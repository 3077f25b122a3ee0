// Package audio handles output sink discovery, selection, and PCM playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	clientName     = "voiceassist"
	clientIconName = "audio-speakers"
)

// Device describes one Pulse output sink surfaced to voiceassist.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved playback sink plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName(clientIconName),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns Pulse output sinks with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSink, err := client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("read default sink: %w", err)
	}
	defaultID := defaultSink.ID()

	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	devices := make([]Device, 0, len(sinkInfos))
	for _, sink := range sinkInfos {
		if sink == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          sink.SinkName,
			Description: sink.Device,
			State:       sinkStateString(sink.State),
			Available:   sinkAvailable(sink),
			Muted:       sink.Mute,
			Default:     sink.SinkName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves the audio.sink preference against live sinks.
func SelectDevice(ctx context.Context, preference string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, preference)
}

// selectDeviceFromList applies selection policy to a pre-fetched sink list.
// An unavailable preferred sink falls back to the server default.
func selectDeviceFromList(devices []Device, preference string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio output sinks found")
	}

	var (
		defaultDevice *Device
		byPreference  *Device
	)

	preference = strings.TrimSpace(strings.ToLower(preference))
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byPreference == nil && preference != "" && preference != "default" && deviceMatches(*dev, preference) {
			byPreference = dev
		}
	}

	if preference == "" || preference == "default" {
		if defaultDevice == nil {
			return Selection{}, errors.New("default audio sink is unavailable")
		}
		return Selection{Device: *defaultDevice}, nil
	}
	if byPreference == nil {
		return Selection{}, fmt.Errorf("audio.sink %q did not match any sink", preference)
	}
	if byPreference.Available {
		return Selection{Device: *byPreference}, nil
	}

	if defaultDevice == nil || !defaultDevice.Available {
		return Selection{}, fmt.Errorf("audio sink %q is unavailable and no usable default", byPreference.ID)
	}
	return Selection{
		Device:   *defaultDevice,
		Warning:  fmt.Sprintf("audio.sink %q is unavailable; falling back to %q", byPreference.ID, defaultDevice.ID),
		Fallback: byPreference.ID != defaultDevice.ID,
	}, nil
}

// deviceMatches reports whether a search term matches a sink id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// sinkStateString maps Pulse sink state constants to human-readable values.
func sinkStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sinkAvailable maps Pulse sink port availability to a simple boolean.
func sinkAvailable(sink *pulseproto.GetSinkInfoReply) bool {
	if sink == nil {
		return false
	}
	if len(sink.Ports) == 0 {
		return true
	}
	for _, port := range sink.Ports {
		if port.Name != sink.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
