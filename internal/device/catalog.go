// Package device enumerates host audio endpoints and classifies them as
// microphone-class or monitor/loopback-class capture sources.
package device

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Role describes what a capture endpoint records.
type Role int

const (
	// RoleMicrophone is a physical input carrying the local user's voice.
	RoleMicrophone Role = iota
	// RoleMonitor is a loopback source carrying audio the system plays
	// back (remote call participants, media, ...).
	RoleMonitor
)

func (r Role) String() string {
	if r == RoleMonitor {
		return "monitor"
	}
	return "microphone"
}

// Device is one capturable audio endpoint. Enumerated fresh on every catalog
// query; device topology can change between calls, so never cache these.
type Device struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Default bool   `json:"default"`
}

// Classifier decides the Role of an endpoint. PortAudio exposes no explicit
// loopback capability flag, so the stock implementation falls back to name
// patterns; hosts that do surface a capability can plug in their own.
type Classifier interface {
	Classify(deviceName, hostAPIName string) Role
}

// NameHeuristic classifies by well-known monitor/loopback naming patterns.
type NameHeuristic struct{}

var monitorPatterns = []string{
	"monitor",
	"loopback",
	"stereo mix",
	"what u hear",
	"blackhole",
	"soundflower",
	"virtual cable",
}

func (NameHeuristic) Classify(deviceName, hostAPIName string) Role {
	name := strings.ToLower(deviceName)
	for _, p := range monitorPatterns {
		if strings.Contains(name, p) {
			return RoleMonitor
		}
	}
	return RoleMicrophone
}

// Catalog lists capture endpoints through PortAudio. The host must have
// called portaudio.Initialize before use.
type Catalog struct {
	classifier Classifier
}

// NewCatalog creates a Catalog. A nil classifier selects the name heuristic.
func NewCatalog(c Classifier) *Catalog {
	if c == nil {
		c = NameHeuristic{}
	}
	return &Catalog{classifier: c}
}

// List enumerates capture-capable devices. A non-nil roleFilter restricts the
// result to that role.
func (c *Catalog) List(roleFilter *Role) ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	defaultDevice, _ := portaudio.DefaultInputDevice()

	result := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		role := c.classifier.Classify(info.Name, hostAPIName(info))
		if roleFilter != nil && role != *roleFilter {
			continue
		}
		result = append(result, Device{
			Index:   i,
			Name:    info.Name,
			Role:    role,
			Default: info == defaultDevice,
		})
	}
	return result, nil
}

// Defaults auto-detects the default mic and system-audio devices: the first
// microphone-class endpoint and the first monitor-class endpoint. Either may
// be nil when no such device exists.
func (c *Catalog) Defaults() (mic, system *int, err error) {
	devices, err := c.List(nil)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range devices {
		d := d
		switch d.Role {
		case RoleMicrophone:
			if mic == nil {
				mic = &d.Index
			}
		case RoleMonitor:
			if system == nil {
				system = &d.Index
			}
		}
	}
	return mic, system, nil
}

// Info resolves a catalog index to the underlying PortAudio device.
func (c *Catalog) Info(index int) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("device with index %d not found", index)
	}
	return infos[index], nil
}

func hostAPIName(info *portaudio.DeviceInfo) string {
	if info.HostApi != nil {
		return info.HostApi.Name
	}
	return ""
}
