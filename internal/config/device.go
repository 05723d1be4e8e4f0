// Package config loads the device configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/heartstream/internal/scheduler"
	"github.com/banshee-data/heartstream/internal/source"
	"github.com/banshee-data/heartstream/internal/stream"
	"github.com/banshee-data/heartstream/internal/transport"
)

// DefaultConfigPath is the path to the canonical device defaults file.
const DefaultConfigPath = "config/device.defaults.json"

// Transport kinds.
const (
	TransportSerial   = "serial"
	TransportBLE      = "ble"
	TransportLoopback = "loopback"
)

// DeviceConfig is the root of the device configuration. Every field is
// optional; Get* methods supply defaults for anything omitted.
type DeviceConfig struct {
	// Streaming
	Variant         *string `json:"variant,omitempty"`          // "dual" or "single"
	SampleInterval  *string `json:"sample_interval,omitempty"`  // duration string like "4ms"
	SimpleInterval  *string `json:"simple_interval,omitempty"`  // duration string like "2s"
	IdlePoll        *string `json:"idle_poll,omitempty"`        // duration string like "1ms"
	SchedulerPolicy *string `json:"scheduler_policy,omitempty"` // "fixed_step" or "reset_to_now"

	Source    *SourceConfig    `json:"source,omitempty"`
	Transport *TransportConfig `json:"transport,omitempty"`

	// AdminListen, if set, serves the debug routes on this address.
	AdminListen *string `json:"admin_listen,omitempty"`
}

// SourceConfig selects and parameterises the sample source.
type SourceConfig struct {
	Kind  string  `json:"kind,omitempty"`
	BPM   float64 `json:"bpm,omitempty"`
	Beats int     `json:"beats,omitempty"`
	// ADCPath is the IIO sysfs channel read by the adc source.
	ADCPath string `json:"adc_path,omitempty"`
}

// TransportConfig selects the host link.
type TransportConfig struct {
	Kind    string                `json:"kind,omitempty"`
	Port    string                `json:"port,omitempty"`
	Serial  transport.PortOptions `json:"serial"`
	BLEName string                `json:"ble_name,omitempty"`
}

// EmptyDeviceConfig returns a DeviceConfig with all fields unset.
func EmptyDeviceConfig() *DeviceConfig {
	return &DeviceConfig{}
}

// LoadDeviceConfig loads a DeviceConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to defaults, so partial configs are safe.
func LoadDeviceConfig(path string) (*DeviceConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDeviceConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *DeviceConfig) Validate() error {
	if c.Variant != nil {
		if _, err := stream.ParseVariant(*c.Variant); err != nil {
			return err
		}
	}
	if c.SchedulerPolicy != nil {
		if _, err := scheduler.ParsePolicy(*c.SchedulerPolicy); err != nil {
			return err
		}
	}

	for name, v := range map[string]*string{
		"sample_interval": c.SampleInterval,
		"simple_interval": c.SimpleInterval,
		"idle_poll":       c.IdlePoll,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
		if name == "sample_interval" && d < time.Millisecond {
			return fmt.Errorf("sample_interval must be at least 1ms, got %s", *v)
		}
		// the schedulers count whole milliseconds
		if name != "idle_poll" && d%time.Millisecond != 0 {
			return fmt.Errorf("%s must be a whole number of milliseconds, got %s", name, *v)
		}
	}

	if c.Source != nil {
		if _, err := source.ParseKind(c.Source.Kind); err != nil {
			return err
		}
		if maxBPM := source.DefaultShape().MaxBPM(); c.Source.BPM < 0 || c.Source.BPM > maxBPM {
			return fmt.Errorf("source.bpm must be between 0 and %.0f, got %v", math.Floor(maxBPM), c.Source.BPM)
		}
		if c.Source.Beats < 0 {
			return fmt.Errorf("source.beats must be non-negative, got %d", c.Source.Beats)
		}
	}

	if c.Transport != nil {
		switch c.Transport.Kind {
		case "", TransportSerial, TransportBLE, TransportLoopback:
		default:
			return fmt.Errorf("unknown transport kind %q: expected serial, ble or loopback", c.Transport.Kind)
		}
		if _, err := c.Transport.Serial.Normalize(); err != nil {
			return fmt.Errorf("transport.serial: %w", err)
		}
	}
	return nil
}

// GetVariant returns the command variant or the dual default.
func (c *DeviceConfig) GetVariant() stream.Variant {
	if c.Variant == nil {
		return stream.VariantDual
	}
	v, err := stream.ParseVariant(*c.Variant)
	if err != nil {
		return stream.VariantDual
	}
	return v
}

// GetSampleInterval returns the sampling period (default 4ms, 250 Hz).
func (c *DeviceConfig) GetSampleInterval() time.Duration {
	return durationOr(c.SampleInterval, stream.DefaultSampleInterval)
}

// GetSimpleInterval returns the simple-mode message period (default 2s).
func (c *DeviceConfig) GetSimpleInterval() time.Duration {
	return durationOr(c.SimpleInterval, stream.DefaultSimpleInterval)
}

// GetIdlePoll returns the idle yield per loop iteration (default 1ms).
func (c *DeviceConfig) GetIdlePoll() time.Duration {
	return durationOr(c.IdlePoll, stream.DefaultIdlePoll)
}

// GetSchedulerPolicy returns the scheduler policy (default fixed step).
func (c *DeviceConfig) GetSchedulerPolicy() scheduler.Policy {
	if c.SchedulerPolicy == nil {
		return scheduler.PolicyFixedStep
	}
	p, err := scheduler.ParsePolicy(*c.SchedulerPolicy)
	if err != nil {
		return scheduler.PolicyFixedStep
	}
	return p
}

// GetSource returns the source settings with defaults applied.
func (c *DeviceConfig) GetSource() SourceConfig {
	out := SourceConfig{Kind: string(source.KindSynthetic), BPM: 60, Beats: 10, ADCPath: source.DefaultIIOPath}
	if c.Source == nil {
		return out
	}
	if c.Source.Kind != "" {
		out.Kind = c.Source.Kind
	}
	if c.Source.BPM > 0 {
		out.BPM = c.Source.BPM
	}
	if c.Source.Beats > 0 {
		out.Beats = c.Source.Beats
	}
	if c.Source.ADCPath != "" {
		out.ADCPath = c.Source.ADCPath
	}
	return out
}

// GetTransport returns the transport settings with defaults applied.
func (c *DeviceConfig) GetTransport() TransportConfig {
	out := TransportConfig{Kind: TransportSerial, Port: "/dev/ttyUSB0"}
	if c.Transport == nil {
		return out
	}
	if c.Transport.Kind != "" {
		out.Kind = c.Transport.Kind
	}
	if c.Transport.Port != "" {
		out.Port = c.Transport.Port
	}
	out.Serial = c.Transport.Serial
	out.BLEName = c.Transport.BLEName
	return out
}

// GetAdminListen returns the debug listen address, empty when disabled.
func (c *DeviceConfig) GetAdminListen() string {
	if c.AdminListen == nil {
		return ""
	}
	return *c.AdminListen
}

// StreamConfig assembles the controller configuration.
func (c *DeviceConfig) StreamConfig() stream.Config {
	return stream.Config{
		Variant:        c.GetVariant(),
		SampleInterval: c.GetSampleInterval(),
		SimpleInterval: c.GetSimpleInterval(),
		Policy:         c.GetSchedulerPolicy(),
	}
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}
