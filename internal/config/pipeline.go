package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PipelineConfig represents the tunable parameters for one capture pipeline.
// The schema matches the /api/params endpoint so the same JSON can be used
// for both startup configuration and runtime updates. Fields omitted from the
// JSON file retain their default values, so partial configs are safe.
type PipelineConfig struct {
	// Store params
	Capacity *int `json:"capacity,omitempty"`

	// Acquisition params
	ReadTimeout   *string `json:"read_timeout,omitempty"`   // duration string like "1s"
	IdleSleep     *string `json:"idle_sleep,omitempty"`     // duration string like "10ms"
	StatsInterval *string `json:"stats_interval,omitempty"` // duration string like "60s"

	// Render params
	RenderInterval *string `json:"render_interval,omitempty"` // duration string like "250ms"

	// Serial device params
	SerialDevice *string `json:"serial_device,omitempty"`
	BaudRate     *int    `json:"baud_rate,omitempty"`

	// Calibration params
	CalibratePhrase  *string `json:"calibrate_phrase,omitempty"`
	CalibrateTimeout *string `json:"calibrate_timeout,omitempty"` // duration string like "10s"

	// Analysis params (sniffer only)
	AnalysisEndpoint  *string `json:"analysis_endpoint,omitempty"`
	AnalysisModel     *string `json:"analysis_model,omitempty"`
	AnalysisMaxTokens *int    `json:"analysis_max_tokens,omitempty"`
}

// ConfigurationError reports a configuration problem discovered before
// acquisition starts: a rejected parameter, an unreadable config file, or an
// unavailable device.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps err as a ConfigurationError for the given field.
func NewConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: err}
}

// EmptyPipelineConfig returns a PipelineConfig with all fields unset. The
// Get* accessors supply defaults for unset fields.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. The file must
// have a .json extension and be under the max file size.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, NewConfigurationError("file", fmt.Errorf("config file must have .json extension, got %q", ext))
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, NewConfigurationError("file", fmt.Errorf("failed to stat config file: %w", err))
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, NewConfigurationError("file", fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, NewConfigurationError("file", fmt.Errorf("failed to read config file: %w", err))
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, NewConfigurationError("file", fmt.Errorf("failed to parse config JSON: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable. It returns a
// *ConfigurationError naming the first rejected field.
func (c *PipelineConfig) Validate() error {
	if c.Capacity != nil && *c.Capacity <= 0 {
		return NewConfigurationError("capacity", fmt.Errorf("must be positive, got %d", *c.Capacity))
	}

	// The read bound keeps Stop responsive; it must stay small.
	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return NewConfigurationError("read_timeout", err)
		}
		if d <= 0 || d > time.Second {
			return NewConfigurationError("read_timeout", fmt.Errorf("must be in (0s, 1s], got %s", d))
		}
	}

	if c.IdleSleep != nil && *c.IdleSleep != "" {
		if _, err := time.ParseDuration(*c.IdleSleep); err != nil {
			return NewConfigurationError("idle_sleep", err)
		}
	}
	if c.StatsInterval != nil && *c.StatsInterval != "" {
		if _, err := time.ParseDuration(*c.StatsInterval); err != nil {
			return NewConfigurationError("stats_interval", err)
		}
	}
	if c.RenderInterval != nil && *c.RenderInterval != "" {
		if _, err := time.ParseDuration(*c.RenderInterval); err != nil {
			return NewConfigurationError("render_interval", err)
		}
	}
	if c.CalibrateTimeout != nil && *c.CalibrateTimeout != "" {
		if _, err := time.ParseDuration(*c.CalibrateTimeout); err != nil {
			return NewConfigurationError("calibrate_timeout", err)
		}
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return NewConfigurationError("baud_rate", fmt.Errorf("must be positive, got %d", *c.BaudRate))
	}

	if c.AnalysisMaxTokens != nil && *c.AnalysisMaxTokens <= 0 {
		return NewConfigurationError("analysis_max_tokens", fmt.Errorf("must be positive, got %d", *c.AnalysisMaxTokens))
	}

	return nil
}

func (c *PipelineConfig) duration(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}

// GetCapacity returns the per-channel ring capacity or the default.
func (c *PipelineConfig) GetCapacity() int {
	if c.Capacity == nil {
		return 100 // default
	}
	return *c.Capacity
}

// GetReadTimeout returns the bounded transport read timeout.
func (c *PipelineConfig) GetReadTimeout() time.Duration {
	return c.duration(c.ReadTimeout, time.Second)
}

// GetIdleSleep returns the pause between empty reads.
func (c *PipelineConfig) GetIdleSleep() time.Duration {
	return c.duration(c.IdleSleep, 10*time.Millisecond)
}

// GetStatsInterval returns the stats rollup logging interval.
func (c *PipelineConfig) GetStatsInterval() time.Duration {
	return c.duration(c.StatsInterval, 60*time.Second)
}

// GetRenderInterval returns the render tick interval.
func (c *PipelineConfig) GetRenderInterval() time.Duration {
	return c.duration(c.RenderInterval, 250*time.Millisecond)
}

// GetSerialDevice returns the serial device path or the default.
func (c *PipelineConfig) GetSerialDevice() string {
	if c.SerialDevice == nil || *c.SerialDevice == "" {
		return "/dev/ttyUSB0"
	}
	return *c.SerialDevice
}

// GetBaudRate returns the serial baud rate or the default.
func (c *PipelineConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetCalibratePhrase returns the confirmation phrase matched by substring
// against device replies.
func (c *PipelineConfig) GetCalibratePhrase() string {
	if c.CalibratePhrase == nil || *c.CalibratePhrase == "" {
		return "Calibration complete"
	}
	return *c.CalibratePhrase
}

// GetCalibrateTimeout returns how long to wait for the confirmation phrase.
func (c *PipelineConfig) GetCalibrateTimeout() time.Duration {
	return c.duration(c.CalibrateTimeout, 10*time.Second)
}

// GetAnalysisEndpoint returns the text-analysis service URL.
func (c *PipelineConfig) GetAnalysisEndpoint() string {
	if c.AnalysisEndpoint == nil || *c.AnalysisEndpoint == "" {
		return "https://api.anthropic.com/v1/messages"
	}
	return *c.AnalysisEndpoint
}

// GetAnalysisModel returns the analysis model identifier.
func (c *PipelineConfig) GetAnalysisModel() string {
	if c.AnalysisModel == nil || *c.AnalysisModel == "" {
		return "claude-3-sonnet-20240229"
	}
	return *c.AnalysisModel
}

// GetAnalysisMaxTokens returns the response token budget.
func (c *PipelineConfig) GetAnalysisMaxTokens() int {
	if c.AnalysisMaxTokens == nil {
		return 1000
	}
	return *c.AnalysisMaxTokens
}
