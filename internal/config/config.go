package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

type Config struct {
	LogLevel   string           `json:"log_level"`
	Audio      AudioConfig      `json:"audio"`
	Whisper    WhisperConfig    `json:"whisper"`
	Transcript TranscriptConfig `json:"transcript"`
}

type AudioConfig struct {
	// Preferred capture devices by catalog index. Nil means auto-detect:
	// first microphone-class device for the mic, first monitor-class
	// device for system audio.
	MicDeviceIndex    *int `json:"mic_device_index"`
	SystemDeviceIndex *int `json:"system_device_index"`

	// SampleRate is the canonical rate of the recorded file. All capture
	// sources are resampled to it.
	SampleRate int `json:"sample_rate"`

	// QueueCapacity bounds each capture channel's chunk queue. On overflow
	// the oldest unconsumed chunk is dropped.
	QueueCapacity int `json:"queue_capacity"`
}

type WhisperConfig struct {
	ModelPath string `json:"model_path"` // empty: search default locations
	Language  string `json:"language"`   // "auto", "en", etc.
	Threads   int    `json:"threads"`    // 0: auto-detect
}

type TranscriptConfig struct {
	// OverlapToleranceMs is the minimum intersection, in milliseconds,
	// between segments of different speakers before both are flagged as
	// overlapping. Zero means any intersection counts.
	OverlapToleranceMs int64 `json:"overlap_tolerance_ms"`
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	path := configPath()

	// Default config
	cfg := &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			SampleRate:    16000,
			QueueCapacity: 64,
		},
		Whisper: WhisperConfig{
			Language: "auto",
			Threads:  0,
		},
		Transcript: TranscriptConfig{
			OverlapToleranceMs: 0,
		},
	}

	// Load existing config if it exists
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := configPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ResolveModelPath returns the configured whisper model path, or the first
// existing file among the conventional locations. The last candidate is
// returned even when nothing exists yet so callers can report where a model
// is expected.
func (c *Config) ResolveModelPath() string {
	if c.Whisper.ModelPath != "" {
		return c.Whisper.ModelPath
	}

	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(ModelsPath(), "ggml-base.en.bin"),
		filepath.Join(home, ".wizscribe", "models", "ggml-base.en.bin"),
		"/usr/local/share/wizscribe/models/ggml-base.en.bin",
		filepath.Join("models", "ggml-base.en.bin"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return candidates[0]
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "wizscribe", "config.json")
}

// RecordingsPath returns the directory where session WAV files are written.
func RecordingsPath() string {
	return filepath.Join(dataPath(), "wizscribe", "audio")
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	return filepath.Join(dataPath(), "wizscribe", "models")
}

func dataPath() string {
	switch runtime.GOOS {
	case "darwin":
		return os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		return os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return xdg
		}
		return os.Getenv("HOME") + "/.local/share"
	}
}
