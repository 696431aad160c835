package config

import (
	"path/filepath"
	"runtime"
	"testing"
)

func setTestDirs(t *testing.T) string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("config paths redirected via XDG variables")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	setTestDirs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.QueueCapacity != 64 {
		t.Errorf("QueueCapacity = %d, want 64", cfg.Audio.QueueCapacity)
	}
	if cfg.Audio.MicDeviceIndex != nil || cfg.Audio.SystemDeviceIndex != nil {
		t.Error("device indexes must default to auto-detect (nil)")
	}
	if cfg.Whisper.Language != "auto" {
		t.Errorf("Language = %q, want auto", cfg.Whisper.Language)
	}
	if cfg.Transcript.OverlapToleranceMs != 0 {
		t.Errorf("OverlapToleranceMs = %d, want 0", cfg.Transcript.OverlapToleranceMs)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	setTestDirs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	mic := 3
	cfg.LogLevel = "debug"
	cfg.Audio.MicDeviceIndex = &mic
	cfg.Whisper.Language = "en"
	cfg.Transcript.OverlapToleranceMs = 150

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() after Save() error = %v", err)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", loaded.LogLevel)
	}
	if loaded.Audio.MicDeviceIndex == nil || *loaded.Audio.MicDeviceIndex != 3 {
		t.Errorf("MicDeviceIndex = %v, want 3", loaded.Audio.MicDeviceIndex)
	}
	if loaded.Whisper.Language != "en" {
		t.Errorf("Language = %q, want en", loaded.Whisper.Language)
	}
	if loaded.Transcript.OverlapToleranceMs != 150 {
		t.Errorf("OverlapToleranceMs = %d, want 150", loaded.Transcript.OverlapToleranceMs)
	}
}

func TestResolveModelPathPrefersExplicit(t *testing.T) {
	setTestDirs(t)

	cfg := &Config{}
	cfg.Whisper.ModelPath = "/opt/models/ggml-small.bin"
	if got := cfg.ResolveModelPath(); got != "/opt/models/ggml-small.bin" {
		t.Errorf("ResolveModelPath() = %q, want explicit path", got)
	}
}

func TestResolveModelPathFallsBackToModelsDir(t *testing.T) {
	setTestDirs(t)

	cfg := &Config{}
	want := filepath.Join(ModelsPath(), "ggml-base.en.bin")
	if got := cfg.ResolveModelPath(); got != want {
		t.Errorf("ResolveModelPath() = %q, want %q", got, want)
	}
}
