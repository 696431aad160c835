// Package transcript defines the speaker-attributed transcript artifact,
// the merge algorithm that produces it from two per-channel utterance
// sequences, and the persisted-form codec with its legacy plain-text
// fallback.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the current on-disk transcript schema version.
const Version = 1

// Speaker identifies which capture channel an utterance came from.
type Speaker string

const (
	// SpeakerMe is the local microphone channel.
	SpeakerMe Speaker = "Me"
	// SpeakerThem is the system audio channel.
	SpeakerThem Speaker = "Them"
)

// ErrMalformed indicates stored transcript data that parses as JSON but
// does not match any known transcript shape. It is a data-integrity
// warning, not a crash.
var ErrMalformed = errors.New("transcript: malformed stored data")

// Utterance is one timestamped piece of recognized speech for a single
// channel, before speaker attribution.
type Utterance struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// Segment is one speaker-attributed utterance. Immutable once produced
// by Merge.
type Segment struct {
	Speaker       Speaker `json:"speaker"`
	Text          string  `json:"text"`
	StartMs       int64   `json:"start_ms"`
	EndMs         int64   `json:"end_ms"`
	IsOverlapping bool    `json:"is_overlapping"`
}

// SpeakerTranscript is the terminal artifact of the pipeline. Segments
// are ordered by StartMs, ties broken with SpeakerMe first.
type SpeakerTranscript struct {
	Version      int       `json:"version"`
	MicDevice    string    `json:"mic_device"`
	SystemDevice string    `json:"system_device"`
	HasDualAudio bool      `json:"has_dual_audio"`
	Segments     []Segment `json:"segments"`
}

// New returns an empty transcript carrying the device names of the
// session it was produced from.
func New(micDevice, systemDevice string) *SpeakerTranscript {
	return &SpeakerTranscript{
		Version:      Version,
		MicDevice:    micDevice,
		SystemDevice: systemDevice,
		HasDualAudio: true,
	}
}

// Encode returns the persisted string form of the transcript. The same
// storage field historically held plain newline-delimited text, so the
// structured form must be distinguishable at read time; JSON object
// syntax provides that.
func (t *SpeakerTranscript) Encode() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("transcript: encode: %w", err)
	}
	return string(b), nil
}

// Stored is the result of decoding a persisted transcript field.
// Exactly one of Transcript and Legacy is populated.
type Stored struct {
	Transcript *SpeakerTranscript
	Legacy     []LegacyLine
}

// Structured reports whether the stored value decoded as a
// SpeakerTranscript rather than legacy text.
func (s Stored) Structured() bool { return s.Transcript != nil }

// DecodeStored parses a persisted transcript value. It first attempts a
// structured parse; anything that is not valid JSON is routed to the
// legacy plain-text path. Valid JSON that does not carry the transcript
// shape is rejected with ErrMalformed so data corruption is surfaced
// rather than silently rendered as text.
func DecodeStored(data string) (Stored, error) {
	var t SpeakerTranscript
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		if !json.Valid([]byte(data)) {
			lines, lerr := ParseLegacy(data)
			if lerr != nil {
				return Stored{}, fmt.Errorf("%w: %v", ErrMalformed, lerr)
			}
			return Stored{Legacy: lines}, nil
		}
		return Stored{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if t.Version < 1 {
		return Stored{}, fmt.Errorf("%w: missing or invalid version", ErrMalformed)
	}
	return Stored{Transcript: &t}, nil
}
