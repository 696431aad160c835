package recorder

import (
	"time"

	"github.com/aman-2709/WizScribe/internal/capture"
)

// SourceError is an event, not stored state: it is relayed to the caller
// when a capture source fails mid-session. When RecordingContinues is true
// the writer substitutes silence for the failed source and the session goes
// on; when false, both sources are gone and the session has been torn down.
type SourceError struct {
	Source             capture.Source `json:"source"`
	Message            string         `json:"message"`
	Timestamp          time.Time      `json:"timestamp"`
	RecordingContinues bool           `json:"recording_continues"`
}
