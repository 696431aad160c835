package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LegacyLine is one line of the plain-text transcript format that
// predates speaker attribution: "[MM:SS.mmm] - [MM:SS.mmm] text".
type LegacyLine struct {
	StartMs int64
	EndMs   int64
	Text    string
}

var legacyLineRe = regexp.MustCompile(
	`^\[(\d{2,}):(\d{2})\.(\d{3})\] - \[(\d{2,}):(\d{2})\.(\d{3})\] (.*)$`)

// FormatLegacy renders utterances in the plain-text format used before
// speaker attribution existed. It remains the output for mono
// recordings, where there is only one speaker to attribute to.
func FormatLegacy(utterances []Utterance) string {
	var b strings.Builder
	for _, u := range utterances {
		fmt.Fprintf(&b, "%s - %s %s\n",
			legacyTimestamp(u.StartMs), legacyTimestamp(u.EndMs), strings.TrimSpace(u.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func legacyTimestamp(ms int64) string {
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("[%02d:%02d.%03d]", mins, secs, millis)
}

// ParseLegacy parses plain-text transcript content into timestamped
// lines. Lines that do not carry timestamps are kept with zero offsets
// so no text is silently dropped.
func ParseLegacy(data string) ([]LegacyLine, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	var out []LegacyLine
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := legacyLineRe.FindStringSubmatch(line)
		if m == nil {
			out = append(out, LegacyLine{Text: line})
			continue
		}
		start, err := legacyMs(m[1], m[2], m[3])
		if err != nil {
			return nil, err
		}
		end, err := legacyMs(m[4], m[5], m[6])
		if err != nil {
			return nil, err
		}
		out = append(out, LegacyLine{StartMs: start, EndMs: end, Text: m[7]})
	}
	return out, nil
}

func legacyMs(mins, secs, millis string) (int64, error) {
	mi, err := strconv.ParseInt(mins, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("transcript: bad timestamp minutes %q", mins)
	}
	se, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("transcript: bad timestamp seconds %q", secs)
	}
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("transcript: bad timestamp millis %q", millis)
	}
	return mi*60000 + se*1000 + ms, nil
}
