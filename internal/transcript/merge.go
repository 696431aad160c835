package transcript

// Merge combines the microphone and system utterance sequences into one
// speaker-attributed sequence ordered by StartMs. Both inputs must
// already be ordered by StartMs, which the recognizer guarantees.
//
// When two segments share a StartMs the microphone segment sorts first,
// keeping the merge deterministic. Adjacent segments from different
// speakers whose [start,end) intervals intersect by more than
// toleranceMs are both flagged as overlapping; overlap is a property of
// the pair, so neither side is left unmarked.
func Merge(mic, system []Utterance, toleranceMs int64) []Segment {
	out := make([]Segment, 0, len(mic)+len(system))

	i, j := 0, 0
	for i < len(mic) || j < len(system) {
		takeMic := j >= len(system) ||
			(i < len(mic) && mic[i].StartMs <= system[j].StartMs)
		if takeMic {
			out = append(out, Segment{
				Speaker: SpeakerMe,
				Text:    mic[i].Text,
				StartMs: mic[i].StartMs,
				EndMs:   mic[i].EndMs,
			})
			i++
		} else {
			out = append(out, Segment{
				Speaker: SpeakerThem,
				Text:    system[j].Text,
				StartMs: system[j].StartMs,
				EndMs:   system[j].EndMs,
			})
			j++
		}
	}

	markOverlaps(out, toleranceMs)
	return out
}

// markOverlaps walks adjacent pairs of the merged sequence and flags
// both members of any cross-speaker pair whose intervals intersect by
// more than toleranceMs.
func markOverlaps(segs []Segment, toleranceMs int64) {
	for k := 1; k < len(segs); k++ {
		prev, curr := &segs[k-1], &segs[k]
		if prev.Speaker == curr.Speaker {
			continue
		}
		if prev.EndMs-curr.StartMs > toleranceMs {
			prev.IsOverlapping = true
			curr.IsOverlapping = true
		}
	}
}
