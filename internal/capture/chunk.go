package capture

// Source tags which capture endpoint produced a chunk.
type Source string

const (
	SourceMic    Source = "mic"
	SourceSystem Source = "system"
)

// Chunk is an immutable slice of mono float32 PCM samples at the channel's
// native sample rate. Seq increases monotonically per channel; a gap means
// the queue overflowed and chunks were dropped.
type Chunk struct {
	Source  Source
	Seq     uint64
	Rate    int
	Samples []float32
}
