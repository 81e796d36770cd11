// Package audio provides the raw-audio data types and the streaming
// feature extractor that turns PCM chunks into fixed-size feature frames.
package audio

import "fmt"

// Chunk is an immutable slice of raw PCM samples delivered by the caller.
// Seq increases monotonically within a session; Offset is the absolute
// sample position of the first sample in the stream.
type Chunk struct {
	Samples      []int16
	Seq          uint64
	Offset       int64
	SampleRateHz int
	Channels     int
}

// Duration returns the chunk length in samples.
func (c Chunk) Duration() int {
	return len(c.Samples)
}

// FormatError reports a chunk whose sample rate or channel count does not
// match the session's audio format. The chunk is rejected; the session
// remains usable for subsequent valid chunks.
type FormatError struct {
	SampleRateHz int
	Channels     int
	Reason       string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported audio format (rate=%d channels=%d): %s",
		e.SampleRateHz, e.Channels, e.Reason)
}

// PCMToSamples converts little-endian 16-bit PCM bytes to samples.
// A trailing odd byte is ignored.
func PCMToSamples(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	return out
}

// SamplesToPCM converts samples to little-endian 16-bit PCM bytes.
func SamplesToPCM(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}
