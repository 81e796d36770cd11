package audio

import (
	"math"
)

// Feature frame geometry. 25 ms windows advanced by a 10 ms hop, the
// usual filterbank framing for speech models.
const (
	WindowMs = 25
	HopMs    = 10

	// NumBands is the number of coarse band energies per frame.
	NumBands = 8
)

// FeatureFrame is one acoustic feature vector covering a fixed span of
// samples. StartSample is absolute within the stream.
type FeatureFrame struct {
	Index       int64
	StartSample int64
	NumSamples  int
	Energy      float64
	LogEnergy   float64
	Bands       [NumBands]float64
}

// EndSample returns the absolute sample offset just past this frame.
func (f FeatureFrame) EndSample() int64 {
	return f.StartSample + int64(f.NumSamples)
}

// Extractor converts raw audio chunks into feature frames. Implementations
// carry a small streaming context buffer so frame boundaries are identical
// no matter how the input is chunked.
type Extractor interface {
	// Extract consumes one chunk and returns the frames completed by it.
	Extract(chunk Chunk) ([]FeatureFrame, error)
	// Flush drains the carry-over buffer at end of stream.
	Flush() []FeatureFrame
	// Reset clears all streaming state.
	Reset()
}

// Framer is the default Extractor: windowed log-energy plus coarse band
// energies. Deterministic and resumable across chunk seams.
type Framer struct {
	sampleRateHz  int
	channels      int
	windowSamples int
	hopSamples    int

	carry      []int16
	carryStart int64
	nextIndex  int64
}

// NewFramer creates a Framer for the given mono input format.
func NewFramer(sampleRateHz, channels int) (*Framer, error) {
	if sampleRateHz != 8000 && sampleRateHz != 16000 {
		return nil, &FormatError{SampleRateHz: sampleRateHz, Channels: channels,
			Reason: "sample rate must be 8000 or 16000"}
	}
	if channels != 1 {
		return nil, &FormatError{SampleRateHz: sampleRateHz, Channels: channels,
			Reason: "only mono input is supported"}
	}
	return &Framer{
		sampleRateHz:  sampleRateHz,
		channels:      channels,
		windowSamples: sampleRateHz * WindowMs / 1000,
		hopSamples:    sampleRateHz * HopMs / 1000,
	}, nil
}

// Extract validates the chunk format, appends the samples to the streaming
// buffer and emits every frame whose full window is now available.
func (f *Framer) Extract(chunk Chunk) ([]FeatureFrame, error) {
	if chunk.SampleRateHz != f.sampleRateHz {
		return nil, &FormatError{SampleRateHz: chunk.SampleRateHz, Channels: chunk.Channels,
			Reason: "sample rate does not match session format"}
	}
	if chunk.Channels != f.channels {
		return nil, &FormatError{SampleRateHz: chunk.SampleRateHz, Channels: chunk.Channels,
			Reason: "channel count does not match session format"}
	}

	if len(f.carry) == 0 {
		f.carryStart = chunk.Offset
	}
	f.carry = append(f.carry, chunk.Samples...)
	return f.drain(false), nil
}

// Flush emits one last frame over the remaining samples, if at least one
// hop worth of audio is buffered.
func (f *Framer) Flush() []FeatureFrame {
	frames := f.drain(true)
	f.carry = nil
	return frames
}

// Reset clears the carry-over buffer and frame counter.
func (f *Framer) Reset() {
	f.carry = nil
	f.carryStart = 0
	f.nextIndex = 0
}

func (f *Framer) drain(final bool) []FeatureFrame {
	var frames []FeatureFrame
	for len(f.carry) >= f.windowSamples {
		frames = append(frames, f.frame(f.carry[:f.windowSamples]))
		f.carry = f.carry[f.hopSamples:]
		f.carryStart += int64(f.hopSamples)
	}
	if final && len(f.carry) >= f.hopSamples {
		frames = append(frames, f.frame(f.carry))
		f.carryStart += int64(len(f.carry))
		f.carry = nil
	}
	return frames
}

func (f *Framer) frame(window []int16) FeatureFrame {
	fr := FeatureFrame{
		Index:       f.nextIndex,
		StartSample: f.carryStart,
		NumSamples:  len(window),
	}
	f.nextIndex++

	fr.Energy = rms(window)
	fr.LogEnergy = math.Log(fr.Energy + 1e-10)

	// Coarse stand-in for a mel filterbank: band energies over equal
	// sub-spans of the window.
	span := len(window) / NumBands
	if span == 0 {
		span = len(window)
	}
	for b := 0; b < NumBands; b++ {
		lo := b * span
		if lo >= len(window) {
			break
		}
		hi := lo + span
		if b == NumBands-1 || hi > len(window) {
			hi = len(window)
		}
		fr.Bands[b] = rms(window[lo:hi])
	}
	return fr
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
