package inference

import (
	"context"

	"speech-transcription-service/internal/audio"
)

// Vocabulary size of the local model, including the blank symbol at
// index 0.
const LocalVocabSize = 12

// silenceFloor is the frame energy below which the local model emits the
// blank symbol.
const silenceFloor = 0.01

// LocalEngine is a deterministic, dependency-free acoustic model: each
// frame is classified into a small symbol alphabet from its energy level
// and dominant band. It exists so the pipeline, tools and tests run
// without external model weights, while exercising the full Engine
// contract including incremental online computation.
type LocalEngine struct {
	provider Provider
}

// NewLocalEngine creates a local engine bound to the resolved provider.
func NewLocalEngine(provider Provider) *LocalEngine {
	return &LocalEngine{provider: provider}
}

// Provider returns the execution provider this engine was built with.
func (e *LocalEngine) Provider() Provider {
	return e.provider
}

// Infer runs the full-context offline pass: per-frame classification
// followed by a 3-frame majority smoothing that the online pass skips.
func (e *LocalEngine) Infer(ctx context.Context, frames []audio.FeatureFrame) (Tensor, error) {
	symbols := make([]int, len(frames))
	for i, fr := range frames {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Tensor{}, err
			}
		}
		symbols[i] = classify(fr)
	}
	smoothed := majoritySmooth(symbols)
	return rowsFor(smoothed), nil
}

// OpenOnline opens an incremental stream. Rows already computed for the
// prefix are cached and never recomputed.
func (e *LocalEngine) OpenOnline() OnlineStream {
	return &localStream{}
}

type localStream struct {
	symbols []int
}

func (s *localStream) Extend(ctx context.Context, frames []audio.FeatureFrame) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}
	for _, fr := range frames {
		s.symbols = append(s.symbols, classify(fr))
	}
	return rowsFor(s.symbols), nil
}

func (s *localStream) Close() {
	s.symbols = nil
}

// classify maps one frame to a symbol. Pure function of the frame, so
// results do not depend on chunking.
func classify(fr audio.FeatureFrame) int {
	if fr.Energy < silenceFloor {
		return 0
	}
	dominant := 0
	for b := 1; b < audio.NumBands; b++ {
		if fr.Bands[b] > fr.Bands[dominant] {
			dominant = b
		}
	}
	level := int(fr.Energy * 20)
	if level > 3 {
		level = 3
	}
	return 1 + (dominant+level*audio.NumBands)%(LocalVocabSize-1)
}

// majoritySmooth replaces isolated symbols with their neighborhood
// majority, the local stand-in for a full-context search.
func majoritySmooth(symbols []int) []int {
	if len(symbols) < 3 {
		return symbols
	}
	out := make([]int, len(symbols))
	copy(out, symbols)
	for i := 1; i < len(symbols)-1; i++ {
		if symbols[i-1] == symbols[i+1] && symbols[i] != symbols[i-1] {
			out[i] = symbols[i-1]
		}
	}
	return out
}

func rowsFor(symbols []int) Tensor {
	t := Tensor{
		Frames: len(symbols),
		Dim:    LocalVocabSize,
		Data:   make([]float32, len(symbols)*LocalVocabSize),
	}
	for i, sym := range symbols {
		row := t.Data[i*LocalVocabSize : (i+1)*LocalVocabSize]
		for j := range row {
			row[j] = 0.01
		}
		row[sym] = 0.9
	}
	return t
}
