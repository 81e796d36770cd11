// Package inference defines the acoustic inference engine contract and the
// execution-provider resolution policy. Model internals are out of scope;
// the pipeline only depends on the interfaces here.
package inference

import (
	"context"

	"speech-transcription-service/internal/audio"
)

// Tensor is a row-major [Frames x Dim] activation matrix: one posterior
// row per feature frame.
type Tensor struct {
	Frames int
	Dim    int
	Data   []float32
}

// Row returns the posterior row for frame i.
func (t Tensor) Row(i int) []float32 {
	return t.Data[i*t.Dim : (i+1)*t.Dim]
}

// Engine runs a trained model over feature frames. Implementations share
// immutable model state and are safe for concurrent use across sessions.
type Engine interface {
	// Infer processes a complete finalized segment with full context.
	// This is the offline pass.
	Infer(ctx context.Context, frames []audio.FeatureFrame) (Tensor, error)

	// OpenOnline opens an incremental stream for the online pass. The
	// returned stream caches prefix computation so repeated calls on a
	// growing segment do not recompute from scratch.
	OpenOnline() OnlineStream
}

// OnlineStream is the cached incremental computation for one open segment.
// Not safe for concurrent use; owned by the session worker.
type OnlineStream interface {
	// Extend appends new frames and returns the activations over the
	// whole prefix seen so far.
	Extend(ctx context.Context, frames []audio.FeatureFrame) (Tensor, error)
	// Close releases the stream's cache.
	Close()
}
