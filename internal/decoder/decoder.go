// Package decoder converts inference-engine activations into ranked text
// hypotheses. Search-graph internals are out of scope; the pipeline
// depends only on the Decoder interface.
package decoder

import (
	"context"
	"strings"

	"speech-transcription-service/internal/inference"
)

// Token is one decoded unit with frame-accurate timing.
type Token struct {
	Text       string
	StartFrame int
	EndFrame   int
	Score      float64
}

// Hypothesis is a decoder's ranked output for a span of acoustic input.
type Hypothesis struct {
	Tokens     []Token
	Confidence float64
}

// PlainText joins the token texts with single spaces.
func (h Hypothesis) PlainText() string {
	parts := make([]string, len(h.Tokens))
	for i, t := range h.Tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// HotwordBiaser is implemented by decoders that can bias recognition
// toward caller-supplied words. WithHotwords returns a derived decoder;
// the receiver is unchanged and stays safe to share.
type HotwordBiaser interface {
	WithHotwords(hotwords map[string]float64) Decoder
}

// Decoder turns activation tensors into hypotheses. Implementations are
// immutable after construction and safe for concurrent use.
type Decoder interface {
	// DecodeOnline returns the current best partial path over a growing
	// prefix. Earlier tokens may be revised on later calls within the
	// same still-open segment.
	DecodeOnline(t inference.Tensor) (Hypothesis, error)

	// DecodeOffline performs the full search over a finalized segment
	// and returns the final best path with confidence.
	DecodeOffline(ctx context.Context, t inference.Tensor) (Hypothesis, error)
}
