package decoder

import (
	"context"
	"fmt"

	"speech-transcription-service/internal/inference"
)

// defaultVocab maps symbol indices to word tokens. Index 0 is the blank
// symbol and never produces a token.
var defaultVocab = []string{
	"", "alpha", "bravo", "charlie", "delta", "echo",
	"foxtrot", "golf", "hotel", "india", "juliett", "kilo",
}

// Greedy is the default Decoder: per-frame argmax with blank removal and
// repeat collapsing, the standard CTC-style best path. The offline pass
// additionally drops sub-minimum-duration tokens, standing in for the
// full search's better boundary decisions.
type Greedy struct {
	vocab []string
	// minTokenFrames is the offline-only minimum token duration.
	minTokenFrames int
	// boosts, when non-nil, is added per symbol before the argmax.
	boosts []float32
}

// NewGreedy creates a decoder over the local engine's vocabulary.
func NewGreedy() *Greedy {
	return &Greedy{vocab: defaultVocab, minTokenFrames: 2}
}

// WithHotwords returns a copy of the decoder biased toward the given
// words. The boost is added to a word's activation before the per-frame
// argmax; words outside the vocabulary are ignored. Scores and
// confidence still reflect the unbiased activations.
func (g *Greedy) WithHotwords(hotwords map[string]float64) Decoder {
	boosts := make([]float32, len(g.vocab))
	var any bool
	for i, w := range g.vocab {
		if w == "" {
			continue
		}
		if b, ok := hotwords[w]; ok && b != 0 {
			boosts[i] = float32(b)
			any = true
		}
	}
	if !any {
		return g
	}
	return &Greedy{vocab: g.vocab, minTokenFrames: g.minTokenFrames, boosts: boosts}
}

// DecodeOnline returns the best partial path without duration pruning, so
// a token may appear as soon as a single frame supports it.
func (g *Greedy) DecodeOnline(t inference.Tensor) (Hypothesis, error) {
	return g.bestPath(t, 0)
}

// DecodeOffline performs the pruned full-context pass.
func (g *Greedy) DecodeOffline(ctx context.Context, t inference.Tensor) (Hypothesis, error) {
	if err := ctx.Err(); err != nil {
		return Hypothesis{}, err
	}
	return g.bestPath(t, g.minTokenFrames)
}

func (g *Greedy) biased(row []float32, j int) float32 {
	if g.boosts == nil {
		return row[j]
	}
	return row[j] + g.boosts[j]
}

func (g *Greedy) bestPath(t inference.Tensor, minFrames int) (Hypothesis, error) {
	if t.Dim != len(g.vocab) {
		return Hypothesis{}, fmt.Errorf("tensor dim %d does not match vocabulary size %d", t.Dim, len(g.vocab))
	}

	var hyp Hypothesis
	var scoreSum float64
	prev := -1
	for i := 0; i < t.Frames; i++ {
		row := t.Row(i)
		best, bestBiased := 0, g.biased(row, 0)
		for j := 1; j < len(row); j++ {
			if s := g.biased(row, j); s > bestBiased {
				best, bestBiased = j, s
			}
		}
		scoreSum += float64(row[best])

		if best == 0 {
			prev = -1
			continue
		}
		if best == prev {
			hyp.Tokens[len(hyp.Tokens)-1].EndFrame = i + 1
			continue
		}
		hyp.Tokens = append(hyp.Tokens, Token{
			Text:       g.vocab[best],
			StartFrame: i,
			EndFrame:   i + 1,
			Score:      float64(row[best]),
		})
		prev = best
	}

	if minFrames > 1 {
		kept := hyp.Tokens[:0]
		for _, tok := range hyp.Tokens {
			if tok.EndFrame-tok.StartFrame >= minFrames {
				kept = append(kept, tok)
			}
		}
		hyp.Tokens = kept
	}

	if t.Frames > 0 {
		hyp.Confidence = scoreSum / float64(t.Frames)
	}
	return hyp, nil
}
