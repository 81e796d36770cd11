// Package textproc turns decoder hypotheses into human-readable text:
// detokenization, punctuation restoration and inverse text normalization.
package textproc

import (
	"strings"

	"speech-transcription-service/internal/decoder"
)

// Options selects which post-processing stages run. Both are independent
// per-session switches.
type Options struct {
	Punctuation bool
	ITN         bool
}

// Processor renders a hypothesis into display text. Implementations are
// immutable after construction and safe for concurrent use.
type Processor interface {
	Process(hyp decoder.Hypothesis, opts Options) string
}

// pauseCommaFrames is the inter-token gap, in frames, that punctuation
// restoration renders as a comma.
const pauseCommaFrames = 30

// Rules is the default Processor: rule-based punctuation restoration
// (sentence casing, pause commas, terminal period) and number-word
// rewriting for ITN.
type Rules struct{}

// NewRules creates the rule-based processor.
func NewRules() *Rules {
	return &Rules{}
}

// Process renders the hypothesis. With all options off the output is the
// plain detokenized text.
func (r *Rules) Process(hyp decoder.Hypothesis, opts Options) string {
	if len(hyp.Tokens) == 0 {
		return ""
	}

	words := make([]string, 0, len(hyp.Tokens))
	for i, tok := range hyp.Tokens {
		w := tok.Text
		if opts.Punctuation && i > 0 {
			gap := tok.StartFrame - hyp.Tokens[i-1].EndFrame
			if gap >= pauseCommaFrames {
				words[len(words)-1] += ","
			}
		}
		words = append(words, w)
	}

	if opts.ITN {
		words = rewriteNumbers(words)
	}

	text := strings.Join(words, " ")
	if opts.Punctuation {
		text = capitalize(text)
		if !strings.HasSuffix(text, ".") {
			text += "."
		}
	}
	return text
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
