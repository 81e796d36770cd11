package session

import (
	"time"

	"speech-transcription-service/internal/inference"
)

// knownLanguages are the recognition profiles the loaded models support.
var knownLanguages = map[string]bool{
	"en-US": true,
	"en-GB": true,
}

// Config holds per-session settings. Validated once at OpenSession and
// immutable afterwards.
type Config struct {
	// SessionID is assigned by the pipeline when empty.
	SessionID string

	SampleRateHz int
	Channels     int
	// ChunkSamples is the nominal ingest chunk size in samples.
	ChunkSamples int
	Language     string

	// OnlinePass enables low-latency partial results. The offline pass
	// always runs.
	OnlinePass  bool
	Punctuation bool
	ITN         bool

	// AllowUnorderedPartials releases online units in arrival order
	// instead of holding them until all earlier segments are finalized.
	// Final units are always released in segment order.
	AllowUnorderedPartials bool

	// BlockingClose makes Close wait for all pending offline passes
	// before returning. When false, Close returns while offline work
	// finishes asynchronously and units keep flowing to the sink.
	BlockingClose bool

	// Hotwords biases recognition toward the given words; the value is
	// the activation boost. Words the decoder does not know are ignored.
	Hotwords map[string]float64

	// MaxSegmentDuration force-closes a segment that exceeds it without
	// a natural speech boundary.
	MaxSegmentDuration time.Duration

	// Provider is the execution-provider preference, resolved once at
	// session creation.
	Provider inference.Provider
}

// DefaultConfig returns the settings used when the caller leaves a field
// unset.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:       16000,
		Channels:           1,
		ChunkSamples:       1600,
		Language:           "en-US",
		OnlinePass:         true,
		Punctuation:        true,
		ITN:                true,
		BlockingClose:      true,
		MaxSegmentDuration: 30 * time.Second,
		Provider:           inference.ProviderDefault,
	}
}

// validate rejects a config before any session state is created.
func (c Config) validate() error {
	if c.ChunkSamples <= 0 {
		return &ConfigError{Field: "ChunkSamples", Reason: "must be > 0"}
	}
	if c.SampleRateHz != 8000 && c.SampleRateHz != 16000 {
		return &ConfigError{Field: "SampleRateHz", Reason: "must be 8000 or 16000"}
	}
	if c.Channels != 1 {
		return &ConfigError{Field: "Channels", Reason: "only mono is supported"}
	}
	if !knownLanguages[c.Language] {
		return &ConfigError{Field: "Language", Reason: "unknown language profile " + c.Language}
	}
	if c.MaxSegmentDuration <= 0 {
		return &ConfigError{Field: "MaxSegmentDuration", Reason: "must be > 0"}
	}
	for w, boost := range c.Hotwords {
		if boost < 0 {
			return &ConfigError{Field: "Hotwords", Reason: "negative boost for " + w}
		}
	}
	return nil
}
