package inference

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Provider identifies the execution backend used to run model inference.
type Provider string

const (
	// ProviderDefault is the always-available CPU backend.
	ProviderDefault Provider = "default"
	// ProviderAccelerated is the hardware-accelerated backend. Opt-in;
	// falls back to ProviderDefault if initialization fails.
	ProviderAccelerated Provider = "accelerated"
)

// ProviderEnvVar opts the process into the accelerated provider.
const ProviderEnvVar = "INFERENCE_PROVIDER"

// InitError reports a provider that failed to initialize. Non-fatal: the
// resolver falls back to the default provider and the session proceeds.
type InitError struct {
	Provider Provider
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("provider %q init failed: %v", e.Provider, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ProbeFunc attempts to initialize a provider, returning an error if the
// backend is unavailable on this host.
type ProbeFunc func(Provider) error

// Resolver resolves a session's provider preference against what the host
// actually supports. The accelerated backend is probed at most once per
// process; on failure every subsequent request silently resolves to the
// default provider after a single warning.
type Resolver struct {
	probe ProbeFunc

	once     sync.Once
	fallback bool
}

// NewResolver creates a resolver around the given probe.
func NewResolver(probe ProbeFunc) *Resolver {
	return &Resolver{probe: probe}
}

// Resolve returns the provider a new session should use. Called once per
// session at creation; never fails the session.
func (r *Resolver) Resolve(pref Provider) Provider {
	if pref != ProviderAccelerated {
		return ProviderDefault
	}
	r.once.Do(func() {
		if r.probe == nil {
			return
		}
		if err := r.probe(ProviderAccelerated); err != nil {
			r.fallback = true
			log.Warn().
				Err(&InitError{Provider: ProviderAccelerated, Err: err}).
				Msg("Accelerated provider unavailable, falling back to default")
		}
	})
	if r.fallback {
		return ProviderDefault
	}
	return ProviderAccelerated
}

// FellBack reports whether the accelerated probe failed.
func (r *Resolver) FellBack() bool {
	return r.fallback
}

// PreferredFromEnv reads the process-level provider opt-in. Accelerated
// execution is disabled unless explicitly requested.
func PreferredFromEnv() Provider {
	if os.Getenv(ProviderEnvVar) == string(ProviderAccelerated) {
		return ProviderAccelerated
	}
	return ProviderDefault
}
