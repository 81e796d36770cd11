package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"speech-transcription-service/internal/audio"
	"speech-transcription-service/internal/decoder"
	"speech-transcription-service/internal/inference"
	"speech-transcription-service/internal/observability/logging"
	"speech-transcription-service/internal/observability/metrics"
	"speech-transcription-service/internal/service/segment"
	"speech-transcription-service/internal/textproc"
	"speech-transcription-service/internal/vad"
)

// Params configures a Pipeline. Engine, Decoder and Post are shared
// read-only across all sessions; they must be immutable after load.
type Params struct {
	Engine   inference.Engine
	Decoder  decoder.Decoder
	Post     textproc.Processor
	Resolver *inference.Resolver
	Metrics  *metrics.Metrics
	// VAD tuning; zero value means vad.DefaultConfig().
	VAD vad.Config
}

// Pipeline owns the shared model resources and creates sessions. Sessions
// run fully in parallel; each one is mutated only by its own callers and
// offline workers.
type Pipeline struct {
	engine  inference.Engine
	dec     decoder.Decoder
	post    textproc.Processor
	resolv  *inference.Resolver
	metrics *metrics.Metrics
	vadCfg  vad.Config

	mu     sync.Mutex
	active map[string]*Session
}

// NewPipeline creates a pipeline around the given collaborators.
func NewPipeline(p Params) *Pipeline {
	m := p.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	vcfg := p.VAD
	if vcfg.Threshold == 0 {
		vcfg = vad.DefaultConfig()
	}
	resolv := p.Resolver
	if resolv == nil {
		resolv = inference.NewResolver(nil)
	}
	return &Pipeline{
		engine:  p.Engine,
		dec:     p.Decoder,
		post:    p.Post,
		resolv:  resolv,
		metrics: m,
		vadCfg:  vcfg,
		active:  make(map[string]*Session),
	}
}

// OpenSession validates the configuration and creates a session bound to
// the sink. The execution provider is resolved here, once per session;
// provider unavailability never fails the open.
func (p *Pipeline) OpenSession(cfg Config, sink Sink) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	extractor, err := audio.NewFramer(cfg.SampleRateHz, cfg.Channels)
	if err != nil {
		return nil, &ConfigError{Field: "SampleRateHz", Reason: err.Error()}
	}

	provider := p.resolv.Resolve(cfg.Provider)
	if cfg.Provider == inference.ProviderAccelerated && provider == inference.ProviderDefault {
		p.metrics.RecordProviderFallback()
	}

	vcfg := p.vadCfg
	hopMs := audio.HopMs
	vcfg.MaxSegmentFrames = int(cfg.MaxSegmentDuration.Milliseconds()) / hopMs

	dec := p.dec
	if len(cfg.Hotwords) > 0 {
		if b, ok := dec.(decoder.HotwordBiaser); ok {
			dec = b.WithHotwords(cfg.Hotwords)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        cfg.SessionID,
		cfg:       cfg,
		p:         p,
		log:       logging.WithSession(cfg.SessionID),
		provider:  provider,
		dec:       dec,
		extractor: extractor,
		det:       vad.NewEnergyDetector(vcfg),
		segGen:    segment.NewGenerator(),
		emitter:   newEmitter(&meteredSink{inner: sink, metrics: p.metrics}, cfg.AllowUnorderedPartials),
		ctx:       ctx,
		cancel:    cancel,
	}

	p.mu.Lock()
	p.active[s.id] = s
	p.mu.Unlock()
	p.metrics.RecordSessionStart()

	s.log.Info().
		Str("language", cfg.Language).
		Str("provider", string(provider)).
		Bool("onlinePass", cfg.OnlinePass).
		Bool("allowUnorderedPartials", cfg.AllowUnorderedPartials).
		Msg("Session opened")
	return s, nil
}

// ActiveSessions returns the number of sessions not yet finished.
func (p *Pipeline) ActiveSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// AbortAll tears down every active session, used at process shutdown.
func (p *Pipeline) AbortAll() {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.active))
	for _, s := range p.active {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()
	for _, s := range sessions {
		s.Abort()
	}
}

// remove drops the session from the active set. A session finishing
// late must not evict a newer session opened under the same ID, so the
// entry is only deleted when it still points at s.
func (p *Pipeline) remove(s *Session) {
	p.mu.Lock()
	if p.active[s.id] == s {
		delete(p.active, s.id)
	}
	p.mu.Unlock()
}

// meteredSink counts released units before handing them to the caller's
// sink.
type meteredSink struct {
	inner   Sink
	metrics *metrics.Metrics
}

func (m *meteredSink) Emit(unit TranscriptUnit) {
	m.metrics.RecordUnit(unit.Final)
	if m.inner != nil {
		m.inner.Emit(unit)
	}
}
