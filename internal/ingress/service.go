package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"speech-transcription-service/internal/audio"
	"speech-transcription-service/internal/events"
	"speech-transcription-service/internal/models"
	"speech-transcription-service/internal/observability/logging"
	"speech-transcription-service/internal/service/session"
)

// Config holds ingress settings.
type Config struct {
	AudioSubjectPrefix      string
	TranscriptSubjectPrefix string
	// IdleTimeout closes a session that stops receiving frames without a
	// final marker. Zero disables reaping.
	IdleTimeout time.Duration
	// Session is the template config for new sessions; sample rate and
	// channel count come from the first frame when set there.
	Session session.Config
}

// DefaultConfig returns ingress defaults.
func DefaultConfig() Config {
	return Config{
		AudioSubjectPrefix:      DefaultAudioSubjectPrefix,
		TranscriptSubjectPrefix: DefaultTranscriptSubjectPrefix,
		IdleTimeout:             2 * time.Minute,
		Session:                 session.DefaultConfig(),
	}
}

// Service is the NATS audio ingress. One subscription drains all session
// subjects; NATS delivers messages for a subscription sequentially, which
// gives each session the single-worker discipline the orchestrator
// requires.
type Service struct {
	conn      *nats.Conn
	pipeline  *session.Pipeline
	publisher *events.Publisher
	cfg       Config
	log       zerolog.Logger

	mu      sync.Mutex
	streams map[string]*stream
	sub     *nats.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// stream pairs a session with its ingress bookkeeping. offset and
// lastSeq are only touched by the subscription goroutine; lastActivity
// is also read by the idle reaper and has its own lock.
type stream struct {
	sess    *session.Session
	offset  int64
	lastSeq uint64

	mu           sync.Mutex
	lastActivity time.Time
}

func (st *stream) touch() {
	st.mu.Lock()
	st.lastActivity = time.Now()
	st.mu.Unlock()
}

func (st *stream) idleBefore(cutoff time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastActivity.Before(cutoff)
}

// NewService creates the ingress service.
func NewService(conn *nats.Conn, pipeline *session.Pipeline, publisher *events.Publisher, cfg Config) *Service {
	if cfg.AudioSubjectPrefix == "" {
		cfg.AudioSubjectPrefix = DefaultAudioSubjectPrefix
	}
	if cfg.TranscriptSubjectPrefix == "" {
		cfg.TranscriptSubjectPrefix = DefaultTranscriptSubjectPrefix
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		conn:      conn,
		pipeline:  pipeline,
		publisher: publisher,
		cfg:       cfg,
		log:       logging.WithComponent("ingress"),
		streams:   make(map[string]*stream),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the audio subjects and starts the idle reaper.
func (s *Service) Start() error {
	sub, err := s.conn.Subscribe(s.cfg.AudioSubjectPrefix+".>", s.handleFrame)
	if err != nil {
		return err
	}
	s.sub = sub
	s.log.Info().Str("subject", s.cfg.AudioSubjectPrefix+".>").Msg("Audio ingress subscribed")

	if s.cfg.IdleTimeout > 0 {
		s.wg.Add(1)
		go s.reapIdle()
	}
	return nil
}

// Close drains the subscription and closes all active sessions.
func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()

	s.mu.Lock()
	streams := make([]*stream, 0, len(s.streams))
	for _, st := range s.streams {
		streams = append(streams, st)
	}
	s.streams = make(map[string]*stream)
	s.mu.Unlock()

	for _, st := range streams {
		if err := st.sess.Close(context.Background()); err != nil && !errors.Is(err, session.ErrSessionClosed) {
			s.log.Warn().Err(err).Str("sessionId", st.sess.ID()).Msg("Error closing session at shutdown")
		}
	}
}

func (s *Service) handleFrame(msg *nats.Msg) {
	var frame Frame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.log.Warn().Err(err).Str("subject", msg.Subject).Msg("Failed to decode audio frame")
		return
	}
	if frame.SessionID == "" {
		s.log.Warn().Str("subject", msg.Subject).Msg("Audio frame without session ID")
		return
	}

	st, err := s.streamFor(frame)
	if err != nil {
		s.log.Warn().Err(err).Str("sessionId", frame.SessionID).Msg("Rejecting session")
		return
	}

	samples := audio.PCMToSamples(frame.PCM)
	if len(samples) > 0 {
		chunk := audio.Chunk{
			Samples:      samples,
			Seq:          frame.Seq,
			Offset:       st.offset,
			SampleRateHz: frame.SampleRateHz,
			Channels:     frame.Channels,
		}
		err := st.sess.PushAudio(s.ctx, chunk)
		var formatErr *audio.FormatError
		switch {
		case errors.As(err, &formatErr):
			s.log.Warn().Err(err).Str("sessionId", frame.SessionID).Msg("Audio chunk rejected")
		case errors.Is(err, session.ErrSessionClosed):
			s.dropStream(frame.SessionID)
			return
		case err != nil:
			s.log.Error().Err(err).Str("sessionId", frame.SessionID).Msg("Push failed")
		default:
			st.offset += int64(len(samples))
		}
	}
	st.lastSeq = frame.Seq
	st.touch()

	if frame.Final {
		s.dropStream(frame.SessionID)
		if err := st.sess.Close(context.Background()); err != nil && !errors.Is(err, session.ErrSessionClosed) {
			s.log.Warn().Err(err).Str("sessionId", frame.SessionID).Msg("Error closing session")
		}
	}
}

// streamFor returns the session stream for a frame, opening a session on
// the first frame.
func (s *Service) streamFor(frame Frame) (*stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.streams[frame.SessionID]; ok {
		return st, nil
	}

	cfg := s.cfg.Session
	cfg.SessionID = frame.SessionID
	if frame.SampleRateHz > 0 {
		cfg.SampleRateHz = frame.SampleRateHz
	}
	if frame.Channels > 0 {
		cfg.Channels = frame.Channels
	}

	sink := &unitSink{svc: s, subject: TranscriptSubject(s.cfg.TranscriptSubjectPrefix, frame.SessionID)}
	sess, err := s.pipeline.OpenSession(cfg, sink)
	if err != nil {
		return nil, err
	}

	st := &stream{sess: sess, lastActivity: time.Now()}
	s.streams[frame.SessionID] = st
	return st, nil
}

func (s *Service) dropStream(sessionID string) {
	s.mu.Lock()
	delete(s.streams, sessionID)
	s.mu.Unlock()
}

// reapIdle closes sessions whose clients stopped sending without a final
// marker, emitting whatever audio was buffered.
func (s *Service) reapIdle() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.IdleTimeout)
			s.mu.Lock()
			var idle []*stream
			for id, st := range s.streams {
				if st.idleBefore(cutoff) {
					idle = append(idle, st)
					delete(s.streams, id)
				}
			}
			s.mu.Unlock()

			for _, st := range idle {
				s.log.Info().Str("sessionId", st.sess.ID()).Msg("Closing idle session")
				go func(st *stream) {
					if err := st.sess.Close(context.Background()); err != nil && !errors.Is(err, session.ErrSessionClosed) {
						s.log.Warn().Err(err).Str("sessionId", st.sess.ID()).Msg("Error closing idle session")
					}
				}(st)
			}
		}
	}
}

// unitSink fans one session's released units out to Kafka and the
// session's NATS transcript subject.
type unitSink struct {
	svc     *Service
	subject string
}

func (u *unitSink) Emit(unit session.TranscriptUnit) {
	_ = u.svc.publisher.PublishUnit(context.Background(), unit)

	ev := models.FromUnit(unit)
	ev.Timestamp = time.Now().UnixMilli()
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := u.svc.conn.Publish(u.subject, payload); err != nil {
		u.svc.log.Debug().Err(err).Str("subject", u.subject).Msg("Transcript fan-out publish failed")
	}
}
