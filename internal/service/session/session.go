// Package session implements the two-pass stream orchestrator: it owns a
// recognition session's lifecycle, drives VAD-triggered segmentation,
// dispatches the online and offline passes and merges both result streams
// into one ordered, non-regressing transcript.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speech-transcription-service/internal/audio"
	"speech-transcription-service/internal/decoder"
	"speech-transcription-service/internal/inference"
	"speech-transcription-service/internal/observability/logging"
	"speech-transcription-service/internal/service/segment"
	"speech-transcription-service/internal/textproc"
	"speech-transcription-service/internal/vad"
)

// Session is one active recognition stream.
//
// State machine: Idle → Streaming → (per segment: Open → PendingOffline →
// Finalized) → Closed. Callers must not issue concurrent PushAudio/Close
// calls for the same session; offline passes run on their own workers and
// synchronize through the segment finalization slot and the emitter.
type Session struct {
	id       string
	cfg      Config
	p        *Pipeline
	log      zerolog.Logger
	provider inference.Provider
	// dec is the shared decoder, or a hotword-biased copy of it.
	dec decoder.Decoder

	extractor audio.Extractor
	det       vad.Detector
	segGen    *segment.Generator
	emitter   *emitter

	// ctx bounds in-flight offline work; Abort cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	started      bool
	closed       bool
	startTime    time.Time
	sampleOffset int64
	lastSeq      uint64
	segments     []*segment.Segment
	open         *openSegment

	finishOnce sync.Once
}

// openSegment pairs the currently open segment with its incremental
// online inference stream.
type openSegment struct {
	seg    *segment.Segment
	online inference.OnlineStream
	// ranThisChunk rate-limits the online pass to once per chunk.
	ranThisChunk bool
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Provider returns the execution provider resolved for this session.
func (s *Session) Provider() inference.Provider { return s.provider }

// State returns "idle", "streaming" or "closed".
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return "closed"
	case s.started:
		return "streaming"
	default:
		return "idle"
	}
}

// PushAudio feeds one chunk through the feature extractor and VAD and
// handles the resulting boundary events. It may block briefly on the
// online pass but never on the offline pass. Released transcript units
// are delivered to the session sink in order.
//
// A *audio.FormatError rejects only the chunk; the session stays usable.
// After Close the call fails with ErrSessionClosed.
func (s *Session) PushAudio(ctx context.Context, chunk audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if !s.started {
		s.started = true
		s.startTime = time.Now()
	}

	if chunk.Offset == 0 && s.sampleOffset > 0 {
		chunk.Offset = s.sampleOffset
	}

	frames, err := s.extractor.Extract(chunk)
	if err != nil {
		s.p.metrics.RecordAudioRejected()
		return err
	}
	s.p.metrics.RecordAudioReceived(len(chunk.Samples))
	s.sampleOffset = chunk.Offset + int64(len(chunk.Samples))
	s.lastSeq = chunk.Seq

	if s.open != nil {
		s.open.ranThisChunk = false
	}
	s.handleEvents(ctx, s.det.Advance(frames))
	return nil
}

// Close forces the currently open segment to a speech end, schedules its
// offline pass and flushes all pending units in order. With BlockingClose
// it waits until every offline pass has completed before returning;
// otherwise it returns immediately while offline work finishes and units
// keep flowing to the sink. Subsequent calls fail with ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.closed = true

	tail := s.det.Advance(s.extractor.Flush())
	s.handleEvents(ctx, append(tail, s.det.Flush()...))
	s.mu.Unlock()

	if s.cfg.BlockingClose {
		s.wg.Wait()
		s.finish()
		return nil
	}
	go func() {
		s.wg.Wait()
		s.finish()
	}()
	return nil
}

// Abort tears the session down early: it cancels in-flight offline passes
// for this session only and drops open or pending segments without
// emitting their buffered online-only results. Idempotent.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	for _, seg := range s.segments {
		if seg.Drop() {
			s.p.metrics.RecordSegmentDropped("session_aborted")
			s.emitter.discard(seg)
		}
	}
	if s.open != nil {
		s.open.online.Close()
		s.open = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.finish()
}

// handleEvents applies VAD boundary events to the segment state machine.
// Called with s.mu held.
func (s *Session) handleEvents(ctx context.Context, events []vad.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case vad.SpeechStart:
			s.openSegmentAt(ev.Offset)
		case vad.SpeechContinue:
			s.continueSegment(ctx, ev.Frames)
		case vad.SpeechEnd:
			s.closeSegment(ev.Offset, false)
		case vad.Timeout:
			s.p.metrics.RecordSegmentTimeout()
			s.closeSegment(ev.Offset, true)
		}
	}
}

func (s *Session) openSegmentAt(offset int64) {
	if s.open != nil {
		// VAD never starts a segment while one is open.
		return
	}
	seg := segment.New(s.segGen.Next(s.id), offset)
	s.segments = append(s.segments, seg)
	s.open = &openSegment{seg: seg, online: s.p.engine.OpenOnline()}
	s.emitter.register(seg)
	s.p.metrics.RecordSegmentCreated()
	slog := logging.WithSegment(s.id, seg.ID())
	slog.Debug().
		Int64("startOffset", offset).
		Msg("Segment opened")
}

func (s *Session) continueSegment(ctx context.Context, frames []audio.FeatureFrame) {
	if s.open == nil || len(frames) == 0 {
		return
	}
	if err := s.open.seg.AppendFrames(frames); err != nil {
		return
	}
	if s.cfg.OnlinePass && !s.open.ranThisChunk {
		s.open.ranThisChunk = true
		s.runOnline(ctx, s.open, frames)
	}
}

// runOnline executes one online pass over the growing prefix. Failures
// are skipped silently: the segment simply has no online unit until the
// offline pass completes.
func (s *Session) runOnline(ctx context.Context, open *openSegment, newFrames []audio.FeatureFrame) {
	start := time.Now()

	tensor, err := open.online.Extend(ctx, newFrames)
	if err != nil {
		s.p.metrics.RecordPassError("online", "inference")
		s.log.Debug().Err(err).Str("segmentId", open.seg.ID()).Msg("Online inference failed, skipping partial")
		return
	}
	hyp, err := s.dec.DecodeOnline(tensor)
	if err != nil {
		s.p.metrics.RecordPassError("online", "decode")
		s.log.Debug().Err(err).Str("segmentId", open.seg.ID()).Msg("Online decode failed, skipping partial")
		return
	}
	text := s.p.post.Process(hyp, s.postOpts())
	open.seg.SetLastOnline(text, hyp.Confidence)
	s.p.metrics.RecordPass("online", time.Since(start).Seconds())

	s.emitter.stageOnline(open.seg, TranscriptUnit{
		SessionID:   s.id,
		SegmentID:   open.seg.ID(),
		Pass:        PassOnline,
		Text:        text,
		StartOffset: open.seg.StartOffset(),
		Final:       false,
		Confidence:  hyp.Confidence,
	})
}

// closeSegment transitions the open segment to PendingOffline and
// dispatches the offline pass onto its own worker. The state machine
// guarantees the pass is scheduled exactly once per segment.
func (s *Session) closeSegment(endOffset int64, timedOut bool) {
	if s.open == nil {
		return
	}
	open := s.open
	s.open = nil
	open.online.Close()

	if err := open.seg.MarkPendingOffline(endOffset, timedOut); err != nil {
		return
	}
	slog := logging.WithSegment(s.id, open.seg.ID())
	slog.Debug().
		Int64("endOffset", endOffset).
		Bool("timedOut", timedOut).
		Msg("Segment pending offline pass")

	s.wg.Add(1)
	go func(seg *segment.Segment) {
		defer s.wg.Done()
		s.runOffline(seg)
	}(open.seg)
}

// runOffline executes the full-context pass for a finalized segment. On
// failure it falls back to the last online hypothesis as a degraded final
// rather than losing the segment; the session continues either way.
func (s *Session) runOffline(seg *segment.Segment) {
	start := time.Now()
	slog := logging.WithSegment(s.id, seg.ID())

	res, err := s.offlineResult(seg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			if seg.Drop() {
				s.p.metrics.RecordSegmentDropped("offline_canceled")
				s.emitter.discard(seg)
			}
			return
		}
		text, conf, _ := seg.LastOnline()
		res = segment.Result{Text: text, Confidence: conf, Degraded: true}
		slog.Warn().Err(err).Msg("Offline pass failed, finalizing from last online hypothesis")
	}

	if err := seg.PublishFinal(res); err != nil {
		slog.Warn().Err(err).Msg("Offline result discarded")
		return
	}
	s.p.metrics.RecordPass("offline", time.Since(start).Seconds())
	s.p.metrics.RecordSegmentFinalized(res.Degraded)

	end := seg.EndOffset()
	s.emitter.stageFinal(seg, TranscriptUnit{
		SessionID:   s.id,
		SegmentID:   seg.ID(),
		Pass:        PassOffline,
		Text:        res.Text,
		StartOffset: seg.StartOffset(),
		EndOffset:   &end,
		Final:       true,
		Degraded:    res.Degraded,
		Confidence:  res.Confidence,
	})
}

func (s *Session) offlineResult(seg *segment.Segment) (segment.Result, error) {
	tensor, err := s.p.engine.Infer(s.ctx, seg.Frames())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.p.metrics.RecordPassError("offline", "inference")
		}
		return segment.Result{}, err
	}
	hyp, err := s.dec.DecodeOffline(s.ctx, tensor)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.p.metrics.RecordPassError("offline", "decode")
		}
		return segment.Result{}, err
	}
	return segment.Result{
		Text:       s.p.post.Process(hyp, s.postOpts()),
		Confidence: hyp.Confidence,
	}, nil
}

func (s *Session) postOpts() textproc.Options {
	return textproc.Options{Punctuation: s.cfg.Punctuation, ITN: s.cfg.ITN}
}

// finish releases the session from the pipeline exactly once.
func (s *Session) finish() {
	s.finishOnce.Do(func() {
		s.cancel()
		started := s.startTime
		if started.IsZero() {
			started = time.Now()
		}
		s.p.metrics.RecordSessionEnd(time.Since(started).Seconds())
		s.p.remove(s)
		s.log.Info().Msg("Session closed")
	})
}
