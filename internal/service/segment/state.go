// Package segment provides the per-segment lifecycle state machine, the
// frame buffer and the finalization slot shared between the ingest worker
// and the offline pass worker.
package segment

import (
	"errors"
	"fmt"
	"sync"

	"speech-transcription-service/internal/audio"
)

// State represents the lifecycle state of a segment.
type State int

const (
	// StateOpen - segment is accumulating frames; online partials allowed.
	StateOpen State = iota
	// StatePendingOffline - boundary reached, offline pass scheduled.
	StatePendingOffline
	// StateFinalized - offline result published. Terminal.
	StateFinalized
	// StateDropped - segment abandoned without a final (early session
	// teardown). Terminal.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StatePendingOffline:
		return "PENDING_OFFLINE"
	case StateFinalized:
		return "FINALIZED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsTerminal returns true for FINALIZED and DROPPED.
func (s State) IsTerminal() bool {
	return s == StateFinalized || s == StateDropped
}

// Errors for invalid state transitions.
var (
	ErrNotOpen          = errors.New("segment is not open")
	ErrNotPending       = errors.New("segment has no offline pass pending")
	ErrAlreadyFinalized = errors.New("final already published for this segment")
)

// Result is the published outcome of a segment's offline pass (or its
// degraded fallback).
type Result struct {
	Text       string
	Confidence float64
	Degraded   bool
}

// Segment is a contiguous speech span bounded by VAD-detected boundaries.
//
// State transitions:
//
//	OPEN → PENDING_OFFLINE → FINALIZED
//	  │          │
//	  │          └── Drop() ──→ DROPPED
//	  └── Drop() ──→ DROPPED
//
// Exactly one writer (the offline worker) transitions PENDING_OFFLINE to
// FINALIZED; all readers observe a consistent published Result.
type Segment struct {
	mu sync.Mutex

	id          string
	startOffset int64
	endOffset   int64 // -1 while open
	state       State
	timedOut    bool

	frames []audio.FeatureFrame

	lastOnlineText string
	lastOnlineConf float64
	hasOnline      bool

	final Result
}

// New creates an open segment starting at the given sample offset.
func New(id string, startOffset int64) *Segment {
	return &Segment{
		id:          id,
		startOffset: startOffset,
		endOffset:   -1,
		state:       StateOpen,
	}
}

// ID returns the segment ID.
func (s *Segment) ID() string { return s.id }

// StartOffset returns the absolute sample offset of the segment start.
func (s *Segment) StartOffset() int64 { return s.startOffset }

// EndOffset returns the end sample offset, or -1 while the segment is
// still open.
func (s *Segment) EndOffset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endOffset
}

// State returns the current lifecycle state.
func (s *Segment) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TimedOut reports whether the segment was force-closed by a VAD timeout.
func (s *Segment) TimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timedOut
}

// AppendFrames buffers feature frames while the segment is open.
func (s *Segment) AppendFrames(frames []audio.FeatureFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrNotOpen
	}
	s.frames = append(s.frames, frames...)
	return nil
}

// Frames returns a snapshot of the buffered frames.
func (s *Segment) Frames() []audio.FeatureFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.FeatureFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

// SetLastOnline records the most recent post-processed online result, the
// fallback text if the offline pass later fails.
func (s *Segment) SetLastOnline(text string, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOnlineText = text
	s.lastOnlineConf = confidence
	s.hasOnline = true
}

// LastOnline returns the most recent online result, if any.
func (s *Segment) LastOnline() (text string, confidence float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOnlineText, s.lastOnlineConf, s.hasOnline
}

// MarkPendingOffline closes the span at endOffset and transitions to
// PENDING_OFFLINE. Only valid from OPEN, which guarantees the offline
// pass is scheduled exactly once per segment.
func (s *Segment) MarkPendingOffline(endOffset int64, timedOut bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrNotOpen
	}
	s.state = StatePendingOffline
	s.endOffset = endOffset
	s.timedOut = timedOut
	return nil
}

// PublishFinal transitions to FINALIZED and stores the result. Single
// writer: the first successful call wins, later calls fail.
func (s *Segment) PublishFinal(res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePendingOffline:
		s.state = StateFinalized
		s.final = res
		return nil
	case StateFinalized:
		return ErrAlreadyFinalized
	default:
		return ErrNotPending
	}
}

// Final returns the published result. Valid only in FINALIZED.
func (s *Segment) Final() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFinalized {
		return Result{}, false
	}
	return s.final, true
}

// Drop abandons the segment without publishing a final. Returns false if
// the segment already reached a terminal state.
func (s *Segment) Drop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return false
	}
	s.state = StateDropped
	s.frames = nil
	return true
}
