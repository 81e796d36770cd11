package session

// PassKind tags which pass produced a transcript unit.
type PassKind string

const (
	// PassOnline is the fast, low-latency, revisable pass.
	PassOnline PassKind = "online"
	// PassOffline is the full-context, higher-accuracy pass.
	PassOffline PassKind = "offline"
)

// TranscriptUnit is one unit of output text tied to one segment and one
// pass. Offline units are final and permanently supersede any online unit
// emitted for the same segment.
type TranscriptUnit struct {
	SessionID   string
	SegmentID   string
	Pass        PassKind
	Text        string
	StartOffset int64
	// EndOffset is nil until the segment is finalized.
	EndOffset *int64
	Final     bool
	// Degraded marks a final built from the last online hypothesis after
	// an offline-pass failure.
	Degraded   bool
	Confidence float64
}

// Sink receives released transcript units in non-decreasing segment
// start-offset order. Emit may be called from the session's ingest worker
// or from an offline pass worker, but never concurrently.
type Sink interface {
	Emit(unit TranscriptUnit)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(TranscriptUnit)

// Emit calls f(unit).
func (f SinkFunc) Emit(unit TranscriptUnit) { f(unit) }
