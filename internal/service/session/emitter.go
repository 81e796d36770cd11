package session

import (
	"sync"

	"speech-transcription-service/internal/service/segment"
)

// emitter is the ordered output queue. Segments register in start-offset
// order (VAD produces them sequentially); units are released to the sink
// so that the stream is non-decreasing in segment start offset and finals
// appear exactly once per segment, in segment order.
//
// Release discipline with AllowUnorderedPartials off: an online unit for
// segment N is held back until every segment before N has had its final
// released. Only the latest staged online unit per segment is retained;
// a staged final discards any held online unit for that segment.
type emitter struct {
	mu             sync.Mutex
	sink           Sink
	allowUnordered bool

	entries []*emitEntry
	// head indexes the first entry whose final is not yet released.
	head int
}

type emitEntry struct {
	seg           *segment.Segment
	pendingOnline *TranscriptUnit
	final         *TranscriptUnit
	finalReleased bool
	discarded     bool
}

func newEmitter(sink Sink, allowUnordered bool) *emitter {
	return &emitter{sink: sink, allowUnordered: allowUnordered}
}

// register appends a segment to the ordered queue. Called on SpeechStart.
func (e *emitter) register(seg *segment.Segment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, &emitEntry{seg: seg})
}

// stageOnline stages (or immediately releases) an online unit.
func (e *emitter) stageOnline(seg *segment.Segment, unit TranscriptUnit) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := e.find(seg)
	if entry == nil || entry.final != nil || entry.discarded {
		return
	}
	if e.allowUnordered || e.allPriorFinal(entry) {
		e.sink.Emit(unit)
		return
	}
	entry.pendingOnline = &unit
}

// stageFinal stages the segment's final unit and releases everything the
// ordering rule now allows.
func (e *emitter) stageFinal(seg *segment.Segment, unit TranscriptUnit) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := e.find(seg)
	if entry == nil || entry.final != nil || entry.discarded {
		return
	}
	entry.final = &unit
	entry.pendingOnline = nil
	e.release()
}

// discard removes a dropped segment from the ordering so it no longer
// blocks later segments. Its held online unit is never emitted.
func (e *emitter) discard(seg *segment.Segment) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := e.find(seg)
	if entry == nil || entry.finalReleased {
		return
	}
	entry.discarded = true
	entry.pendingOnline = nil
	entry.final = nil
	e.release()
}

// release advances head over discarded entries and entries whose final is
// staged, emitting finals in order, then flushes the held online unit of
// the new head segment if its predecessors are all final.
func (e *emitter) release() {
	for e.head < len(e.entries) {
		entry := e.entries[e.head]
		if entry.discarded {
			e.head++
			continue
		}
		if entry.final != nil && !entry.finalReleased {
			e.sink.Emit(*entry.final)
			entry.finalReleased = true
			e.head++
			continue
		}
		break
	}
	if e.head < len(e.entries) {
		entry := e.entries[e.head]
		if entry.pendingOnline != nil {
			e.sink.Emit(*entry.pendingOnline)
			entry.pendingOnline = nil
		}
	}
}

func (e *emitter) find(seg *segment.Segment) *emitEntry {
	// Sessions hold a handful of in-flight segments; linear scan from the
	// head is fine.
	for i := e.head; i < len(e.entries); i++ {
		if e.entries[i].seg == seg {
			return e.entries[i]
		}
	}
	return nil
}

func (e *emitter) allPriorFinal(entry *emitEntry) bool {
	for i := e.head; i < len(e.entries); i++ {
		cur := e.entries[i]
		if cur == entry {
			return true
		}
		if !cur.discarded && !cur.finalReleased {
			return false
		}
	}
	return true
}
