// Package vad provides voice-activity detection over feature frames,
// emitting sample-accurate segment boundary events.
package vad

import (
	"fmt"

	"speech-transcription-service/internal/audio"
)

// EventKind classifies a boundary event.
type EventKind int

const (
	// SpeechStart opens a new segment at Offset.
	SpeechStart EventKind = iota
	// SpeechContinue carries frames belonging to the open segment.
	SpeechContinue
	// SpeechEnd closes the open segment at a natural boundary.
	SpeechEnd
	// Timeout force-closes a segment that exceeded the maximum duration
	// without a natural boundary.
	Timeout
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case SpeechStart:
		return "SPEECH_START"
	case SpeechContinue:
		return "SPEECH_CONTINUE"
	case SpeechEnd:
		return "SPEECH_END"
	case Timeout:
		return "TIMEOUT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// Event is one VAD boundary event. Offset is an absolute sample offset:
// segment start for SpeechStart, segment end for SpeechEnd/Timeout.
// Frames is populated for SpeechContinue only.
type Event struct {
	Kind   EventKind
	Offset int64
	Frames []audio.FeatureFrame
}

// Detector consumes feature frames incrementally and classifies
// speech/non-speech boundaries. Deterministic given identical frame
// sequences and initial state.
type Detector interface {
	Advance(frames []audio.FeatureFrame) []Event
	// Flush force-closes any open segment at end of stream.
	Flush() []Event
	Reset()
}

// Config holds energy-detector tuning.
type Config struct {
	// Threshold is the RMS energy above which a frame counts as voiced.
	Threshold float64
	// StartFrames is the number of consecutive voiced frames required to
	// open a segment.
	StartFrames int
	// HangoverFrames is the number of consecutive unvoiced frames required
	// to close a segment.
	HangoverFrames int
	// MaxSegmentFrames force-closes a segment after this many frames.
	// Zero disables the timeout.
	MaxSegmentFrames int
}

// DefaultConfig returns detector settings suitable for 16-bit speech.
func DefaultConfig() Config {
	return Config{
		Threshold:        0.015,
		StartFrames:      2,
		HangoverFrames:   5,
		MaxSegmentFrames: 3000, // 30s at a 10ms hop
	}
}

// EnergyDetector is the default Detector: an energy threshold with onset
// and hangover frame counts. Grounded on the usual webrtc-style
// silence-window segmentation.
type EnergyDetector struct {
	cfg Config

	inSpeech   bool
	onset      []audio.FeatureFrame
	silenceRun int
	segFrames  int
	lastVoiced int64 // end sample of the last voiced frame
	lastSeen   int64 // end sample of the last consumed frame
}

// NewEnergyDetector creates a detector with the given config.
func NewEnergyDetector(cfg Config) *EnergyDetector {
	if cfg.StartFrames <= 0 {
		cfg.StartFrames = 1
	}
	if cfg.HangoverFrames <= 0 {
		cfg.HangoverFrames = 1
	}
	return &EnergyDetector{cfg: cfg}
}

// Advance consumes frames and returns the boundary events they produce.
// Contiguous in-segment frames within one call are grouped into a single
// SpeechContinue event, which naturally rate-limits downstream online
// decoding to once per chunk.
func (d *EnergyDetector) Advance(frames []audio.FeatureFrame) []Event {
	var events []Event
	var cont []audio.FeatureFrame

	flushCont := func() {
		if len(cont) > 0 {
			events = append(events, Event{Kind: SpeechContinue, Frames: cont})
			cont = nil
		}
	}

	for _, fr := range frames {
		voiced := fr.Energy >= d.cfg.Threshold
		d.lastSeen = fr.EndSample()

		if !d.inSpeech {
			if voiced {
				d.onset = append(d.onset, fr)
				if len(d.onset) >= d.cfg.StartFrames {
					start := d.onset[0].StartSample
					events = append(events, Event{Kind: SpeechStart, Offset: start})
					cont = append(cont, d.onset...)
					d.inSpeech = true
					d.segFrames = len(d.onset)
					d.silenceRun = 0
					d.lastVoiced = fr.EndSample()
					d.onset = nil
				}
			} else {
				d.onset = nil
			}
			continue
		}

		// Open segment: every frame belongs to it, including hangover.
		cont = append(cont, fr)
		d.segFrames++
		if voiced {
			d.silenceRun = 0
			d.lastVoiced = fr.EndSample()
		} else {
			d.silenceRun++
		}

		if d.cfg.MaxSegmentFrames > 0 && d.segFrames >= d.cfg.MaxSegmentFrames {
			flushCont()
			events = append(events, Event{Kind: Timeout, Offset: fr.EndSample()})
			d.closeSegment()
			continue
		}
		if d.silenceRun >= d.cfg.HangoverFrames {
			flushCont()
			events = append(events, Event{Kind: SpeechEnd, Offset: d.lastVoiced})
			d.closeSegment()
		}
	}
	flushCont()
	return events
}

// Flush force-closes an open segment at the last consumed frame.
func (d *EnergyDetector) Flush() []Event {
	if !d.inSpeech {
		return nil
	}
	end := d.lastVoiced
	if d.lastSeen > end {
		end = d.lastSeen
	}
	d.closeSegment()
	return []Event{{Kind: SpeechEnd, Offset: end}}
}

// Reset clears all detector state.
func (d *EnergyDetector) Reset() {
	*d = EnergyDetector{cfg: d.cfg}
}

func (d *EnergyDetector) closeSegment() {
	d.inSpeech = false
	d.silenceRun = 0
	d.segFrames = 0
	d.onset = nil
}
