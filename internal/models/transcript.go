// Package models defines the wire payloads for transcript events.
package models

import "speech-transcription-service/internal/service/session"

// Event types for the two passes.
const (
	EventTranscriptPartial = "transcript.unit.partial"
	EventTranscriptFinal   = "transcript.unit.final"
)

// TranscriptUnitEvent is the published form of a transcript unit.
// EndOffset is null until the segment is finalized.
type TranscriptUnitEvent struct {
	EventType   string  `json:"eventType"`
	SessionID   string  `json:"sessionId"`
	SegmentID   string  `json:"segmentId"`
	Pass        string  `json:"pass"`
	Text        string  `json:"text"`
	StartOffset int64   `json:"startOffset"`
	EndOffset   *int64  `json:"endOffset"`
	Final       bool    `json:"final"`
	Degraded    bool    `json:"degraded"`
	Confidence  float64 `json:"confidence"`
	Timestamp   int64   `json:"timestamp"`
}

// FromUnit converts an orchestrator unit into its wire form. Timestamp is
// left for the publisher to stamp.
func FromUnit(u session.TranscriptUnit) TranscriptUnitEvent {
	eventType := EventTranscriptPartial
	if u.Final {
		eventType = EventTranscriptFinal
	}
	return TranscriptUnitEvent{
		EventType:   eventType,
		SessionID:   u.SessionID,
		SegmentID:   u.SegmentID,
		Pass:        string(u.Pass),
		Text:        u.Text,
		StartOffset: u.StartOffset,
		EndOffset:   u.EndOffset,
		Final:       u.Final,
		Degraded:    u.Degraded,
		Confidence:  u.Confidence,
	}
}
