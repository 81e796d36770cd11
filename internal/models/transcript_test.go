package models

import (
	"encoding/json"
	"strings"
	"testing"

	"speech-transcription-service/internal/service/session"
)

func TestFromUnit_EventTypes(t *testing.T) {
	partial := FromUnit(session.TranscriptUnit{Pass: session.PassOnline, Final: false})
	if partial.EventType != EventTranscriptPartial {
		t.Errorf("expected partial event type, got %s", partial.EventType)
	}

	final := FromUnit(session.TranscriptUnit{Pass: session.PassOffline, Final: true})
	if final.EventType != EventTranscriptFinal {
		t.Errorf("expected final event type, got %s", final.EventType)
	}
}

func TestFromUnit_FieldMapping(t *testing.T) {
	end := int64(24000)
	ev := FromUnit(session.TranscriptUnit{
		SessionID:   "sess-1",
		SegmentID:   "sess-1-seg-2",
		Pass:        session.PassOffline,
		Text:        "alpha bravo",
		StartOffset: 8000,
		EndOffset:   &end,
		Final:       true,
		Degraded:    true,
		Confidence:  0.42,
	})

	if ev.SessionID != "sess-1" || ev.SegmentID != "sess-1-seg-2" {
		t.Errorf("id fields not mapped: %+v", ev)
	}
	if ev.Pass != "offline" || !ev.Final || !ev.Degraded {
		t.Errorf("pass fields not mapped: %+v", ev)
	}
	if ev.StartOffset != 8000 || ev.EndOffset == nil || *ev.EndOffset != 24000 {
		t.Errorf("offsets not mapped: %+v", ev)
	}
	if ev.Confidence != 0.42 {
		t.Errorf("confidence not mapped: %+v", ev)
	}
}

func TestTranscriptUnitEvent_JSONNullEndOffset(t *testing.T) {
	ev := FromUnit(session.TranscriptUnit{SessionID: "s", Pass: session.PassOnline})

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"endOffset":null`) {
		t.Errorf("open segment must serialize a null end offset: %s", data)
	}
}
