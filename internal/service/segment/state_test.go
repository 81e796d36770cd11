package segment

import (
	"testing"

	"speech-transcription-service/internal/audio"
)

func TestSegment_InitialState(t *testing.T) {
	seg := New("seg-1", 4800)

	if seg.State() != StateOpen {
		t.Errorf("expected StateOpen, got %v", seg.State())
	}
	if seg.ID() != "seg-1" {
		t.Errorf("expected seg-1, got %v", seg.ID())
	}
	if seg.StartOffset() != 4800 {
		t.Errorf("expected start offset 4800, got %d", seg.StartOffset())
	}
	if seg.EndOffset() != -1 {
		t.Errorf("expected end offset -1 while open, got %d", seg.EndOffset())
	}
	if seg.State().IsTerminal() {
		t.Error("expected open segment to be non-terminal")
	}
}

func TestSegment_AppendFrames_OnlyWhileOpen(t *testing.T) {
	seg := New("seg-1", 0)
	frames := []audio.FeatureFrame{{Index: 0, NumSamples: 400}}

	if err := seg.AppendFrames(frames); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(seg.Frames()); got != 1 {
		t.Errorf("expected 1 buffered frame, got %d", got)
	}

	if err := seg.MarkPendingOffline(8000, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := seg.AppendFrames(frames); err != ErrNotOpen {
		t.Errorf("expected ErrNotOpen after boundary, got %v", err)
	}
}

func TestSegment_MarkPendingOffline_OnlyOnce(t *testing.T) {
	seg := New("seg-1", 0)

	if err := seg.MarkPendingOffline(16000, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seg.State() != StatePendingOffline {
		t.Errorf("expected StatePendingOffline, got %v", seg.State())
	}
	if seg.EndOffset() != 16000 {
		t.Errorf("expected end offset 16000, got %d", seg.EndOffset())
	}
	if !seg.TimedOut() {
		t.Error("expected timed-out flag")
	}

	// Second boundary must not reschedule the offline pass.
	if err := seg.MarkPendingOffline(32000, false); err != ErrNotOpen {
		t.Errorf("expected ErrNotOpen on second boundary, got %v", err)
	}
}

func TestSegment_PublishFinal_SingleWriter(t *testing.T) {
	seg := New("seg-1", 0)

	if err := seg.PublishFinal(Result{Text: "early"}); err != ErrNotPending {
		t.Errorf("expected ErrNotPending while open, got %v", err)
	}

	if err := seg.MarkPendingOffline(16000, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := seg.PublishFinal(Result{Text: "alpha bravo", Confidence: 0.9}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seg.State() != StateFinalized {
		t.Errorf("expected StateFinalized, got %v", seg.State())
	}

	res, ok := seg.Final()
	if !ok {
		t.Fatal("expected published final")
	}
	if res.Text != "alpha bravo" || res.Confidence != 0.9 || res.Degraded {
		t.Errorf("unexpected final result: %+v", res)
	}

	if err := seg.PublishFinal(Result{Text: "late"}); err != ErrAlreadyFinalized {
		t.Errorf("expected ErrAlreadyFinalized on second publish, got %v", err)
	}
	res, _ = seg.Final()
	if res.Text != "alpha bravo" {
		t.Errorf("first publish must win, got %q", res.Text)
	}
}

func TestSegment_LastOnline(t *testing.T) {
	seg := New("seg-1", 0)

	if _, _, ok := seg.LastOnline(); ok {
		t.Error("expected no online result initially")
	}

	seg.SetLastOnline("alpha", 0.4)
	seg.SetLastOnline("alpha bravo", 0.6)

	text, conf, ok := seg.LastOnline()
	if !ok || text != "alpha bravo" || conf != 0.6 {
		t.Errorf("expected latest online result, got %q %v %v", text, conf, ok)
	}
}

func TestSegment_Drop(t *testing.T) {
	seg := New("seg-1", 0)
	_ = seg.AppendFrames([]audio.FeatureFrame{{NumSamples: 400}})

	if !seg.Drop() {
		t.Error("expected Drop to succeed on open segment")
	}
	if seg.State() != StateDropped {
		t.Errorf("expected StateDropped, got %v", seg.State())
	}
	if seg.Drop() {
		t.Error("expected Drop to fail on terminal segment")
	}
	if _, ok := seg.Final(); ok {
		t.Error("dropped segment must not have a final")
	}
}

func TestSegment_Drop_AfterFinalized(t *testing.T) {
	seg := New("seg-1", 0)
	_ = seg.MarkPendingOffline(100, false)
	_ = seg.PublishFinal(Result{Text: "alpha"})

	if seg.Drop() {
		t.Error("expected Drop to fail after finalization")
	}
	if seg.State() != StateFinalized {
		t.Errorf("finalized state must stick, got %v", seg.State())
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateOpen:           "OPEN",
		StatePendingOffline: "PENDING_OFFLINE",
		StateFinalized:      "FINALIZED",
		StateDropped:        "DROPPED",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestGenerator_Next(t *testing.T) {
	g := NewGenerator()
	if got := g.Next("sess"); got != "sess-seg-1" {
		t.Errorf("expected sess-seg-1, got %s", got)
	}
	if got := g.Next("sess"); got != "sess-seg-2" {
		t.Errorf("expected sess-seg-2, got %s", got)
	}
}
