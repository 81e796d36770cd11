package inference

import (
	"context"
	"testing"

	"speech-transcription-service/internal/audio"
)

func frameWith(energy float64, dominantBand int, start int64) audio.FeatureFrame {
	fr := audio.FeatureFrame{StartSample: start, NumSamples: 400, Energy: energy}
	for b := range fr.Bands {
		fr.Bands[b] = energy / 2
	}
	fr.Bands[dominantBand] = energy
	return fr
}

func TestClassify_SilenceIsBlank(t *testing.T) {
	if sym := classify(frameWith(0.001, 0, 0)); sym != 0 {
		t.Errorf("expected blank for silence, got %d", sym)
	}
}

func TestClassify_DeterministicPerFrame(t *testing.T) {
	fr := frameWith(0.1, 3, 1600)
	a, b := classify(fr), classify(fr)
	if a != b {
		t.Errorf("classification must be deterministic, got %d and %d", a, b)
	}
	if a <= 0 || a >= LocalVocabSize {
		t.Errorf("expected a non-blank in-vocabulary symbol, got %d", a)
	}
}

func TestClassify_DistinguishesBandsAndLevels(t *testing.T) {
	a := classify(frameWith(0.1, 1, 0))
	b := classify(frameWith(0.1, 5, 0))
	if a == b {
		t.Errorf("different dominant bands should classify differently, got %d", a)
	}
}

func TestInfer_OnlineOfflineSameSymbolsOnStableInput(t *testing.T) {
	e := NewLocalEngine(ProviderDefault)
	frames := make([]audio.FeatureFrame, 10)
	for i := range frames {
		frames[i] = frameWith(0.1, 2, int64(i)*160)
	}

	offline, err := e.Infer(context.Background(), frames)
	if err != nil {
		t.Fatal(err)
	}

	stream := e.OpenOnline()
	defer stream.Close()
	var online Tensor
	for i := range frames {
		online, err = stream.Extend(context.Background(), frames[i:i+1])
		if err != nil {
			t.Fatal(err)
		}
	}

	if offline.Frames != online.Frames {
		t.Fatalf("expected equal frame counts, got %d and %d", offline.Frames, online.Frames)
	}
	// On stable input smoothing changes nothing, so both passes agree.
	for i := 0; i < offline.Frames; i++ {
		offRow, onRow := offline.Row(i), online.Row(i)
		for j := range offRow {
			if offRow[j] != onRow[j] {
				t.Fatalf("row %d differs between passes", i)
			}
		}
	}
}

func TestInfer_SmoothingRemovesIsolatedSymbol(t *testing.T) {
	symbols := []int{3, 3, 7, 3, 3}
	smoothed := majoritySmooth(symbols)
	want := []int{3, 3, 3, 3, 3}
	for i := range want {
		if smoothed[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, smoothed)
		}
	}
}

func TestInfer_CanceledContext(t *testing.T) {
	e := NewLocalEngine(ProviderDefault)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Infer(ctx, make([]audio.FeatureFrame, 300)); err == nil {
		t.Error("expected context error from canceled offline pass")
	}

	stream := e.OpenOnline()
	defer stream.Close()
	if _, err := stream.Extend(ctx, make([]audio.FeatureFrame, 1)); err == nil {
		t.Error("expected context error from canceled online pass")
	}
}

func TestOnlineStream_IncrementalExtension(t *testing.T) {
	e := NewLocalEngine(ProviderDefault)
	stream := e.OpenOnline()
	defer stream.Close()

	first, err := stream.Extend(context.Background(), []audio.FeatureFrame{frameWith(0.1, 1, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if first.Frames != 1 {
		t.Fatalf("expected 1 frame, got %d", first.Frames)
	}

	second, err := stream.Extend(context.Background(), []audio.FeatureFrame{frameWith(0.1, 4, 160)})
	if err != nil {
		t.Fatal(err)
	}
	if second.Frames != 2 {
		t.Fatalf("expected prefix of 2 frames, got %d", second.Frames)
	}
	// The first row is unchanged by the extension.
	for j, v := range first.Row(0) {
		if second.Row(0)[j] != v {
			t.Fatal("prefix rows must be stable across extensions")
		}
	}
}
