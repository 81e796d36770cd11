package ingress

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"speech-transcription-service/internal/audio"
	"speech-transcription-service/internal/decoder"
	"speech-transcription-service/internal/events"
	"speech-transcription-service/internal/inference"
	"speech-transcription-service/internal/service/session"
	"speech-transcription-service/internal/textproc"
)

// silentEngine never produces activations, so no transcript units are
// emitted and the service never touches its NATS connection.
type silentEngine struct{}

func (silentEngine) Infer(_ context.Context, frames []audio.FeatureFrame) (inference.Tensor, error) {
	return inference.Tensor{Frames: len(frames), Dim: 1}, nil
}

func (silentEngine) OpenOnline() inference.OnlineStream { return silentStream{} }

type silentStream struct{}

func (silentStream) Extend(context.Context, []audio.FeatureFrame) (inference.Tensor, error) {
	return inference.Tensor{Dim: 1}, nil
}

func (silentStream) Close() {}

type emptyDecoder struct{}

func (emptyDecoder) DecodeOnline(inference.Tensor) (decoder.Hypothesis, error) {
	return decoder.Hypothesis{}, nil
}

func (emptyDecoder) DecodeOffline(context.Context, inference.Tensor) (decoder.Hypothesis, error) {
	return decoder.Hypothesis{}, nil
}

type noopPost struct{}

func (noopPost) Process(hyp decoder.Hypothesis, _ textproc.Options) string {
	return hyp.PlainText()
}

func newTestService(idleTimeout time.Duration) (*Service, *session.Pipeline) {
	p := session.NewPipeline(session.Params{
		Engine:  silentEngine{},
		Decoder: emptyDecoder{},
		Post:    noopPost{},
	})
	cfg := DefaultConfig()
	cfg.IdleTimeout = idleTimeout
	return NewService(nil, p, events.New(nil), cfg), p
}

func frameMsg(t *testing.T, sessionID string, seq uint64, samples []int16) *nats.Msg {
	t.Helper()
	frame := Frame{
		SessionID:    sessionID,
		Seq:          seq,
		SampleRateHz: 16000,
		Channels:     1,
		PCM:          audio.SamplesToPCM(samples),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	return &nats.Msg{Subject: AudioSubject(DefaultAudioSubjectPrefix, sessionID), Data: data}
}

// The idle reaper scans stream activity while frames keep arriving on
// the subscription goroutine; the two must not trip over the shared
// bookkeeping.
func TestService_FramesConcurrentWithIdleReaper(t *testing.T) {
	svc, p := newTestService(2 * time.Millisecond)
	svc.wg.Add(1)
	go svc.reapIdle()

	silence := make([]int16, 1600)
	for seq := uint64(1); seq <= 40; seq++ {
		svc.handleFrame(frameMsg(t, "reap-race", seq, silence))
		time.Sleep(time.Millisecond)
	}

	svc.cancel()
	svc.wg.Wait()
	p.AbortAll()

	deadline := time.Now().Add(2 * time.Second)
	for p.ActiveSessions() != 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if n := p.ActiveSessions(); n != 0 {
		t.Errorf("expected all sessions drained, got %d active", n)
	}
}

func TestService_ReaperClosesIdleStream(t *testing.T) {
	svc, _ := newTestService(5 * time.Millisecond)
	svc.handleFrame(frameMsg(t, "idle-1", 1, make([]int16, 1600)))

	svc.mu.Lock()
	_, ok := svc.streams["idle-1"]
	svc.mu.Unlock()
	if !ok {
		t.Fatal("expected stream registered after first frame")
	}

	svc.wg.Add(1)
	go svc.reapIdle()
	defer func() {
		svc.cancel()
		svc.wg.Wait()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		svc.mu.Lock()
		_, ok = svc.streams["idle-1"]
		svc.mu.Unlock()
		if !ok {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Error("expected the reaper to drop the idle stream")
}
