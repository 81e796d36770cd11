// Command audioclient streams a WAV file into the service over NATS and
// prints the transcript units that come back.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/nats-io/nats.go"

	"speech-transcription-service/internal/audio"
	"speech-transcription-service/internal/ingress"
	"speech-transcription-service/internal/models"
)

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16-bit mono PCM)")
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	sessionID := flag.String("session", "audio-"+time.Now().Format("150405"), "Session ID")
	chunkMs := flag.Int("chunk-ms", 100, "Chunk duration in milliseconds")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		log.Fatalf("Failed to decode WAV: %v", err)
	}
	if dec.BitDepth != 16 {
		log.Fatalf("Only 16-bit PCM supported, got %d-bit", dec.BitDepth)
	}
	sampleRate := buf.Format.SampleRate
	channels := buf.Format.NumChannels
	log.Printf("WAV file: sampleRate=%d channels=%d samples=%d", sampleRate, channels, len(buf.Data))

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	conn, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer conn.Close()

	// Print transcript units as they arrive.
	transcriptSubject := ingress.TranscriptSubject(ingress.DefaultTranscriptSubjectPrefix, *sessionID)
	sub, err := conn.Subscribe(transcriptSubject, func(msg *nats.Msg) {
		var ev models.TranscriptUnitEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		kind := "partial"
		if ev.Final {
			kind = "FINAL"
			if ev.Degraded {
				kind = "FINAL(degraded)"
			}
		}
		log.Printf("[%s] %s @%d: %q (conf=%.2f)", kind, ev.SegmentID, ev.StartOffset, ev.Text, ev.Confidence)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	audioSubject := ingress.AudioSubject(ingress.DefaultAudioSubjectPrefix, *sessionID)
	chunkSamples := sampleRate * *chunkMs / 1000
	log.Printf("Streaming session=%s subject=%s chunkSamples=%d", *sessionID, audioSubject, chunkSamples)

	var seq uint64
	for start := 0; start < len(samples); start += chunkSamples {
		end := start + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		seq++
		frame := ingress.Frame{
			SessionID:    *sessionID,
			Seq:          seq,
			SampleRateHz: sampleRate,
			Channels:     channels,
			PCM:          audio.SamplesToPCM(samples[start:end]),
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			log.Fatalf("Failed to marshal frame: %v", err)
		}
		if err := conn.Publish(audioSubject, payload); err != nil {
			log.Fatalf("Failed to publish frame: %v", err)
		}
		time.Sleep(time.Duration(*chunkMs) * time.Millisecond)
	}

	// Final marker closes the session and flushes the last segment.
	seq++
	final := ingress.Frame{SessionID: *sessionID, Seq: seq, SampleRateHz: sampleRate, Channels: channels, Final: true}
	payload, _ := json.Marshal(final)
	if err := conn.Publish(audioSubject, payload); err != nil {
		log.Fatalf("Failed to publish final frame: %v", err)
	}
	log.Printf("Sent %d chunks, waiting for finals", seq-1)

	// Give the offline passes time to drain.
	time.Sleep(3 * time.Second)
}
