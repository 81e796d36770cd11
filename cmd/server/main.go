package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"speech-transcription-service/internal/config"
	"speech-transcription-service/internal/decoder"
	"speech-transcription-service/internal/events"
	"speech-transcription-service/internal/inference"
	"speech-transcription-service/internal/ingress"
	"speech-transcription-service/internal/observability"
	"speech-transcription-service/internal/observability/logging"
	"speech-transcription-service/internal/service/session"
	"speech-transcription-service/internal/textproc"
	"speech-transcription-service/internal/vad"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	// Kafka publisher with separate topics for online partials and
	// offline finals. Disabled Kafka degrades to log-only mode.
	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	provider := inference.PreferredFromEnv()
	pipeline := session.NewPipeline(session.Params{
		Engine:  inference.NewLocalEngine(provider),
		Decoder: decoder.NewGreedy(),
		Post:    textproc.NewRules(),
		VAD: vad.Config{
			Threshold:      cfg.VAD.Threshold,
			StartFrames:    cfg.VAD.StartFrames,
			HangoverFrames: cfg.VAD.HangoverFrames,
		},
	})

	start := time.Now()
	obs := observability.NewServer(cfg.Observability.HTTPAddr, func() observability.Stats {
		return observability.Stats{
			ActiveSessions: pipeline.ActiveSessions(),
			UptimeSeconds:  int64(time.Since(start).Seconds()),
		}
	})
	obs.Start()

	conn, err := nats.Connect(cfg.NATS.URL,
		nats.Name(cfg.Service.Principal),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("Failed to connect to NATS")
	}
	defer conn.Close()

	sessionCfg := session.DefaultConfig()
	sessionCfg.SampleRateHz = cfg.Pipeline.SampleRateHz
	sessionCfg.Channels = cfg.Pipeline.Channels
	sessionCfg.ChunkSamples = cfg.Pipeline.ChunkSamples
	sessionCfg.Language = cfg.Pipeline.Language
	sessionCfg.OnlinePass = cfg.Pipeline.OnlinePass
	sessionCfg.Punctuation = cfg.Pipeline.Punctuation
	sessionCfg.ITN = cfg.Pipeline.ITN
	sessionCfg.AllowUnorderedPartials = cfg.Pipeline.AllowUnorderedPartials
	sessionCfg.BlockingClose = cfg.Pipeline.BlockingClose
	sessionCfg.MaxSegmentDuration = cfg.Pipeline.MaxSegmentDuration
	sessionCfg.Hotwords = cfg.Pipeline.Hotwords
	sessionCfg.Provider = provider

	svc := ingress.NewService(conn, pipeline, publisher, ingress.Config{
		AudioSubjectPrefix:      cfg.NATS.AudioSubjectPrefix,
		TranscriptSubjectPrefix: cfg.NATS.TranscriptSubjectPrefix,
		IdleTimeout:             cfg.NATS.IdleTimeout,
		Session:                 sessionCfg,
	})
	if err := svc.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start audio ingress")
	}

	log.Info().
		Str("principal", cfg.Service.Principal).
		Str("natsUrl", cfg.NATS.URL).
		Str("provider", string(provider)).
		Msg("Speech transcription service started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	svc.Close()
	pipeline.AbortAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Observability server shutdown error")
	}
}
