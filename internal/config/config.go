// Package config loads service configuration from an optional YAML file
// with environment-variable overrides. Environment always wins.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	NATS          NATSConfig          `yaml:"nats"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	VAD           VADConfig           `yaml:"vad"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig identifies the service instance.
type ServiceConfig struct {
	Principal string `yaml:"principal"`
}

// NATSConfig configures the audio ingress bus.
type NATSConfig struct {
	URL                     string        `yaml:"url"`
	AudioSubjectPrefix      string        `yaml:"audioSubjectPrefix"`
	TranscriptSubjectPrefix string        `yaml:"transcriptSubjectPrefix"`
	IdleTimeout             time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig configures the transcript event publisher.
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topicPartial"`
	TopicFinal   string   `yaml:"topicFinal"`
	Principal    string   `yaml:"principal"`
}

// PipelineConfig holds the session defaults for the two-pass pipeline.
type PipelineConfig struct {
	SampleRateHz           int           `yaml:"sampleRateHz"`
	Channels               int           `yaml:"channels"`
	ChunkSamples           int           `yaml:"chunkSamples"`
	Language               string        `yaml:"language"`
	OnlinePass             bool          `yaml:"onlinePass"`
	Punctuation            bool          `yaml:"punctuation"`
	ITN                    bool          `yaml:"itn"`
	AllowUnorderedPartials bool          `yaml:"allowUnorderedPartials"`
	BlockingClose          bool          `yaml:"blockingClose"`
	MaxSegmentDuration     time.Duration `yaml:"maxSegmentDuration"`
	// Hotwords maps biased words to their activation boost. File-only;
	// no environment override.
	Hotwords map[string]float64 `yaml:"hotwords"`
}

// VADConfig tunes the voice activity detector.
type VADConfig struct {
	Threshold      float64 `yaml:"threshold"`
	StartFrames    int     `yaml:"startFrames"`
	HangoverFrames int     `yaml:"hangoverFrames"`
}

// ObservabilityConfig configures logging and the metrics HTTP server.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	HTTPAddr  string `yaml:"httpAddr"`
}

// Load builds the configuration: defaults first, then the YAML file named
// by CONFIG_FILE (if set), then environment overrides.
func Load() *Configuration {
	cfg := &Configuration{
		Service: ServiceConfig{
			Principal: "svc-speech-transcription",
		},
		NATS: NATSConfig{
			URL:                     "nats://127.0.0.1:4222",
			AudioSubjectPrefix:      "audio.ingress",
			TranscriptSubjectPrefix: "transcript.units",
			IdleTimeout:             2 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:      false,
			TopicPartial: "transcript.partial",
			TopicFinal:   "transcript.final",
		},
		Pipeline: PipelineConfig{
			SampleRateHz:       16000,
			Channels:           1,
			ChunkSamples:       1600,
			Language:           "en-US",
			OnlinePass:         true,
			Punctuation:        true,
			ITN:                true,
			BlockingClose:      true,
			MaxSegmentDuration: 30 * time.Second,
		},
		VAD: VADConfig{
			Threshold:      0.015,
			StartFrames:    2,
			HangoverFrames: 5,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			HTTPAddr:  ":9090",
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)

	cfg.NATS.URL = envOrDefault("NATS_URL", cfg.NATS.URL)
	cfg.NATS.AudioSubjectPrefix = envOrDefault("NATS_AUDIO_SUBJECT_PREFIX", cfg.NATS.AudioSubjectPrefix)
	cfg.NATS.TranscriptSubjectPrefix = envOrDefault("NATS_TRANSCRIPT_SUBJECT_PREFIX", cfg.NATS.TranscriptSubjectPrefix)
	cfg.NATS.IdleTimeout = envOrDefaultDuration("NATS_IDLE_TIMEOUT", cfg.NATS.IdleTimeout)

	cfg.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitNonEmpty(v)
	}
	cfg.Kafka.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", cfg.Kafka.TopicPartial)
	cfg.Kafka.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", cfg.Kafka.TopicFinal)
	cfg.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", cfg.Kafka.Principal)
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	cfg.Pipeline.SampleRateHz = envOrDefaultInt("PIPELINE_SAMPLE_RATE_HZ", cfg.Pipeline.SampleRateHz)
	cfg.Pipeline.Channels = envOrDefaultInt("PIPELINE_CHANNELS", cfg.Pipeline.Channels)
	cfg.Pipeline.ChunkSamples = envOrDefaultInt("PIPELINE_CHUNK_SAMPLES", cfg.Pipeline.ChunkSamples)
	cfg.Pipeline.Language = envOrDefault("PIPELINE_LANGUAGE", cfg.Pipeline.Language)
	cfg.Pipeline.OnlinePass = envOrDefaultBool("PIPELINE_ONLINE_PASS", cfg.Pipeline.OnlinePass)
	cfg.Pipeline.Punctuation = envOrDefaultBool("PIPELINE_PUNCTUATION", cfg.Pipeline.Punctuation)
	cfg.Pipeline.ITN = envOrDefaultBool("PIPELINE_ITN", cfg.Pipeline.ITN)
	cfg.Pipeline.AllowUnorderedPartials = envOrDefaultBool("PIPELINE_ALLOW_UNORDERED_PARTIALS", cfg.Pipeline.AllowUnorderedPartials)
	cfg.Pipeline.BlockingClose = envOrDefaultBool("PIPELINE_BLOCKING_CLOSE", cfg.Pipeline.BlockingClose)
	cfg.Pipeline.MaxSegmentDuration = envOrDefaultDuration("PIPELINE_MAX_SEGMENT_DURATION", cfg.Pipeline.MaxSegmentDuration)

	cfg.VAD.Threshold = envOrDefaultFloat("VAD_THRESHOLD", cfg.VAD.Threshold)
	cfg.VAD.StartFrames = envOrDefaultInt("VAD_START_FRAMES", cfg.VAD.StartFrames)
	cfg.VAD.HangoverFrames = envOrDefaultInt("VAD_HANGOVER_FRAMES", cfg.VAD.HangoverFrames)

	cfg.Observability.LogLevel = envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.HTTPAddr = envOrDefault("OBSERVABILITY_HTTP_ADDR", cfg.Observability.HTTPAddr)

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
