package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear relevant env vars
	envVars := []string{
		"CONFIG_FILE", "SERVICE_PRINCIPAL", "LOG_LEVEL", "LOG_FORMAT",
		"NATS_URL", "NATS_AUDIO_SUBJECT_PREFIX", "NATS_TRANSCRIPT_SUBJECT_PREFIX", "NATS_IDLE_TIMEOUT",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_PARTIAL", "KAFKA_TOPIC_FINAL", "KAFKA_PRINCIPAL",
		"PIPELINE_SAMPLE_RATE_HZ", "PIPELINE_CHANNELS", "PIPELINE_CHUNK_SAMPLES", "PIPELINE_LANGUAGE",
		"PIPELINE_ONLINE_PASS", "PIPELINE_PUNCTUATION", "PIPELINE_ITN",
		"PIPELINE_ALLOW_UNORDERED_PARTIALS", "PIPELINE_BLOCKING_CLOSE", "PIPELINE_MAX_SEGMENT_DURATION",
		"VAD_THRESHOLD", "VAD_START_FRAMES", "VAD_HANGOVER_FRAMES",
		"OBSERVABILITY_HTTP_ADDR",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.Service.Principal != "svc-speech-transcription" {
		t.Errorf("expected default principal 'svc-speech-transcription', got %s", cfg.Service.Principal)
	}
	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
	if cfg.NATS.IdleTimeout != 2*time.Minute {
		t.Errorf("expected default idle timeout 2m, got %v", cfg.NATS.IdleTimeout)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.Principal != "svc-speech-transcription" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
	if cfg.Pipeline.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Pipeline.SampleRateHz)
	}
	if cfg.Pipeline.Language != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.Pipeline.Language)
	}
	if !cfg.Pipeline.OnlinePass {
		t.Error("expected online pass enabled by default")
	}
	if cfg.Pipeline.MaxSegmentDuration != 30*time.Second {
		t.Errorf("expected default max segment duration 30s, got %v", cfg.Pipeline.MaxSegmentDuration)
	}
	if cfg.VAD.Threshold != 0.015 {
		t.Errorf("expected default VAD threshold 0.015, got %v", cfg.VAD.Threshold)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("NATS_URL", "nats://bus:4222")
	os.Setenv("NATS_IDLE_TIMEOUT", "45s")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "kafka-0:9092, kafka-1:9092")
	os.Setenv("PIPELINE_SAMPLE_RATE_HZ", "8000")
	os.Setenv("PIPELINE_LANGUAGE", "en-GB")
	os.Setenv("PIPELINE_ONLINE_PASS", "false")
	os.Setenv("PIPELINE_MAX_SEGMENT_DURATION", "10s")
	os.Setenv("VAD_THRESHOLD", "0.05")
	os.Setenv("LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("SERVICE_PRINCIPAL")
		os.Unsetenv("NATS_URL")
		os.Unsetenv("NATS_IDLE_TIMEOUT")
		os.Unsetenv("KAFKA_ENABLED")
		os.Unsetenv("KAFKA_BROKERS")
		os.Unsetenv("PIPELINE_SAMPLE_RATE_HZ")
		os.Unsetenv("PIPELINE_LANGUAGE")
		os.Unsetenv("PIPELINE_ONLINE_PASS")
		os.Unsetenv("PIPELINE_MAX_SEGMENT_DURATION")
		os.Unsetenv("VAD_THRESHOLD")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Kafka.Principal != "custom-principal" {
		t.Errorf("expected Kafka principal to follow service principal, got %s", cfg.Kafka.Principal)
	}
	if cfg.NATS.URL != "nats://bus:4222" {
		t.Errorf("expected NATS URL 'nats://bus:4222', got %s", cfg.NATS.URL)
	}
	if cfg.NATS.IdleTimeout != 45*time.Second {
		t.Errorf("expected idle timeout 45s, got %v", cfg.NATS.IdleTimeout)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "kafka-0:9092" || cfg.Kafka.Brokers[1] != "kafka-1:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Pipeline.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.Pipeline.SampleRateHz)
	}
	if cfg.Pipeline.Language != "en-GB" {
		t.Errorf("expected language 'en-GB', got %s", cfg.Pipeline.Language)
	}
	if cfg.Pipeline.OnlinePass {
		t.Error("expected online pass disabled")
	}
	if cfg.Pipeline.MaxSegmentDuration != 10*time.Second {
		t.Errorf("expected max segment duration 10s, got %v", cfg.Pipeline.MaxSegmentDuration)
	}
	if cfg.VAD.Threshold != 0.05 {
		t.Errorf("expected VAD threshold 0.05, got %v", cfg.VAD.Threshold)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	os.Setenv("PIPELINE_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("PIPELINE_ONLINE_PASS", "invalid")
	os.Setenv("PIPELINE_MAX_SEGMENT_DURATION", "invalid")
	os.Setenv("VAD_THRESHOLD", "invalid")

	defer func() {
		os.Unsetenv("PIPELINE_SAMPLE_RATE_HZ")
		os.Unsetenv("PIPELINE_ONLINE_PASS")
		os.Unsetenv("PIPELINE_MAX_SEGMENT_DURATION")
		os.Unsetenv("VAD_THRESHOLD")
	}()

	cfg := Load()

	if cfg.Pipeline.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Pipeline.SampleRateHz)
	}
	if !cfg.Pipeline.OnlinePass {
		t.Error("expected default online pass on invalid input")
	}
	if cfg.Pipeline.MaxSegmentDuration != 30*time.Second {
		t.Errorf("expected default max segment duration on invalid input, got %v", cfg.Pipeline.MaxSegmentDuration)
	}
	if cfg.VAD.Threshold != 0.015 {
		t.Errorf("expected default VAD threshold on invalid input, got %v", cfg.VAD.Threshold)
	}
}

func TestLoad_ConfigFile_EnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
service:
  principal: file-principal
nats:
  url: nats://from-file:4222
pipeline:
  language: en-GB
  hotwords:
    bravo: 0.5
    kilo: 0.2
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	os.Setenv("CONFIG_FILE", path)
	os.Setenv("NATS_URL", "nats://from-env:4222")
	defer func() {
		os.Unsetenv("CONFIG_FILE")
		os.Unsetenv("NATS_URL")
	}()

	cfg := Load()

	if cfg.Service.Principal != "file-principal" {
		t.Errorf("expected principal from file, got %s", cfg.Service.Principal)
	}
	if cfg.Pipeline.Language != "en-GB" {
		t.Errorf("expected language from file, got %s", cfg.Pipeline.Language)
	}
	if len(cfg.Pipeline.Hotwords) != 2 || cfg.Pipeline.Hotwords["bravo"] != 0.5 {
		t.Errorf("expected hotwords from file, got %v", cfg.Pipeline.Hotwords)
	}
	if cfg.NATS.URL != "nats://from-env:4222" {
		t.Errorf("expected env to override file, got %s", cfg.NATS.URL)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
