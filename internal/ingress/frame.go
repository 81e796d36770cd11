// Package ingress receives session audio over NATS, feeds it through the
// two-pass pipeline and fans released transcript units out to Kafka and a
// per-session NATS subject.
package ingress

// Frame is one audio chunk on the wire. PCM is little-endian 16-bit
// mono samples (base64 in JSON). Seq must increase monotonically within a
// session; Final closes the session after this frame's audio.
type Frame struct {
	SessionID    string `json:"sessionId"`
	Seq          uint64 `json:"seq"`
	SampleRateHz int    `json:"sampleRateHz"`
	Channels     int    `json:"channels"`
	PCM          []byte `json:"pcm"`
	Final        bool   `json:"final"`
}

// Default subjects.
const (
	DefaultAudioSubjectPrefix      = "audio.ingress"
	DefaultTranscriptSubjectPrefix = "transcript.units"
)

// AudioSubject returns the ingest subject for a session.
func AudioSubject(prefix, sessionID string) string {
	return prefix + "." + sessionID
}

// TranscriptSubject returns the fan-out subject for a session.
func TranscriptSubject(prefix, sessionID string) string {
	return prefix + "." + sessionID
}
