package session

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by PushAudio and Close after the session
// has transitioned to Closed. Always surfaced to the caller, never
// retried internally.
var ErrSessionClosed = errors.New("session is closed")

// ConfigError reports invalid session configuration. The session is
// rejected at open; configuration is never partially applied.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid session config: %s: %s", e.Field, e.Reason)
}
