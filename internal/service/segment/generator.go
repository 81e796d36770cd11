package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator produces session-scoped segment IDs.
type Generator struct {
	counter uint64
}

// NewGenerator creates a Generator starting at 1.
func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns the next segment ID for the session.
func (g *Generator) Next(sessionID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-seg-%d", sessionID, n)
}
