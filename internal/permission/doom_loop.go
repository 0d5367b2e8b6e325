package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/trioagent/trio/internal/logging"
)

// DoomLoopThreshold is the number of identical calls before triggering.
const DoomLoopThreshold = 3

// DoomLoopDetector tracks repeated tool calls to detect infinite loops.
type DoomLoopDetector struct {
	mu      sync.RWMutex
	history map[string][]string // sessionID -> last N tool call hashes
}

// NewDoomLoopDetector creates a new doom loop detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{
		history: make(map[string][]string),
	}
}

// Check checks if a tool call is a doom loop (same tool + input N times in a row).
// Returns true if this appears to be a doom loop.
func (d *DoomLoopDetector) Check(sessionID, toolName string, input any) bool {
	hash := d.hashCall(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[sessionID]

	looping := false
	if len(history) >= DoomLoopThreshold-1 {
		looping = true
		for _, prev := range history[len(history)-(DoomLoopThreshold-1):] {
			if prev != hash {
				looping = false
				break
			}
		}
	}

	d.history[sessionID] = appendBounded(history, hash)

	if looping {
		logging.Warn().
			Str("session", sessionID).
			Str("tool", toolName).
			Msg("permission: repeated identical tool call detected")
	}
	return looping
}

// appendBounded appends hash, keeping only the most recent 10 entries so a
// long session's history cannot grow without bound.
func appendBounded(history []string, hash string) []string {
	history = append(history, hash)
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	return history
}

// hashCall creates a hash of the tool name and input.
func (d *DoomLoopDetector) hashCall(toolName string, input any) string {
	data, _ := json.Marshal(map[string]any{
		"tool":  toolName,
		"input": input,
	})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Clear clears the history for a session.
func (d *DoomLoopDetector) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

// Reset resets the detector for a session after a different call breaks the loop.
func (d *DoomLoopDetector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history[sessionID] = nil
}
