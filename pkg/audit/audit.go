// Package audit records who did what to which entity. Recording is
// best-effort: a failed audit write must never fail the operation that
// emitted it, so callers go through Emit, which swallows and logs errors.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Unattributed is recorded when the caller supplies no actor identity.
const Unattributed = "unattributed"

// Entry is a single audit record.
type Entry struct {
	Timestamp    string            `json:"timestamp"`
	Action       string            `json:"action"`
	Module       string            `json:"module"`
	Detail       string            `json:"detail"`
	EntityID     string            `json:"entity_id"`
	EntityType   string            `json:"entity_type"`
	ActorID      string            `json:"actor_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	PreviousHash string            `json:"previous_hash"`
	Hash         string            `json:"hash"`
}

// Recorder persists audit entries. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Emit records an entry and swallows any failure, logging it instead.
func Emit(ctx context.Context, r Recorder, l *slog.Logger, e Entry) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, e); err != nil && l != nil {
		l.Warn("audit record dropped",
			"action", e.Action,
			"module", e.Module,
			"entity_id", e.EntityID,
			"error", err,
		)
	}
}

// payload serializes the entry fields covered by the hash chain.
func payload(e Entry) string {
	actor := e.ActorID
	if actor == "" {
		actor = Unattributed
	}
	parts := []string{e.Action, e.Module, e.Detail, e.EntityID, e.EntityType, actor}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+e.Metadata[k])
		}
	}
	return strings.Join(parts, "|")
}

func chainHash(prevHash, timestamp string, e Entry) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", prevHash, timestamp, payload(e))))
	return hex.EncodeToString(sum[:])
}

// ChainRecorder keeps entries in memory, hash-chained so the trail is
// tamper-evident. Useful for tests and for development without a durable sink.
type ChainRecorder struct {
	mu           sync.Mutex
	previousHash string
	entries      []Entry
}

// NewChainRecorder creates a ChainRecorder initialized with a zero hash.
func NewChainRecorder() *ChainRecorder {
	return &ChainRecorder{
		previousHash: strings.Repeat("0", 64),
	}
}

// Record appends an entry to the chain.
func (c *ChainRecorder) Record(_ context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.ActorID == "" {
		e.ActorID = Unattributed
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	e.PreviousHash = c.previousHash
	e.Hash = chainHash(e.PreviousHash, e.Timestamp, e)

	c.previousHash = e.Hash
	c.entries = append(c.entries, e)
	return nil
}

// Entries returns a copy of the recorded entries in order.
func (c *ChainRecorder) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// VerifyChain checks whether a slice of entries forms a valid hash chain.
func VerifyChain(entries []Entry) bool {
	for i, e := range entries {
		if i > 0 && e.PreviousHash != entries[i-1].Hash {
			return false
		}
		if chainHash(e.PreviousHash, e.Timestamp, e) != e.Hash {
			return false
		}
	}
	return true
}
