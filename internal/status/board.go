// Package status holds the transient, user-visible status message shown by the
// browser after downloads and exports.
package status

import (
	"sync"
	"time"
)

// Kind selects how long a message stays visible.
type Kind string

// Message kinds.
const (
	KindSuccess  Kind = "success"
	KindFailure  Kind = "failure"
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
)

// Config sets the visibility window per Kind.
type Config struct {
	SuccessTTL  time.Duration
	FailureTTL  time.Duration
	ProgressTTL time.Duration
	CompleteTTL time.Duration
}

// DefaultConfig keeps downloads and progress visible for 3s, failures for
// 2s and a finished library export for 4s.
func DefaultConfig() Config {
	return Config{
		SuccessTTL:  3 * time.Second,
		FailureTTL:  2 * time.Second,
		ProgressTTL: 3 * time.Second,
		CompleteTTL: 4 * time.Second,
	}
}

// Message is the status currently on display.
type Message struct {
	Text      string    `json:"message"`
	Kind      Kind      `json:"kind,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Notifier accepts status messages.
type Notifier interface {
	Post(kind Kind, text string)
}

// Board keeps the latest message until it expires. A newer message always
// replaces the previous one, including its expiry.
type Board struct {
	mu      sync.RWMutex
	cfg     Config
	now     func() time.Time
	current Message
}

// NewBoard builds a Board. A nil now uses time.Now.
func NewBoard(cfg Config, now func() time.Time) *Board {
	def := DefaultConfig()
	if cfg.SuccessTTL <= 0 {
		cfg.SuccessTTL = def.SuccessTTL
	}
	if cfg.FailureTTL <= 0 {
		cfg.FailureTTL = def.FailureTTL
	}
	if cfg.ProgressTTL <= 0 {
		cfg.ProgressTTL = def.ProgressTTL
	}
	if cfg.CompleteTTL <= 0 {
		cfg.CompleteTTL = def.CompleteTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Board{cfg: cfg, now: now}
}

// Post displays text for the window configured for kind.
func (b *Board) Post(kind Kind, text string) {
	if b == nil {
		return
	}
	ttl := b.ttl(kind)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = Message{Text: text, Kind: kind, ExpiresAt: b.now().Add(ttl)}
}

// Current returns the visible message, or the zero Message once it expired.
func (b *Board) Current() Message {
	if b == nil {
		return Message{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current.Text == "" || !b.now().Before(b.current.ExpiresAt) {
		return Message{}
	}
	return b.current
}

func (b *Board) ttl(kind Kind) time.Duration {
	switch kind {
	case KindSuccess:
		return b.cfg.SuccessTTL
	case KindFailure:
		return b.cfg.FailureTTL
	case KindComplete:
		return b.cfg.CompleteTTL
	default:
		return b.cfg.ProgressTTL
	}
}
