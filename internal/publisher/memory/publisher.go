// Package memory records published export events in memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/iconshelf/internal/exportjob"
)

// Publisher keeps every published payload for later inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
}

// Message is one recorded publish call.
type Message struct {
	Topic   string
	Payload any
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the payload and returns a sequential message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Payload: payload})
	return fmt.Sprintf("mem-%d", len(p.messages)), nil
}

// Messages returns a snapshot of the recorded publishes.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Events returns the finished-export events recorded on topic, in publish
// order. Other payloads are skipped.
func (p *Publisher) Events(topic string) []exportjob.FinishedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []exportjob.FinishedEvent
	for _, msg := range p.messages {
		if msg.Topic != topic {
			continue
		}
		if event, ok := msg.Payload.(exportjob.FinishedEvent); ok {
			out = append(out, event)
		}
	}
	return out
}

var _ exportjob.Publisher = (*Publisher)(nil)
