// Package render holds the transcript views the sync engine appends into.
// Every view is append-only and keeps messages in the order they arrive.
package render

import (
	"sync"

	"dashsync/internal/models"
)

// Memory keeps the transcript in memory. The local view server reads it.
type Memory struct {
	mu       sync.RWMutex
	messages []models.Message
	scrolls  int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(msg models.Message) error {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ScrollToEnd() {
	m.mu.Lock()
	m.scrolls++
	m.mu.Unlock()
}

// Messages returns a copy of the transcript.
func (m *Memory) Messages() []models.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *Memory) Scrolls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scrolls
}

// Fanout appends to several views; the first error stops the fan out.
type Fanout []interface {
	Append(models.Message) error
	ScrollToEnd()
}

func (f Fanout) Append(msg models.Message) error {
	for _, t := range f {
		if err := t.Append(msg); err != nil {
			return err
		}
	}
	return nil
}

func (f Fanout) ScrollToEnd() {
	for _, t := range f {
		t.ScrollToEnd()
	}
}
