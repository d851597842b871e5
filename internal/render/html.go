package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	"dashsync/internal/models"
)

// HTML renders chat bubbles as markup. Sender, content and timestamp are
// always escaped: message content is untrusted text and never markup.
type HTML struct {
	currentUser string

	mu        sync.RWMutex
	fragments []string
	scrollTo  int64
}

func NewHTML(currentUser string) *HTML {
	return &HTML{currentUser: currentUser}
}

func (h *HTML) Append(msg models.Message) error {
	side := "other"
	if msg.IsFrom(h.currentUser) {
		side = "me"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="chat-message %s" data-id="%s">`, side, strconv.FormatInt(msg.ID, 10))
	fmt.Fprintf(&b, `<div class="sender">%s</div>`, html.EscapeString(msg.Sender))
	fmt.Fprintf(&b, `<div class="bubble">%s</div>`, html.EscapeString(msg.Content))
	fmt.Fprintf(&b, `<div class="timestamp">%s</div>`, html.EscapeString(msg.Timestamp))
	b.WriteString(`</div>`)

	h.mu.Lock()
	h.fragments = append(h.fragments, b.String())
	h.scrollTo = msg.ID
	h.mu.Unlock()
	return nil
}

// ScrollToEnd is a no-op; the snapshot carries the last id as an anchor.
func (h *HTML) ScrollToEnd() {}

// Snapshot returns the full chat window.
func (h *HTML) Snapshot() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var b strings.Builder
	fmt.Fprintf(&b, `<div id="chat-window" data-scroll-to="%d">`, h.scrollTo)
	for _, f := range h.fragments {
		b.WriteString(f)
	}
	b.WriteString(`</div>`)
	return b.String()
}
