package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"dashsync/internal/models"
)

var (
	meStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	otherStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	timestampStyle = lipgloss.NewStyle().Faint(true)
)

// Terminal writes one line per message to w.
type Terminal struct {
	currentUser string

	mu sync.Mutex
	w  io.Writer
}

func NewTerminal(w io.Writer, currentUser string) *Terminal {
	return &Terminal{w: w, currentUser: currentUser}
}

func (t *Terminal) Append(msg models.Message) error {
	style := otherStyle
	if msg.IsFrom(t.currentUser) {
		style = meStyle
	}
	line := fmt.Sprintf("%s %s %s\n",
		timestampStyle.Render("["+plainText(msg.Timestamp)+"]"),
		style.Render(plainText(msg.Sender)+":"),
		plainText(msg.Content),
	)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.w, line); err != nil {
		return fmt.Errorf("write message %d: %w", msg.ID, err)
	}
	return nil
}

// ScrollToEnd is implicit for an append-only stream.
func (t *Terminal) ScrollToEnd() {}

// plainText drops control characters so message text cannot drive the
// terminal. Newlines are flattened to spaces.
func plainText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}
