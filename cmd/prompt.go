package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// promptConfirmer asks a y/N question on out and reads the answer from in.
// When in is not a terminal and assumeYes is unset, it declines without
// asking.
type promptConfirmer struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	assumeYes   bool
}

func newPromptConfirmer(assumeYes bool) *promptConfirmer {
	return &promptConfirmer{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		assumeYes:   assumeYes,
	}
}

func (p *promptConfirmer) Confirm(ctx context.Context, prompt string) bool {
	if p.assumeYes {
		return true
	}
	if !p.interactive {
		fmt.Fprintln(p.out, "stdin is not a terminal; pass --yes to confirm")
		return false
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.in).ReadString('\n')
		answer <- line
	}()
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

var alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

// stderrNotifier prints alerts for the user.
type stderrNotifier struct {
	out io.Writer
}

func (n stderrNotifier) Alert(message string) {
	fmt.Fprintln(n.out, alertStyle.Render(message))
}
