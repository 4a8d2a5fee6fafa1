package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
	"github.com/diogo/querychat/internal/render"
	"github.com/diogo/querychat/internal/widget"
)

// spinner draws an animated waiting line on a terminal
type spinner struct {
	w       io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	stopped bool
}

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

func newSpinner(w io.Writer, message string) *spinner {
	return &spinner{
		w:       w,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *spinner) start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		// Hide cursor
		fmt.Fprint(s.w, "\033[?25l")

		for {
			select {
			case <-s.stop:
				// Clear line and show cursor
				fmt.Fprint(s.w, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				s.mu.Lock()
				s.render()
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

func (s *spinner) render() {
	p := render.CurrentPalette()
	char := lipgloss.NewStyle().Foreground(p.Busy).Bold(true).Render(spinnerFrames[s.frame%len(spinnerFrames)])
	dots := strings.Repeat(".", (s.frame/3)%4)
	msg := lipgloss.NewStyle().Foreground(p.Text).Render(s.message + dots)
	fmt.Fprintf(s.w, "\r\033[K%s %s", char, msg)
}

// halt stops the animation; safe to call more than once
func (s *spinner) halt() {
	s.mu.Lock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
	s.mu.Unlock()
	<-s.done
}

// printView writes a one-shot exchange to the terminal. Replies go to out,
// failures to errOut.
type printView struct {
	out, errOut io.Writer
	decorated   bool
	markdown    bool
	opts        render.Options
	width       int
}

func (v *printView) Appended(msg models.Message) {
	if msg.Role != models.RoleAssistant {
		return
	}
	if !v.decorated {
		fmt.Fprintln(v.out, msg.Text)
		return
	}

	p := render.CurrentPalette()
	label := lipgloss.NewStyle().Foreground(p.Assistant).Bold(true).Render("Assistant")
	bubble := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Assistant).
		Padding(0, 1).
		Width(v.width).
		Render(render.Reply(msg.Text, v.markdown, v.opts))
	fmt.Fprintln(v.out, label)
	fmt.Fprintln(v.out, bubble)
}

func (v *printView) InputCleared()   {}
func (v *printView) ScrollToBottom() {}

func (v *printView) Failed(_ string, err error) {
	if v.decorated {
		fmt.Fprintln(v.errOut, formatErrorMessage(err, "Query failed"))
		return
	}
	fmt.Fprintf(v.errOut, "error: %v\n", err)
}

// runQuery sends one query and prints the reply. Decorations (spinner,
// bubble, markdown) are used only when stdout is a terminal and --plain
// is off; otherwise the reply is printed verbatim for pipes.
func runQuery(ctx context.Context, deps *Dependencies, s *settings, out, errOut io.Writer, text string) error {
	client, err := deps.NewClient(s.cfg, s.log)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	decorated := !s.plain && isTerminal(out)
	width := clampWidth(getTerminalWidth(out) - 4)
	view := &printView{
		out:       out,
		errOut:    errOut,
		decorated: decorated,
		markdown:  s.cfg.Markdown.Enabled,
		opts:      s.renderOptions(width - 4),
		width:     width,
	}
	ctrl := widget.New(client, widget.WithView(view), widget.WithLogger(s.log))

	ex, err := ctrl.Begin(text)
	if err != nil {
		return fmt.Errorf("query cannot be empty: %w", err)
	}

	var spin *spinner
	if decorated {
		spin = newSpinner(errOut, "Waiting for "+client.Endpoint())
		spin.start()
	}
	res := ex.Run(ctx)
	if spin != nil {
		spin.halt()
	}

	res = ctrl.Finish(res)
	if res.Err != nil {
		return &reportedError{err: res.Err}
	}

	s.log.Info().Dur("latency", res.Latency).Int("matches", res.Response.Matches).Msg("one-shot query answered")

	if s.cfg.CopyToClipboard {
		copyReply(deps, errOut, decorated, res.Reply.Text)
	}
	return nil
}

func copyReply(deps *Dependencies, errOut io.Writer, decorated bool, text string) {
	p := render.CurrentPalette()
	if err := deps.Copy(text); err != nil {
		msg := fmt.Sprintf("Failed to copy to clipboard: %v", err)
		if decorated {
			msg = lipgloss.NewStyle().Foreground(p.Error).Render("⚠ " + msg)
		}
		fmt.Fprintln(errOut, msg)
		return
	}
	if decorated {
		fmt.Fprintln(errOut, lipgloss.NewStyle().Foreground(p.User).Render("✓ Copied to clipboard"))
	}
}

func clampWidth(w int) int {
	if w < 40 {
		return 40
	}
	if w > 120 {
		return 120
	}
	return w
}

// getTerminalWidth returns the width of w, or 80 when w is not a terminal
func getTerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func isFileTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	p := render.CurrentPalette()
	errorStyle := lipgloss.NewStyle().Foreground(p.Error)
	dimStyle := lipgloss.NewStyle().Foreground(p.Muted)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", context, err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	if endpoint := apierrors.GetEndpoint(err); endpoint != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  Endpoint: %s", endpoint)))
	}

	if body := apierrors.GetResponseBody(err); body != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n\n  %s", strings.ReplaceAll(body, "\n", "\n  "))))
	} else {
		switch {
		case apierrors.IsTimeoutError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: No reply in time. Raise --timeout or try again"))
		case apierrors.IsNetworkError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: Is the backend running? Try 'querychat ping' or 'querychat serve-dev'"))
		case apierrors.IsParseError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: The reply had no response_message; check --url points at the query backend"))
		}
	}

	return sb.String()
}
