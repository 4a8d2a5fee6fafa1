package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
	"github.com/diogo/querychat/internal/tui"
	"github.com/diogo/querychat/internal/widget"
)

// NewChatCmd creates the interactive chat command
func NewChatCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat window against the query backend.

Enter or Ctrl+S sends, Ctrl+Y copies the last reply, Esc cancels a pending
query or quits. When stdin or stdout is not a terminal, or with --plain,
chat reads one query per line and prints one reply per line instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()
			return runChat(cmd.Context(), deps, s, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runChat(ctx context.Context, deps *Dependencies, s *settings, in io.Reader, out, errOut io.Writer) error {
	client, err := deps.NewClient(s.cfg, s.log)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	if !s.plain && deps.Interactive() {
		return deps.TUI.RunChat(client, tui.Options{
			Markdown:    s.cfg.Markdown.Enabled,
			Render:      s.renderOptions(80),
			CopyReplies: s.cfg.CopyToClipboard,
			Logger:      s.log,
		})
	}

	return runLineChat(ctx, widget.New(client,
		widget.WithView(&lineView{out: out, errOut: errOut}),
		widget.WithLogger(s.log),
	), in, out, deps.Interactive())
}

// lineView prints replies one per line for non-terminal sessions
type lineView struct {
	out, errOut io.Writer
}

func (v *lineView) Appended(msg models.Message) {
	if msg.Role == models.RoleAssistant {
		fmt.Fprintln(v.out, msg.Text)
	}
}

func (v *lineView) InputCleared()   {}
func (v *lineView) ScrollToBottom() {}

func (v *lineView) Failed(query string, err error) {
	fmt.Fprintf(v.errOut, "error: %v\n", err)
}

// runLineChat sends each input line as a query until EOF, /quit or ctx is
// cancelled. Blank lines are skipped. Failures are reported and the loop
// continues. Cancellation ends the session like /quit.
func runLineChat(ctx context.Context, ctrl *widget.Controller, in io.Reader, out io.Writer, prompt bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		}

		res := ctrl.SendMessage(ctx, line)
		if errors.Is(res.Err, apierrors.ErrEmptyInput) {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
