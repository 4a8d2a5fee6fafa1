package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/querychat/internal/api"
	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
)

func newReadyModel(t *testing.T, client api.ClientInterface, opts Options) Model {
	t.Helper()
	m := NewChatModel(client, opts)
	m.copy = func(string) error { return nil }
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model)
}

func press(t *testing.T, m Model, key tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(tea.KeyMsg{Type: key})
	return updated.(Model), cmd
}

// exchangeFrom runs the command returned by a send and returns the
// exchange outcome it carries
func exchangeFrom(t *testing.T, cmd tea.Cmd) exchangeDoneMsg {
	t.Helper()
	require.NotNil(t, cmd, "send produced no command")

	switch msg := cmd().(type) {
	case exchangeDoneMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if done, ok := c().(exchangeDoneMsg); ok {
				return done
			}
		}
	}
	t.Fatal("command did not run an exchange")
	return exchangeDoneMsg{}
}

func deliver(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func texts(m Model) []string {
	var out []string
	for _, e := range m.ctrl.Transcript().Entries() {
		out = append(out, string(e.Role)+":"+e.Text)
	}
	return out
}

func TestModel_EnterSendsQuery(t *testing.T) {
	client := &api.MockClient{QueryVal: api.Reply("4")}
	m := newReadyModel(t, client, Options{})

	m.textarea.SetValue("What is 2+2?")
	m, cmd := press(t, m, tea.KeyEnter)

	assert.True(t, m.loading)
	assert.Empty(t, m.textarea.Value(), "input is cleared once the user entry is appended")
	assert.Equal(t, []string{"user:What is 2+2?"}, texts(m))

	m = deliver(t, m, exchangeFrom(t, cmd))

	assert.False(t, m.loading)
	assert.Nil(t, m.err)
	assert.Equal(t, []string{"user:What is 2+2?", "assistant:4"}, texts(m))
	assert.Equal(t, []string{"What is 2+2?"}, client.Queries())
}

func TestModel_EnterAndCtrlSAreEquivalent(t *testing.T) {
	run := func(key tea.KeyType) ([]string, []string) {
		client := &api.MockClient{QueryVal: api.Reply("pong")}
		m := newReadyModel(t, client, Options{})
		m.textarea.SetValue("ping")
		m, cmd := press(t, m, key)
		m = deliver(t, m, exchangeFrom(t, cmd))
		return texts(m), client.Queries()
	}

	enterEntries, enterQueries := run(tea.KeyEnter)
	ctrlEntries, ctrlQueries := run(tea.KeyCtrlS)

	assert.Equal(t, enterEntries, ctrlEntries)
	assert.Equal(t, enterQueries, ctrlQueries)
}

func TestModel_EmptyInputDoesNothing(t *testing.T) {
	for _, input := range []string{"", "   "} {
		client := &api.MockClient{QueryVal: api.Reply("never")}
		m := newReadyModel(t, client, Options{})
		m.textarea.SetValue(input)

		m, cmd := press(t, m, tea.KeyEnter)

		assert.Nil(t, cmd)
		assert.False(t, m.loading)
		assert.Zero(t, m.ctrl.Transcript().Len())
		assert.Empty(t, client.Queries())
		assert.Equal(t, input, m.textarea.Value(), "Enter must not insert a newline")
	}
}

func TestModel_SecondSendRefusedWhileLoading(t *testing.T) {
	client := &api.MockClient{
		QueryFunc: func(ctx context.Context, text string) (*models.QueryResponse, error) {
			return api.Reply("re: " + text), nil
		},
	}
	m := newReadyModel(t, client, Options{})

	m.textarea.SetValue("A")
	m, first := press(t, m, tea.KeyEnter)
	require.True(t, m.loading)

	m.textarea.SetValue("B")
	m, second := press(t, m, tea.KeyCtrlS)
	assert.Nil(t, second)
	assert.Equal(t, "B", m.textarea.Value(), "refused input stays in the box")
	assert.Equal(t, []string{"user:A"}, texts(m))

	m = deliver(t, m, exchangeFrom(t, first))
	m, third := press(t, m, tea.KeyEnter)
	m = deliver(t, m, exchangeFrom(t, third))

	assert.Equal(t, []string{"user:A", "assistant:re: A", "user:B", "assistant:re: B"}, texts(m))
	assert.Equal(t, []string{"A", "B"}, client.Queries())
}

func TestModel_ScrollsToBottomAfterReply(t *testing.T) {
	long := strings.TrimSuffix(strings.Repeat("line\n", 120), "\n")
	m := newReadyModel(t, &api.MockClient{QueryVal: api.Reply(long)}, Options{})

	m.textarea.SetValue("tell me a lot")
	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, exchangeFrom(t, cmd))

	assert.True(t, m.viewport.AtBottom())
	assert.Greater(t, m.viewport.YOffset, 0)
}

func TestModel_FailureShowsError(t *testing.T) {
	netErr := apierrors.NewNetworkErrorWithEndpoint("query", "http://localhost:5000/query", errors.New("connection refused"))
	m := newReadyModel(t, &api.MockClient{QueryErr: netErr}, Options{})

	m.textarea.SetValue("hi")
	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, exchangeFrom(t, cmd))

	assert.False(t, m.loading)
	require.Error(t, m.err)
	assert.True(t, apierrors.IsNetworkError(m.err))
	assert.Equal(t, []string{"user:hi"}, texts(m), "no assistant entry on failure")

	view := m.View()
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "Hint")
}

func TestModel_ErrorClearedOnNextSend(t *testing.T) {
	client := &api.MockClient{QueryErr: apierrors.NewTimeoutError("no reply within 1s")}
	m := newReadyModel(t, client, Options{})

	m.textarea.SetValue("first")
	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, exchangeFrom(t, cmd))
	require.Error(t, m.err)

	client.QueryErr = nil
	client.QueryVal = api.Reply("ok")
	m.textarea.SetValue("second")
	m, cmd = press(t, m, tea.KeyEnter)
	assert.Nil(t, m.err)
	m = deliver(t, m, exchangeFrom(t, cmd))
	assert.Nil(t, m.err)
}

func TestModel_EscCancelsInFlightQuery(t *testing.T) {
	client := &api.MockClient{
		QueryFunc: func(ctx context.Context, text string) (*models.QueryResponse, error) {
			<-ctx.Done()
			return nil, &apierrors.TimeoutError{Message: "query abandoned", Cause: ctx.Err()}
		},
	}
	m := newReadyModel(t, client, Options{})

	m.textarea.SetValue("slow")
	m, cmd := press(t, m, tea.KeyEnter)

	m, escCmd := press(t, m, tea.KeyEsc)
	assert.Nil(t, escCmd, "esc while loading cancels instead of quitting")
	assert.True(t, m.loading, "guard held until the exchange reports back")

	m = deliver(t, m, exchangeFrom(t, cmd))

	assert.False(t, m.loading)
	assert.ErrorIs(t, m.err, context.Canceled)
	assert.Equal(t, 1, m.ctrl.Transcript().Len())
}

func TestModel_EscQuitsWhenIdle(t *testing.T) {
	m := newReadyModel(t, &api.MockClient{}, Options{})

	_, cmd := press(t, m, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_QuitCommand(t *testing.T) {
	client := &api.MockClient{}
	m := newReadyModel(t, client, Options{})
	m.textarea.SetValue("/quit")

	_, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, client.Queries())
}

func TestModel_CopyLastReply(t *testing.T) {
	m := newReadyModel(t, &api.MockClient{QueryVal: api.Reply("copy me")}, Options{})
	var copied []string
	m.copy = func(s string) error {
		copied = append(copied, s)
		return nil
	}

	m, _ = press(t, m, tea.KeyCtrlY)
	assert.Empty(t, copied)
	assert.Contains(t, m.notice, "nothing to copy")

	m.textarea.SetValue("q")
	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, exchangeFrom(t, cmd))
	assert.Empty(t, copied, "replies are not copied unless asked")

	m, _ = press(t, m, tea.KeyCtrlY)
	assert.Equal(t, []string{"copy me"}, copied)
	assert.Contains(t, m.notice, "copied")
}

func TestModel_CopyRepliesOption(t *testing.T) {
	m := newReadyModel(t, &api.MockClient{QueryVal: api.Reply("auto")}, Options{CopyReplies: true})
	var copied []string
	m.copy = func(s string) error {
		copied = append(copied, s)
		return errors.New("no clipboard")
	}

	m.textarea.SetValue("q")
	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, exchangeFrom(t, cmd))

	assert.Equal(t, []string{"auto"}, copied)
	assert.Contains(t, m.notice, "clipboard unavailable")
	assert.Nil(t, m.err, "clipboard failures do not fail the exchange")
}

func TestModel_ViewShowsRepliesVerbatim(t *testing.T) {
	m := newReadyModel(t, &api.MockClient{QueryVal: api.Reply("**not bold** <b>x</b>")}, Options{})

	m.textarea.SetValue("q")
	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, exchangeFrom(t, cmd))

	assert.Contains(t, m.View(), "**not bold** <b>x</b>")
}

func TestModel_ViewNotReady(t *testing.T) {
	m := NewChatModel(&api.MockClient{}, Options{})
	assert.Contains(t, m.View(), "Initializing")
}

func TestModel_ViewEmptyTranscript(t *testing.T) {
	m := newReadyModel(t, &api.MockClient{}, Options{})
	view := m.View()
	assert.Contains(t, view, "Type a question")
	assert.Contains(t, view, "http://localhost:5000/query")
}

func TestFormatError(t *testing.T) {
	assert.Empty(t, FormatError(nil))

	out := FormatError(apierrors.NewAPIErrorWithBody(400, "http://localhost:5000/query", "Query is missing", `{"error":"Query is missing"}`))
	assert.Contains(t, out, "400")
	assert.Contains(t, out, "Query is missing")

	out = FormatError(apierrors.NewParseError("field not found", "response_message"))
	assert.Contains(t, out, "response_message")
}
