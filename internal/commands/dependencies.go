package commands

import (
	"os"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/config"
	"github.com/diogo/querychat/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(client api.ClientInterface, opts tui.Options) error
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewClient builds the backend client from the effective config.
	NewClient func(cfg config.Config, log zerolog.Logger) (api.ClientInterface, error)

	// TUI is the terminal user interface.
	TUI TUIInterface

	// Interactive reports whether stdin and stdout are both terminals.
	Interactive func() bool

	// Copy writes text to the system clipboard.
	Copy func(text string) error
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(client api.ClientInterface, opts tui.Options) error {
	return tui.RunChat(client, opts)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewClient:   newAPIClient,
		TUI:         &DefaultTUI{},
		Interactive: stdioIsTerminal,
		Copy:        clipboard.WriteAll,
	}
}

// withDefaults fills unset fields so tests only stub what they need
func (d *Dependencies) withDefaults() *Dependencies {
	def := NewDependencies()
	if d == nil {
		return def
	}
	out := *d
	if out.NewClient == nil {
		out.NewClient = def.NewClient
	}
	if out.TUI == nil {
		out.TUI = def.TUI
	}
	if out.Interactive == nil {
		out.Interactive = def.Interactive
	}
	if out.Copy == nil {
		out.Copy = def.Copy
	}
	return &out
}

func newAPIClient(cfg config.Config, log zerolog.Logger) (api.ClientInterface, error) {
	return api.NewClient(
		api.WithBaseURL(cfg.BaseURL),
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(log),
	)
}

func stdioIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
