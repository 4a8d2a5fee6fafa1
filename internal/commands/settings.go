package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diogo/querychat/internal/config"
	"github.com/diogo/querychat/internal/logging"
	"github.com/diogo/querychat/internal/render"
	"github.com/diogo/querychat/internal/tui"
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	url      string
	timeout  string
	plain    bool
	copy     bool
	markdown bool
	logFile  string
	logLevel string
	verbose  bool
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.url, "url", "u", "", "Backend base URL (default from config or "+config.EnvBaseURL+")")
	pf.StringVarP(&f.timeout, "timeout", "t", "", "Per-query timeout, e.g. 30 or 1m (0 waits indefinitely)")
	pf.BoolVar(&f.plain, "plain", false, "Plain line output, no TUI or decorations")
	pf.BoolVar(&f.copy, "copy", false, "Copy each reply to the clipboard")
	pf.BoolVar(&f.markdown, "markdown", false, "Render replies as markdown")
	pf.StringVar(&f.logFile, "log-file", "", "Write debug logs to this file")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.BoolVar(&f.verbose, "verbose", false, "Log requests to ~/.querychat/querychat.log")
}

// settings is the effective configuration for one command run
type settings struct {
	cfg   config.Config
	log   zerolog.Logger
	close io.Closer
	plain bool
}

// loadSettings merges the config file, environment and flags. Flags win.
func loadSettings(cmd *cobra.Command, f *globalFlags) (*settings, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		if err := config.SetValue(&cfg, "base_url", f.url); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if err := config.SetValue(&cfg, "timeout_seconds", f.timeout); err != nil {
			return nil, err
		}
	}
	if flags.Changed("copy") {
		cfg.CopyToClipboard = f.copy
	}
	if flags.Changed("markdown") {
		cfg.Markdown.Enabled = f.markdown
	}
	if flags.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if f.logFile != "" {
		cfg.LogFile = f.logFile
	}
	if f.logLevel != "" {
		if err := config.SetValue(&cfg, "log_level", f.logLevel); err != nil {
			return nil, err
		}
	}

	log, closer, err := logging.New(logging.Options{
		Path:  cfg.ResolveLogFile(),
		Level: cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v, logging disabled\n", err)
	}

	if cfg.TUITheme != "" && !render.SetPalette(cfg.TUITheme) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unknown theme %q, using %s\n", cfg.TUITheme, render.DefaultPalette)
	}
	tui.UpdateTheme()

	return &settings{
		cfg:   cfg,
		log:   log,
		close: closer,
		plain: f.plain,
	}, nil
}

func (s *settings) Close() {
	if s.close != nil {
		_ = s.close.Close()
	}
}

// renderOptions returns the reply render options at the given width
func (s *settings) renderOptions(width int) render.Options {
	return render.OptionsFromConfig(s.cfg).WithWidth(width)
}

// isTerminal reports whether w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isFileTerminal(f)
}

// hasPipedInput reports whether r carries data that did not come from a terminal
func hasPipedInput(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
