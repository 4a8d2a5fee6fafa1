package render

import (
	"os"

	"github.com/diogo/querychat/internal/config"
)

// OptionsFromConfig builds render options from the user configuration.
// GLAMOUR_STYLE takes precedence over the configured style.
func OptionsFromConfig(cfg config.Config) Options {
	opts := DefaultOptions()

	if cfg.Markdown.Style != "" {
		opts.Style = cfg.Markdown.Style
	}
	opts.EnableEmoji = cfg.Markdown.Emoji

	if style := os.Getenv("GLAMOUR_STYLE"); style != "" {
		opts.Style = style
	}

	return opts
}
