package render

import (
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette is the color scheme of the chat window
type Palette struct {
	Name string

	Border lipgloss.Color
	Muted  lipgloss.Color
	Text   lipgloss.Color

	User      lipgloss.Color
	Assistant lipgloss.Color
	Busy      lipgloss.Color
	Error     lipgloss.Color
}

// DefaultPalette is used when no theme or an unknown theme is configured
const DefaultPalette = "tokyonight"

var palettes = map[string]Palette{
	"tokyonight": {
		Name:      "tokyonight",
		Border:    lipgloss.Color("#414868"),
		Muted:     lipgloss.Color("#565f89"),
		Text:      lipgloss.Color("#c0caf5"),
		User:      lipgloss.Color("#9ece6a"),
		Assistant: lipgloss.Color("#7aa2f7"),
		Busy:      lipgloss.Color("#bb9af7"),
		Error:     lipgloss.Color("#f7768e"),
	},
	"nord": {
		Name:      "nord",
		Border:    lipgloss.Color("#4c566a"),
		Muted:     lipgloss.Color("#7b88a1"),
		Text:      lipgloss.Color("#eceff4"),
		User:      lipgloss.Color("#a3be8c"),
		Assistant: lipgloss.Color("#88c0d0"),
		Busy:      lipgloss.Color("#b48ead"),
		Error:     lipgloss.Color("#bf616a"),
	},
	"dracula": {
		Name:      "dracula",
		Border:    lipgloss.Color("#6272a4"),
		Muted:     lipgloss.Color("#6272a4"),
		Text:      lipgloss.Color("#f8f8f2"),
		User:      lipgloss.Color("#50fa7b"),
		Assistant: lipgloss.Color("#8be9fd"),
		Busy:      lipgloss.Color("#ff79c6"),
		Error:     lipgloss.Color("#ff5555"),
	},
	// paper suits light terminal backgrounds
	"paper": {
		Name:      "paper",
		Border:    lipgloss.Color("#a0a1a7"),
		Muted:     lipgloss.Color("#696c77"),
		Text:      lipgloss.Color("#383a42"),
		User:      lipgloss.Color("#50a14f"),
		Assistant: lipgloss.Color("#4078f2"),
		Busy:      lipgloss.Color("#a626a4"),
		Error:     lipgloss.Color("#e45649"),
	},
}

var (
	paletteMu sync.RWMutex
	current   = palettes[DefaultPalette]
)

// PaletteByName looks up a palette
func PaletteByName(name string) (Palette, bool) {
	p, ok := palettes[name]
	return p, ok
}

// CurrentPalette returns the active palette
func CurrentPalette() Palette {
	paletteMu.RLock()
	defer paletteMu.RUnlock()
	return current
}

// SetPalette activates the named palette. Unknown names leave the active
// palette unchanged and return false.
func SetPalette(name string) bool {
	p, ok := palettes[name]
	if !ok {
		return false
	}
	paletteMu.Lock()
	current = p
	paletteMu.Unlock()
	return true
}

// PaletteNames returns the palette names, sorted
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
