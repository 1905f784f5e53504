package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/manash/stability-skill/internal/host"
)

// Terminal shows images inline using the Kitty graphics protocol.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	usable bool
	shown  int
}

// NewTerminal checks once whether out is a terminal that understands the
// graphics protocol.
func NewTerminal(out *os.File) *Terminal {
	usable := term.IsTerminal(int(out.Fd())) && IsTerminalSupported()
	return &Terminal{out: out, usable: usable}
}

// NewWriter always draws to out. Used when the caller already knows the
// terminal is capable, and in tests.
func NewWriter(out io.Writer) *Terminal {
	return &Terminal{out: out, usable: true}
}

func (t *Terminal) CanUse() bool {
	return t.usable
}

func (t *Terminal) ShowImage(path string, opts host.ImageOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("image %s is empty", path)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if opts.Title != "" {
		fmt.Fprintln(t.out, opts.Title)
	}
	enc := NewKittyEncoder(t.out)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	fmt.Fprintln(t.out)
	t.shown++
	return nil
}

// Release clears every image this terminal has drawn.
func (t *Terminal) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shown == 0 {
		return nil
	}
	t.shown = 0
	return NewKittyEncoder(t.out).DeleteAll()
}

// Headless is the GUI of a host without a screen.
type Headless struct{}

func (Headless) CanUse() bool                              { return false }
func (Headless) ShowImage(string, host.ImageOptions) error { return nil }
func (Headless) Release() error                            { return nil }

func IsTerminalSupported() bool {
	return supported(os.Getenv)
}

func supported(getenv func(string) string) bool {
	termProgram := strings.ToLower(getenv("TERM_PROGRAM"))
	for _, prog := range []string{"kitty", "ghostty", "iterm.app", "wezterm"} {
		if termProgram == prog {
			return true
		}
	}

	if getenv("KITTY_WINDOW_ID") != "" || getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	t := strings.ToLower(getenv("TERM"))
	return strings.Contains(t, "kitty") || strings.Contains(t, "ghostty")
}
