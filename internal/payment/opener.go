package payment

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
)

// ErrCopiedToClipboard is returned when no browser could be started and the
// URL was copied instead.
var ErrCopiedToClipboard = errors.New("could not open a browser, the payment link was copied to the clipboard")

// BrowserOpener starts the platform URL handler.
type BrowserOpener struct {
	// command overrides the launcher, used in tests.
	command func(url string) *exec.Cmd
}

// Open launches the browser, falling back to the clipboard.
func (o BrowserOpener) Open(url string) error {
	build := o.command
	if build == nil {
		build = openCommand
	}
	cmd := build(url)
	if err := cmd.Start(); err == nil {
		go func() {
			// Reap the launcher; its exit status is not interesting.
			_ = cmd.Wait()
		}()
		return nil
	}
	if clipboard.Unsupported {
		return fmt.Errorf("open %s manually: no browser or clipboard available", url)
	}
	if err := clipboard.WriteAll(url); err != nil {
		return fmt.Errorf("failed to copy payment link: %w", err)
	}
	return ErrCopiedToClipboard
}

func openCommand(url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.Command("xdg-open", url)
	}
}
