// Package browser launches the system browser on an embed URL.
// Every invocation uses exec.Command with explicit arguments; nothing is
// passed through a shell.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Opener opens a URL somewhere the user can watch it.
type Opener interface {
	Open(ctx context.Context, rawURL string) error
	Name() string
}

// System opens URLs with the OS default handler, or with App when set.
type System struct {
	App string
}

// New returns the system opener, using app when non-empty.
func New(app string) *System {
	return &System{App: app}
}

func (s *System) Name() string {
	if s.App != "" {
		return s.App
	}
	return "default browser"
}

// Open starts the browser and returns without waiting for it to exit.
func (s *System) Open(ctx context.Context, rawURL string) error {
	if err := ValidateURL(rawURL); err != nil {
		return err
	}
	cmd, ok := Command(ctx, runtime.GOOS, s.App, rawURL)
	if !ok {
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching %s: %w", s.Name(), err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Available checks if the launcher binary exists in PATH.
func (s *System) Available() bool {
	cmd, ok := Command(context.Background(), runtime.GOOS, s.App, "https://example.com")
	if !ok {
		return false
	}
	_, err := exec.LookPath(cmd.Path)
	return err == nil
}

// ValidateURL accepts https URLs and http URLs on loopback hosts (the
// local embed proxy).
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return fmt.Errorf("plain http is only allowed for localhost, got %q", host)
	default:
		return fmt.Errorf("only http(s) URLs can be opened, got %q", u.Scheme)
	}
}

// Command builds the launcher command for goos.
func Command(ctx context.Context, goos, app, input string) (*exec.Cmd, bool) {
	if app != "" {
		switch goos {
		case "windows":
			escaped := strings.ReplaceAll(input, "&", "^&")
			return exec.CommandContext(ctx, "cmd", "/C", "start", "", app, escaped), true
		case "darwin":
			return exec.CommandContext(ctx, "open", "-a", app, input), true
		case "linux", "freebsd", "openbsd", "netbsd":
			return exec.CommandContext(ctx, app, input), true
		default:
			return nil, false
		}
	}
	switch goos {
	case "windows":
		rundll := filepath.Join(os.Getenv("SYSTEMROOT"), "System32", "rundll32.exe")
		return exec.CommandContext(ctx, rundll, "url.dll,FileProtocolHandler", input), true
	case "darwin":
		return exec.CommandContext(ctx, "open", input), true
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.CommandContext(ctx, "xdg-open", input), true
	case "android":
		return exec.CommandContext(ctx, "termux-open", input), true
	default:
		return nil, false
	}
}
