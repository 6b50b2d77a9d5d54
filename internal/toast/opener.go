package toast

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// BrowserOpener opens links with the desktop's default handler. Links
// relative to the platform are resolved against BaseURL.
type BrowserOpener struct {
	BaseURL string
}

func (o BrowserOpener) Open(url string) error {
	target := resolve(o.BaseURL, url)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// LogOpener only records the link. Used when opening links is disabled.
type LogOpener struct {
	BaseURL string
	Logger  *slog.Logger
}

func (o LogOpener) Open(url string) error {
	o.Logger.Info("notification link", "url", resolve(o.BaseURL, url))
	return nil
}

func resolve(baseURL, url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") || baseURL == "" {
		return url
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(url, "/")
}
