// Package notify shows best-effort local notifications for a finished pass.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	appLog "partywatch/internal/log"
)

// Title is used for every pass summary.
const Title = "🎉 Party Match!"

// Notifier shows a local notification. Implementations never fail a pass;
// errors are for logging only.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Summary renders the titles of newly reported parties. It returns "" for
// no titles.
func Summary(titles []string) string {
	switch len(titles) {
	case 0:
		return ""
	case 1:
		return "Found: " + titles[0]
	}
	shown := titles
	if len(shown) > 2 {
		shown = shown[:2]
	}
	more := ""
	if len(titles) > 2 {
		more = "..."
	}
	return fmt.Sprintf("Found %d matches: %s%s", len(titles), strings.Join(shown, ", "), more)
}

// Show sends a summary through n and swallows its error after logging it.
func Show(ctx context.Context, n Notifier, titles []string) {
	body := Summary(titles)
	if n == nil || body == "" {
		return
	}
	if err := n.Notify(ctx, Title, body); err != nil {
		appLog.Warn("notify: local notification failed", "err", err)
	}
}

// New returns the notifier for a config value ("log" or "desktop").
func New(kind string) Notifier {
	if kind == "desktop" {
		return NewDesktopNotifier()
	}
	return LogNotifier{}
}

// LogNotifier writes the notification to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, title, body string) error {
	appLog.Info(title, "summary", body)
	return nil
}

// DesktopNotifier shells out to notify-send.
type DesktopNotifier struct {
	// Command defaults to "notify-send".
	Command string
	Timeout time.Duration
	AppName string
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{Command: "notify-send", Timeout: 5 * time.Second, AppName: "partywatch"}
}

func (d *DesktopNotifier) Notify(ctx context.Context, title, body string) error {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Command, "--app-name", d.AppName, title, body)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", d.Command, err, strings.TrimSpace(string(out)))
	}
	return nil
}
