// Package browser drives the Chromium tab the agent works in.
package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"regsniper/internal/config"
)

type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	stealth  bool
}

// Launch starts a local Chromium, or connects to cfg.ControlURL when set.
func Launch(cfg config.BrowserConfig) (*Browser, error) {
	if u := strings.TrimSpace(cfg.ControlURL); u != "" {
		b := rod.New().ControlURL(u)
		if err := b.Connect(); err != nil {
			return nil, fmt.Errorf("connect browser %s: %w", u, err)
		}
		return &Browser{rod: b, stealth: cfg.Stealth}, nil
	}

	l := launcher.New().Headless(cfg.Headless)
	if bin := strings.TrimSpace(cfg.Bin); bin != "" {
		l = l.Bin(bin)
	}
	if dir := strings.TrimSpace(cfg.UserData); dir != "" {
		l = l.UserDataDir(dir)
	}
	u, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return &Browser{rod: b, launcher: l, stealth: cfg.Stealth}, nil
}

// Close disconnects; a browser this process launched is also killed.
func (b *Browser) Close() error {
	if b == nil || b.rod == nil {
		return nil
	}
	err := b.rod.Close()
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	return err
}
