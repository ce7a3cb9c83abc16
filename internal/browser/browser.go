package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how the browser process is launched.
type Config struct {
	Headless bool
	ProxyURL string
	Bin      string // browser executable, empty to let rod locate or download one
}

// Browser wraps a launched browser process and its rod connection.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// New launches a browser and connects to it.
func New(cfg Config) (*Browser, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{
		browser:  b,
		launcher: l,
	}, nil
}

// NewPage opens a blank tab.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Close shuts the browser down and kills the launched process.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return err
}
