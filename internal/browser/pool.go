// Package browser owns the shared headless Chrome instance used by the
// scraper adapters that need a real DOM. One browser, a bounded number of
// incognito pages, lazy startup on first acquire.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	// DebuggerURL attaches to an already-running Chrome instead of
	// launching one.
	DebuggerURL string `json:"debugger_url"`
	// Launch is the Chrome binary followed by extra flags. Empty means the
	// rod launcher finds a browser on its own.
	Launch              []string `json:"launch"`
	Headless            bool     `json:"headless"`
	ViewportWidth       int      `json:"viewport_width"`
	ViewportHeight      int      `json:"viewport_height"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
	// MaxPages bounds how many pages are open at once across all adapters.
	MaxPages  int    `json:"max_pages"`
	UserAgent string `json:"user_agent"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
		MaxPages:            4,
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

func (c Config) maxPages() int {
	if c.MaxPages <= 0 {
		return 4
	}
	return c.MaxPages
}

// Pool manages the browser lifecycle and hands out pages.
type Pool struct {
	cfg Config
	log *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string

	slots chan struct{}
}

// NewPool creates a pool. The browser is not launched until the first
// Acquire or an explicit Start.
func NewPool(cfg Config, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		cfg:   cfg,
		log:   log,
		slots: make(chan struct{}, cfg.maxPages()),
	}
}

// Start connects to an existing Chrome or launches a new one. Calling it on
// a healthy pool is a no-op; a stale connection is rebuilt.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		if _, err := p.browser.Version(); err == nil {
			return nil
		}
		p.log.Warn("stale browser connection, reconnecting")
		_ = p.browser.Close()
		p.browser = nil
		p.controlURL = ""
	}

	controlURL := p.cfg.DebuggerURL
	if controlURL == "" && len(p.cfg.Launch) > 0 {
		bin := p.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(p.cfg.Headless)
		for _, rawFlag := range p.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			// Retry without the extra flags before giving up.
			fallback := launcher.New().Bin(bin).Headless(p.cfg.Headless)
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			controlURL = alt
		} else {
			controlURL = url
		}
	}

	if controlURL == "" {
		url, err := launcher.New().Headless(p.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	p.browser = browser
	p.controlURL = controlURL
	p.log.Info("browser connected", zap.Bool("headless", p.cfg.Headless))
	return nil
}

func (p *Pool) ensureStarted(ctx context.Context) error {
	p.mu.Lock()
	started := p.browser != nil
	p.mu.Unlock()
	if started {
		return nil
	}
	return p.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (p *Pool) ControlURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlURL
}

// IsConnected reports whether a browser is attached.
func (p *Pool) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.browser != nil
}

// Page is a leased browser page. Close returns the slot to the pool.
type Page struct {
	rod     *rod.Page
	pool    *Pool
	timeout time.Duration

	closeOnce sync.Once
}

// Acquire opens a fresh incognito page, blocking while the pool is at
// capacity. The caller must Close the page.
func (p *Pool) Acquire(ctx context.Context) (*Page, error) {
	if err := p.ensureStarted(ctx); err != nil {
		return nil, err
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	page, err := p.newPage(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return &Page{rod: page, pool: p, timeout: p.cfg.NavigationTimeout()}, nil
}

func (p *Pool) newPage(ctx context.Context) (*rod.Page, error) {
	p.mu.Lock()
	browser := p.browser
	p.mu.Unlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Context(ctx)

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             p.cfg.ViewportWidth,
		Height:            p.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		p.log.Warn("failed to set viewport", zap.Error(err))
	}
	if p.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: p.cfg.UserAgent,
		}); err != nil {
			p.log.Warn("failed to set user agent", zap.Error(err))
		}
	}
	return page, nil
}

// Shutdown closes the browser. Pages still leased become unusable.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.browser != nil {
		err = p.browser.Close()
		p.browser = nil
	}
	p.controlURL = ""
	return err
}

// Rod exposes the underlying page for adapter-specific element work.
func (pg *Page) Rod() *rod.Page {
	return pg.rod
}

// Navigate loads a URL and waits for the load event, bounded by the pool's
// navigation timeout and the context.
func (pg *Page) Navigate(ctx context.Context, url string) error {
	page := pg.rod.Context(ctx).Timeout(pg.timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// HTML returns the current document markup.
func (pg *Page) HTML(ctx context.Context) (string, error) {
	return pg.rod.Context(ctx).HTML()
}

// Title returns the current document title.
func (pg *Page) Title(ctx context.Context) (string, error) {
	info, err := pg.rod.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

// Close releases the page back to the pool. Safe to call more than once.
func (pg *Page) Close() {
	pg.closeOnce.Do(func() {
		_ = pg.rod.Close()
		<-pg.pool.slots
	})
}
