package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"serpgrab/pkg/config"
	"serpgrab/pkg/errors"
	"serpgrab/pkg/logger"
)

// Session is one Chrome tab driven over the DevTools protocol. It is owned
// by a single caller and must be closed by it.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	logger      logger.Logger
}

// Launch starts Chrome and opens a tab
func Launch(cfg config.BrowserConfig, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "browser")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// An empty Run starts the browser and attaches the tab
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	timeout := cfg.ActionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger.LogComponentStart(log, "browser", map[string]interface{}{
		"headless": cfg.Headless,
	})

	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     timeout,
		logger:      log,
	}, nil
}

// Close closes the tab and shuts the browser down
func (s *Session) Close() error {
	if s == nil || s.cancelTab == nil {
		return nil
	}
	s.cancelTab()
	s.cancelAlloc()
	s.cancelTab = nil
	logger.LogComponentStop(s.logger, "browser", nil)
	return nil
}

// run executes actions on the tab, bounded by timeout and by ctx
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s == nil || s.cancelTab == nil {
		return errors.Structural("browser session is not open")
	}

	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the load event
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.timeout, chromedp.Navigate(url)); err != nil {
		return interaction(err, "navigate to "+url)
	}
	return nil
}

// WaitVisible waits up to timeout for selector to become visible
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return interaction(err, "wait for "+selector)
	}
	return nil
}

// Submit types text into selector and presses Enter
func (s *Session) Submit(ctx context.Context, selector, text string) error {
	err := s.run(ctx, s.timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return interaction(err, "submit query into "+selector)
	}
	return nil
}

// ClickText clicks the first element matching selector whose visible text
// contains text. It reports whether one was found.
func (s *Session) ClickText(ctx context.Context, selector, text string) (bool, error) {
	var clicked bool
	if err := s.run(ctx, s.timeout, chromedp.Evaluate(clickTextScript(selector, text), &clicked)); err != nil {
		return false, interaction(err, fmt.Sprintf("click %s containing %q", selector, text))
	}
	return clicked, nil
}

// Exists reports whether selector matches anything right now
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	if err := s.run(ctx, s.timeout, chromedp.Evaluate(existsScript(selector), &found)); err != nil {
		return false, interaction(err, "query "+selector)
	}
	return found, nil
}

// Click clicks the first visible element matching selector
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.timeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return interaction(err, "click "+selector)
	}
	return nil
}

// ScrollBy scrolls the window down by pixels; pixels <= 0 scrolls one viewport
func (s *Session) ScrollBy(ctx context.Context, pixels int64) error {
	if err := s.run(ctx, s.timeout, chromedp.Evaluate(scrollScript(pixels), nil)); err != nil {
		return interaction(err, "scroll")
	}
	return nil
}

// ContentHeight returns the document's scroll height
func (s *Session) ContentHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := s.run(ctx, s.timeout, chromedp.Evaluate(heightScript, &height)); err != nil {
		return 0, interaction(err, "measure content height")
	}
	return height, nil
}

// HTML returns the current serialized document
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", interaction(err, "read document")
	}
	return html, nil
}

// Location returns the current page URL
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, s.timeout, chromedp.Location(&url)); err != nil {
		return "", interaction(err, "read location")
	}
	return url, nil
}

// Ready reports whether the document and every image in it finished loading
func (s *Session) Ready(ctx context.Context) (bool, error) {
	var ready bool
	if err := s.run(ctx, s.timeout, chromedp.Evaluate(readyScript, &ready)); err != nil {
		return false, interaction(err, "check readiness")
	}
	return ready, nil
}

const heightScript = `Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight)`

const readyScript = `document.readyState === "complete" && Array.from(document.images).every(img => img.complete)`

// interaction wraps a failed browser action. Structural errors pass through
// unchanged.
func interaction(err error, action string) error {
	if errors.Propagates(err) {
		return err
	}
	return errors.Interaction(err, action)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func clickTextScript(selector, text string) string {
	return fmt.Sprintf(`(() => {
	const want = %s;
	for (const el of document.querySelectorAll(%s)) {
		const label = el.innerText || el.textContent || "";
		if (label.includes(want)) {
			el.click();
			return true;
		}
	}
	return false;
})()`, jsString(text), jsString(selector))
}

func existsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
}

func scrollScript(pixels int64) string {
	if pixels <= 0 {
		return `window.scrollBy(0, window.innerHeight)`
	}
	return fmt.Sprintf(`window.scrollBy(0, %d)`, pixels)
}
