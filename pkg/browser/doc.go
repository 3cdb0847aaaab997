// Package browser drives a headless Chrome tab with chromedp.
//
// A Session is the page capability the scraper works through. Every action
// runs under the configured action timeout and the caller's context, and
// returns an interaction error on failure. Launch starts the browser; Close
// tears down the tab and the browser process together.
package browser
